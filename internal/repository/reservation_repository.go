package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository/base"
)

type ReservationRepository struct {
	*base.Repository
}

func NewReservationRepository(db base.Querier) *ReservationRepository {
	return &ReservationRepository{Repository: base.NewRepository(db)}
}

// Create inserts the reservation. The slot's date is copied into the row so
// the (student, date) unique constraint can back the daily cap.
func (r *ReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	query := `
		INSERT INTO reservations (slot_id, student_id, slot_date, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.DB().QueryRow(
		ctx, query,
		res.SlotID,
		res.StudentID,
		res.Date,
		res.Message,
		res.CreatedAt,
	).Scan(&res.ID)

	if err != nil {
		if name, ok := base.UniqueViolation(err); ok {
			if mapped := translateConstraint(name); mapped != nil {
				return mapped
			}
		}
		return fmt.Errorf("create reservation: %w", err)
	}

	return nil
}

func (r *ReservationRepository) ExistsForSlot(ctx context.Context, slotID int64) (bool, error) {
	var exists bool
	err := r.DB().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE slot_id = $1)`, slotID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slot reservation: %w", err)
	}
	return exists, nil
}

func (r *ReservationRepository) ExistsForStudentOn(ctx context.Context, studentID int64, date time.Time) (bool, error) {
	var exists bool
	err := r.DB().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE student_id = $1 AND slot_date = $2)`,
		studentID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check student reservation: %w", err)
	}
	return exists, nil
}

// List returns reservations matching filter, joined with both participants.
func (r *ReservationRepository) List(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.StudentID != 0 {
		where = append(where, "res.student_id = "+arg(filter.StudentID))
	}
	if filter.AdvisorID != 0 {
		where = append(where, "s.advisor_id = "+arg(filter.AdvisorID))
	}
	if !filter.From.IsZero() {
		where = append(where, "res.slot_date >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "res.slot_date < "+arg(filter.To))
	}

	query := `
		SELECT res.id, res.slot_id, res.student_id, s.advisor_id, res.slot_date,
		       s.start_time::text, s.end_time::text, res.message, res.created_at,
		       st.first_name, st.last_name, st.email,
		       ad.first_name, ad.last_name, ad.email
		FROM reservations res
		JOIN slots s ON s.id = res.slot_id
		JOIN users st ON st.id = res.student_id
		JOIN users ad ON ad.id = s.advisor_id
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY res.slot_date " + orderSQL(filter.Order) + ", s.start_time " + orderSQL(filter.Order)

	rows, err := r.DB().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []*model.Reservation
	for rows.Next() {
		var (
			res                      model.Reservation
			start, end               string
			stFirst, stLast, stEmail string
			adFirst, adLast, adEmail string
		)
		err := rows.Scan(
			&res.ID,
			&res.SlotID,
			&res.StudentID,
			&res.AdvisorID,
			&res.Date,
			&start,
			&end,
			&res.Message,
			&res.CreatedAt,
			&stFirst, &stLast, &stEmail,
			&adFirst, &adLast, &adEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if err := fillReservation(&res, start, end); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.Student = model.ParticipantOf(&model.User{ID: res.StudentID, FirstName: stFirst, LastName: stLast, Email: stEmail})
		res.Advisor = model.ParticipantOf(&model.User{ID: res.AdvisorID, FirstName: adFirst, LastName: adLast, Email: adEmail})
		out = append(out, &res)
	}

	return out, rows.Err()
}

func fillReservation(res *model.Reservation, start, end string) error {
	var slot model.Slot
	slot.Date = res.Date
	if err := parseSlotTimes(&slot, start, end); err != nil {
		return err
	}
	res.Date, res.Start, res.End = slot.Date, slot.Start, slot.End
	return nil
}

func orderSQL(o model.ListOrder) string {
	if o == model.OrderDesc {
		return "DESC"
	}
	return "ASC"
}
