package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(db base.Querier) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(db)}
}

const slotColumns = `s.id, s.advisor_id, s.slot_date, s.start_time::text, s.end_time::text, s.is_open, s.created_at`

func scanSlot(row pgx.Row, slot *model.Slot, extra ...any) error {
	var start, end string
	dest := append([]any{
		&slot.ID,
		&slot.AdvisorID,
		&slot.Date,
		&start,
		&end,
		&slot.IsOpen,
		&slot.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	return parseSlotTimes(slot, start, end)
}

func parseSlotTimes(slot *model.Slot, start, end string) error {
	var err error
	if slot.Start, err = calendar.ParseTimeOfDay(start); err != nil {
		return err
	}
	if slot.End, err = calendar.ParseTimeOfDay(end); err != nil {
		return err
	}
	slot.Date = calendar.DateOf(slot.Date)
	return nil
}

// EnsureKey inserts a closed slot unless one already exists.
func (r *SlotRepository) EnsureKey(ctx context.Context, key model.SlotKey, end calendar.TimeOfDay) error {
	query := `
		INSERT INTO slots (advisor_id, slot_date, start_time, end_time, is_open)
		VALUES ($1, $2, $3::time, $4::time, FALSE)
		ON CONFLICT (advisor_id, slot_date, start_time) DO NOTHING
	`

	_, err := r.DB().Exec(ctx, query, key.AdvisorID, key.Date, key.Start.String(), end.String())
	if err != nil {
		return fmt.Errorf("ensure slot: %w", err)
	}

	return nil
}

// LockByKey reads the slot with FOR UPDATE. Concurrent lockers of the same
// row block until the holder commits or rolls back.
func (r *SlotRepository) LockByKey(ctx context.Context, key model.SlotKey) (*model.Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM slots s
		WHERE s.advisor_id = $1 AND s.slot_date = $2 AND s.start_time = $3::time
		FOR UPDATE
	`

	var slot model.Slot
	err := scanSlot(r.DB().QueryRow(ctx, query, key.AdvisorID, key.Date, key.Start.String()), &slot)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}

	return &slot, nil
}

func (r *SlotRepository) SetOpen(ctx context.Context, slotID int64, open bool) error {
	n, err := r.ExecAffected(ctx, `UPDATE slots SET is_open = $1 WHERE id = $2`, open, slotID)
	if err != nil {
		return fmt.Errorf("set slot open: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set slot open %d: %w", slotID, ErrNotFound)
	}
	return nil
}

// CloseIfOpen is the compare-and-swap half of booking.
func (r *SlotRepository) CloseIfOpen(ctx context.Context, slotID int64) error {
	n, err := r.ExecAffected(ctx, `UPDATE slots SET is_open = FALSE WHERE id = $1 AND is_open`, slotID)
	if err != nil {
		return fmt.Errorf("close slot: %w", err)
	}
	if n == 0 {
		return ErrSlotTaken
	}
	return nil
}

// ListByAdvisor returns the advisor's stored slots in [from, to) with their
// reservation, if any.
func (r *SlotRepository) ListByAdvisor(ctx context.Context, advisorID int64, from, to time.Time) ([]*model.SlotState, error) {
	query := `
		SELECT ` + slotColumns + `, res.id, res.message, u.id, u.first_name, u.last_name, u.email
		FROM slots s
		LEFT JOIN reservations res ON res.slot_id = s.id
		LEFT JOIN users u ON u.id = res.student_id
		WHERE s.advisor_id = $1
		  AND s.slot_date >= $2
		  AND s.slot_date < $3
		ORDER BY s.slot_date, s.start_time
	`

	rows, err := r.DB().Query(ctx, query, advisorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list advisor slots: %w", err)
	}
	defer rows.Close()

	var states []*model.SlotState
	for rows.Next() {
		state, err := scanSlotState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		states = append(states, state)
	}

	return states, rows.Err()
}

// ListOpenOrBookedOn returns the day board rows across bookable advisors.
func (r *SlotRepository) ListOpenOrBookedOn(ctx context.Context, date time.Time) ([]*model.SlotState, error) {
	query := `
		SELECT ` + slotColumns + `, res.id, res.message, u.id, u.first_name, u.last_name, u.email,
		       a.id, a.first_name, a.last_name, a.email
		FROM slots s
		JOIN advisor_profiles ap ON ap.user_id = s.advisor_id
		JOIN users a ON a.id = s.advisor_id
		LEFT JOIN reservations res ON res.slot_id = s.id
		LEFT JOIN users u ON u.id = res.student_id
		WHERE s.slot_date = $1
		  AND (s.is_open OR res.id IS NOT NULL)
		  AND ap.active_advisor
		  AND (ap.can_host_online OR ap.can_host_in_person)
		ORDER BY a.last_name, a.first_name, s.start_time
	`

	rows, err := r.DB().Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list day slots: %w", err)
	}
	defer rows.Close()

	var states []*model.SlotState
	for rows.Next() {
		var (
			advisorID                 int64
			advisorFirst, advisorLast string
			advisorEmail              string
		)
		state, err := scanSlotState(rows, &advisorID, &advisorFirst, &advisorLast, &advisorEmail)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		state.Advisor = model.ParticipantOf(&model.User{
			ID: advisorID, FirstName: advisorFirst, LastName: advisorLast, Email: advisorEmail,
		})
		states = append(states, state)
	}

	return states, rows.Err()
}

func scanSlotState(row pgx.Row, extra ...any) (*model.SlotState, error) {
	var (
		state        model.SlotState
		resID        *int64
		message      *string
		studentID    *int64
		first, last  *string
		studentEmail *string
	)

	dest := append([]any{&resID, &message, &studentID, &first, &last, &studentEmail}, extra...)
	if err := scanSlot(row, &state.Slot, dest...); err != nil {
		return nil, err
	}

	state.ReservationID = resID
	if message != nil {
		state.Message = *message
	}
	if studentID != nil {
		state.Student = model.ParticipantOf(&model.User{
			ID:        *studentID,
			FirstName: deref(first),
			LastName:  deref(last),
			Email:     deref(studentEmail),
		})
	}
	return &state, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
