package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"go.uber.org/zap"
)

// ProjectionService renders read-only views. It adds no invariants.
type ProjectionService struct {
	store        repository.Store
	availability *AvailabilityService
	logger       *zap.Logger
}

func NewProjectionService(store repository.Store, availability *AvailabilityService, logger *zap.Logger) *ProjectionService {
	return &ProjectionService{store: store, availability: availability, logger: logger}
}

// AdvisorMonth is an advisor's calendar as seen by viewerID. Who booked a
// cell and their message are shown only to the advisor, admins and the
// booking student; everyone else sees has_reservation alone.
func (s *ProjectionService) AdvisorMonth(ctx context.Context, viewerID, advisorID int64, year, month int) (*MonthView, error) {
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	view, err := s.availability.MonthView(ctx, advisorID, year, month)
	if err != nil {
		return nil, err
	}
	for key, cell := range view.Cells {
		if cell.HasReservation && !seesBooking(viewer, advisorID, cell.Student) {
			cell.Student = nil
			cell.Message = ""
			view.Cells[key] = cell
		}
	}
	return view, nil
}

// DayBoard lists the open or booked slots on date across bookable advisors,
// with booking details limited as in AdvisorMonth.
func (s *ProjectionService) DayBoard(ctx context.Context, viewerID int64, date time.Time) ([]*model.SlotState, error) {
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	slots, err := s.daySlots(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, st := range slots {
		if st.HasReservation() && !seesBooking(viewer, st.AdvisorID, st.Student) {
			st.Student = nil
			st.Message = ""
		}
	}
	return slots, nil
}

func (s *ProjectionService) daySlots(ctx context.Context, date time.Time) ([]*model.SlotState, error) {
	if !calendar.IsBusinessDay(date) {
		return nil, invalid("date", "%s is not a business day", calendar.FormatDate(date))
	}
	slots, err := s.store.ListDaySlots(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list day slots: %w", err)
	}
	return slots, nil
}

func (s *ProjectionService) viewer(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get viewer: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func seesBooking(viewer *model.User, advisorID int64, student *model.Participant) bool {
	switch {
	case viewer.Role == model.RoleAdmin:
		return true
	case viewer.ID == advisorID:
		return true
	case student != nil && student.ID == viewer.ID:
		return true
	}
	return false
}

// TimeGroup is the set of advisors free at one start time.
type TimeGroup struct {
	Start string             `json:"start"`
	End   string             `json:"end"`
	Slots []*model.SlotState `json:"slots"`
}

// OpenSlotsByTime groups the bookable slots of a date by start time. Slots
// that are reserved or already past the lead-time cutoff are left out.
func (s *ProjectionService) OpenSlotsByTime(ctx context.Context, date time.Time) ([]TimeGroup, error) {
	slots, err := s.daySlots(ctx, date)
	if err != nil {
		return nil, err
	}

	policy := s.availability.policy
	byStart := make(map[calendar.TimeOfDay]*TimeGroup)
	for _, st := range slots {
		if !st.IsOpen || st.HasReservation() || policy.IsTooSoon(st.Date, st.Start) {
			continue
		}
		g, ok := byStart[st.Start]
		if !ok {
			g = &TimeGroup{Start: st.Start.String(), End: st.End.String()}
			byStart[st.Start] = g
		}
		g.Slots = append(g.Slots, st)
	}

	starts := make([]calendar.TimeOfDay, 0, len(byStart))
	for t := range byStart {
		starts = append(starts, t)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	groups := make([]TimeGroup, 0, len(starts))
	for _, t := range starts {
		g := byStart[t]
		sort.Slice(g.Slots, func(i, j int) bool { return g.Slots[i].AdvisorID < g.Slots[j].AdvisorID })
		groups = append(groups, *g)
	}
	return groups, nil
}

type ReservationQuery struct {
	ViewerID int64
	From     time.Time
	To       time.Time
	Order    model.ListOrder
}

// Reservations lists what the viewer may see: students their own, teachers
// the ones made with them, admins everything.
func (s *ProjectionService) Reservations(ctx context.Context, q ReservationQuery) ([]*model.Reservation, error) {
	viewer, err := s.viewer(ctx, q.ViewerID)
	if err != nil {
		return nil, err
	}

	if !q.To.IsZero() && !q.From.IsZero() && q.To.Before(q.From) {
		return nil, invalid("to", "must not be before from")
	}
	switch q.Order {
	case "":
		q.Order = model.OrderAsc
	case model.OrderAsc, model.OrderDesc:
	default:
		return nil, invalid("order", "expected asc or desc, got %q", q.Order)
	}

	filter := model.ReservationFilter{From: q.From, To: q.To, Order: q.Order}
	switch viewer.Role {
	case model.RoleStudent:
		filter.StudentID = viewer.ID
	case model.RoleTeacher:
		filter.AdvisorID = viewer.ID
	case model.RoleAdmin:
	default:
		return nil, ErrRoleNotPermitted
	}

	list, err := s.store.ListReservations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}
