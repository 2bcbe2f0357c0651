package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/leadtime"
	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/notify"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"go.uber.org/zap"
)

// AvailabilityService owns advisor slots: lazy creation, open/close
// toggling, and the dense month calendar.
type AvailabilityService struct {
	store     repository.Store
	policy    *leadtime.Policy
	hours     calendar.WorkingHours
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewAvailabilityService(
	store repository.Store,
	policy *leadtime.Policy,
	hours calendar.WorkingHours,
	publisher notify.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AvailabilityService {
	if publisher == nil {
		publisher = notify.Discard{}
	}
	return &AvailabilityService{
		store:     store,
		policy:    policy,
		hours:     hours,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// ToggleResult carries the flipped slot and the advisor's refreshed month.
type ToggleResult struct {
	Slot  *model.Slot `json:"slot"`
	Month *MonthView  `json:"month"`
}

// ToggleOpen flips is_open on the slot named by ref, creating it closed first
// if needed. Closing is always allowed. Opening is rejected when the slot is
// too soon or already carries a reservation; a rejected open persists
// nothing.
func (s *AvailabilityService) ToggleOpen(ctx context.Context, ref SlotRef) (*ToggleResult, error) {
	if err := validate(ref, s.hours); err != nil {
		return nil, err
	}

	advisor, err := s.store.GetUser(ctx, ref.AdvisorID)
	if err != nil {
		return nil, fmt.Errorf("get advisor: %w", err)
	}
	if advisor == nil {
		return nil, ErrUserNotFound
	}
	if advisor.Role != model.RoleTeacher {
		return nil, ErrRoleNotPermitted
	}

	var slot *model.Slot
	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		key := ref.Key()
		if err := tx.EnsureSlot(ctx, key, ref.End); err != nil {
			return err
		}

		locked, err := tx.LockSlot(ctx, key)
		if err != nil {
			return err
		}
		if locked == nil {
			return fmt.Errorf("slot %s missing after insert", key.CellKey())
		}

		if !locked.IsOpen {
			if s.policy.IsTooSoon(ref.Date, ref.Start) {
				return ErrTooSoon
			}
			booked, err := tx.SlotHasReservation(ctx, locked.ID)
			if err != nil {
				return err
			}
			if booked {
				return ErrSlotAlreadyBooked
			}
		}

		if err := tx.SetSlotOpen(ctx, locked.ID, !locked.IsOpen); err != nil {
			return err
		}
		locked.IsOpen = !locked.IsOpen
		slot = locked
		return nil
	})
	if err != nil {
		s.metrics.SlotToggle(toggleOutcome(err))
		if errors.Is(err, ErrTooSoon) || errors.Is(err, ErrSlotAlreadyBooked) {
			s.logger.Info("Slot open rejected",
				zap.Int64("advisor_id", ref.AdvisorID),
				zap.String("slot", ref.Key().CellKey()),
				zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("toggle slot: %w", err)
	}

	s.metrics.SlotToggle(map[bool]string{true: "opened", false: "closed"}[slot.IsOpen])
	s.logger.Info("Slot toggled",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("advisor_id", slot.AdvisorID),
		zap.String("slot", slot.Key().CellKey()),
		zap.Bool("is_open", slot.IsOpen))

	s.publisher.Publish(ctx, notify.NewSlotToggled(s.policy.Now(), notify.SlotToggled{
		SlotID:    slot.ID,
		AdvisorID: slot.AdvisorID,
		Date:      calendar.FormatDate(slot.Date),
		Start:     slot.Start.String(),
		IsOpen:    slot.IsOpen,
	}))

	month, err := s.MonthView(ctx, ref.AdvisorID, ref.Date.Year(), int(ref.Date.Month()))
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Slot: slot, Month: month}, nil
}

func toggleOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTooSoon):
		return "too_soon"
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "already_booked"
	}
	return "error"
}

// Cell is one (date, start) entry of a month view. HasReservation takes
// precedence over IsOpen when rendering.
type Cell struct {
	Date           string             `json:"date"`
	Start          string             `json:"start"`
	End            string             `json:"end"`
	IsOpen         bool               `json:"is_open"`
	HasReservation bool               `json:"has_reservation"`
	TooSoon        bool               `json:"too_soon"`
	Student        *model.Participant `json:"student,omitempty"`
	// Message is HTML-escaped.
	Message string `json:"message,omitempty"`
}

// Status collapses the flags into one display state.
func (c Cell) Status() string {
	switch {
	case c.HasReservation:
		return "booked"
	case c.IsOpen:
		return "open"
	}
	return "closed"
}

// MonthView is a dense calendar: every business day times every slot.
type MonthView struct {
	AdvisorID int64           `json:"advisor_id"`
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Days      []string        `json:"days"`
	Times     []string        `json:"times"`
	Cells     map[string]Cell `json:"cells"`
}

// Cell returns the cell for (date, start).
func (v *MonthView) Cell(date time.Time, start calendar.TimeOfDay) Cell {
	return v.Cells[calendar.Key(date, start)]
}

// MonthView lists an advisor's month, filling cells with no stored slot as
// closed and unbooked. An out-of-range month falls back to the current one.
func (s *AvailabilityService) MonthView(ctx context.Context, advisorID int64, year, month int) (*MonthView, error) {
	y, m := calendar.ClampMonth(year, month, s.policy.Now())
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	stored, err := s.store.ListAdvisorSlots(ctx, advisorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list advisor slots: %w", err)
	}
	byKey := make(map[string]*model.SlotState, len(stored))
	for _, st := range stored {
		byKey[st.Key().CellKey()] = st
	}

	days := calendar.BusinessDays(y, m)
	slots := s.hours.Slots()
	cutoff := s.policy.Cutoff()

	view := &MonthView{
		AdvisorID: advisorID,
		Year:      y,
		Month:     int(m),
		Days:      make([]string, 0, len(days)),
		Times:     make([]string, 0, len(slots)),
		Cells:     make(map[string]Cell, len(days)*len(slots)),
	}
	for _, iv := range slots {
		view.Times = append(view.Times, iv.Start.String())
	}

	for _, day := range days {
		view.Days = append(view.Days, calendar.FormatDate(day))
		for _, iv := range slots {
			key := calendar.Key(day, iv.Start)
			cell := Cell{
				Date:    calendar.FormatDate(day),
				Start:   iv.Start.String(),
				End:     iv.End.String(),
				TooSoon: !s.policy.SlotStart(day, iv.Start).After(cutoff),
			}
			if st, ok := byKey[key]; ok {
				cell.IsOpen = st.IsOpen
				cell.HasReservation = st.HasReservation()
				cell.Student = st.Student
				cell.Message = (&model.Reservation{Message: st.Message}).DisplayMessage()
			}
			view.Cells[key] = cell
		}
	}

	return view, nil
}
