package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/leadtime"
	"github.com/Freeeeeet/advising_portal/internal/metrics"
	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/Freeeeeet/advising_portal/internal/notify"
	"github.com/Freeeeeet/advising_portal/internal/repository"
	"go.uber.org/zap"
)

// ReservationService turns an open slot into a reservation. All coordination
// happens in the store: the slot row lock serializes attempts on one slot,
// and the unique constraints catch whatever slips past it.
type ReservationService struct {
	store     repository.Store
	policy    *leadtime.Policy
	hours     calendar.WorkingHours
	publisher notify.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewReservationService(
	store repository.Store,
	policy *leadtime.Policy,
	hours calendar.WorkingHours,
	publisher notify.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReservationService {
	if publisher == nil {
		publisher = notify.Discard{}
	}
	return &ReservationService{
		store:     store,
		policy:    policy,
		hours:     hours,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

type CreateReservationInput struct {
	StudentID int64
	Slot      SlotRef
	Message   string
}

// CreateReservation books in.Slot for in.StudentID. Preconditions are
// checked in order: onboarding, slot open under lock, advisor bookable,
// lead time, daily cap, slot not yet reserved. Any failure rolls back.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (*model.Reservation, error) {
	res, err := s.create(ctx, in)
	s.metrics.ReservationAttempt(reservationOutcome(err))
	if err != nil {
		if IsValidation(err) || isRejection(err) {
			s.logger.Info("Reservation rejected",
				zap.Int64("student_id", in.StudentID),
				zap.Int64("advisor_id", in.Slot.AdvisorID),
				zap.String("slot", in.Slot.Key().CellKey()),
				zap.Error(err))
		} else {
			s.logger.Error("Reservation failed",
				zap.Int64("student_id", in.StudentID),
				zap.String("slot", in.Slot.Key().CellKey()),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Reservation created",
		zap.Int64("reservation_id", res.ID),
		zap.Int64("slot_id", res.SlotID),
		zap.Int64("student_id", res.StudentID),
		zap.Int64("advisor_id", res.AdvisorID))

	s.announce(ctx, res)
	return res, nil
}

func (s *ReservationService) create(ctx context.Context, in CreateReservationInput) (*model.Reservation, error) {
	if in.StudentID <= 0 {
		return nil, invalid("student", "must be a positive id")
	}
	if err := validate(in.Slot, s.hours); err != nil {
		return nil, err
	}

	student, err := s.store.GetUser(ctx, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if student == nil || student.Role != model.RoleStudent || !student.OnboardingCompleted {
		return nil, ErrOnboardingIncomplete
	}

	res := &model.Reservation{
		StudentID: in.StudentID,
		AdvisorID: in.Slot.AdvisorID,
		Date:      in.Slot.Date,
		Start:     in.Slot.Start,
		End:       in.Slot.End,
		Message:   model.SanitizeMessage(in.Message),
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		slot, err := tx.LockSlot(ctx, in.Slot.Key())
		if err != nil {
			return err
		}
		if slot == nil || slot.End != in.Slot.End {
			return ErrSlotNotAvailable
		}
		if !slot.IsOpen {
			// The loser of a race sees the winner's closed slot.
			booked, err := tx.SlotHasReservation(ctx, slot.ID)
			if err != nil {
				return err
			}
			if booked {
				return ErrSlotAlreadyBooked
			}
			return ErrSlotNotAvailable
		}

		advisor, err := tx.AdvisorForShare(ctx, in.Slot.AdvisorID)
		if err != nil {
			return err
		}
		if advisor == nil || !advisor.IsBookable() {
			return ErrAdvisorNotBookable
		}

		if s.policy.IsTooSoon(slot.Date, slot.Start) {
			return ErrTooSoon
		}

		taken, err := tx.StudentHasReservationOn(ctx, in.StudentID, slot.Date)
		if err != nil {
			return err
		}
		if taken {
			return ErrDailyLimitExceeded
		}

		booked, err := tx.SlotHasReservation(ctx, slot.ID)
		if err != nil {
			return err
		}
		if booked {
			return ErrSlotAlreadyBooked
		}

		res.SlotID = slot.ID
		res.CreatedAt = s.policy.Now()
		if err := tx.CreateReservation(ctx, res); err != nil {
			return err
		}
		return tx.CloseSlot(ctx, slot.ID)
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	return res, nil
}

// announce publishes ReservationCreated. It runs only after commit; lookup
// failures degrade the payload but never undo the reservation.
func (s *ReservationService) announce(ctx context.Context, res *model.Reservation) {
	users, err := s.store.GetUsers(ctx, []int64{res.StudentID, res.AdvisorID})
	if err != nil {
		s.logger.Warn("Failed to load reservation participants", zap.Int64("reservation_id", res.ID), zap.Error(err))
		users = map[int64]*model.User{}
	}
	admins, err := s.store.ListAdmins(ctx)
	if err != nil {
		s.logger.Warn("Failed to load admins", zap.Error(err))
	}

	payload := notify.ReservationCreated{
		ReservationID: res.ID,
		SlotID:        res.SlotID,
		Student:       notify.ContactOf(users[res.StudentID]),
		Advisor:       notify.ContactOf(users[res.AdvisorID]),
		Date:          calendar.FormatDate(res.Date),
		Start:         res.Start.String(),
		End:           res.End.String(),
		Message:       res.Message,
	}
	payload.Student.UserID = res.StudentID
	payload.Advisor.UserID = res.AdvisorID
	for _, a := range admins {
		payload.Admins = append(payload.Admins, notify.ContactOf(a))
	}

	s.publisher.Publish(ctx, notify.NewReservationCreated(s.policy.Now(), payload))
}

// translateStoreError keeps the rejection taxonomy stable when a unique
// constraint fires instead of a precondition.
func translateStoreError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		return ErrSlotAlreadyBooked
	case errors.Is(err, repository.ErrStudentDayTaken):
		return ErrDailyLimitExceeded
	case isRejection(err):
		return err
	}
	return fmt.Errorf("create reservation: %w", err)
}

func isRejection(err error) bool {
	for _, target := range []error{
		ErrOnboardingIncomplete,
		ErrSlotNotAvailable,
		ErrAdvisorNotBookable,
		ErrTooSoon,
		ErrDailyLimitExceeded,
		ErrSlotAlreadyBooked,
		ErrRoleNotPermitted,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func reservationOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case IsValidation(err):
		return "invalid"
	case errors.Is(err, ErrOnboardingIncomplete):
		return "onboarding_incomplete"
	case errors.Is(err, ErrSlotNotAvailable):
		return "slot_not_available"
	case errors.Is(err, ErrAdvisorNotBookable):
		return "advisor_not_bookable"
	case errors.Is(err, ErrTooSoon):
		return "too_soon"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "daily_limit"
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "already_booked"
	}
	return "error"
}
