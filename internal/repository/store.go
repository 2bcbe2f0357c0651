package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
)

var (
	// ErrSlotTaken means the slot already carries a reservation, or was closed
	// underneath a compare-and-swap.
	ErrSlotTaken = errors.New("slot already reserved")
	// ErrStudentDayTaken means the student already has a reservation that day.
	ErrStudentDayTaken = errors.New("student already has a reservation on this date")
	ErrNotFound        = errors.New("not found")
)

// Constraint names shared by both schemas.
const (
	constraintReservationSlot       = "reservations_slot_id_key"
	constraintReservationStudentDay = "reservations_student_day_key"
)

// Tx is the unit of work used by toggling and booking. Every method runs in
// the same database transaction.
type Tx interface {
	// EnsureSlot creates a closed slot row for key if none exists.
	EnsureSlot(ctx context.Context, key model.SlotKey, end calendar.TimeOfDay) error
	// LockSlot reads the slot under an exclusive lock. Returns nil, nil when
	// no row exists.
	LockSlot(ctx context.Context, key model.SlotKey) (*model.Slot, error)
	SetSlotOpen(ctx context.Context, slotID int64, open bool) error
	// CloseSlot flips an open slot to closed and returns ErrSlotTaken when the
	// slot was not open.
	CloseSlot(ctx context.Context, slotID int64) error
	SlotHasReservation(ctx context.Context, slotID int64) (bool, error)
	StudentHasReservationOn(ctx context.Context, studentID int64, date time.Time) (bool, error)
	// AdvisorForShare reads advisor flags so they cannot change before commit.
	AdvisorForShare(ctx context.Context, advisorID int64) (*model.Advisor, error)
	// CreateReservation inserts r and fills r.ID. Unique violations come back
	// as ErrSlotTaken or ErrStudentDayTaken.
	CreateReservation(ctx context.Context, r *model.Reservation) error
}

// Reader serves calendars and listings. No locking.
type Reader interface {
	ListAdvisorSlots(ctx context.Context, advisorID int64, from, to time.Time) ([]*model.SlotState, error)
	// ListDaySlots returns slots on date that are open or reserved, for
	// bookable advisors only.
	ListDaySlots(ctx context.Context, date time.Time) ([]*model.SlotState, error)
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error)
}

// Accounts reads users and advisor profiles. Missing rows yield nil, nil.
type Accounts interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUsers(ctx context.Context, ids []int64) (map[int64]*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetAdvisor(ctx context.Context, userID int64) (*model.Advisor, error)
	ListAdmins(ctx context.Context) ([]*model.User, error)
	ListBookableAdvisors(ctx context.Context) ([]*model.Advisor, error)
}

// AccountWriter is the admin registration boundary.
type AccountWriter interface {
	CreateUser(ctx context.Context, u *model.User) error
	UpsertAdvisor(ctx context.Context, a *model.Advisor) error
	SetOnboardingCompleted(ctx context.Context, userID int64, done bool) error
	SetTelegramChatID(ctx context.Context, userID int64, chatID int64) error
}

// Store is implemented by the Postgres and SQLite backends.
type Store interface {
	Reader
	Accounts
	AccountWriter

	// InTx runs fn in one transaction. fn returning an error rolls back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

func translateConstraint(name string) error {
	switch name {
	case constraintReservationSlot:
		return ErrSlotTaken
	case constraintReservationStudentDay:
		return ErrStudentDayTaken
	}
	return nil
}
