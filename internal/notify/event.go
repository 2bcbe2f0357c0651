// Package notify carries post-commit events from the booking core to the
// outside world: Telegram messages, the AMQP bus, and live calendar clients.
package notify

import (
	"context"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/model"
	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindReservationCreated Kind = "reservation.created"
	KindSlotToggled        Kind = "slot.toggled"
)

// Contact is a participant plus the channels we can reach them on.
type Contact struct {
	UserID         int64  `json:"user_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	TelegramChatID *int64 `json:"-"`
}

func ContactOf(u *model.User) Contact {
	if u == nil {
		return Contact{}
	}
	return Contact{
		UserID:         u.ID,
		Name:           u.FullName(),
		Email:          u.Email,
		TelegramChatID: u.TelegramChatID,
	}
}

// ReservationCreated is emitted once per committed reservation.
type ReservationCreated struct {
	ReservationID int64     `json:"reservation_id"`
	SlotID        int64     `json:"slot_id"`
	Student       Contact   `json:"student"`
	Advisor       Contact   `json:"advisor"`
	Admins        []Contact `json:"-"`
	Date          string    `json:"date"`
	Start         string    `json:"start"`
	End           string    `json:"end"`
	Message       string    `json:"message"`
}

// SlotToggled is emitted after an advisor flips a slot.
type SlotToggled struct {
	SlotID    int64  `json:"slot_id"`
	AdvisorID int64  `json:"advisor_id"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	IsOpen    bool   `json:"is_open"`
}

type Event struct {
	ID          string              `json:"id"`
	Kind        Kind                `json:"kind"`
	OccurredAt  time.Time           `json:"occurred_at"`
	Reservation *ReservationCreated `json:"reservation,omitempty"`
	Slot        *SlotToggled        `json:"slot,omitempty"`
}

func newEvent(kind Kind, at time.Time) Event {
	return Event{
		ID:         ulid.Make().String(),
		Kind:       kind,
		OccurredAt: at.UTC(),
	}
}

func NewReservationCreated(at time.Time, payload ReservationCreated) Event {
	e := newEvent(KindReservationCreated, at)
	e.Reservation = &payload
	return e
}

func NewSlotToggled(at time.Time, payload SlotToggled) Event {
	e := newEvent(KindSlotToggled, at)
	e.Slot = &payload
	return e
}

// Publisher accepts events after the producing transaction has committed.
// Publish must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Notifier delivers one event to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, e Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
