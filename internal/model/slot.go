package model

import (
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
)

// Slot is one stored half-hour interval of one advisor. A (advisor, date,
// start) triple without a row is a virtual slot and counts as closed.
type Slot struct {
	ID        int64              `json:"id"`
	AdvisorID int64              `json:"advisor_id"`
	Date      time.Time          `json:"date"`
	Start     calendar.TimeOfDay `json:"start"`
	End       calendar.TimeOfDay `json:"end"`
	IsOpen    bool               `json:"is_open"`
	CreatedAt time.Time          `json:"created_at"`
}

func (s *Slot) Key() SlotKey {
	return SlotKey{AdvisorID: s.AdvisorID, Date: s.Date, Start: s.Start}
}

// SlotKey is the natural identity of a slot.
type SlotKey struct {
	AdvisorID int64
	Date      time.Time
	Start     calendar.TimeOfDay
}

func (k SlotKey) CellKey() string {
	return calendar.Key(k.Date, k.Start)
}

// SlotState joins a stored slot with its reservation, if any.
type SlotState struct {
	Slot
	ReservationID *int64       `json:"reservation_id,omitempty"`
	Student       *Participant `json:"student,omitempty"`
	Message       string       `json:"message,omitempty"`
	Advisor       *Participant `json:"advisor,omitempty"`
}

func (s *SlotState) HasReservation() bool {
	return s.ReservationID != nil
}
