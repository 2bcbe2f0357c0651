package model

import (
	"html"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
)

// MaxMessageLength caps the optional note a student attaches to a reservation.
const MaxMessageLength = 300

// Reservation is a student's claim on exactly one slot. It is never mutated
// after creation.
type Reservation struct {
	ID        int64              `json:"id"`
	SlotID    int64              `json:"slot_id"`
	StudentID int64              `json:"student_id"`
	AdvisorID int64              `json:"advisor_id"`
	Date      time.Time          `json:"date"`
	Start     calendar.TimeOfDay `json:"start"`
	End       calendar.TimeOfDay `json:"end"`
	Message   string             `json:"message"`
	CreatedAt time.Time          `json:"created_at"`

	// Filled by listing queries
	Student *Participant `json:"student,omitempty"`
	Advisor *Participant `json:"advisor,omitempty"`
}

// DisplayMessage returns the message escaped for HTML output.
func (r *Reservation) DisplayMessage() string {
	return html.EscapeString(r.Message)
}

// SanitizeMessage trims the note, drops control characters other than
// newlines and tabs, and cuts it to MaxMessageLength runes.
func SanitizeMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	msg = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, msg)

	if utf8.RuneCountInString(msg) > MaxMessageLength {
		msg = string([]rune(msg)[:MaxMessageLength])
	}
	return strings.TrimSpace(msg)
}

type ListOrder string

const (
	OrderAsc  ListOrder = "asc"
	OrderDesc ListOrder = "desc"
)

// ReservationFilter scopes listing queries. Zero IDs mean "any".
type ReservationFilter struct {
	StudentID int64
	AdvisorID int64
	From      time.Time // inclusive date
	To        time.Time // exclusive date; zero means open ended
	Order     ListOrder
}
