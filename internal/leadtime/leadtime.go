// Package leadtime decides whether a slot starts too close to now to be
// opened or booked.
package leadtime

import (
	"time"
	_ "time/tzdata"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
)

const DefaultLead = 60 * time.Minute

// Clock abstracts the current instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Policy evaluates slot start instants against now+Lead in Location.
type Policy struct {
	Lead     time.Duration
	Location *time.Location
	Clock    Clock
}

func NewPolicy(lead time.Duration, loc *time.Location, clock Clock) *Policy {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Policy{Lead: lead, Location: loc, Clock: clock}
}

// Now returns the current instant in the policy location.
func (p *Policy) Now() time.Time {
	return p.Clock.Now().In(p.Location)
}

// Cutoff is the earliest instant a slot may start after, exclusive.
func (p *Policy) Cutoff() time.Time {
	return p.CutoffWithin(p.Lead)
}

func (p *Policy) CutoffWithin(lead time.Duration) time.Time {
	return p.Now().Add(lead)
}

// SlotStart anchors (date, start) in the policy location.
func (p *Policy) SlotStart(date time.Time, start calendar.TimeOfDay) time.Time {
	return start.On(date, p.Location)
}

// IsTooSoon reports whether the slot starts at or before now+Lead.
func (p *Policy) IsTooSoon(date time.Time, start calendar.TimeOfDay) bool {
	return p.IsTooSoonWithin(date, start, p.Lead)
}

// IsTooSoonWithin is IsTooSoon with a per-call lead window.
func (p *Policy) IsTooSoonWithin(date time.Time, start calendar.TimeOfDay, lead time.Duration) bool {
	return !p.SlotStart(date, start).After(p.CutoffWithin(lead))
}
