package leadtime

import (
	"testing"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func london(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func TestIsTooSoon(t *testing.T) {
	loc := london(t)
	now := time.Date(2025, time.March, 10, 13, 5, 0, 0, loc)
	p := NewPolicy(60*time.Minute, loc, FixedClock(now))
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.IsTooSoon(day, calendar.NewTimeOfDay(14, 0)))
	assert.False(t, p.IsTooSoon(day, calendar.NewTimeOfDay(14, 10)))
	assert.True(t, p.IsTooSoon(day, calendar.NewTimeOfDay(9, 0)), "past slot")
}

func TestCutoffIsInclusive(t *testing.T) {
	loc := london(t)
	now := time.Date(2025, time.March, 10, 13, 0, 0, 0, loc)
	p := NewPolicy(60*time.Minute, loc, FixedClock(now))
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.IsTooSoon(day, calendar.NewTimeOfDay(14, 0)))
	assert.False(t, p.IsTooSoon(day, calendar.NewTimeOfDay(14, 30)))
}

func TestIsTooSoonWithinOverride(t *testing.T) {
	loc := london(t)
	now := time.Date(2025, time.March, 10, 10, 0, 0, 0, loc)
	p := NewPolicy(DefaultLead, loc, FixedClock(now))
	day := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	slot := calendar.NewTimeOfDay(10, 30)

	assert.True(t, p.IsTooSoon(day, slot))
	assert.False(t, p.IsTooSoonWithin(day, slot, 0))
	assert.True(t, p.IsTooSoonWithin(day, slot, 30*time.Minute))
}

func TestClockIsReadInPolicyLocation(t *testing.T) {
	loc := london(t)
	// 13:05 London during BST is 12:05 UTC.
	now := time.Date(2025, time.June, 2, 12, 5, 0, 0, time.UTC)
	p := NewPolicy(60*time.Minute, loc, FixedClock(now))
	day := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, p.IsTooSoon(day, calendar.NewTimeOfDay(14, 0)))
	assert.False(t, p.IsTooSoon(day, calendar.NewTimeOfDay(14, 30)))
}
