// Package calendar generates the business-day grid and the fixed half-hour
// slot pairs that advisors publish availability against.
package calendar

import (
	"fmt"
	"time"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// DefaultStep is the length of one advising slot.
	DefaultStep = 30 * time.Minute
)

// TimeOfDay is a wall-clock time stored as minutes since midnight.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS" with two digits per field.
// Seconds must be zero.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var layout string
	switch len(s) {
	case 5:
		layout = "15:04"
	case 8:
		layout = "15:04:05"
	default:
		return 0, fmt.Errorf("parse time of day %q: unexpected length", s)
	}
	for i := 0; i < len(s); i++ {
		if i%3 == 2 {
			if s[i] != ':' {
				return 0, fmt.Errorf("parse time of day %q: expected ':' at %d", s, i)
			}
		} else if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("parse time of day %q: expected digit at %d", s, i)
		}
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Second() != 0 {
		return 0, fmt.Errorf("parse time of day %q: seconds must be zero", s)
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String returns the "HH:MM:SS" form used in calendar keys.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:00", t.Hour(), t.Minute())
}

// Short returns "HH:MM".
func (t TimeOfDay) Short() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

// On anchors the time of day to the given calendar date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}

// Interval is one (start, end) slot pair.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// WorkingHours describes the advising window and its granularity.
type WorkingHours struct {
	Start TimeOfDay
	End   TimeOfDay
	Step  time.Duration
}

// DefaultWorkingHours is 09:00 to 17:30 in half-hour steps.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		Start: NewTimeOfDay(9, 0),
		End:   NewTimeOfDay(17, 30),
		Step:  DefaultStep,
	}
}

// Slots returns the ordered slot pairs covering the window.
func (w WorkingHours) Slots() []Interval {
	step := TimeOfDay(w.Step / time.Minute)
	if step <= 0 {
		return nil
	}

	var out []Interval
	for start := w.Start; start+step <= w.End; start += step {
		out = append(out, Interval{Start: start, End: start + step})
	}
	return out
}

// Contains reports whether (start, end) is one of the generated pairs.
func (w WorkingHours) Contains(start, end TimeOfDay) bool {
	step := TimeOfDay(w.Step / time.Minute)
	if step <= 0 || end != start+step {
		return false
	}
	if start < w.Start || end > w.End {
		return false
	}
	return (start-w.Start)%step == 0
}

// BusinessDays returns every Monday through Friday of the month in order,
// as UTC midnights.
func BusinessDays(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	var days []time.Time
	for d := first; d.Month() == month; d = d.AddDate(0, 0, 1) {
		if IsBusinessDay(d) {
			days = append(days, d)
		}
	}
	return days
}

func IsBusinessDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// DateOf truncates t to its calendar date as a UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// Key identifies a calendar cell as "YYYY-MM-DD,HH:MM:SS".
func Key(date time.Time, start TimeOfDay) string {
	return FormatDate(date) + "," + start.String()
}

// ClampMonth falls back to the month of now when month is out of range.
func ClampMonth(year int, month int, now time.Time) (int, time.Month) {
	if month < 1 || month > 12 || year < 1 {
		return now.Year(), now.Month()
	}
	return year, time.Month(month)
}
