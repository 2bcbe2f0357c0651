package service

import (
	"strings"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/model"
)

// SlotRef names one half-hour cell of one advisor's calendar.
type SlotRef struct {
	AdvisorID int64
	Date      time.Time
	Start     calendar.TimeOfDay
	End       calendar.TimeOfDay
}

func (r SlotRef) Key() model.SlotKey {
	return model.SlotKey{AdvisorID: r.AdvisorID, Date: r.Date, Start: r.Start}
}

// ParseSlotRef parses wire input. An empty end defaults to start plus the
// default step.
func ParseSlotRef(advisorID int64, date, start, end string) (SlotRef, error) {
	if advisorID <= 0 {
		return SlotRef{}, invalid("advisor", "must be a positive id")
	}

	d, err := calendar.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return SlotRef{}, invalid("date", "expected YYYY-MM-DD, got %q", date)
	}
	st, err := calendar.ParseTimeOfDay(strings.TrimSpace(start))
	if err != nil {
		return SlotRef{}, invalid("start_time", "expected HH:MM, got %q", start)
	}

	en := st.Add(calendar.DefaultStep)
	if end = strings.TrimSpace(end); end != "" {
		if en, err = calendar.ParseTimeOfDay(end); err != nil {
			return SlotRef{}, invalid("end_time", "expected HH:MM, got %q", end)
		}
	}

	return SlotRef{AdvisorID: advisorID, Date: d, Start: st, End: en}, nil
}

// validate checks the ref against the working calendar.
func validate(ref SlotRef, hours calendar.WorkingHours) error {
	if ref.AdvisorID <= 0 {
		return invalid("advisor", "must be a positive id")
	}
	if ref.Date.IsZero() {
		return invalid("date", "required")
	}
	if !calendar.IsBusinessDay(ref.Date) {
		return invalid("date", "%s is not a business day", calendar.FormatDate(ref.Date))
	}
	if !hours.Contains(ref.Start, ref.End) {
		return invalid("time", "%s-%s is not a bookable slot", ref.Start.Short(), ref.End.Short())
	}
	return nil
}
