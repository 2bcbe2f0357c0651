package cli

import (
	"strings"
	"testing"

	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestRenderMonth(t *testing.T) {
	view := &service.MonthView{
		AdvisorID: 7,
		Year:      2025,
		Month:     3,
		Days:      []string{"2025-03-10", "2025-03-11"},
		Times:     []string{"09:00:00", "09:30:00"},
		Cells: map[string]service.Cell{
			"2025-03-10,09:00:00": {TooSoon: true},
			"2025-03-10,09:30:00": {IsOpen: true},
			"2025-03-11,09:00:00": {HasReservation: true},
			"2025-03-11,09:30:00": {},
		},
	}

	out := RenderMonth(view)
	lines := strings.Split(out, "\n")

	assert.Contains(t, lines[0], "Advisor #7")
	assert.Contains(t, lines[0], "March 2025")
	assert.Contains(t, lines[2], "10")
	assert.Contains(t, lines[2], "11")

	var row0930 string
	for _, l := range lines {
		if strings.HasPrefix(l, "09:30") {
			row0930 = l
		}
	}
	assert.Equal(t, []string{"09:30", "o", "."}, strings.Fields(row0930))
	assert.Contains(t, out, "booked")
}

func TestRenderCellPrefersReservation(t *testing.T) {
	assert.Equal(t, glyphBooked, strings.TrimSpace(renderCell(service.Cell{IsOpen: true, HasReservation: true})))
	assert.Equal(t, glyphClosed, strings.TrimSpace(renderCell(service.Cell{})))
}
