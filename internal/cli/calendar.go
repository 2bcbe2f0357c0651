package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/advising_portal/internal/calendar"
	"github.com/Freeeeeet/advising_portal/internal/service"
	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	openStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	bookedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	closedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pastStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
)

type CalendarCmd struct {
	AdvisorID int64  `arg:"" help:"Advisor user id."`
	Month     string `help:"Month as YYYY-MM, current month by default."`
}

func (c *CalendarCmd) Run(ctx *Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	var year, month int
	if c.Month != "" {
		t, err := time.Parse("2006-01", c.Month)
		if err != nil {
			return fmt.Errorf("month must be YYYY-MM: %w", err)
		}
		year, month = t.Year(), int(t.Month())
	}

	// Operators with database access see the unredacted month.
	view, err := a.Availability.MonthView(ctx.Ctx, c.AdvisorID, year, month)
	if err != nil {
		return err
	}
	fmt.Println(RenderMonth(view))
	return nil
}

// Cell glyphs used by RenderMonth.
const (
	glyphOpen   = "o"
	glyphBooked = "x"
	glyphClosed = "."
	glyphPast   = " "
)

// RenderMonth draws the month as a time-by-day grid.
func RenderMonth(v *service.MonthView) string {
	var b strings.Builder

	title := fmt.Sprintf("Advisor #%d  %s %d", v.AdvisorID, time.Month(v.Month), v.Year)
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("      "))
	for _, d := range v.Days {
		b.WriteString(headerStyle.Render(d[len(d)-2:] + " "))
	}
	b.WriteString("\n")

	for _, start := range v.Times {
		t, _ := calendar.ParseTimeOfDay(start)
		b.WriteString(headerStyle.Render(t.Short() + " "))
		for _, d := range v.Days {
			cell := v.Cells[d+","+start]
			b.WriteString(renderCell(cell))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(openStyle.Render(glyphOpen) + " open  ")
	b.WriteString(bookedStyle.Render(glyphBooked) + " booked  ")
	b.WriteString(closedStyle.Render(glyphClosed) + " closed")
	return b.String()
}

func renderCell(c service.Cell) string {
	switch c.Status() {
	case "booked":
		return bookedStyle.Render(glyphBooked)
	case "open":
		if c.TooSoon {
			return pastStyle.Render(glyphOpen)
		}
		return openStyle.Render(glyphOpen)
	}
	if c.TooSoon {
		return pastStyle.Render(glyphPast)
	}
	return closedStyle.Render(glyphClosed)
}
