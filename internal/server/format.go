package server

import (
	"fmt"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

var weekdayNames = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var monthNames = [...]string{"", "enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre"}

// dayLabel returns a human-readable day label relative to now.
func dayLabel(t, now time.Time) string {
	loc := now.Location()
	t = t.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)

	switch {
	case day.Equal(today):
		return "Hoy"
	case day.Equal(today.AddDate(0, 0, 1)):
		return "Mañana"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Ayer"
	default:
		return longDate(t)
	}
}

// longDate formats t as "lunes 4 de marzo".
func longDate(t time.Time) string {
	return fmt.Sprintf("%s %d de %s", weekdayNames[t.Weekday()], t.Day(), monthNames[t.Month()])
}

// shortWeekday returns the three-letter weekday name used in grid headers.
func shortWeekday(d time.Weekday) string {
	return string([]rune(weekdayNames[d])[:3])
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := d.Hours()
	if hours == float64(int(hours)) {
		return fmt.Sprintf("%dh", int(hours))
	}
	return fmt.Sprintf("%.1fh", hours)
}

// timeRange formats the start and end clock times of e in loc.
func timeRange(e *calendar.Event, loc *time.Location) string {
	return fmt.Sprintf("%s - %s", e.Start.In(loc).Format("15:04"), e.End.In(loc).Format("15:04"))
}

// remaining describes how long an ongoing meeting still runs.
func remaining(e *calendar.Event, now time.Time) string {
	left := e.End.Sub(now)
	if left <= 0 {
		return ""
	}
	if left < time.Hour {
		return fmt.Sprintf("quedan %dm", int(left.Minutes()))
	}
	return fmt.Sprintf("quedan %.1fh", left.Hours())
}

// truncate truncates a string to maxLen runes, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
