package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

// Window restricts events relative to the current time.
type Window int

const (
	WindowAll      Window = iota
	WindowUpcoming        // events that have not ended yet
	WindowPast            // events that have ended
)

func (w Window) String() string {
	switch w {
	case WindowUpcoming:
		return "upcoming"
	case WindowPast:
		return "past"
	default:
		return "all"
	}
}

// ParseWindow parses "all", "upcoming" or "past". Empty input means all.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return WindowAll, nil
	case "upcoming", "proximas":
		return WindowUpcoming, nil
	case "past", "pasadas":
		return WindowPast, nil
	default:
		return WindowAll, fmt.Errorf("invalid window %q", s)
	}
}

// contains reports whether e falls in the window at now.
func (w Window) contains(e *calendar.Event, now time.Time) bool {
	switch w {
	case WindowUpcoming:
		return e.End.After(now)
	case WindowPast:
		return !e.End.After(now)
	default:
		return true
	}
}

// Criteria is the client-side filter state.
type Criteria struct {
	// Month selects a single month of the start date; zero means any month.
	Month time.Month

	// Weekdays selects the start weekdays to keep.
	Weekdays WeekdaySet

	// Window restricts events relative to now.
	Window Window
}

// Matches reports whether e passes every criterion.
func (c Criteria) Matches(e *calendar.Event, now time.Time) bool {
	if c.Month != 0 && e.Start.Month() != c.Month {
		return false
	}
	if !c.Weekdays.Has(e.Start.Weekday()) {
		return false
	}
	return c.Window.contains(e, now)
}

// Apply returns the events matching the criteria, preserving input order.
func Apply(events []calendar.Event, c Criteria, now time.Time) []calendar.Event {
	filtered := make([]calendar.Event, 0, len(events))
	for i := range events {
		if c.Matches(&events[i], now) {
			filtered = append(filtered, events[i])
		}
	}
	return filtered
}

// ByMonthAndWeekday keeps the events starting in month (zero = any) on one of the weekdays.
func ByMonthAndWeekday(events []calendar.Event, month time.Month, weekdays WeekdaySet) []calendar.Event {
	return Apply(events, Criteria{Month: month, Weekdays: weekdays}, time.Time{})
}
