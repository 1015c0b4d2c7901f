package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrEmptySelection is returned when removing the last selected day from a selection
// that must keep at least one.
var ErrEmptySelection = errors.New("at least one weekday must stay selected")

// WeekdaySet is a set of weekdays (bit n set means time.Weekday(n) is selected).
type WeekdaySet uint8

const allDaysMask WeekdaySet = 1<<7 - 1

// Presets that replace the whole selection.
const (
	AllDays  WeekdaySet = allDaysMask
	WorkWeek WeekdaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday
	Weekend  WeekdaySet = 1<<time.Saturday | 1<<time.Sunday
)

// NewWeekdaySet builds a set from the given days.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.Add(d)
	}
	return s
}

// Has reports whether d is selected.
func (s WeekdaySet) Has(d time.Weekday) bool {
	return d >= time.Sunday && d <= time.Saturday && s&(1<<d) != 0
}

// Add selects d. Adding a selected day is a no-op.
func (s WeekdaySet) Add(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<d
}

// Remove deselects d. Removing an unselected day is a no-op.
func (s WeekdaySet) Remove(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s &^ (1 << d)
}

// Toggle flips d.
func (s WeekdaySet) Toggle(d time.Weekday) WeekdaySet {
	if s.Has(d) {
		return s.Remove(d)
	}
	return s.Add(d)
}

// Len returns the number of selected days.
func (s WeekdaySet) Len() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days returns the selected days from Sunday to Saturday.
func (s WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// String formats the set as a comma separated list of day numbers (0=Sunday).
func (s WeekdaySet) String() string {
	parts := make([]string, 0, 7)
	for _, d := range s.Days() {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// ParseWeekdays parses a comma separated list of day numbers (0=Sunday..6=Saturday)
// or one of the preset names "all", "weekdays", "weekend". Empty input selects all days.
func ParseWeekdays(s string) (WeekdaySet, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "", "all":
		return AllDays, nil
	case "weekdays", "workweek":
		return WorkWeek, nil
	case "weekend":
		return Weekend, nil
	}

	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q", part)
		}
		set = set.Add(time.Weekday(n))
	}
	return set, nil
}

// Selection is a weekday selection as edited by a user.
// RequireOne keeps at least one day selected (public page behaviour);
// the dashboard allows the selection to become empty.
type Selection struct {
	Set        WeekdaySet
	RequireOne bool
}

// ParseSelection parses a weekday query (see ParseWeekdays) into a selection,
// rejecting an empty set when requireOne is set.
func ParseSelection(s string, requireOne bool) (Selection, error) {
	set, err := ParseWeekdays(s)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Set: set, RequireOne: requireOne}
	if requireOne && set == 0 {
		return sel, ErrEmptySelection
	}
	return sel, nil
}

// Toggle flips d, refusing to empty the selection when RequireOne is set.
func (s *Selection) Toggle(d time.Weekday) error {
	next := s.Set.Toggle(d)
	if s.RequireOne && next == 0 {
		return ErrEmptySelection
	}
	s.Set = next
	return nil
}

// Remove deselects d, refusing to empty the selection when RequireOne is set.
func (s *Selection) Remove(d time.Weekday) error {
	next := s.Set.Remove(d)
	if s.RequireOne && next == 0 {
		return ErrEmptySelection
	}
	s.Set = next
	return nil
}

// Add selects d.
func (s *Selection) Add(d time.Weekday) {
	s.Set = s.Set.Add(d)
}

// Preset replaces the whole selection.
func (s *Selection) Preset(set WeekdaySet) {
	s.Set = set
}
