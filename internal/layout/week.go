package layout

import (
	"fmt"
	"strings"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

// Strategy selects how simultaneous events are grouped for side-by-side layout.
type Strategy string

const (
	// StrategyOverlap groups events whose time ranges overlap.
	StrategyOverlap Strategy = "overlap"
	// StrategyBucket groups events that start in the same 15-minute window.
	StrategyBucket Strategy = "bucket"
)

// ParseStrategy parses "overlap" or "bucket". Empty input means overlap.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyOverlap:
		return StrategyOverlap, nil
	case StrategyBucket:
		return StrategyBucket, nil
	default:
		return "", fmt.Errorf("unknown layout strategy %q", s)
	}
}

// Groups splits one day's events into simultaneous groups using the strategy.
func (s Strategy) Groups(dayEvents []calendar.Event) [][]calendar.Event {
	if s != StrategyBucket {
		return Cluster(dayEvents)
	}

	sorted := make([]calendar.Event, len(dayEvents))
	copy(sorted, dayEvents)
	sortByStart(sorted)

	buckets := GroupBy15MinuteBucket(sorted)
	groups := make([][]calendar.Event, 0, len(buckets))
	for _, key := range buckets.Keys() {
		groups = append(groups, buckets[key])
	}
	return groups
}

// Box is a positioned event.
type Box struct {
	Event calendar.Event
	Slot  Slot
	Slice Slice
}

// Column is one day of the week grid.
type Column struct {
	Date  time.Time
	Key   string
	Boxes []Box

	// Hidden counts the day's events that fall entirely outside the grid.
	Hidden int
}

// Week is a seven-day grid starting at Start.
type Week struct {
	Start   time.Time
	Grid    Grid
	Columns []Column
}

// StartOfWeek returns midnight of the first day of the week containing t.
func StartOfWeek(t time.Time, first time.Weekday) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) - int(first) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// BuildWeek lays out the events of the week containing day.
// Events outside the week are ignored; events outside the grid hours are counted
// per column but get no box.
func BuildWeek(events []calendar.Event, day time.Time, first time.Weekday, grid Grid, strategy Strategy) Week {
	start := StartOfWeek(day, first)
	days := GroupByDay(events)

	week := Week{Start: start, Grid: grid, Columns: make([]Column, 7)}
	for i := range week.Columns {
		date := start.AddDate(0, 0, i)
		col := Column{Date: date, Key: date.Format(calendar.DateLayout), Boxes: []Box{}}

		var visible []calendar.Event
		for _, e := range days[col.Key] {
			if grid.Visible(e) {
				visible = append(visible, e)
			} else {
				col.Hidden++
			}
		}

		for _, group := range strategy.Groups(visible) {
			for idx, e := range group {
				col.Boxes = append(col.Boxes, Box{
					Event: e,
					Slot:  grid.Slot(e),
					Slice: HorizontalSlice(len(group), idx),
				})
			}
		}
		week.Columns[i] = col
	}
	return week
}

// End returns the start of the following week.
func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, 7)
}

// Next returns the first day of the following week.
func (w Week) Next() time.Time {
	return w.End()
}

// Prev returns the first day of the previous week.
func (w Week) Prev() time.Time {
	return w.Start.AddDate(0, 0, -7)
}

// Len returns the number of positioned events.
func (w Week) Len() int {
	n := 0
	for _, c := range w.Columns {
		n += len(c.Boxes)
	}
	return n
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// Range returns the first instant of the month and of the following month in loc.
func (m YearMonth) Range(loc *time.Location) (from, to time.Time) {
	from = time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}

// Months returns the months touched by [from, to), in order.
func Months(from, to time.Time) []YearMonth {
	if !to.After(from) {
		return []YearMonth{MonthOf(from)}
	}
	last := to.Add(-time.Nanosecond)
	var months []YearMonth
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	for !cur.After(last) {
		months = append(months, MonthOf(cur))
		cur = cur.AddDate(0, 1, 0)
	}
	return months
}

// Months returns the months the week spans, so a week straddling two months
// can be fetched completely.
func (w Week) Months() []YearMonth {
	return Months(w.Start, w.End())
}
