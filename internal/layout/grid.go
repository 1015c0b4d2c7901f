package layout

import (
	"errors"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

// Grid is the visible hour range of a day column.
type Grid struct {
	StartHour   int     // first visible hour, the pixel origin
	EndHour     int     // hour at which the column ends
	PxPerMinute float64 // vertical scale
}

// DefaultGrid is the 08:00–19:00 grid at one pixel per minute.
func DefaultGrid() Grid {
	return Grid{StartHour: 8, EndHour: 19, PxPerMinute: 1}
}

// Validate checks that the grid describes a non-empty range within one day.
func (g Grid) Validate() error {
	if g.StartHour < 0 || g.StartHour > 23 {
		return errors.New("grid start hour must be between 0 and 23")
	}
	if g.EndHour <= g.StartHour || g.EndHour > 24 {
		return errors.New("grid end hour must be after the start hour and at most 24")
	}
	if g.PxPerMinute <= 0 {
		return errors.New("grid scale must be positive")
	}
	return nil
}

// Minutes returns the number of minutes the grid shows.
func (g Grid) Minutes() int {
	return (g.EndHour - g.StartHour) * 60
}

// Height returns the column height in pixels.
func (g Grid) Height() float64 {
	return float64(g.Minutes()) * g.PxPerMinute
}

// Offsets returns the unclamped position of e in minutes from the grid origin:
// top is (startHour-StartHour)*60+startMinute and height is the length in minutes.
// Events before the origin yield a negative top.
//
// Within one day the height is measured on the wall clock, like the top, so the
// block ends at the printed end time even across a DST change. Events spanning
// days use the elapsed duration.
func (g Grid) Offsets(e calendar.Event) (top, height int) {
	top = (e.Start.Hour()-g.StartHour)*60 + e.Start.Minute()
	end := e.End.In(e.Start.Location())
	if sameDay(e.Start, end) {
		return top, wallMinutes(end) - wallMinutes(e.Start)
	}
	height = int(end.Truncate(time.Minute).Sub(e.Start.Truncate(time.Minute)) / time.Minute)
	return top, height
}

func wallMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Slot is the vertical placement of an event within a day column, in pixels.
type Slot struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`

	// ContinuesBefore is set when the event starts before the visible range.
	ContinuesBefore bool `json:"continuesBefore,omitempty"`
	// ContinuesAfter is set when the event ends after the visible range.
	ContinuesAfter bool `json:"continuesAfter,omitempty"`
	// Hidden is set when no part of the event is visible, or its range is inverted.
	Hidden bool `json:"hidden,omitempty"`
}

// Slot places e on the grid, clamping it to the visible range.
func (g Grid) Slot(e calendar.Event) Slot {
	top, height := g.Offsets(e)
	if height < 0 {
		return Slot{Hidden: true}
	}

	bottom := top + height
	limit := g.Minutes()
	if bottom < 0 || top > limit || (height > 0 && (bottom == 0 || top == limit)) {
		return Slot{Hidden: true}
	}

	var s Slot
	if top < 0 {
		s.ContinuesBefore = true
		top = 0
	}
	if bottom > limit {
		s.ContinuesAfter = true
		bottom = limit
	}
	s.Top = float64(top) * g.PxPerMinute
	s.Height = float64(bottom-top) * g.PxPerMinute
	return s
}

// Visible reports whether any part of e falls within the grid.
func (g Grid) Visible(e calendar.Event) bool {
	return !g.Slot(e).Hidden
}
