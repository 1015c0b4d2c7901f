// Package calendar provides the agenda event model and calendar source interfaces.
package calendar

import (
	"context"
	"strings"
	"time"
)

// DateLayout is the layout of day keys ("yyyy-MM-dd").
const DateLayout = "2006-01-02"

// Event represents an agenda item (a scheduled council meeting).
type Event struct {
	// ID is the backend identifier. It is stable across reloads.
	ID string

	// Title is the display name.
	Title string

	// Description is optional free text.
	Description string

	// Start is when the meeting begins.
	Start time.Time

	// End is when the meeting ends.
	End time.Time

	// Type is the categorical tag used to pick the palette colour.
	Type Type

	// Status is the attendance status.
	Status Status

	// DocumentRef is the storage path of an attached PDF (may be empty).
	DocumentRef string

	// Public marks events visible on the public site (dashboard only).
	Public bool

	// Location is optional free text (dashboard only).
	Location string

	// Councillor is the councillor the meeting belongs to, if any.
	Councillor *Councillor

	// Version is an opaque concurrency token from the backend (may be empty).
	Version string

	// Source is the name of the calendar source this event came from.
	Source string
}

// Councillor is a council member attached to an agenda item.
type Councillor struct {
	ID        string
	FirstName string
	LastName  string
}

// FullName returns "FirstName LastName".
func (c *Councillor) FullName() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Duration returns the duration of the event.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Contains reports whether now falls in [Start, End).
func (e *Event) Contains(now time.Time) bool {
	return !now.Before(e.Start) && now.Before(e.End)
}

// HasDocument reports whether a document is attached.
func (e *Event) HasDocument() bool {
	return e.DocumentRef != ""
}

// Valid reports whether the event has usable start and end times.
func (e *Event) Valid() bool {
	return !e.Start.IsZero() && !e.End.IsZero() && e.End.After(e.Start)
}

// DateKey returns the calendar date of the start time as yyyy-MM-dd.
func (e *Event) DateKey() string {
	return e.Start.Format(DateLayout)
}

// Source is the interface that agenda sources must implement.
type Source interface {
	// Name returns the display name of this source.
	Name() string

	// FetchMonth retrieves the events of a single calendar month.
	FetchMonth(ctx context.Context, year int, month time.Month) ([]Event, error)
}
