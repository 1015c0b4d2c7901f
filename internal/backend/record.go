// Package backend is a client for the external agenda REST service.
package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMalformedRecord = errors.New("malformed agenda record")
)

const timeLayout = "15:04"

// ID is an identifier the backend may send as a JSON string or number.
type ID string

// UnmarshalJSON accepts both "12" and 12.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes integer-looking ids as numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Councillor is the nested consejero object.
type Councillor struct {
	ID        ID     `json:"id"`
	FirstName string `json:"nombre"`
	LastName  string `json:"apellido"`
}

// Record is an agenda item as the backend sends and receives it.
type Record struct {
	ID          ID          `json:"id"`
	Name        string      `json:"nombre"`
	Description string      `json:"descripcion"`
	Date        string      `json:"fecha"`
	StartTime   string      `json:"horaInicio"`
	EndTime     string      `json:"horaFin"`
	Type        string      `json:"tipo"`
	Status      string      `json:"estado"`
	Document    string      `json:"documento,omitempty"`
	Councillor  *Councillor `json:"consejero,omitempty"`
	Color       string      `json:"color,omitempty"`
	Public      bool        `json:"publico,omitempty"`
	Location    string      `json:"lugar,omitempty"`
	Version     string      `json:"version,omitempty"`
}

// Event converts the record into an event in loc.
// Records with missing or unparseable date/time fields, an unknown status,
// or an end not after the start are rejected with ErrMalformedRecord.
func (r *Record) Event(loc *time.Location) (calendar.Event, error) {
	if loc == nil {
		loc = time.Local
	}

	day, err := parseDate(r.Date, loc)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("%w %s: fecha: %w", ErrMalformedRecord, r.ID, err)
	}
	start, err := parseClock(day, r.StartTime)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("%w %s: horaInicio: %w", ErrMalformedRecord, r.ID, err)
	}
	end, err := parseClock(day, r.EndTime)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("%w %s: horaFin: %w", ErrMalformedRecord, r.ID, err)
	}
	if !end.After(start) {
		return calendar.Event{}, fmt.Errorf("%w %s: end %s is not after start %s", ErrMalformedRecord, r.ID, r.EndTime, r.StartTime)
	}

	status := calendar.StatusPending
	if r.Status != "" {
		status, err = calendar.ParseStatus(r.Status)
		if err != nil {
			return calendar.Event{}, fmt.Errorf("%w %s: %w", ErrMalformedRecord, r.ID, err)
		}
	}

	e := calendar.Event{
		ID:          string(r.ID),
		Title:       r.Name,
		Description: r.Description,
		Start:       start,
		End:         end,
		Type:        calendar.Type(r.Type),
		Status:      status,
		DocumentRef: r.Document,
		Public:      r.Public,
		Location:    r.Location,
		Version:     r.Version,
	}
	if r.Councillor != nil {
		e.Councillor = &calendar.Councillor{
			ID:        string(r.Councillor.ID),
			FirstName: r.Councillor.FirstName,
			LastName:  r.Councillor.LastName,
		}
	}
	return e, nil
}

// FromEvent rebuilds the full record for e. Color is derived from the status.
func FromEvent(e calendar.Event) Record {
	r := Record{
		ID:          ID(e.ID),
		Name:        e.Title,
		Description: e.Description,
		Date:        e.Start.Format(calendar.DateLayout),
		StartTime:   e.Start.Format(timeLayout),
		EndTime:     e.End.Format(timeLayout),
		Type:        string(e.Type),
		Status:      string(e.Status),
		Document:    e.DocumentRef,
		Color:       e.Status.Color(),
		Public:      e.Public,
		Location:    e.Location,
		Version:     e.Version,
	}
	if e.Councillor != nil {
		r.Councillor = &Councillor{
			ID:        ID(e.Councillor.ID),
			FirstName: e.Councillor.FirstName,
			LastName:  e.Councillor.LastName,
		}
	}
	return r
}

// parseDate accepts yyyy-MM-dd, optionally followed by a time part
// ("2024-03-04T00:00:00.000Z"), which is ignored.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(calendar.DateLayout) {
		s = s[:len(calendar.DateLayout)]
	}
	if s == "" {
		return time.Time{}, errors.New("missing")
	}
	return time.ParseInLocation(calendar.DateLayout, s, loc)
}

// parseClock sets the HH:mm or HH:mm:ss clock time s on day.
func parseClock(day time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing")
	}

	var (
		t   time.Time
		err error
	)
	if strings.Count(s, ":") == 2 {
		t, err = time.Parse("15:04:05", s)
	} else {
		t, err = time.Parse(timeLayout, s)
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
}
