package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	ics "github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// ICSSource fetches agenda items from an ICS/iCal URL (e.g. a published mirror of the agenda).
type ICSSource struct {
	name     string
	url      string
	username string
	password string
	loc      *time.Location
	client   *http.Client
}

// NewICSSource creates a new ICS calendar source.
func NewICSSource(name, url, username, password string, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	return &ICSSource{
		name:     name,
		url:      url,
		username: username,
		password: password,
		loc:      loc,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the display name of this calendar source.
func (s *ICSSource) Name() string {
	return s.name
}

// FetchMonth retrieves the feed and keeps the occurrences starting in the given month.
func (s *ICSSource) FetchMonth(ctx context.Context, year int, month time.Month) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if s.username != "" && s.password != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ICS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ICS: status %d", resp.StatusCode)
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	events, err := ParseICS(resp.Body, s.loc, from, from.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].Source = s.name
	}
	return events, nil
}

// ParseICS parses agenda items from an ICS reader, keeping those starting in [from, to).
// Recurring items are expanded into one event per occurrence.
// Components that cannot be parsed are skipped.
func ParseICS(r io.Reader, loc *time.Location, from, to time.Time) ([]Event, error) {
	dec := ics.NewDecoder(r)

	var events []Event
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode ICS: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ics.CompEvent {
				continue
			}

			parsed, err := parseEvent(comp, loc, from, to)
			if err != nil {
				continue
			}
			events = append(events, parsed...)
		}
	}

	return Merge(events), nil
}

// parseEvent converts a VEVENT component into events within [from, to).
func parseEvent(comp *ics.Component, loc *time.Location, from, to time.Time) ([]Event, error) {
	base := Event{
		Status: statusFromICS(comp),
	}

	if prop := comp.Props.Get(ics.PropUID); prop != nil {
		base.ID = prop.Value
	}
	if prop := comp.Props.Get(ics.PropSummary); prop != nil {
		base.Title = prop.Value
	}
	if prop := comp.Props.Get(ics.PropDescription); prop != nil {
		base.Description = prop.Value
	}
	if prop := comp.Props.Get(ics.PropLocation); prop != nil {
		base.Location = prop.Value
	}
	if prop := comp.Props.Get(ics.PropCategories); prop != nil {
		base.Type = Type(prop.Value)
	}
	if prop := comp.Props.Get(propAgendaDoc); prop != nil {
		base.DocumentRef = prop.Value
	}
	if prop := comp.Props.Get(propAgendaSource); prop != nil {
		base.Source = prop.Value
	}

	prop := comp.Props.Get(ics.PropDateTimeStart)
	if prop == nil {
		return nil, fmt.Errorf("missing DTSTART")
	}
	start, err := propTime(prop, loc)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}

	duration := time.Hour
	if prop := comp.Props.Get(ics.PropDateTimeEnd); prop != nil {
		end, err := propTime(prop, loc)
		if err != nil {
			return nil, fmt.Errorf("parse end time: %w", err)
		}
		duration = end.Sub(start)
	} else if prop := comp.Props.Get(ics.PropDuration); prop != nil {
		if d, err := prop.Duration(); err == nil {
			duration = d
		}
	}

	rset, err := comp.RecurrenceSet(loc)
	if err != nil {
		return nil, fmt.Errorf("parse recurrence: %w", err)
	}

	if rset == nil {
		if start.Before(from) || !start.Before(to) {
			return nil, nil
		}
		base.Start = start
		base.End = start.Add(duration)
		return []Event{base}, nil
	}

	return expandOccurrences(base, rset, duration, from, to), nil
}

// expandOccurrences emits one event per recurrence instance starting in [from, to).
// Occurrence IDs are made unique by appending the instance start.
func expandOccurrences(base Event, rset *rrule.Set, duration time.Duration, from, to time.Time) []Event {
	var events []Event
	for _, occ := range rset.Between(from, to, true) {
		if !occ.Before(to) {
			continue
		}
		event := base
		event.Start = occ
		event.End = occ.Add(duration)
		event.ID = fmt.Sprintf("%s_%d", base.ID, occ.Unix())
		events = append(events, event)
	}
	return events
}

// propTime parses a date-time property, falling back to floating and date-only values.
func propTime(prop *ics.Prop, loc *time.Location) (time.Time, error) {
	t, err := prop.DateTime(loc)
	if err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("20060102T150405", prop.Value, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation("20060102", prop.Value, loc)
}
