package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ics "github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
)

// CalDAVSource fetches agenda items from a CalDAV server.
type CalDAVSource struct {
	name      string
	url       string
	username  string
	password  string
	calendars []string // Optional: specific calendars to sync
	loc       *time.Location
}

// NewCalDAVSource creates a new CalDAV calendar source.
func NewCalDAVSource(name, url, username, password string, calendars []string, loc *time.Location) *CalDAVSource {
	if loc == nil {
		loc = time.Local
	}
	return &CalDAVSource{
		name:      name,
		url:       url,
		username:  username,
		password:  password,
		calendars: calendars,
		loc:       loc,
	}
}

// Name returns the display name of this calendar source.
func (s *CalDAVSource) Name() string {
	return s.name
}

// FetchMonth retrieves the events of a month from the CalDAV server.
func (s *CalDAVSource) FetchMonth(ctx context.Context, year int, month time.Month) ([]Event, error) {
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &basicAuthTransport{
			username: s.username,
			password: s.password,
			base:     http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(httpClient, s.url)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}

	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find calendar home: %w", err)
	}

	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	from := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, 0)

	var all []Event
	for _, cal := range cals {
		if len(s.calendars) > 0 && !s.shouldSyncCalendar(cal.Name) {
			continue
		}

		events, err := s.fetchCalendarEvents(ctx, client, cal, from, to)
		if err != nil {
			slog.Warn("caldav calendar query failed", "source", s.name, "calendar", cal.Name, "error", err)
			continue
		}

		all = append(all, events...)
	}

	return Merge(all), nil
}

// shouldSyncCalendar checks if a calendar should be synced based on config.
func (s *CalDAVSource) shouldSyncCalendar(name string) bool {
	for _, c := range s.calendars {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// fetchCalendarEvents queries one calendar for VEVENTs in [from, to).
func (s *CalDAVSource) fetchCalendarEvents(ctx context.Context, client *caldav.Client, cal caldav.Calendar, from, to time.Time) ([]Event, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: from,
				End:   to,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, cal.Path, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", cal.Name, err)
	}

	var events []Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}

		for _, comp := range obj.Data.Children {
			if comp.Name != ics.CompEvent {
				continue
			}
			parsed, err := parseEvent(comp, s.loc, from, to)
			if err != nil {
				continue
			}
			for i := range parsed {
				parsed[i].Source = fmt.Sprintf("%s/%s", s.name, cal.Name)
			}
			events = append(events, parsed...)
		}
	}

	return events, nil
}

// basicAuthTransport adds basic auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

// Ensure the sources implement the Source interface.
var (
	_ Source = (*CalDAVSource)(nil)
	_ Source = (*ICSSource)(nil)
)
