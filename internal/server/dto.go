package server

import (
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/layout"
	"github.com/cpuguy83/agenda/internal/links"
)

// eventDTO is the JSON view of an agenda item.
type eventDTO struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	Date        string          `json:"date"`
	DayLabel    string          `json:"dayLabel"`
	TimeRange   string          `json:"timeRange"`
	Duration    string          `json:"duration"`
	Type        string          `json:"type"`
	Colors      calendar.Colors `json:"colors"`
	Status      calendar.Status `json:"status"`
	StatusColor string          `json:"statusColor"`
	Kind        string          `json:"kind"`
	DocumentURL string          `json:"documentUrl,omitempty"`
	Public      bool            `json:"public"`
	Location    string          `json:"location,omitempty"`
	Councillor  *councillorDTO  `json:"councillor,omitempty"`
	Link        *links.Link     `json:"link,omitempty"`
	Source      string          `json:"source,omitempty"`
	Version     string          `json:"version,omitempty"`
}

type councillorDTO struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

type bucketDTO struct {
	Key    string     `json:"key"`
	Events []eventDTO `json:"events"`
}

type dayDTO struct {
	Date    string      `json:"date"`
	Label   string      `json:"label"`
	Events  []eventDTO  `json:"events"`
	Buckets []bucketDTO `json:"buckets"`
}

type boxDTO struct {
	Event eventDTO     `json:"event"`
	Slot  layout.Slot  `json:"slot"`
	Slice layout.Slice `json:"slice"`
}

type columnDTO struct {
	Date    string   `json:"date"`
	Weekday string   `json:"weekday"`
	Label   string   `json:"label"`
	Boxes   []boxDTO `json:"boxes"`
	Hidden  int      `json:"hidden"`
}

type gridDTO struct {
	StartHour   int     `json:"startHour"`
	EndHour     int     `json:"endHour"`
	PxPerMinute float64 `json:"pxPerMinute"`
	Height      float64 `json:"height"`
}

type weekDTO struct {
	Start   string      `json:"start"`
	End     string      `json:"end"`
	Prev    string      `json:"prev"`
	Next    string      `json:"next"`
	Today   string      `json:"today"`
	Grid    gridDTO     `json:"grid"`
	Columns []columnDTO `json:"columns"`
}

type currentDTO struct {
	Event     *eventDTO `json:"event"`
	Remaining string    `json:"remaining,omitempty"`
}

type attendanceDTO struct {
	Pending  []eventDTO     `json:"pending"`
	Accepted []eventDTO     `json:"accepted"`
	Declined []eventDTO     `json:"declined"`
	Counts   map[string]int `json:"counts"`
}

type statusRequest struct {
	Status  string `json:"status" binding:"required"`
	Confirm bool   `json:"confirm"`
}

// toDTO converts e for display at now.
func (s *Server) toDTO(e calendar.Event, now time.Time) eventDTO {
	local := e.Start.In(s.loc)
	dto := eventDTO{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start,
		End:         e.End,
		Date:        local.Format(calendar.DateLayout),
		DayLabel:    dayLabel(e.Start, now.In(s.loc)),
		TimeRange:   timeRange(&e, s.loc),
		Duration:    formatDuration(e.Duration()),
		Type:        string(e.Type),
		Colors:      e.Type.Colors(),
		Status:      e.Status,
		StatusColor: e.Status.Color(),
		Kind:        e.Status.Kind().String(),
		Public:      e.Public,
		Location:    e.Location,
		Source:      e.Source,
		Version:     e.Version,
	}
	if e.HasDocument() {
		dto.DocumentURL = links.DocumentURL(s.storageBase, e.DocumentRef)
	}
	if e.Councillor != nil {
		dto.Councillor = &councillorDTO{ID: e.Councillor.ID, FullName: e.Councillor.FullName()}
	}
	if l := links.Detect(e.Location, e.Description); l.URL != "" {
		dto.Link = &l
	}
	return dto
}

func (s *Server) toDTOs(events []calendar.Event, now time.Time) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, s.toDTO(e, now))
	}
	return out
}

func (s *Server) weekToDTO(w layout.Week, now time.Time) weekDTO {
	dto := weekDTO{
		Start: w.Start.Format(calendar.DateLayout),
		End:   w.End().AddDate(0, 0, -1).Format(calendar.DateLayout),
		Prev:  w.Prev().Format(calendar.DateLayout),
		Next:  w.Next().Format(calendar.DateLayout),
		Today: now.In(s.loc).Format(calendar.DateLayout),
		Grid: gridDTO{
			StartHour:   w.Grid.StartHour,
			EndHour:     w.Grid.EndHour,
			PxPerMinute: w.Grid.PxPerMinute,
			Height:      w.Grid.Height(),
		},
		Columns: make([]columnDTO, 0, len(w.Columns)),
	}
	for _, col := range w.Columns {
		c := columnDTO{
			Date:    col.Key,
			Weekday: shortWeekday(col.Date.Weekday()),
			Label:   dayLabel(col.Date, now.In(s.loc)),
			Boxes:   make([]boxDTO, 0, len(col.Boxes)),
			Hidden:  col.Hidden,
		}
		for _, b := range col.Boxes {
			c.Boxes = append(c.Boxes, boxDTO{Event: s.toDTO(b.Event, now), Slot: b.Slot, Slice: b.Slice})
		}
		dto.Columns = append(dto.Columns, c)
	}
	return dto
}
