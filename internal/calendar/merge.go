package calendar

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	ics "github.com/emersion/go-ical"
)

const (
	propAgendaStatus = "X-AGENDA-STATUS"
	propAgendaSource = "X-AGENDA-SOURCE"
	propAgendaDoc    = "X-AGENDA-DOCUMENT"
)

// Merge combines events from multiple sources into a single slice.
// Events are sorted by start time; events starting together keep their input order.
func Merge(eventSets ...[]Event) []Event {
	var all []Event
	for _, events := range eventSets {
		all = append(all, events...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})

	return all
}

// EncodeICS writes events as an iCalendar document.
func EncodeICS(w io.Writer, events []Event) error {
	cal := ics.NewCalendar()
	cal.Props.SetText(ics.PropVersion, "2.0")
	cal.Props.SetText(ics.PropProductID, "-//Agenda//Agenda//ES")

	now := time.Now()
	for _, event := range events {
		comp := ics.NewComponent(ics.CompEvent)

		comp.Props.SetText(ics.PropUID, event.ID)
		comp.Props.SetText(ics.PropSummary, event.Title)
		comp.Props.SetDateTime(ics.PropDateTimeStamp, now)
		comp.Props.SetDateTime(ics.PropDateTimeStart, event.Start)
		comp.Props.SetDateTime(ics.PropDateTimeEnd, event.End)

		if event.Description != "" {
			comp.Props.SetText(ics.PropDescription, event.Description)
		}
		if event.Location != "" {
			comp.Props.SetText(ics.PropLocation, event.Location)
		}
		if event.Type != "" {
			comp.Props.SetText(ics.PropCategories, string(event.Type))
		}
		if event.DocumentRef != "" {
			comp.Props.SetText(propAgendaDoc, event.DocumentRef)
		}

		comp.Props.SetText(ics.PropStatus, icsStatus(event.Status))
		comp.Props.SetText(propAgendaStatus, string(event.Status))
		if event.Source != "" {
			comp.Props.SetText(propAgendaSource, event.Source)
		}

		cal.Children = append(cal.Children, comp)
	}

	if err := ics.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode ICS: %w", err)
	}
	return nil
}

// WriteICS writes events to an ICS file atomically.
// It writes to a temp file first, then renames to the final path.
func WriteICS(path string, events []Event) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var buf bytes.Buffer
	if err := EncodeICS(&buf, events); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

// icsStatus maps an attendance status onto the VEVENT STATUS values.
func icsStatus(s Status) string {
	switch s.Kind() {
	case KindAccepted:
		return "CONFIRMED"
	case KindDeclined:
		return "CANCELLED"
	default:
		return "TENTATIVE"
	}
}

// statusFromICS is the inverse of icsStatus, preferring the exact agenda status when present.
func statusFromICS(comp *ics.Component) Status {
	if prop := comp.Props.Get(propAgendaStatus); prop != nil {
		if st, err := ParseStatus(prop.Value); err == nil {
			return st
		}
	}
	if prop := comp.Props.Get(ics.PropStatus); prop != nil {
		switch prop.Value {
		case "CONFIRMED":
			return StatusConfirmed
		case "CANCELLED":
			return StatusNotConfirmed
		}
	}
	return StatusPending
}
