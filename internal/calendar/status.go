package calendar

import (
	"fmt"
	"strings"
)

// Status is the attendance status of an agenda item.
type Status string

const (
	StatusPending      Status = "PENDIENTE"
	StatusConfirmed    Status = "CONFIRMADA"
	StatusNotConfirmed Status = "NO-CONFIRMADA"
	StatusWillAttend   Status = "ASISTIRA"
	StatusWontAttend   Status = "NO_ASISTIRA"
)

// Kind folds the status synonyms into the three lifecycle states.
type Kind int

const (
	KindPending Kind = iota
	KindAccepted
	KindDeclined
)

func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindDeclined:
		return "declined"
	default:
		return "pending"
	}
}

// Statuses lists every known status.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusNotConfirmed,
	StatusWillAttend,
	StatusWontAttend,
}

// ParseStatus parses a status, accepting any letter case.
func ParseStatus(s string) (Status, error) {
	norm := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range Statuses {
		if norm == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Kind returns the lifecycle state of the status. Unknown values are pending.
func (s Status) Kind() Kind {
	switch s {
	case StatusConfirmed, StatusWillAttend:
		return KindAccepted
	case StatusNotConfirmed, StatusWontAttend:
		return KindDeclined
	default:
		return KindPending
	}
}

// Color returns the display colour of the status.
func (s Status) Color() string {
	switch s.Kind() {
	case KindAccepted:
		return "#16a34a"
	case KindDeclined:
		return "#dc2626"
	default:
		return "#f59e0b"
	}
}

// Type is the categorical tag of an agenda item.
type Type string

// Colors is the palette entry of a type.
type Colors struct {
	Background string `json:"background"`
	Text       string `json:"text"`
}

// Palette maps agenda types to their colours.
var Palette = map[Type]Colors{
	"sesiones":      {Background: "#1e3a8a", Text: "#ffffff"},
	"fiscalizacion": {Background: "#b91c1c", Text: "#ffffff"},
	"comision":      {Background: "#047857", Text: "#ffffff"},
	"audiencia":     {Background: "#7c3aed", Text: "#ffffff"},
	"reunion":       {Background: "#0e7490", Text: "#ffffff"},
	"actividad":     {Background: "#facc15", Text: "#1f2937"},
	"otro":          {Background: "#e5e7eb", Text: "#1f2937"},
}

var defaultColors = Colors{Background: "#6b7280", Text: "#ffffff"}

// Colors returns the palette entry for the type, or a neutral default.
func (t Type) Colors() Colors {
	if c, ok := Palette[Type(strings.ToLower(string(t)))]; ok {
		return c
	}
	return defaultColors
}
