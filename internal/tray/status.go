package tray

import (
	"fmt"
	"strings"

	"github.com/cpuguy83/agenda/internal/calendar"
)

// State selects the indicator badge.
type State int

const (
	StateIdle State = iota
	StateInMeeting
	StatePending
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInMeeting:
		return "in-meeting"
	case StatePending:
		return "pending"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Status is what the indicator reflects.
type Status struct {
	Current *calendar.Event
	Pending int
	// LastError is the body of the most recent error toast, cleared by the next snapshot.
	LastError string
}

// State picks the badge. A failure outranks a running meeting, which outranks pending invitations.
func (s Status) State() State {
	switch {
	case s.LastError != "":
		return StateFailed
	case s.Current != nil:
		return StateInMeeting
	case s.Pending > 0:
		return StatePending
	default:
		return StateIdle
	}
}

// Tooltip renders the tooltip body, one fact per line.
func (s Status) Tooltip() string {
	var lines []string
	if s.LastError != "" {
		lines = append(lines, "Error: "+s.LastError)
	}
	if e := s.Current; e != nil {
		lines = append(lines, fmt.Sprintf("En curso: %s (hasta %s)", e.Title, e.End.Format("15:04")))
	} else {
		lines = append(lines, "Sin reunión en curso")
	}
	switch s.Pending {
	case 0:
		lines = append(lines, "Sin invitaciones pendientes")
	case 1:
		lines = append(lines, "1 invitación pendiente")
	default:
		lines = append(lines, fmt.Sprintf("%d invitaciones pendientes", s.Pending))
	}
	return strings.Join(lines, "\n")
}

const iconSize = 22

// Badge colors, ARGB.
var badgeColors = map[State]uint32{
	StateIdle:      0xFF5294E2,
	StateInMeeting: 0xFF3FA34D,
	StatePending:   0xFFF27835,
	StateFailed:    0xFFCC575D,
}

var icons = func() map[State][]byte {
	m := make(map[State][]byte, len(badgeColors))
	for s, c := range badgeColors {
		m[s] = drawBadge(c)
	}
	return m
}()

// drawBadge renders a filled disc with a white agenda sheet on it, ARGB in network byte order.
func drawBadge(color uint32) []byte {
	px := make([]byte, iconSize*iconSize*4)
	set := func(x, y int, argb uint32) {
		i := (y*iconSize + x) * 4
		px[i] = byte(argb >> 24)
		px[i+1] = byte(argb >> 16)
		px[i+2] = byte(argb >> 8)
		px[i+3] = byte(argb)
	}

	const (
		sheet = 0xFFFFFFFF
		ink   = 0xFF404040
	)
	c := float64(iconSize-1) / 2
	r2 := c * c
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy > r2 {
				continue
			}
			set(x, y, color)
		}
	}
	for y := 6; y <= 16; y++ {
		for x := 7; x <= 14; x++ {
			set(x, y, sheet)
		}
	}
	// Agenda lines.
	for _, y := range []int{9, 12, 15} {
		for x := 9; x <= 12; x++ {
			set(x, y, ink)
		}
	}
	return px
}
