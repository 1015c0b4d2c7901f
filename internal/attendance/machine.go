// Package attendance implements attendance status transitions for agenda items.
package attendance

import (
	"errors"
	"fmt"

	"github.com/cpuguy83/agenda/internal/calendar"
)

var (
	ErrSameStatus        = errors.New("event already has that status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrCancelled         = errors.New("transition not confirmed")
	ErrInFlight          = errors.New("a transition for this event is already in progress")
	ErrUnknownEvent      = errors.New("unknown event")
)

// Flow is the surface a transition is requested from.
type Flow int

const (
	// Dashboard allows any status change and asks for confirmation first.
	Dashboard Flow = iota
	// Public only answers a pending invitation and does not ask for confirmation.
	Public
)

func (f Flow) String() string {
	if f == Public {
		return "public"
	}
	return "dashboard"
}

// Check reports whether moving from one status to another is allowed in flow.
func Check(flow Flow, from, to calendar.Status) error {
	if !known(to) {
		return fmt.Errorf("%w: unknown target status %q", ErrIllegalTransition, to)
	}
	if from == to {
		return ErrSameStatus
	}

	if flow == Public {
		if from.Kind() != calendar.KindPending {
			return fmt.Errorf("%w: %s can only be changed from the dashboard", ErrIllegalTransition, from)
		}
		if to.Kind() == calendar.KindPending {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
		}
	}
	return nil
}

// Targets lists the statuses reachable from status in flow.
func Targets(flow Flow, from calendar.Status) []calendar.Status {
	var out []calendar.Status
	for _, to := range calendar.Statuses {
		if Check(flow, from, to) == nil {
			out = append(out, to)
		}
	}
	return out
}

func known(s calendar.Status) bool {
	for _, st := range calendar.Statuses {
		if s == st {
			return true
		}
	}
	return false
}
