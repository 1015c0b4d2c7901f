package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Kind classifies a notification for display.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

// Notification is a user-facing message.
type Notification struct {
	Kind    Kind
	Summary string
	Body    string
	Icon    string
	Timeout time.Duration // 0 = default, -1 = persistent
	Actions []Action
	Urgency Urgency

	// For tracking
	EventUID string
}

// Action represents a notification action button.
type Action struct {
	Key   string
	Label string
}

// Urgency levels for notifications.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

func (n Notification) urgency() Urgency {
	if n.Kind == KindError && n.Urgency < UrgencyCritical {
		return UrgencyCritical
	}
	return n.Urgency
}

func (n Notification) icon() string {
	if n.Icon != "" {
		return n.Icon
	}
	switch n.Kind {
	case KindError:
		return "dialog-error"
	case KindSuccess:
		return "emblem-ok"
	default:
		return "x-office-calendar"
	}
}

// Success builds a success toast.
func Success(summary, body string) Notification {
	return Notification{Kind: KindSuccess, Summary: summary, Body: body, Urgency: UrgencyNormal}
}

// Error builds an error toast.
func Error(summary, body string) Notification {
	return Notification{Kind: KindError, Summary: summary, Body: body, Urgency: UrgencyCritical}
}

// Info builds an informational notification.
func Info(summary, body string) Notification {
	return Notification{Kind: KindInfo, Summary: summary, Body: body, Urgency: UrgencyNormal}
}

// Sender delivers notifications.
type Sender interface {
	Send(Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(Notification) error

// Send implements Sender.
func (f SenderFunc) Send(n Notification) error {
	return f(n)
}

// Log writes notifications to the default slog logger.
type Log struct{}

// Send implements Sender.
func (Log) Send(n Notification) error {
	level := slog.LevelInfo
	if n.Kind == KindError {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "notification", "kind", n.Kind, "summary", n.Summary, "body", n.Body)
	return nil
}

// Multi fans a notification out to every sender.
type Multi []Sender

// Send implements Sender. It sends to every sender and joins their errors.
func (m Multi) Send(n Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every notification.
var Discard Sender = SenderFunc(func(Notification) error { return nil })
