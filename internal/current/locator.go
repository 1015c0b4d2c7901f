// Package current tracks which agenda item is in progress.
package current

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

// Find returns the first event in list order with Start <= now < End.
// Callers wanting the earliest-starting match must pass events sorted by start.
func Find(events []calendar.Event, now time.Time) (calendar.Event, bool) {
	for i := range events {
		if events[i].Contains(now) {
			return events[i], true
		}
	}
	return calendar.Event{}, false
}

// Locator recomputes the current meeting on a fixed interval and on demand.
type Locator struct {
	snapshot func() []calendar.Event
	interval time.Duration
	now      func() time.Time
	trigger  chan struct{}

	mu       sync.RWMutex
	current  *calendar.Event
	onChange []func(*calendar.Event)
}

// NewLocator creates a locator reading events through snapshot.
// An interval of zero means one minute.
func NewLocator(snapshot func() []calendar.Event, interval time.Duration) *Locator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Locator{
		snapshot: snapshot,
		interval: interval,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// OnChange registers fn to be called whenever the current meeting changes.
// fn receives nil when no meeting is in progress.
func (l *Locator) OnChange(fn func(*calendar.Event)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, fn)
	l.mu.Unlock()
}

// Trigger requests an immediate recomputation, e.g. after the snapshot or filter changed.
// It never blocks; triggers arriving while one is pending are coalesced.
func (l *Locator) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Current returns the last computed current meeting.
func (l *Locator) Current() (calendar.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.current == nil {
		return calendar.Event{}, false
	}
	return *l.current, true
}

// Run computes the current meeting immediately, then on every tick and trigger.
// Run blocks until the context is cancelled.
func (l *Locator) Run(ctx context.Context) {
	l.update()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.update()
		case <-l.trigger:
			l.update()
		case <-ctx.Done():
			return
		}
	}
}

// update recomputes from the latest snapshot and notifies listeners on change.
func (l *Locator) update() {
	var next *calendar.Event
	if e, ok := Find(l.snapshot(), l.now()); ok {
		next = &e
	}

	l.mu.Lock()
	changed := !same(l.current, next)
	l.current = next
	listeners := l.onChange
	l.mu.Unlock()

	if !changed {
		return
	}

	if next != nil {
		slog.Debug("current meeting changed", "id", next.ID, "title", next.Title)
	} else {
		slog.Debug("no meeting in progress")
	}
	for _, fn := range listeners {
		fn(next)
	}
}

func same(a, b *calendar.Event) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Start.Equal(b.Start) && a.End.Equal(b.End) && a.Status == b.Status
}
