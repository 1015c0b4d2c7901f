package attendance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cpuguy83/agenda/internal/calendar"
)

var kinds = []calendar.Kind{calendar.KindPending, calendar.KindAccepted, calendar.KindDeclined}

// Board holds the agenda items split into pending, accepted and declined
// buckets alongside the flat combined list. Every item is in exactly one bucket.
type Board struct {
	mu      sync.RWMutex
	all     []calendar.Event
	buckets map[calendar.Kind][]calendar.Event
}

// NewBoard creates a board holding events.
func NewBoard(events []calendar.Event) *Board {
	b := &Board{}
	b.Load(events)
	return b
}

// Load replaces the board contents.
func (b *Board) Load(events []calendar.Event) {
	all := make([]calendar.Event, len(events))
	copy(all, events)

	buckets := make(map[calendar.Kind][]calendar.Event, len(kinds))
	for _, e := range all {
		k := e.Status.Kind()
		buckets[k] = append(buckets[k], e)
	}

	b.mu.Lock()
	b.all = all
	b.buckets = buckets
	b.mu.Unlock()
}

// Get returns the item with id.
func (b *Board) Get(id string) (calendar.Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := index(b.all, id); i >= 0 {
		return b.all[i], true
	}
	return calendar.Event{}, false
}

// All returns a copy of the combined list.
func (b *Board) All() []calendar.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]calendar.Event, len(b.all))
	copy(out, b.all)
	return out
}

// Bucket returns a copy of one bucket.
func (b *Board) Bucket(k calendar.Kind) []calendar.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]calendar.Event, len(b.buckets[k]))
	copy(out, b.buckets[k])
	return out
}

// Counts returns the size of every bucket.
func (b *Board) Counts() map[calendar.Kind]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[calendar.Kind]int, len(kinds))
	for _, k := range kinds {
		counts[k] = len(b.buckets[k])
	}
	return counts
}

// Len returns the number of items on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.all)
}

// Move changes the status of the item with id.
func (b *Board) Move(id string, to calendar.Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := index(b.all, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, id)
	}
	updated := b.all[i]
	updated.Status = to
	b.replace(i, updated)
	return nil
}

// Update stores a new version of an item already on the board, moving it
// between buckets when its status changed.
func (b *Board) Update(e calendar.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := index(b.all, e.ID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, e.ID)
	}
	b.replace(i, e)
	return nil
}

// replace swaps all[i] for e and fixes the buckets. b.mu must be held.
func (b *Board) replace(i int, e calendar.Event) {
	old := b.all[i]
	b.all[i] = e

	from, to := old.Status.Kind(), e.Status.Kind()
	src := b.buckets[from]
	j := index(src, old.ID)
	if from == to {
		if j >= 0 {
			src[j] = e
		}
		return
	}

	if j >= 0 {
		b.buckets[from] = append(src[:j:j], src[j+1:]...)
	}
	b.buckets[to] = insertByStart(b.buckets[to], e)
}

func insertByStart(events []calendar.Event, e calendar.Event) []calendar.Event {
	pos := sort.Search(len(events), func(i int) bool {
		return events[i].Start.After(e.Start)
	})
	events = append(events, calendar.Event{})
	copy(events[pos+1:], events[pos:])
	events[pos] = e
	return events
}

func index(events []calendar.Event, id string) int {
	for i := range events {
		if events[i].ID == id {
			return i
		}
	}
	return -1
}
