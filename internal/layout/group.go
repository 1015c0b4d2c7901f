// Package layout groups agenda items by day and lays them out on a week grid.
package layout

import (
	"fmt"
	"sort"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
)

// Days maps a date key (yyyy-MM-dd of the start time) to that day's events,
// sorted ascending by start.
type Days map[string][]calendar.Event

// GroupByDay buckets events by the calendar date of their start time.
// Every input event lands in exactly one bucket.
func GroupByDay(events []calendar.Event) Days {
	days := make(Days)
	for _, e := range events {
		key := e.DateKey()
		days[key] = append(days[key], e)
	}
	for key := range days {
		sortByStart(days[key])
	}
	return days
}

// Keys returns the date keys in ascending order.
func (d Days) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the total number of events across all days.
func (d Days) Len() int {
	n := 0
	for _, events := range d {
		n += len(events)
	}
	return n
}

// BucketKey returns "{hour}-{minute floored to 15}" for t, e.g. "9-0" or "14-45".
func BucketKey(t time.Time) string {
	return fmt.Sprintf("%d-%d", t.Hour(), t.Minute()/15*15)
}

// Buckets maps a 15-minute bucket key to the events starting in that window.
type Buckets map[string][]calendar.Event

// GroupBy15MinuteBucket buckets one day's events by the 15-minute window they start in.
// Events keep their relative input order within a bucket.
func GroupBy15MinuteBucket(dayEvents []calendar.Event) Buckets {
	buckets := make(Buckets)
	for _, e := range dayEvents {
		key := BucketKey(e.Start)
		buckets[key] = append(buckets[key], e)
	}
	return buckets
}

// Keys returns the bucket keys in time order.
func (b Buckets) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bucketMinutes(keys[i]) < bucketMinutes(keys[j])
	})
	return keys
}

func bucketMinutes(key string) int {
	var h, m int
	if _, err := fmt.Sscanf(key, "%d-%d", &h, &m); err != nil {
		return -1
	}
	return h*60 + m
}

// Cluster groups events whose time ranges overlap, directly or through a chain of
// overlapping events. Clusters are returned in start order and each cluster is
// sorted by start. Touching events (one ends when the next starts) do not overlap.
func Cluster(events []calendar.Event) [][]calendar.Event {
	sorted := make([]calendar.Event, len(events))
	copy(sorted, events)
	sortByStart(sorted)

	var (
		clusters [][]calendar.Event
		current  []calendar.Event
		end      time.Time
	)
	for _, e := range sorted {
		if len(current) > 0 && e.Start.Before(end) {
			current = append(current, e)
			if e.End.After(end) {
				end = e.End
			}
			continue
		}
		if len(current) > 0 {
			clusters = append(clusters, current)
		}
		current = []calendar.Event{e}
		end = e.End
	}
	if len(current) > 0 {
		clusters = append(clusters, current)
	}
	return clusters
}

func sortByStart(events []calendar.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
