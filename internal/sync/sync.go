// Package sync keeps the agenda snapshot fresh by fetching every configured source.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/config"
	"github.com/cpuguy83/agenda/internal/filter"
	"github.com/cpuguy83/agenda/internal/layout"
	"github.com/cpuguy83/agenda/internal/notify"
)

// ErrNoSources is returned when a sync has nothing to fetch from.
var ErrNoSources = errors.New("no agenda sources configured")

// sourceWithFilter pairs a calendar source with its optional filter.
type sourceWithFilter struct {
	source calendar.Source
	filter *filter.Filter
}

// defaultKeepMonths bounds the loaded months when the configuration does not.
const defaultKeepMonths = 6

// Syncer fetches the agenda from every source and keeps a snapshot per month.
// The published snapshot is the union of every loaded month, so browsing one
// month never drops another, and the current month is always kept.
type Syncer struct {
	sources  []sourceWithFilter
	schedule string
	output   string
	notifier notify.Sender
	now      func() time.Time
	loc      *time.Location
	keep     int

	mu       sync.Mutex
	months   []layout.YearMonth // watched, least recently requested first
	byMonth  map[layout.YearMonth][]calendar.Event
	gens     map[layout.YearMonth]uint64
	seq      uint64
	inflight map[uint64]*pending
	snapshot []calendar.Event
	onSync   []func([]calendar.Event)
}

// pending is a refresh in flight.
type pending struct {
	months []layout.YearMonth
	cancel context.CancelFunc
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithSource adds a source. A nil filter passes every event.
func WithSource(src calendar.Source, f *filter.Filter) Option {
	return func(s *Syncer) {
		s.sources = append(s.sources, sourceWithFilter{source: src, filter: f})
	}
}

// WithNotifier sets where fetch failures are reported.
func WithNotifier(n notify.Sender) Option {
	return func(s *Syncer) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewSyncer creates a Syncer for the mirrors in cfg.Sources plus any extra
// sources given as options (the agenda service client).
func NewSyncer(cfg *config.Config, opts ...Option) (*Syncer, error) {
	s := &Syncer{
		schedule: cfg.Sync.Refresh,
		output:   cfg.Sync.Output,
		keep:     cfg.Sync.KeepMonths,
		notifier: notify.Discard,
		now:      time.Now,
		byMonth:  make(map[layout.YearMonth][]calendar.Event),
		gens:     make(map[layout.YearMonth]uint64),
		inflight: make(map[uint64]*pending),
	}
	for _, o := range opts {
		o(s)
	}
	if s.keep < 2 {
		s.keep = defaultKeepMonths
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	s.loc = loc
	mirrors, err := createSources(cfg.Sources, loc)
	if err != nil {
		return nil, err
	}
	s.sources = append(s.sources, mirrors...)

	if s.schedule != "" {
		if _, err := cron.ParseStandard(s.schedule); err != nil {
			return nil, fmt.Errorf("parse sync schedule %q: %w", s.schedule, err)
		}
	}
	s.watchLocked()
	return s, nil
}

// SourceCount returns the number of configured sources.
func (s *Syncer) SourceCount() int {
	return len(s.sources)
}

// OnSnapshot registers fn to receive every published snapshot.
func (s *Syncer) OnSnapshot(fn func([]calendar.Event)) {
	s.mu.Lock()
	s.onSync = append(s.onSync, fn)
	s.mu.Unlock()
}

// Snapshot returns the last published snapshot.
func (s *Syncer) Snapshot() []calendar.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snapshot)
}

// Watch adds months to those the scheduled refresh fetches.
func (s *Syncer) Watch(months ...layout.YearMonth) {
	s.mu.Lock()
	s.watchLocked(months...)
	s.mu.Unlock()
}

// watchLocked marks months as most recently requested, keeps the current
// month watched and evicts the least recently requested months over the bound.
func (s *Syncer) watchLocked(months ...layout.YearMonth) {
	for _, m := range months {
		if i := slices.Index(s.months, m); i >= 0 {
			s.months = slices.Delete(s.months, i, i+1)
		}
		s.months = append(s.months, m)
	}

	current := layout.MonthOf(s.now().In(s.loc))
	if !slices.Contains(s.months, current) {
		s.months = append(s.months, current)
	}

	for len(s.months) > s.keep {
		i := slices.IndexFunc(s.months, func(m layout.YearMonth) bool { return m != current })
		evicted := s.months[i]
		s.months = slices.Delete(s.months, i, i+1)
		delete(s.byMonth, evicted)
		slog.Debug("evicted month", "month", evicted)
	}
}

// Watched returns the months the scheduled refresh fetches.
func (s *Syncer) Watched() []layout.YearMonth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.months)
}

// Sync fetches months from all sources, applies per-source filters, and
// returns the merged events. Sources that fail are skipped; when every
// source fails the result is empty and an error notification is sent.
func (s *Syncer) Sync(ctx context.Context, months ...layout.YearMonth) ([]calendar.Event, error) {
	if len(months) == 0 {
		months = s.Watched()
	}
	byMonth, err := s.fetch(ctx, months)
	if byMonth == nil {
		return nil, err
	}
	return flatten(byMonth), err
}

// fetch returns the merged events of each requested month. A nil map means
// nothing was fetched (no sources or cancellation).
func (s *Syncer) fetch(ctx context.Context, months []layout.YearMonth) (map[layout.YearMonth][]calendar.Event, error) {
	if len(s.sources) == 0 {
		return nil, ErrNoSources
	}

	slog.Info("starting sync", "sources", len(s.sources), "months", len(months))

	type result struct {
		byMonth  map[layout.YearMonth][]calendar.Event
		fetched  int
		filtered int
		err      error
	}
	results := make([]result, len(s.sources))

	// Failures are kept per source so one bad mirror does not cancel the others.
	var g errgroup.Group
	for i, swf := range s.sources {
		g.Go(func() error {
			name := swf.source.Name()
			slog.Debug("fetching source", "name", name)

			r := result{byMonth: make(map[layout.YearMonth][]calendar.Event, len(months))}
			for _, m := range months {
				got, err := swf.source.FetchMonth(ctx, m.Year, m.Month)
				if err != nil {
					results[i].err = fmt.Errorf("fetch %s %s: %w", name, m, err)
					return nil
				}
				r.fetched += len(got)
				got = usable(name, got)
				if swf.filter != nil {
					got = swf.filter.Apply(got)
				}
				r.filtered += len(got)
				r.byMonth[m] = got
			}
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		sets   = make(map[layout.YearMonth][][]calendar.Event, len(months))
		errs   []error
		failed int
	)
	for i, r := range results {
		name := s.sources[i].source.Name()
		if r.err != nil {
			slog.Warn("failed to fetch source", "name", name, "error", r.err)
			errs = append(errs, r.err)
			failed++
			continue
		}
		slog.Info("fetched source", "name", name, "fetched", r.fetched, "after_filter", r.filtered)
		for m, events := range r.byMonth {
			sets[m] = append(sets[m], events)
		}
	}

	out := make(map[layout.YearMonth][]calendar.Event, len(months))
	if failed == len(s.sources) {
		s.toast(notify.Error("No se pudieron cargar las reuniones", errors.Join(errs...).Error()))
		for _, m := range months {
			out[m] = []calendar.Event{}
		}
		return out, errors.Join(errs...)
	}

	for _, m := range months {
		out[m] = dedupe(calendar.Merge(sets[m]...))
	}
	slog.Info("sync complete", "months", len(out))
	return out, nil
}

// Refresh fetches months (the watched months when none are given), stores
// them and publishes the updated snapshot. A refresh cancels the in-flight
// refreshes it fully covers, and a month is only stored by its most recent
// refresh, so an older response cannot overwrite a newer view.
func (s *Syncer) Refresh(ctx context.Context, months ...layout.YearMonth) ([]calendar.Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.watchLocked(months...)
	if len(months) == 0 {
		months = slices.Clone(s.months)
	} else {
		months = uniq(months)
	}
	for id, p := range s.inflight {
		if covers(months, p.months) {
			p.cancel()
			delete(s.inflight, id)
		}
	}
	s.seq++
	id := s.seq
	s.inflight[id] = &pending{months: months, cancel: cancel}
	gens := make(map[layout.YearMonth]uint64, len(months))
	for _, m := range months {
		s.gens[m]++
		gens[m] = s.gens[m]
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}()

	byMonth, err := s.fetch(ctx, months)
	if byMonth == nil {
		return nil, err
	}

	s.mu.Lock()
	stored := 0
	for _, m := range months {
		if s.gens[m] != gens[m] || !slices.Contains(s.months, m) {
			continue
		}
		s.byMonth[m] = byMonth[m]
		stored++
	}
	if stored == 0 {
		s.mu.Unlock()
		slog.Debug("discarding superseded sync result")
		return nil, context.Canceled
	}
	var all [][]calendar.Event
	for _, m := range s.months {
		all = append(all, s.byMonth[m])
	}
	snapshot := dedupe(calendar.Merge(all...))
	if snapshot == nil {
		snapshot = []calendar.Event{}
	}
	s.snapshot = snapshot
	listeners := slices.Clone(s.onSync)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(slices.Clone(snapshot))
	}
	s.export(snapshot)
	return flatten(byMonth), err
}

// usable drops events whose times cannot be placed on the grid.
func usable(source string, events []calendar.Event) []calendar.Event {
	out := events[:0:0]
	for _, e := range events {
		if !e.Valid() {
			slog.Warn("dropping event without a usable time range", "source", source, "id", e.ID, "start", e.Start, "end", e.End)
			continue
		}
		out = append(out, e)
	}
	return out
}

// flatten merges per-month results into one list ordered by start.
func flatten(byMonth map[layout.YearMonth][]calendar.Event) []calendar.Event {
	sets := make([][]calendar.Event, 0, len(byMonth))
	for _, events := range byMonth {
		sets = append(sets, events)
	}
	out := dedupe(calendar.Merge(sets...))
	if out == nil {
		out = []calendar.Event{}
	}
	return out
}

func uniq(months []layout.YearMonth) []layout.YearMonth {
	out := make([]layout.YearMonth, 0, len(months))
	for _, m := range months {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

// covers reports whether every month of b is in a.
func covers(a, b []layout.YearMonth) bool {
	for _, m := range b {
		if !slices.Contains(a, m) {
			return false
		}
	}
	return true
}

// Run performs an initial refresh and then refreshes the watched months on
// the configured cron schedule until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	refresh := func() {
		if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("sync failed", "error", err)
		}
	}
	refresh()

	if s.schedule == "" {
		<-ctx.Done()
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, refresh); err != nil {
		return fmt.Errorf("schedule sync: %w", err)
	}
	c.Start()
	slog.Info("sync scheduled", "schedule", s.schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Syncer) export(events []calendar.Event) {
	if s.output == "" {
		return
	}
	if err := calendar.WriteICS(s.output, events); err != nil {
		slog.Error("failed to write ICS", "path", s.output, "error", err)
		return
	}
	slog.Debug("wrote ICS", "path", s.output, "events", len(events))
}

func (s *Syncer) toast(n notify.Notification) {
	if err := s.notifier.Send(n); err != nil {
		slog.Warn("failed to send notification", "error", err)
	}
}

// dedupe drops repeated events with the same source and ID, which a
// mirror can return for both months of a spanning week.
func dedupe(events []calendar.Event) []calendar.Event {
	type key struct {
		source, id string
		start      int64
	}
	seen := make(map[key]struct{}, len(events))
	out := events[:0]
	for _, e := range events {
		if e.ID != "" {
			k := key{e.Source, e.ID, e.Start.Unix()}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, e)
	}
	return out
}

// createSources creates the mirror sources with their per-source filters from configuration.
func createSources(cfgs []config.SourceConfig, loc *time.Location) ([]sourceWithFilter, error) {
	var sources []sourceWithFilter

	for _, cfg := range cfgs {
		var src calendar.Source

		switch cfg.Type {
		case "ics":
			password, err := cfg.GetPassword()
			if err != nil {
				return nil, err
			}
			src = calendar.NewICSSource(cfg.Name, cfg.URL, cfg.Username, password, loc)

		case "caldav":
			password, err := cfg.GetPassword()
			if err != nil {
				return nil, err
			}
			src = calendar.NewCalDAVSource(cfg.Name, cfg.URL, cfg.Username, password, cfg.Calendars, loc)

		default:
			slog.Warn("unknown source type", "type", cfg.Type, "name", cfg.Name)
			continue
		}

		f, err := filter.New(cfg.Filters)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}

		sources = append(sources, sourceWithFilter{
			source: src,
			filter: f,
		})
	}

	return sources, nil
}
