package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/config"
)

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.Local)
}

func TestMonthFilter(t *testing.T) {
	// 2024-05-15 is a Wednesday.
	events := []calendar.Event{{ID: "may", Start: at(2024, 5, 15, 9, 0), End: at(2024, 5, 15, 10, 0)}}

	tests := []struct {
		name  string
		month time.Month
		want  int
	}{
		{"april excludes", time.April, 0},
		{"may includes", time.May, 1},
		{"any month includes", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ByMonthAndWeekday(events, tt.month, AllDays)
			if len(got) != tt.want {
				t.Errorf("got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestApplyMatchesExactly(t *testing.T) {
	var events []calendar.Event
	// One event per day across April and May 2024.
	for d := at(2024, 4, 1, 10, 0); d.Before(at(2024, 6, 1, 0, 0)); d = d.AddDate(0, 0, 1) {
		events = append(events, calendar.Event{ID: d.Format(calendar.DateLayout), Start: d, End: d.Add(time.Hour)})
	}

	criteria := []Criteria{
		{Month: time.May, Weekdays: WorkWeek},
		{Month: 0, Weekdays: Weekend},
		{Month: time.April, Weekdays: NewWeekdaySet(time.Wednesday)},
		{Month: time.June, Weekdays: AllDays},
		{Month: time.May, Weekdays: 0},
	}

	for _, c := range criteria {
		got := Apply(events, c, time.Time{})
		ids := make(map[string]bool, len(got))
		for _, e := range got {
			ids[e.ID] = true
		}
		for _, e := range events {
			want := (c.Month == 0 || e.Start.Month() == c.Month) && c.Weekdays.Has(e.Start.Weekday())
			if ids[e.ID] != want {
				t.Errorf("criteria %+v: event %s included=%v, want %v", c, e.ID, ids[e.ID], want)
			}
		}
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	events := []calendar.Event{
		{ID: "late", Start: at(2024, 5, 15, 12, 0), End: at(2024, 5, 15, 13, 0)},
		{ID: "early", Start: at(2024, 5, 15, 9, 0), End: at(2024, 5, 15, 10, 0)},
	}
	got := Apply(events, Criteria{Weekdays: AllDays}, time.Time{})
	if len(got) != 2 || got[0].ID != "late" || got[1].ID != "early" {
		t.Errorf("expected input order to be kept, got %+v", got)
	}
}

func TestWindow(t *testing.T) {
	now := at(2024, 5, 15, 12, 0)
	events := []calendar.Event{
		{ID: "past", Start: at(2024, 5, 15, 9, 0), End: at(2024, 5, 15, 10, 0)},
		{ID: "ongoing", Start: at(2024, 5, 15, 11, 0), End: at(2024, 5, 15, 13, 0)},
		{ID: "future", Start: at(2024, 5, 16, 9, 0), End: at(2024, 5, 16, 10, 0)},
	}

	tests := []struct {
		window Window
		want   []string
	}{
		{WindowAll, []string{"past", "ongoing", "future"}},
		{WindowUpcoming, []string{"ongoing", "future"}},
		{WindowPast, []string{"past"}},
	}

	for _, tt := range tests {
		t.Run(tt.window.String(), func(t *testing.T) {
			got := Apply(events, Criteria{Weekdays: AllDays, Window: tt.window}, now)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestWeekdaySet(t *testing.T) {
	s := NewWeekdaySet(time.Monday)
	if s.Add(time.Monday) != s {
		t.Errorf("adding a selected day must be idempotent")
	}
	if s.Remove(time.Tuesday) != s {
		t.Errorf("removing an unselected day must be idempotent")
	}
	if got := s.Toggle(time.Monday).Toggle(time.Monday); got != s {
		t.Errorf("double toggle should restore the set, got %v", got)
	}
	if WorkWeek.Len() != 5 || Weekend.Len() != 2 || AllDays.Len() != 7 {
		t.Errorf("unexpected preset sizes: %d %d %d", WorkWeek.Len(), Weekend.Len(), AllDays.Len())
	}
	if WorkWeek.Has(time.Sunday) || !Weekend.Has(time.Sunday) {
		t.Errorf("presets disagree on Sunday")
	}
	if s.Has(time.Weekday(9)) {
		t.Errorf("out of range weekday must not be reported as selected")
	}
}

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		input   string
		want    WeekdaySet
		wantErr bool
	}{
		{"", AllDays, false},
		{"weekend", Weekend, false},
		{"weekdays", WorkWeek, false},
		{"1,2,3,4,5", WorkWeek, false},
		{"0, 6", Weekend, false},
		{"7", 0, true},
		{"lunes", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWeekdays(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWeekdays(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWeekdays(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSelectionFloor(t *testing.T) {
	public := Selection{Set: NewWeekdaySet(time.Friday), RequireOne: true}
	if err := public.Toggle(time.Friday); err != ErrEmptySelection {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}
	if !public.Set.Has(time.Friday) {
		t.Errorf("refused toggle must leave the selection unchanged")
	}

	dashboard := Selection{Set: NewWeekdaySet(time.Friday)}
	if err := dashboard.Remove(time.Friday); err != nil {
		t.Fatalf("dashboard selection may become empty, got %v", err)
	}
	if dashboard.Set.Len() != 0 {
		t.Errorf("expected empty selection, got %v", dashboard.Set)
	}

	dashboard.Preset(Weekend)
	if dashboard.Set != Weekend {
		t.Errorf("preset must replace the selection, got %v", dashboard.Set)
	}
}

func TestParseSelection(t *testing.T) {
	if _, err := ParseSelection(",", true); !errors.Is(err, ErrEmptySelection) {
		t.Errorf("public selection: expected ErrEmptySelection, got %v", err)
	}
	sel, err := ParseSelection(",", false)
	if err != nil || sel.Set != 0 {
		t.Errorf("dashboard selection may be empty: %v %v", sel.Set, err)
	}
	sel, err = ParseSelection("", true)
	if err != nil || sel.Set != AllDays {
		t.Errorf("missing weekdays should select all days: %v %v", sel.Set, err)
	}
	if _, err := ParseSelection("9", true); err == nil || errors.Is(err, ErrEmptySelection) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestRules(t *testing.T) {
	events := []calendar.Event{
		{ID: "1", Title: "Sesión ordinaria", Type: "sesiones"},
		{ID: "2", Title: "Visita de fiscalización", Type: "fiscalizacion"},
		{ID: "3", Title: "Reunión", Type: "reunion", Councillor: &calendar.Councillor{FirstName: "Ana", LastName: "Soto"}},
	}

	tests := []struct {
		name string
		cfg  config.FilterConfig
		want []string
	}{
		{
			name: "no rules passes everything",
			cfg:  config.FilterConfig{},
			want: []string{"1", "2", "3"},
		},
		{
			name: "exact type",
			cfg:  config.FilterConfig{Rules: []config.FilterRule{{Field: "tipo", Exact: "sesiones"}}},
			want: []string{"1"},
		},
		{
			name: "or mode",
			cfg: config.FilterConfig{Mode: "or", Rules: []config.FilterRule{
				{Field: "type", Exact: "sesiones"},
				{Field: "councillor", Contains: "soto", CaseInsensitive: true},
			}},
			want: []string{"1", "3"},
		},
		{
			name: "and mode",
			cfg: config.FilterConfig{Mode: "and", Rules: []config.FilterRule{
				{Field: "title", Regex: "^Visita"},
				{Field: "type", Prefix: "fisc"},
			}},
			want: []string{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			got := f.Apply(events)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestRuleWithoutPattern(t *testing.T) {
	_, err := New(config.FilterConfig{Rules: []config.FilterRule{{Field: "title"}}})
	if err == nil {
		t.Fatal("expected error for rule without a pattern")
	}
}

func TestRuleUnknownField(t *testing.T) {
	_, err := New(config.FilterConfig{Rules: []config.FilterRule{{Field: "sala", Contains: "A"}}})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}
