package calendar

import (
	"testing"
	"time"
)

func TestContains(t *testing.T) {
	loc := time.Local
	e := Event{
		Start: time.Date(2024, 3, 4, 9, 0, 0, 0, loc),
		End:   time.Date(2024, 3, 4, 10, 30, 0, 0, loc),
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", time.Date(2024, 3, 4, 8, 59, 59, 0, loc), false},
		{"at start", time.Date(2024, 3, 4, 9, 0, 0, 0, loc), true},
		{"middle", time.Date(2024, 3, 4, 9, 45, 0, 0, loc), true},
		{"just before end", time.Date(2024, 3, 4, 10, 29, 59, 0, loc), true},
		{"at end", time.Date(2024, 3, 4, 10, 30, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Contains(tt.now); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	loc := time.Local
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, loc)

	tests := []struct {
		name  string
		event Event
		want  bool
	}{
		{"well formed", Event{Start: start, End: start.Add(time.Hour)}, true},
		{"zero start", Event{End: start}, false},
		{"zero end", Event{Start: start}, false},
		{"end equals start", Event{Start: start, End: start}, false},
		{"end before start", Event{Start: start, End: start.Add(-time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    Status
		kind    Kind
		wantErr bool
	}{
		{"PENDIENTE", StatusPending, KindPending, false},
		{"confirmada", StatusConfirmed, KindAccepted, false},
		{"NO-CONFIRMADA", StatusNotConfirmed, KindDeclined, false},
		{" asistira ", StatusWillAttend, KindAccepted, false},
		{"NO_ASISTIRA", StatusWontAttend, KindDeclined, false},
		{"CANCELADA", "", KindPending, true},
		{"", "", KindPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if got.Kind() != tt.kind {
				t.Errorf("%q.Kind() = %v, want %v", got, got.Kind(), tt.kind)
			}
		})
	}
}

func TestTypeColors(t *testing.T) {
	if got := Type("Sesiones").Colors(); got != Palette["sesiones"] {
		t.Errorf("expected case-insensitive palette lookup, got %+v", got)
	}
	if got := Type("desconocido").Colors(); got != defaultColors {
		t.Errorf("expected default colours for unknown type, got %+v", got)
	}
}

func TestMergeIsStable(t *testing.T) {
	loc := time.Local
	nine := time.Date(2024, 3, 4, 9, 0, 0, 0, loc)

	a := []Event{{ID: "b", Start: nine}, {ID: "late", Start: nine.Add(time.Hour)}}
	b := []Event{{ID: "early", Start: nine.Add(-time.Hour)}, {ID: "c", Start: nine}}

	got := Merge(a, b)
	want := []string{"early", "b", "c", "late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestCouncillorFullName(t *testing.T) {
	var nilCouncillor *Councillor
	if got := nilCouncillor.FullName(); got != "" {
		t.Errorf("expected empty name for nil councillor, got %q", got)
	}
	c := &Councillor{FirstName: "Ana", LastName: "Pérez"}
	if got := c.FullName(); got != "Ana Pérez" {
		t.Errorf("FullName() = %q", got)
	}
}
