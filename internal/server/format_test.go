package server

import (
	"testing"
	"time"
)

func TestDayLabel(t *testing.T) {
	now := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"today", time.Date(2024, 3, 6, 18, 0, 0, 0, time.UTC), "Hoy"},
		{"tomorrow", time.Date(2024, 3, 7, 8, 0, 0, 0, time.UTC), "Mañana"},
		{"yesterday", time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC), "Ayer"},
		{"later", time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC), "sábado 9 de marzo"},
		{"month boundary", time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), "lunes 1 de abril"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dayLabel(tt.t, now); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Minute, "45m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1.5h"},
		{3 * time.Hour, "3h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestShortWeekday(t *testing.T) {
	if got := shortWeekday(time.Wednesday); got != "mié" {
		t.Errorf("got %q", got)
	}
	if got := truncate("Sesión extraordinaria del concejo", 10); got != "Sesión ..." {
		t.Errorf("truncate = %q", got)
	}
}
