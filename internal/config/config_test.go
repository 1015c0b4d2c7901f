package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		// Days
		{"1d", 24 * time.Hour, false},
		{"14d", 14 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},

		// Weeks
		{"1w", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"4w", 28 * 24 * time.Hour, false},

		// Standard Go durations
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"336h", 14 * 24 * time.Hour, false},
		{"1h30m", time.Hour + 30*time.Minute, false},

		// Edge cases
		{"0d", 0, false},
		{"0w", 0, false},
		{"", 0, false},
		{"  14d  ", 14 * 24 * time.Hour, false},

		// Errors
		{"invalid", 0, true},
		{"d", 0, true},
		{"w", 0, true},
		{"14x", 0, true},
		{"-1d", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"AGENDA_BACKEND_URL", "AGENDA_TOKEN", "AGENDA_CLIENT_SECRET", "STORAGE_BASE_URL", "AGENDA_LISTEN", "AGENDA_TIMEZONE"} {
		t.Setenv(k, "")
	}
	t.Setenv("AGENDA_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadFrom(writeConfig(t, "backend:\n  url: http://localhost:3000\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Backend.URL != "http://localhost:3000" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}
	if cfg.Backend.Timeout != 15*time.Second {
		t.Errorf("backend timeout = %v, want 15s", cfg.Backend.Timeout)
	}
	if cfg.Layout.StartHour != 8 || cfg.Layout.EndHour != 19 || cfg.Layout.PxPerMinute != 1 {
		t.Errorf("unexpected grid defaults: %+v", cfg.Layout)
	}
	if cfg.Layout.Strategy != "overlap" || cfg.Layout.WeekStart != "monday" {
		t.Errorf("unexpected layout defaults: %+v", cfg.Layout)
	}
	if cfg.Current.Interval != time.Minute {
		t.Errorf("current interval = %v, want 1m", cfg.Current.Interval)
	}
	if cfg.Auth.Method != "none" {
		t.Errorf("auth method = %q, want none", cfg.Auth.Method)
	}
	if cfg.Server.Listen == "" || cfg.Sync.Refresh == "" {
		t.Errorf("server listen and sync refresh must have defaults")
	}
	if cfg.Sync.KeepMonths != 6 {
		t.Errorf("keep months = %d, want 6", cfg.Sync.KeepMonths)
	}
}

func TestLoadFromDurations(t *testing.T) {
	isolateEnv(t)
	cfg, err := LoadFrom(writeConfig(t, "backend:\n  timeout: 30s\ncurrent:\n  interval: 2m\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Backend.Timeout != 30*time.Second {
		t.Errorf("backend timeout = %v, want 30s", cfg.Backend.Timeout)
	}
	if cfg.Current.Interval != 2*time.Minute {
		t.Errorf("current interval = %v, want 2m", cfg.Current.Interval)
	}

	if _, err := LoadFrom(writeConfig(t, "current:\n  interval: soon\n")); err == nil {
		t.Error("expected error for invalid interval")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("AGENDA_BACKEND_URL", "https://api.example.org")
	t.Setenv("AGENDA_TOKEN", "secret")
	t.Setenv("STORAGE_BASE_URL", "https://files.example.org/")
	t.Setenv("AGENDA_LISTEN", ":9000")

	cfg, err := LoadFrom(writeConfig(t, "backend:\n  url: http://ignored\n"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Backend.URL != "https://api.example.org" {
		t.Errorf("backend url = %q", cfg.Backend.URL)
	}
	if cfg.Auth.Method != "token" || cfg.Auth.Token != "secret" {
		t.Errorf("token override not applied: %+v", cfg.Auth)
	}
	if cfg.Storage.BaseURL != "https://files.example.org/" {
		t.Errorf("storage base url = %q", cfg.Storage.BaseURL)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
}

func TestLoadFromMissing(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestGetToken(t *testing.T) {
	a := AuthConfig{TokenCmd: "echo '  tok  '"}
	got, err := a.GetToken()
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "tok" {
		t.Errorf("GetToken = %q, want tok", got)
	}

	a = AuthConfig{Token: "inline", TokenCmd: "false"}
	if got, _ := a.GetToken(); got != "inline" {
		t.Errorf("inline token must win, got %q", got)
	}
}
