// Package config provides configuration loading for the agenda daemon.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Timezone      string             `yaml:"timezone"`
	Backend       BackendConfig      `yaml:"backend"`
	Auth          AuthConfig         `yaml:"auth"`
	Storage       StorageConfig      `yaml:"storage"`
	Sources       []SourceConfig     `yaml:"sources"`
	Sync          SyncConfig         `yaml:"sync"`
	Filters       FilterConfig       `yaml:"filters"`
	Layout        LayoutConfig       `yaml:"layout"`
	Current       CurrentConfig      `yaml:"current"`
	Attendance    AttendanceConfig   `yaml:"attendance"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
}

// BackendConfig configures the REST agenda service.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuthConfig configures how the daemon authenticates against the backend.
type AuthConfig struct {
	Method       string   `yaml:"method"` // "none", "token", "client_credentials", "device_code"
	Token        string   `yaml:"token,omitempty"`
	TokenCmd     string   `yaml:"token_cmd,omitempty"`
	TenantID     string   `yaml:"tenant_id,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
}

// StorageConfig configures where attached documents are hosted.
type StorageConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SourceConfig configures an additional calendar source mirrored into the agenda.
type SourceConfig struct {
	Name        string       `yaml:"name"`
	Type        string       `yaml:"type"` // "ics", "caldav"
	URL         string       `yaml:"url"`
	Username    string       `yaml:"username,omitempty"`
	Password    string       `yaml:"password,omitempty"`
	PasswordCmd string       `yaml:"password_cmd,omitempty"`
	Calendars   []string     `yaml:"calendars,omitempty"` // For CalDAV: which calendars to sync
	Filters     FilterConfig `yaml:"filters,omitempty"`   // Per-source filters (include)
}

// SyncConfig configures the snapshot refresh.
type SyncConfig struct {
	Refresh string `yaml:"refresh"` // cron schedule
	Output  string `yaml:"output"`  // optional ICS export path
	// KeepMonths bounds how many months stay loaded; the least recently requested go first.
	KeepMonths int `yaml:"keep_months"`
}

// FilterConfig configures event filtering.
type FilterConfig struct {
	Mode  string       `yaml:"mode"` // "or" or "and"
	Rules []FilterRule `yaml:"rules"`
}

// FilterRule defines a single filter rule.
// Use exactly one of: Contains, Exact, Prefix, Suffix, or Regex.
type FilterRule struct {
	Field           string `yaml:"field"`              // "title", "type", "status", "councillor", "source", "description", "location"
	Contains        string `yaml:"contains,omitempty"` // Substring match
	Exact           string `yaml:"exact,omitempty"`    // Exact string match
	Prefix          string `yaml:"prefix,omitempty"`   // Starts with
	Suffix          string `yaml:"suffix,omitempty"`   // Ends with
	Regex           string `yaml:"regex,omitempty"`    // Regular expression
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

// LayoutConfig configures the week grid.
type LayoutConfig struct {
	StartHour   int     `yaml:"start_hour"`
	EndHour     int     `yaml:"end_hour"`
	PxPerMinute float64 `yaml:"px_per_minute"`
	Strategy    string  `yaml:"strategy"`   // "overlap" or "bucket"
	WeekStart   string  `yaml:"week_start"` // "monday" or "sunday"
}

// CurrentConfig configures the current-meeting locator.
type CurrentConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// AttendanceConfig configures attendance transitions.
type AttendanceConfig struct {
	// PublicConfirmation requires a confirmation on the public quick-confirm path too.
	PublicConfirmation bool `yaml:"public_confirmation"`
	// StrictUpdates sends partial status updates with the version token instead of full records.
	StrictUpdates bool `yaml:"strict_updates"`
}

// NotificationConfig configures desktop notifications.
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppName string `yaml:"app_name"`
	// Tray shows a status indicator with the current meeting and pending count.
	Tray bool `yaml:"tray"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen       string   `yaml:"listen"`
	AllowOrigins []string `yaml:"allow_origins"`
	// DashboardURL is the front-end opened from the status indicator.
	DashboardURL string `yaml:"dashboard_url"`
}

// Load reads configuration from the default location (~/.config/agenda/config.yaml).
// A missing file is not an error: defaults plus environment overrides are used.
func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("get config dir: %w", err)
	}

	path := filepath.Join(configDir, "agenda", "config.yaml")
	cfg, err := LoadFrom(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		cfg.finish()
		return cfg, nil
	}
	return cfg, err
}

// LoadFrom reads configuration from a specific path.
func LoadFrom(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.finish()
	return &cfg, nil
}

// finish loads .env, applies environment overrides and defaults.
func (c *Config) finish() {
	loadDotEnv()
	c.applyEnv()
	c.applyDefaults()
	c.Sync.Output = expandPath(c.Sync.Output)
}

// loadDotEnv loads a .env file from the working directory if there is one.
// Variables already present in the environment win.
func loadDotEnv() {
	path := os.Getenv("AGENDA_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "agenda: ignoring %s: %v\n", path, err)
	}
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("AGENDA_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("AGENDA_TOKEN"); v != "" {
		c.Auth.Token = v
		if c.Auth.Method == "" {
			c.Auth.Method = "token"
		}
	}
	if v := os.Getenv("AGENDA_CLIENT_SECRET"); v != "" {
		c.Auth.ClientSecret = v
	}
	if v := os.Getenv("STORAGE_BASE_URL"); v != "" {
		c.Storage.BaseURL = v
	}
	if v := os.Getenv("AGENDA_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("AGENDA_TIMEZONE"); v != "" {
		c.Timezone = v
	}
}

// applyDefaults sets default values for unspecified config options.
func (c *Config) applyDefaults() {
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 15 * time.Second
	}
	if c.Auth.Method == "" {
		c.Auth.Method = "none"
	}
	if c.Sync.Refresh == "" {
		c.Sync.Refresh = "*/5 * * * *"
	}
	if c.Sync.KeepMonths <= 0 {
		c.Sync.KeepMonths = 6
	}
	if c.Filters.Mode == "" {
		c.Filters.Mode = "or"
	}
	if c.Layout.StartHour == 0 && c.Layout.EndHour == 0 {
		c.Layout.StartHour = 8
		c.Layout.EndHour = 19
	}
	if c.Layout.PxPerMinute == 0 {
		c.Layout.PxPerMinute = 1
	}
	switch c.Layout.Strategy {
	case "overlap", "bucket":
	default:
		c.Layout.Strategy = "overlap"
	}
	switch c.Layout.WeekStart {
	case "monday", "sunday":
	default:
		c.Layout.WeekStart = "monday"
	}
	if c.Current.Interval == 0 {
		c.Current.Interval = time.Minute
	}
	if c.Notifications.AppName == "" {
		c.Notifications.AppName = "Agenda"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:8080"
	}
}

// Location returns the configured display timezone, or time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// GetPassword returns the password for a source, executing password_cmd if needed.
func (s *SourceConfig) GetPassword() (string, error) {
	if s.Password != "" {
		return s.Password, nil
	}
	return runSecretCmd(s.PasswordCmd, "password_cmd")
}

// GetToken returns the static bearer token, executing token_cmd if needed.
func (a *AuthConfig) GetToken() (string, error) {
	if a.Token != "" {
		return a.Token, nil
	}
	return runSecretCmd(a.TokenCmd, "token_cmd")
}

func runSecretCmd(command, name string) (string, error) {
	if command == "" {
		return "", nil
	}

	cmd := exec.Command("sh", "-c", command)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}

	return strings.TrimSpace(string(out)), nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// parseDuration parses Go durations plus day ("14d") and week ("2w") suffixes.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "w"):
		unit = 7 * 24 * time.Hour
	default:
		return time.ParseDuration(s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return time.Duration(n) * unit, nil
}

// UnmarshalYAML implements custom unmarshaling for duration fields.
func (c *BackendConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	d, err := parseDuration(raw.Timeout)
	if err != nil {
		return fmt.Errorf("parse timeout: %w", err)
	}
	c.URL = raw.URL
	c.Timeout = d
	return nil
}

// UnmarshalYAML implements custom unmarshaling for the locator interval.
func (c *CurrentConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Interval string `yaml:"interval"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	d, err := parseDuration(raw.Interval)
	if err != nil {
		return fmt.Errorf("parse interval: %w", err)
	}
	c.Interval = d
	return nil
}
