// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"strings"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the lessons collection backend: sqlite or memory.
	StoreDriver string `koanf:"store_driver"`

	// DBPath is the SQLite database file used by the sqlite driver.
	DBPath string `koanf:"db_path"`

	// QueueSize bounds the change-notice queue feeding the snapshot dispatcher.
	QueueSize int `koanf:"queue_size"`

	// ConflictCheck enables the overlap check on the add flow.
	ConflictCheck bool `koanf:"conflict_check"`

	// EditPassword is the shared secret that unlocks editing in the UI.
	EditPassword string `koanf:"edit_password"`

	// SessionKey signs the session and local cookies. Empty means a random
	// key per process start.
	SessionKey string `koanf:"session_key"`

	// CookieSecure marks cookies Secure (HTTPS only).
	CookieSecure bool `koanf:"cookie_secure"`

	// LocalDir holds the long-lived per-browser scope (filters, student
	// directory). Empty means a directory under the system temp dir.
	LocalDir string `koanf:"local_dir"`

	// DefaultCoach and DefaultRink fill records that carry neither field.
	DefaultCoach string `koanf:"default_coach"`
	DefaultRink  string `koanf:"default_rink"`

	// CoachColors maps coach names to calendar colors.
	CoachColors map[string]string `koanf:"coach_colors"`

	// FallbackColor is used for coaches missing from CoachColors.
	FallbackColor string `koanf:"fallback_color"`

	// Rinks lists the selectable rinks.
	Rinks []string `koanf:"rinks"`

	// LessonMinutes is the default lesson length applied when start changes.
	LessonMinutes int `koanf:"lesson_minutes"`

	// DedupeSize bounds the idempotency-key cache for add submissions.
	DedupeSize int `koanf:"dedupe_size"`

	// ExportSchedule is a cron spec for periodic spreadsheet exports; empty disables.
	ExportSchedule string `koanf:"export_schedule"`

	// ExportDir receives scheduled spreadsheet exports.
	ExportDir string `koanf:"export_dir"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          ":9080",
		StoreDriver:   DriverSQLite,
		DBPath:        "rinkside.db",
		QueueSize:     1024,
		ConflictCheck: true,
		EditPassword:  "letmein",
		DefaultCoach:  "Silvia",
		DefaultRink:   "Den",
		CoachColors: map[string]string{
			"Silvia": "#3b82f6",
			"John":   "#22c55e",
			"Sherry": "#f43f5e",
		},
		FallbackColor: "#6366f1",
		Rinks:         []string{"Stadium", "Mezzanine", "Den"},
		LessonMinutes: 30,
		DedupeSize:    10_000,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreDriver != DriverSQLite && c.StoreDriver != DriverMemory:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.StoreDriver == DriverSQLite && strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty for the sqlite driver", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.EditPassword == "":
		return fmt.Errorf("%w: edit_password must not be empty", ErrInvalidConfig)
	case c.LessonMinutes < 1:
		return fmt.Errorf("%w: lesson_minutes must be positive", ErrInvalidConfig)
	case c.ExportSchedule != "" && strings.TrimSpace(c.ExportDir) == "":
		return fmt.Errorf("%w: export_dir is required when export_schedule is set", ErrInvalidConfig)
	}
	return nil
}
