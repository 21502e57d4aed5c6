// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and PERFREPORT_ env vars.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFile, when set, receives the usage log through a rotating writer.
	LogFile string `koanf:"log_file"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Structural limits applied to every upload before any cell is inspected.
	MaxRows        int   `koanf:"max_rows"`
	MaxColumns     int   `koanf:"max_columns"`
	MaxCellLength  int   `koanf:"max_cell_length"`
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// RateWindow is the trailing window the per-action limits are counted over.
	RateWindow           time.Duration `koanf:"rate_window"`
	UploadsPerHour       int           `koanf:"uploads_per_hour"`
	SingleReportsPerHour int           `koanf:"single_reports_per_hour"`
	TeamReportsPerHour   int           `koanf:"team_reports_per_hour"`

	// SessionIdleTTL bounds how long an idle session keeps its upload and windows.
	SessionIdleTTL time.Duration `koanf:"session_idle_ttl"`

	// RenderQueueSize bounds the in-memory render job queue.
	RenderQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of PDF render workers.
	WorkerCount int `koanf:"worker_count"`

	// RenderTimeout caps a single PDF render.
	RenderTimeout time.Duration `koanf:"render_timeout"`

	// ChromePath overrides browser discovery for PDF rendering.
	ChromePath string `koanf:"chrome_path"`

	// UsageDBPath is the sqlite file holding usage events and contacts.
	UsageDBPath string `koanf:"usage_db_path"`

	// HashSalt is mixed into session ids before they are hashed for the usage log.
	HashSalt string `koanf:"hash_salt"`

	// MaxContacts caps the collected contact list.
	MaxContacts int `koanf:"max_contacts"`

	// ContactsDNSCheck enables the MX/host lookup on submitted addresses.
	ContactsDNSCheck bool `koanf:"contacts_dns_check"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		MaxRows:              500,
		MaxColumns:           50,
		MaxCellLength:        200,
		MaxUploadBytes:       10 << 20,
		RateWindow:           time.Hour,
		UploadsPerHour:       20,
		SingleReportsPerHour: 50,
		TeamReportsPerHour:   5,
		SessionIdleTTL:       2 * time.Hour,
		RenderQueueSize:      1_000,
		WorkerCount:          runtime.NumCPU(),
		RenderTimeout:        30 * time.Second,
		UsageDBPath:          "perfreport.db",
		MaxContacts:          10_000,
		ContactsDNSCheck:     true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MaxRows <= 0:
		return fmt.Errorf("%w: max_rows must be positive", ErrInvalidConfig)
	case c.MaxColumns <= 0:
		return fmt.Errorf("%w: max_columns must be positive", ErrInvalidConfig)
	case c.MaxCellLength <= 0:
		return fmt.Errorf("%w: max_cell_length must be positive", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.RateWindow <= 0:
		return fmt.Errorf("%w: rate_window must be positive", ErrInvalidConfig)
	case c.UploadsPerHour <= 0 || c.SingleReportsPerHour <= 0 || c.TeamReportsPerHour <= 0:
		return fmt.Errorf("%w: rate limits must be positive", ErrInvalidConfig)
	case c.SessionIdleTTL < c.RateWindow:
		return fmt.Errorf("%w: session_idle_ttl must not be shorter than rate_window", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.RenderQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.RenderQueueSize < c.MaxRows:
		return fmt.Errorf("%w: queue_size must hold a full team of max_rows jobs", ErrInvalidConfig)
	case c.UsageDBPath == "":
		return fmt.Errorf("%w: usage_db_path must not be empty", ErrInvalidConfig)
	}
	return nil
}
