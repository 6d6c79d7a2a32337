// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/okian/gestor/internal/domain/change"
)

// Snapshot backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// SnapshotBackend selects where the baseline snapshot lives.
	SnapshotBackend string `koanf:"snapshot_backend"`

	// SnapshotPath is the SQLite database file for the sqlite backend.
	SnapshotPath string `koanf:"snapshot_path"`

	// RefreshSnapshotOnApply replaces the snapshot with the review's incoming
	// dataset after an apply with no failures.
	RefreshSnapshotOnApply bool `koanf:"refresh_snapshot_on_apply"`

	// Record store endpoints and credentials.
	StoreDatabaseURL   string `koanf:"store_database_url"`
	StoreActionURL     string `koanf:"store_action_url"`
	StoreCollection    string `koanf:"store_collection"`
	StoreAuthorization string `koanf:"store_authorization"`
	StoreTimeoutMS     int    `koanf:"store_timeout_ms"`

	// StoreRatePerSecond caps calls to the record store; 0 disables the cap.
	StoreRatePerSecond float64 `koanf:"store_rate_per_second"`
	StoreBurst         int     `koanf:"store_burst"`

	// AppliedHistorySize bounds how many applied review ids are remembered.
	AppliedHistorySize int `koanf:"applied_history_size"`

	// MaxPendingReviews bounds reviews awaiting confirmation; the oldest is
	// dropped when full.
	MaxPendingReviews int `koanf:"max_pending_reviews"`

	// MaxBodyBytes caps request bodies accepted by the HTTP API.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`

	// ApplyTimeoutMS bounds an apply started over HTTP. It runs detached
	// from the client connection.
	ApplyTimeoutMS int `koanf:"apply_timeout_ms"`

	// SignalIDs overrides the signal fired per change kind.
	SignalIDs map[string]string `koanf:"signal_ids"`

	// Metrics settings for the Prometheus manager.
	MetricsEnabled   bool              `koanf:"metrics_enabled"`
	MetricsNamespace string            `koanf:"metrics_namespace"`
	MetricsSubsystem string            `koanf:"metrics_subsystem"`
	MetricsPrefix    string            `koanf:"metrics_prefix"`
	MetricsLabels    map[string]string `koanf:"metrics_labels"`
	MetricsBuckets   []float64         `koanf:"metrics_buckets"`

	// MetricsRefreshMS is how often runtime and service gauges are sampled.
	MetricsRefreshMS int `koanf:"metrics_refresh_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		SnapshotBackend:    BackendMemory,
		SnapshotPath:       "data/snapshot.db",
		StoreDatabaseURL:   "https://service2.funifier.com/v3",
		StoreActionURL:     "https://api.funifier.com",
		StoreCollection:    "cliente_jogador",
		StoreTimeoutMS:     15_000,
		StoreRatePerSecond: 10,
		StoreBurst:         5,
		AppliedHistorySize: 1024,
		MaxPendingReviews:  64,
		MaxBodyBytes:       8 << 20,
		ApplyTimeoutMS:     120_000,
		SignalIDs:          map[string]string{},
		MetricsEnabled:     true,
		MetricsNamespace:   "gestor",
		MetricsSubsystem:   "reconcile",
		MetricsLabels:      map[string]string{},
		MetricsRefreshMS:   10_000,
	}
}

// ApplyTimeout returns ApplyTimeoutMS as a duration.
func (c *Config) ApplyTimeout() time.Duration {
	return time.Duration(c.ApplyTimeoutMS) * time.Millisecond
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// MetricsRefresh returns MetricsRefreshMS as a duration.
func (c *Config) MetricsRefresh() time.Duration {
	return time.Duration(c.MetricsRefreshMS) * time.Millisecond
}

// SignalOverrides converts SignalIDs to change kinds. Call after Validate.
func (c *Config) SignalOverrides() map[change.Kind]string {
	out := make(map[change.Kind]string, len(c.SignalIDs))
	for k, id := range c.SignalIDs {
		out[change.Kind(k)] = id
	}
	return out
}

// Validate checks field values and cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.SnapshotBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SnapshotPath) == "" {
			return fmt.Errorf("%w: snapshot_path is required for the sqlite backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown snapshot_backend %q", ErrInvalidConfig, c.SnapshotBackend)
	}
	for name, raw := range map[string]string{"store_database_url": c.StoreDatabaseURL, "store_action_url": c.StoreActionURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s must be an absolute http(s) URL, got %q", ErrInvalidConfig, name, raw)
		}
	}
	if c.StoreTimeoutMS <= 0 {
		return fmt.Errorf("%w: store_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.StoreRatePerSecond < 0 {
		return fmt.Errorf("%w: store_rate_per_second must not be negative", ErrInvalidConfig)
	}
	if c.MaxPendingReviews <= 0 {
		return fmt.Errorf("%w: max_pending_reviews must be positive", ErrInvalidConfig)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: max_body_bytes must be positive", ErrInvalidConfig)
	}
	if c.ApplyTimeoutMS <= 0 {
		return fmt.Errorf("%w: apply_timeout_ms must be positive", ErrInvalidConfig)
	}
	if c.MetricsRefreshMS <= 0 {
		return fmt.Errorf("%w: metrics_refresh_ms must be positive", ErrInvalidConfig)
	}
	if !sort.Float64sAreSorted(c.MetricsBuckets) {
		return fmt.Errorf("%w: metrics_buckets must be in increasing order", ErrInvalidConfig)
	}
	for k, id := range c.SignalIDs {
		if _, ok := change.DefaultSignalIDs[change.Kind(k)]; !ok {
			return fmt.Errorf("%w: signal_ids: %q is not a signaling change kind", ErrInvalidConfig, k)
		}
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: signal_ids: empty id for %q", ErrInvalidConfig, k)
		}
	}
	return nil
}
