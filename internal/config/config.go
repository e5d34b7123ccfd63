// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SessionID names the persisted rating session.
	SessionID string `koanf:"session_id"`

	// DebounceMS is the quiet period before queued drags are reconciled.
	DebounceMS int `koanf:"debounce_ms"`

	// QueueCapacity forces a flush once this many drags are queued.
	QueueCapacity int `koanf:"queue_capacity"`

	// Rating model constants.
	MinSigma     float64 `koanf:"min_sigma"`
	DefaultMu    float64 `koanf:"default_mu"`
	DefaultSigma float64 `koanf:"default_sigma"`

	// Placement constants.
	DefaultScore float64 `koanf:"default_score"`
	EpsilonUp    float64 `koanf:"epsilon_up"`
	EpsilonDown  float64 `koanf:"epsilon_down"`
	CascadeDelta float64 `koanf:"cascade_delta"`

	// Completed battles needed to clear a pending marker.
	ReorderConfirmations int `koanf:"reorder_confirmations"`
	InsertConfirmations  int `koanf:"insert_confirmations"`

	// DedupeSize bounds how many completed battle ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxRankingLimit caps GET /ranking?limit.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// PersistenceDriver is memory, sqlite or postgres.
	PersistenceDriver string `koanf:"persistence_driver"`
	PersistenceDSN    string `koanf:"persistence_dsn"`

	// Sync worker tuning.
	SyncDebounceMS     int `koanf:"sync_debounce_ms"`
	SyncMaxRetries     int `koanf:"sync_max_retries"`
	SyncRetryBackoffMS int `koanf:"sync_retry_backoff_ms"`
	// SyncRecoveryMS is the pause before saving again after retries ran out.
	SyncRecoveryMS int `koanf:"sync_recovery_ms"`

	// CatalogPath points at a YAML item catalog. Empty accepts any id.
	CatalogPath string `koanf:"catalog_path"`

	// Prometheus metric name parts. Every series also carries a session label.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		SessionID:            "default",
		DebounceMS:           100,
		QueueCapacity:        1024,
		MinSigma:             1.0,
		DefaultMu:            25.0,
		DefaultSigma:         8.333,
		DefaultScore:         20.0,
		EpsilonUp:            0.1,
		EpsilonDown:          0.1,
		CascadeDelta:         0.01,
		ReorderConfirmations: 2,
		InsertConfirmations:  3,
		DedupeSize:           50_000,
		MaxRankingLimit:      1000,
		PersistenceDriver:    "memory",
		SyncDebounceMS:       250,
		SyncMaxRetries:       3,
		SyncRetryBackoffMS:   200,
		SyncRecoveryMS:       5000,
		MetricsNamespace:     "pokerank",
		MetricsSubsystem:     "engine",
	}
}

// Debounce returns DebounceMS as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// SyncDebounce returns SyncDebounceMS as a duration.
func (c *Config) SyncDebounce() time.Duration {
	return time.Duration(c.SyncDebounceMS) * time.Millisecond
}

// SyncRetryBackoff returns SyncRetryBackoffMS as a duration.
func (c *Config) SyncRetryBackoff() time.Duration {
	return time.Duration(c.SyncRetryBackoffMS) * time.Millisecond
}

// SyncRecovery returns SyncRecoveryMS as a duration.
func (c *Config) SyncRecovery() time.Duration {
	return time.Duration(c.SyncRecoveryMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("addr must not be empty: %w", ErrInvalidConfig)
	case c.SessionID == "":
		return fmt.Errorf("session_id must not be empty: %w", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("log_format %q: %w", c.LogFormat, ErrInvalidConfig)
	case c.DebounceMS < 0 || c.SyncDebounceMS < 0 || c.SyncRetryBackoffMS < 0 || c.SyncRecoveryMS < 0:
		return fmt.Errorf("durations must not be negative: %w", ErrInvalidConfig)
	case c.QueueCapacity < 1:
		return fmt.Errorf("queue_capacity must be positive: %w", ErrInvalidConfig)
	case c.MinSigma <= 0 || c.DefaultSigma <= 0:
		return fmt.Errorf("sigmas must be positive: %w", ErrInvalidConfig)
	case c.EpsilonUp <= 0 || c.EpsilonDown <= 0 || c.CascadeDelta <= 0:
		return fmt.Errorf("epsilons and cascade_delta must be positive: %w", ErrInvalidConfig)
	case c.ReorderConfirmations < 1 || c.InsertConfirmations < 1:
		return fmt.Errorf("confirmations must be positive: %w", ErrInvalidConfig)
	case c.DedupeSize < 1 || c.MaxRankingLimit < 1:
		return fmt.Errorf("dedupe_size and max_ranking_limit must be positive: %w", ErrInvalidConfig)
	case c.MetricsNamespace == "" || c.MetricsSubsystem == "":
		return fmt.Errorf("metrics_namespace and metrics_subsystem must not be empty: %w", ErrInvalidConfig)
	case c.SyncMaxRetries < 0:
		return fmt.Errorf("sync_max_retries must not be negative: %w", ErrInvalidConfig)
	}
	switch c.PersistenceDriver {
	case "memory":
	case "sqlite", "postgres":
		if c.PersistenceDSN == "" {
			return fmt.Errorf("persistence_dsn is required for %s: %w", c.PersistenceDriver, ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("persistence_driver %q: %w", c.PersistenceDriver, ErrInvalidConfig)
	}
	return nil
}
