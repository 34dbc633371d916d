// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"time"

	"github.com/okian/judgeboard/internal/adapters/fetcher"
	"github.com/okian/judgeboard/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`
	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// StorageDriver selects the store: sqlite or memory.
	StorageDriver string `koanf:"storage_driver" validate:"oneof=sqlite memory"`
	// DatabasePath is the SQLite file, or ":memory:".
	DatabasePath string `koanf:"database_path" validate:"required_if=StorageDriver sqlite"`

	// MaxInFlight bounds members reconciled concurrently.
	MaxInFlight int `koanf:"max_in_flight" validate:"gte=1"`
	// FetchTimeoutMS bounds one fetch call.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms" validate:"gte=1"`
	// StorageTimeoutMS bounds one storage call.
	StorageTimeoutMS int `koanf:"storage_timeout_ms" validate:"gte=1"`
	// RefreshIntervalS is the period of scheduled cycles; 0 disables them.
	RefreshIntervalS int `koanf:"refresh_interval_s" validate:"gte=0"`
	// ShutdownTimeoutS bounds graceful shutdown.
	ShutdownTimeoutS int `koanf:"shutdown_timeout_s" validate:"gte=1"`

	// QueueSize bounds pending single-member refreshes.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`
	// WorkerCount sets the number of refresh workers.
	WorkerCount int `koanf:"worker_count" validate:"gte=1"`

	LeetCodeBaseURL   string  `koanf:"leetcode_base_url" validate:"required,url"`
	CodeforcesBaseURL string  `koanf:"codeforces_base_url" validate:"required,url"`
	FetchRatePerSec   float64 `koanf:"fetch_rate_per_sec" validate:"gte=0"`
	FetchBurst        int     `koanf:"fetch_burst" validate:"gte=1"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit" validate:"gte=1"`

	// Scoring holds the per-source formula weights.
	Scoring scoring.Weights `koanf:"scoring"`

	// MetricsNamespace and MetricsSubsystem prefix every metric name.
	MetricsNamespace string `koanf:"metrics_namespace" validate:"required"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`
	// MetricsLabels are constant labels attached to every metric.
	MetricsLabels map[string]string `koanf:"metrics_labels"`
	// MetricsLatencyBucketsMS overrides the latency histogram buckets.
	MetricsLatencyBucketsMS []float64 `koanf:"metrics_latency_buckets_ms" validate:"omitempty,dive,gt=0"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		StorageDriver:       "sqlite",
		DatabasePath:        "judgeboard.db",
		MaxInFlight:         8,
		FetchTimeoutMS:      10_000,
		StorageTimeoutMS:    5_000,
		RefreshIntervalS:    3_600,
		ShutdownTimeoutS:    15,
		QueueSize:           1_024,
		WorkerCount:         4,
		LeetCodeBaseURL:     fetcher.DefaultLeetCodeBaseURL,
		CodeforcesBaseURL:   fetcher.DefaultCodeforcesBaseURL,
		FetchRatePerSec:     2,
		FetchBurst:          4,
		MaxLeaderboardLimit: 100,
		Scoring:             scoring.DefaultWeights(),
		MetricsNamespace:    "judgeboard",
		MetricsSubsystem:    "leaderboard",
	}
}

// FetchTimeout returns FetchTimeoutMS as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// StorageTimeout returns StorageTimeoutMS as a duration.
func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.StorageTimeoutMS) * time.Millisecond
}

// RefreshInterval returns RefreshIntervalS as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalS) * time.Second
}

// ShutdownTimeout returns ShutdownTimeoutS as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}
