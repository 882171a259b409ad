// Package config defines service configuration and its loading layers.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CatalogPath points at the question catalog (YAML or JSON).
	CatalogPath string `koanf:"catalog_path"`

	// FrontendOrigin is the allowed CORS origin; "*" allows any.
	FrontendOrigin string `koanf:"frontend_origin"`

	// QueueSize bounds the in-memory rescore queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of rescore workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the submission id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the assessment store.
	ShardCount int `koanf:"shard_count"`

	// Benchmark averages reported while no assessment has answers for a pillar.
	BenchmarkE float64 `koanf:"benchmark_e"`
	BenchmarkS float64 `koanf:"benchmark_s"`
	BenchmarkG float64 `koanf:"benchmark_g"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		CatalogPath:    "./data/shift_matrix.yaml",
		FrontendOrigin: "*",
		QueueSize:      10_000,
		WorkerCount:    runtime.NumCPU() * 2,
		DedupeSize:     50_000,
		ShardCount:     8,
		BenchmarkE:     3.4,
		BenchmarkS:     3.1,
		BenchmarkG:     3.5,
	}
}

// Validate reports the first invalid setting, wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.CatalogPath) == "":
		return fmt.Errorf("%w: catalog_path must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.ShardCount <= 0:
		return fmt.Errorf("%w: shard_count must be positive, got %d", ErrInvalidConfig, c.ShardCount)
	}
	for name, v := range map[string]float64{"benchmark_e": c.BenchmarkE, "benchmark_s": c.BenchmarkS, "benchmark_g": c.BenchmarkG} {
		if v < 0 || v > 5 {
			return fmt.Errorf("%w: %s must be within [0,5], got %v", ErrInvalidConfig, name, v)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
