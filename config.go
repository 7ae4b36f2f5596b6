package eventsync

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for configurations a run cannot execute.
var ErrInvalidConfig = errors.New("eventsync: invalid config")

const (
	DefaultMaxEvents = 250
	DefaultInterval  = time.Second
	DefaultMinBurst  = 1
	DefaultMaxBurst  = 30
	DefaultThreshold = 0.85
)

// Config holds the parameters of a single run.
type Config struct {
	MaxEvents   int           `yaml:"max_events"`   // per-kind budget
	Interval    time.Duration `yaml:"interval"`     // time between ticks
	SyncLatency time.Duration `yaml:"sync_latency"` // durable sink delay
	MinBurst    int           `yaml:"min_burst"`
	MaxBurst    int           `yaml:"max_burst"`
	Threshold   float64       `yaml:"threshold"` // minimum success rate per kind
}

// DefaultConfig returns the canonical run parameters.
func DefaultConfig() Config {
	return Config{
		MaxEvents:   DefaultMaxEvents,
		Interval:    DefaultInterval,
		SyncLatency: DefaultSyncLatency,
		MinBurst:    DefaultMinBurst,
		MaxBurst:    DefaultMaxBurst,
		Threshold:   DefaultThreshold,
	}
}

// Validate checks that the run is executable and terminates.
func (c Config) Validate() error {
	switch {
	case c.MaxEvents < 0:
		return fmt.Errorf("%w: max_events must be >= 0, got %d", ErrInvalidConfig, c.MaxEvents)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be > 0, got %s", ErrInvalidConfig, c.Interval)
	case c.SyncLatency < 0:
		return fmt.Errorf("%w: sync_latency must be >= 0, got %s", ErrInvalidConfig, c.SyncLatency)
	case c.MinBurst < 1:
		return fmt.Errorf("%w: min_burst must be >= 1, got %d", ErrInvalidConfig, c.MinBurst)
	case c.MaxBurst < c.MinBurst:
		return fmt.Errorf("%w: max_burst %d below min_burst %d", ErrInvalidConfig, c.MaxBurst, c.MinBurst)
	case c.Threshold <= 0 || c.Threshold > 1:
		return fmt.Errorf("%w: threshold must be in (0, 1], got %g", ErrInvalidConfig, c.Threshold)
	}
	return nil
}

// LoadFile overlays the YAML document at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// FromEnv overlays EVENTSYNC_* environment variables onto base.
func FromEnv(base Config) (Config, error) {
	cfg := base
	var err error
	if cfg.MaxEvents, err = envInt("EVENTSYNC_MAX_EVENTS", cfg.MaxEvents); err != nil {
		return base, err
	}
	if cfg.Interval, err = envDuration("EVENTSYNC_INTERVAL", cfg.Interval); err != nil {
		return base, err
	}
	if cfg.SyncLatency, err = envDuration("EVENTSYNC_SYNC_LATENCY", cfg.SyncLatency); err != nil {
		return base, err
	}
	if cfg.MinBurst, err = envInt("EVENTSYNC_MIN_BURST", cfg.MinBurst); err != nil {
		return base, err
	}
	if cfg.MaxBurst, err = envInt("EVENTSYNC_MAX_BURST", cfg.MaxBurst); err != nil {
		return base, err
	}
	if cfg.Threshold, err = envFloat("EVENTSYNC_THRESHOLD", cfg.Threshold); err != nil {
		return base, err
	}
	return cfg, nil
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return f, nil
}
