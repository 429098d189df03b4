// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing or malformed, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DedupPolicy selects how the deduplicator scopes its seen-set.
type DedupPolicy string

const (
	// DedupCrossSource keeps the first listing per normalized URL across all sources.
	DedupCrossSource DedupPolicy = "cross-source"
	// DedupPerSource only collapses repeats coming from the same source.
	DedupPerSource DedupPolicy = "per-source"
)

// ParseDedupPolicy validates a raw policy name.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch p := DedupPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DedupCrossSource, DedupPerSource:
		return p, nil
	}
	return "", fmt.Errorf("unknown dedup policy %q", s)
}

// Config holds all runtime configuration for the aggregator service.
type Config struct {
	DatabaseURL string
	RedisURL    string
	QueueKey    string

	ForcedLocation string // every request is searched with this location
	Country        string // stamped on every canonical listing

	BatchSize       int           // sources run concurrently per batch
	InterBatchDelay time.Duration // pause between source batches
	InterPageDelay  time.Duration // pause between pages of one source
	DedupPolicy     DedupPolicy

	InterJobDelay    time.Duration // pause after each processed request
	EmptyPollLimit   int           // consecutive empty polls before exit
	EmptyPollBackoff time.Duration

	SourcesFile    string // optional YAML source table
	ChromePath     string // optional Chrome/Chromium binary
	ScriptedScroll bool
	HostRatePerSec float64 // direct-mode request shaping per host, 0 disables

	MetricsPort       string // empty disables the /health + /metrics server
	LogLevel          string
	MaxParallelShards int
	ScheduleSpec      string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		RedisURL:       redisURL,
		QueueKey:       envOr("QUEUE_KEY", "link-request-queue"),
		ForcedLocation: envOr("FORCED_LOCATION", "United States"),
		SourcesFile:    os.Getenv("SOURCES_FILE"),
		ChromePath:     os.Getenv("CHROME_PATH"),
		MetricsPort:    os.Getenv("METRICS_PORT"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		ScheduleSpec:   envOr("SCHEDULE_SPEC", "0 5,17 * * *"),
	}
	cfg.Country = envOr("COUNTRY", cfg.ForcedLocation)

	var err error
	if cfg.BatchSize, err = positiveInt("BATCH_SIZE", 4); err != nil {
		return nil, err
	}
	if cfg.EmptyPollLimit, err = positiveInt("EMPTY_POLL_LIMIT", 3); err != nil {
		return nil, err
	}
	if cfg.MaxParallelShards, err = positiveInt("MAX_PARALLEL_SHARDS", 4); err != nil {
		return nil, err
	}
	if cfg.InterBatchDelay, err = duration("INTER_BATCH_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.InterPageDelay, err = duration("INTER_PAGE_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.InterJobDelay, err = duration("INTER_JOB_DELAY", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.EmptyPollBackoff, err = duration("EMPTY_POLL_BACKOFF", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.DedupPolicy, err = ParseDedupPolicy(envOr("DEDUP_POLICY", string(DedupCrossSource))); err != nil {
		return nil, fmt.Errorf("DEDUP_POLICY: %w", err)
	}

	if s := os.Getenv("SCRIPTED_SCROLL"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("SCRIPTED_SCROLL must be a boolean, got %q", s)
		}
		cfg.ScriptedScroll = v
	}

	cfg.HostRatePerSec = 1
	if s := os.Getenv("HOST_RATE_PER_SEC"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("HOST_RATE_PER_SEC must be a non-negative number, got %q", s)
		}
		cfg.HostRatePerSec = v
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, s)
	}
	return v, nil
}
