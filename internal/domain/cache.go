package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Used to keep run
// summaries hot for the dashboard and alert consumers. Supports
// two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetSummary retrieves a cached run summary.
	GetSummary(ctx context.Context, key string) (*Summary, error)

	// SetSummary caches a run summary.
	SetSummary(ctx context.Context, key string, summary *Summary, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}

// SummaryKeyLatest is the cache key under which the most recent run
// summary is stored.
const SummaryKeyLatest = "summary:latest"

// SummaryKey returns the cache key for one run's summary.
func SummaryKey(runID string) string {
	return "summary:run:" + runID
}
