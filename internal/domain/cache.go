package domain

import (
	"context"
	"time"
)

// Cache holds finished analyses under keys built from the input fingerprint
// and the analysis options. A miss is (nil, nil).
type Cache interface {
	GetAnalysis(ctx context.Context, key string) (*AnalysisRecord, error)
	SetAnalysis(ctx context.Context, key string, rec *AnalysisRecord, ttl time.Duration) error

	// Purge drops every key starting with prefix and reports how many were
	// removed. Rule edits purge all analyses because any of them may be stale.
	Purge(ctx context.Context, prefix string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is "memory" (one in-process tier) or "redis".
	Type string `yaml:"type"`

	// In-process LRU tier.
	LocalMaxSize int           `yaml:"localMaxSize"`
	LocalTTL     time.Duration `yaml:"localTTL"`

	// RedisAddr is host:port or a redis:// URL.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`

	// EnableTwoPhase puts the LRU tier in front of Redis.
	EnableTwoPhase bool `yaml:"enableTwoPhase"`
}
