// Package cache keeps finished analyses so identical scans are answered
// without running the engine again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-food/mizan/internal/domain"
)

// AnalysisPrefix starts every analysis key.
const AnalysisPrefix = "analysis:"

// Store is one byte-level cache tier.
type Store interface {
	// Load returns nil, nil on a miss.
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, keys ...string) error
	Purge(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ domain.Cache = (*Tiered)(nil)
	_ Store        = (*LRU)(nil)
	_ Store        = (*Redis)(nil)
)

// New builds the cache described by cfg:
//
//	memory                      LRU
//	redis                       Redis
//	redis + enableTwoPhase      LRU (capped at localTTL) in front of Redis
func New(ctx context.Context, cfg domain.CacheConfig) (*Tiered, error) {
	switch cfg.Type {
	case "memory":
		return NewTiered(Tier{Store: NewLRU(cfg.LocalMaxSize)}), nil

	case "redis":
		remote, err := NewRedis(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		if !cfg.EnableTwoPhase {
			return NewTiered(Tier{Store: remote}), nil
		}
		localTTL := cfg.LocalTTL
		if localTTL <= 0 {
			localTTL = 5 * time.Minute
		}
		return NewTiered(
			Tier{Store: NewLRU(cfg.LocalMaxSize), MaxTTL: localTTL},
			Tier{Store: remote},
		), nil

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// NewMemory is a single in-process tier holding at most capacity analyses.
func NewMemory(capacity int) *Tiered {
	return NewTiered(Tier{Store: NewLRU(capacity)})
}

// InputHash fingerprints a product input. Tag order is significant because
// it fixes the order of additive reasons.
func InputHash(input *domain.ProductInput) string {
	data, _ := json.Marshal(input)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AnalysisKey is the cache key of one input analyzed under opts.
func AnalysisKey(inputHash string, opts domain.Options) string {
	return AnalysisPrefix + inputHash + ":" + string(opts.Madhab) + ":" + string(opts.Strictness)
}

// Tier is one level of a Tiered cache. MaxTTL caps how long this tier keeps
// an entry; zero means the caller's TTL applies unchanged.
type Tier struct {
	Store  Store
	MaxTTL time.Duration
}

func (t Tier) ttl(requested time.Duration) time.Duration {
	if t.MaxTTL > 0 && (requested <= 0 || requested > t.MaxTTL) {
		return t.MaxTTL
	}
	return requested
}

// Tiered reads through its tiers fastest first and refills the faster
// tiers on a hit further down. Writes go to every tier. Tiered is safe for
// concurrent use when its stores are.
type Tiered struct {
	tiers []Tier
}

func NewTiered(tiers ...Tier) *Tiered {
	return &Tiered{tiers: tiers}
}

// Tiers exposes the stores, fastest first.
func (c *Tiered) Tiers() []Tier {
	return c.tiers
}

// Get returns the raw value of key, or nil on a miss in every tier.
func (c *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	for i, t := range c.tiers {
		val, err := t.Store.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("cache tier %d: %w", i, err)
		}
		if val == nil {
			continue
		}
		// The remaining lifetime below is unknown, so only tiers with a
		// MaxTTL are refilled. Refill errors are ignored.
		for _, faster := range c.tiers[:i] {
			if faster.MaxTTL > 0 {
				_ = faster.Store.Store(ctx, key, val, faster.MaxTTL)
			}
		}
		return val, nil
	}
	return nil, nil
}

// Set writes key to every tier, stopping at the first failure.
func (c *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	for i, t := range c.tiers {
		if err := t.Store.Store(ctx, key, value, t.ttl(ttl)); err != nil {
			return fmt.Errorf("cache tier %d: %w", i, err)
		}
	}
	return nil
}

func (c *Tiered) Delete(ctx context.Context, keys ...string) error {
	for i, t := range c.tiers {
		if err := t.Store.Remove(ctx, keys...); err != nil {
			return fmt.Errorf("cache tier %d: %w", i, err)
		}
	}
	return nil
}

func (c *Tiered) GetAnalysis(ctx context.Context, key string) (*domain.AnalysisRecord, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return nil, err
	}
	var rec domain.AnalysisRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode cached analysis %s: %w", key, err)
	}
	return &rec, nil
}

func (c *Tiered) SetAnalysis(ctx context.Context, key string, rec *domain.AnalysisRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}

// Purge clears prefix from every tier. The count is the largest any single
// tier reported, since the slowest tier holds a superset of the others.
func (c *Tiered) Purge(ctx context.Context, prefix string) (int, error) {
	most := 0
	for i, t := range c.tiers {
		n, err := t.Store.Purge(ctx, prefix)
		if err != nil {
			return most, fmt.Errorf("cache tier %d: %w", i, err)
		}
		most = max(most, n)
	}
	return most, nil
}

func (c *Tiered) Ping(ctx context.Context) error {
	for i, t := range c.tiers {
		if err := t.Store.Ping(ctx); err != nil {
			return fmt.Errorf("cache tier %d ping failed: %w", i, err)
		}
	}
	return nil
}

// Close closes every tier and returns the first error.
func (c *Tiered) Close() error {
	var first error
	for _, t := range c.tiers {
		if err := t.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
