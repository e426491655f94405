package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/matcher"
	"github.com/opensource-food/mizan/internal/metrics"
)

// RuleSnapshot is an immutable set of compiled ingredient rules.
type RuleSnapshot struct {
	Rules       []*matcher.CompiledRule
	Quarantined []matcher.Quarantined
	LoadedAt    time.Time
}

// RuleCache serves the active ingredient rules and reloads them lazily once
// the snapshot is older than its TTL. Readers always see a complete snapshot.
// Concurrent stale readers may each reload; the last one to finish wins.
type RuleCache struct {
	repo    domain.RuleRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	snapshot *RuleSnapshot
}

// NewRuleCache creates an empty cache. The first Snapshot call loads the rules.
func NewRuleCache(repo domain.RuleRepository, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *RuleCache {
	if ttl <= 0 {
		ttl = domain.DefaultRuleCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleCache{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
		metrics: m,
	}
}

// Snapshot returns the current rules, reloading them first when stale.
func (c *RuleCache) Snapshot(ctx context.Context) (*RuleSnapshot, error) {
	if s := c.fresh(); s != nil {
		return s, nil
	}
	return c.Refresh(ctx)
}

// RefreshIfStale reloads the rules only when the snapshot is missing or expired.
func (c *RuleCache) RefreshIfStale(ctx context.Context) error {
	_, err := c.Snapshot(ctx)
	return err
}

// Refresh unconditionally reloads and compiles the active rules.
// On failure the previous snapshot is kept.
func (c *RuleCache) Refresh(ctx context.Context) (*RuleSnapshot, error) {
	rules, err := c.repo.FetchActiveIngredientRulings(ctx)
	if err != nil {
		c.metrics.RuleCacheRefreshed(0, 0, err)
		return nil, fmt.Errorf("failed to load ingredient rules: %w", err)
	}

	compiled, quarantined := matcher.CompileAll(rules, c.logger)
	s := &RuleSnapshot{
		Rules:       compiled,
		Quarantined: quarantined,
		LoadedAt:    c.now(),
	}

	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()

	c.metrics.RuleCacheRefreshed(len(compiled), len(quarantined), nil)
	c.logger.Debug("ingredient rules loaded",
		"rules", len(compiled),
		"quarantined", len(quarantined),
	)
	return s, nil
}

// Invalidate drops the snapshot so the next read reloads.
func (c *RuleCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

// Current returns the loaded snapshot without refreshing, or nil.
func (c *RuleCache) Current() *RuleSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *RuleCache) fresh() *RuleSnapshot {
	c.mu.RLock()
	s := c.snapshot
	c.mu.RUnlock()

	if s == nil || c.now().Sub(s.LoadedAt) >= c.ttl {
		return nil
	}
	return s
}
