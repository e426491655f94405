// Package retention prunes stored analyses on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-food/mizan/internal/metrics"
)

// Store is the part of the repository the pruner needs.
type Store interface {
	DeleteAnalysesBefore(ctx context.Context, before time.Time) (int64, error)
}

// Pruner deletes analyses older than MaxAge.
type Pruner struct {
	store   Store
	maxAge  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a pruner. A non-positive maxAge keeps analyses forever.
func NewPruner(store Store, maxAge time.Duration, m *metrics.Metrics) *Pruner {
	return &Pruner{
		store:   store,
		maxAge:  maxAge,
		metrics: m,
		logger:  slog.Default().With("component", "retention"),
		now:     time.Now,
	}
}

// Prune deletes analyses created before now minus MaxAge and returns the count.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	if p.maxAge <= 0 {
		return 0, nil
	}

	cutoff := p.now().Add(-p.maxAge)
	deleted, err := p.store.DeleteAnalysesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete analyses before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	p.metrics.RetentionPruned(deleted)
	p.logger.Debug("analyses pruned",
		"cutoff", cutoff,
		"deleted_count", deleted,
	)
	return deleted, nil
}
