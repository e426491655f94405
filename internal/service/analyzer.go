// Package service runs one product analysis end to end: cache lookup, engine,
// alert rules, persistence. The HTTP API and the bus worker share it.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-food/mizan/internal/alerts"
	"github.com/opensource-food/mizan/internal/cache"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/engine"
	"github.com/opensource-food/mizan/internal/metrics"
)

// Analyzer wires the engine to the optional cache, alert engine and repository.
// Any of cache, alerts and repo may be nil.
type Analyzer struct {
	engine   *engine.Engine
	repo     domain.Repository
	cache    domain.Cache
	alerts   *alerts.Engine
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// Config holds the analyzer collaborators.
type Config struct {
	Engine   *engine.Engine
	Repo     domain.Repository
	Cache    domain.Cache
	Alerts   *alerts.Engine
	Metrics  *metrics.Metrics
	CacheTTL time.Duration
	Logger   *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		engine:   cfg.Engine,
		repo:     cfg.Repo,
		cache:    cfg.Cache,
		alerts:   cfg.Alerts,
		metrics:  cfg.Metrics,
		cacheTTL: cfg.CacheTTL,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Request is one analysis request.
type Request struct {
	Input   domain.ProductInput
	Options domain.Options
	TraceID string
}

// Result is a finished analysis.
type Result struct {
	Record   *domain.AnalysisRecord
	Triggers []alerts.Trigger
	Cached   bool
}

// Analyze answers from the cache when the same input and options were
// analyzed recently; otherwise it runs the engine, evaluates alert rules,
// stores the record and caches it. Storage and cache failures are logged,
// never returned.
func (a *Analyzer) Analyze(ctx context.Context, req *Request) (*Result, error) {
	start := a.now()
	hash := cache.InputHash(&req.Input)
	key := cache.AnalysisKey(hash, req.Options)

	if rec := a.cached(ctx, key); rec != nil {
		return &Result{Record: rec, Triggers: triggersOf(rec), Cached: true}, nil
	}

	analysis, err := a.engine.Analyze(ctx, &req.Input, req.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze product: %w", err)
	}

	rec := &domain.AnalysisRecord{
		ID:        uuid.New().String(),
		Barcode:   req.Input.Barcode,
		InputHash: hash,
		Options:   req.Options,
		Analysis:  analysis,
		CreatedAt: start.UTC(),
		Metadata: domain.AnalysisMetadata{
			TraceID:       req.TraceID,
			RulesMatched:  rulesMatched(analysis),
			EngineVersion: engine.Version,
		},
	}

	var triggers []alerts.Trigger
	if a.alerts != nil {
		triggers = a.alerts.Evaluate(ctx, &alerts.Input{
			Barcode:  req.Input.Barcode,
			Options:  req.Options,
			Analysis: analysis,
		})
		for _, t := range triggers {
			rec.Alerts = append(rec.Alerts, t.RuleID)
		}
	}

	rec.Metadata.TotalMs = a.now().Sub(start).Milliseconds()

	if a.repo != nil {
		if err := a.repo.SaveAnalysis(ctx, rec); err != nil {
			a.logger.Error("failed to save analysis",
				"analysis_id", rec.ID,
				"error", err,
			)
		}
	}

	if a.cache != nil && a.cacheTTL > 0 {
		if err := a.cache.SetAnalysis(ctx, key, rec, a.cacheTTL); err != nil {
			a.logger.Warn("failed to cache analysis",
				"analysis_id", rec.ID,
				"error", err,
			)
		}
	}

	return &Result{Record: rec, Triggers: triggers}, nil
}

func (a *Analyzer) cached(ctx context.Context, key string) *domain.AnalysisRecord {
	if a.cache == nil || a.cacheTTL <= 0 {
		return nil
	}
	rec, err := a.cache.GetAnalysis(ctx, key)
	if err != nil {
		a.logger.Warn("analysis cache lookup failed", "error", err)
		rec = nil
	}
	a.metrics.CacheLookup(rec != nil)
	return rec
}

func triggersOf(rec *domain.AnalysisRecord) []alerts.Trigger {
	var out []alerts.Trigger
	for _, id := range rec.Alerts {
		out = append(out, alerts.Trigger{RuleID: id})
	}
	return out
}

// rulesMatched counts the reasons backed by a rule, label or additive record.
func rulesMatched(a domain.HalalAnalysis) int {
	n := 0
	for _, r := range a.Reasons {
		if r.Kind != domain.ReasonInfo {
			n++
		}
	}
	return n
}
