// Package engine resolves the halal status of a food product from its
// certification labels, additive tags and ingredient text.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/matcher"
	"github.com/opensource-food/mizan/internal/metrics"
	"github.com/opensource-food/mizan/internal/textnorm"
	"github.com/opensource-food/mizan/internal/verdict"
)

// Version is reported in analysis metadata.
const Version = "1.0.0"

var tracer = otel.Tracer("mizan-engine")

// Normalizer prepares raw ingredient text for matching.
type Normalizer interface {
	Normalize(raw string) string
}

// Config holds optional engine collaborators. Zero values are usable.
type Config struct {
	RuleCacheTTL time.Duration
	Normalizer   Normalizer
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Engine runs the full analysis pipeline. It is safe for concurrent use;
// the only shared state is the rule snapshot.
type Engine struct {
	rules      *RuleCache
	additives  *AdditiveResolver
	certs      CertificationResolver
	processor  *verdict.Processor
	normalizer Normalizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates an engine over repo.
func New(repo domain.RuleRepository, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = textnorm.New()
	}
	return &Engine{
		rules:      NewRuleCache(repo, cfg.RuleCacheTTL, cfg.Logger, cfg.Metrics),
		additives:  NewAdditiveResolver(repo),
		processor:  verdict.NewProcessor(),
		normalizer: cfg.Normalizer,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
}

// Rules returns the engine's rule cache.
func (e *Engine) Rules() *RuleCache {
	return e.rules
}

// Additives returns the engine's additive resolver.
func (e *Engine) Additives() *AdditiveResolver {
	return e.additives
}

// Analyze computes the verdict for one product under opts.
//
// A recognized certification label decides on its own. Otherwise additive
// tags and ingredient text are resolved concurrently, folded into one
// verdict, and the strictness overlay is applied last.
func (e *Engine) Analyze(ctx context.Context, input *domain.ProductInput, opts domain.Options) (domain.HalalAnalysis, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "engine.Analyze",
		trace.WithAttributes(
			attribute.String("product.barcode", input.Barcode),
			attribute.String("options.madhab", string(opts.Madhab)),
			attribute.String("options.strictness", string(opts.Strictness)),
		),
	)
	defer span.End()

	if a, ok := e.certs.Resolve(input.LabelsTags); ok {
		a = verdict.ApplyStrictness(a, opts.Strictness)
		e.finish(span, a, start)
		return a, nil
	}

	var (
		additives []domain.AdditiveResult
		matches   []domain.MatchResult
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		additives, err = e.additives.Resolve(gctx, input.AdditivesTags, opts.Madhab)
		return err
	})

	g.Go(func() error {
		var err error
		matches, err = e.matchIngredients(gctx, input.IngredientsText, opts.Madhab)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.HalalAnalysis{}, fmt.Errorf("analysis failed: %w", err)
	}

	a := e.processor.Process(&verdict.DecisionInput{
		RawText:         input.IngredientsText,
		HasAdditiveTags: len(input.AdditivesTags) > 0,
		Vegan:           input.IsVegan(),
		Additives:       additives,
		Matches:         matches,
	})
	a = verdict.ApplyStrictness(a, opts.Strictness)

	e.finish(span, a, start)
	return a, nil
}

func (e *Engine) matchIngredients(ctx context.Context, raw string, m domain.Madhab) ([]domain.MatchResult, error) {
	if raw == "" {
		return nil, nil
	}
	text := e.normalizer.Normalize(raw)
	if text == "" {
		return nil, nil
	}

	snap, err := e.rules.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return matcher.Results(matcher.Resolve(text, snap.Rules), m), nil
}

func (e *Engine) finish(span trace.Span, a domain.HalalAnalysis, start time.Time) {
	span.SetAttributes(
		attribute.String("analysis.status", string(a.Status)),
		attribute.String("analysis.tier", string(a.Tier)),
		attribute.Float64("analysis.confidence", a.Confidence),
		attribute.Int("analysis.reasons", len(a.Reasons)),
	)
	e.metrics.ObserveAnalysis(string(a.Status), string(a.Tier), a.AnalysisSource, time.Since(start))
	e.logger.Debug("product analyzed",
		"status", a.Status,
		"tier", a.Tier,
		"source", a.AnalysisSource,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
