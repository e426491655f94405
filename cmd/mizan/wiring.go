package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/metrics"
	"github.com/opensource-food/mizan/internal/repository"
)

// openRepository opens the configured SQL repository.
func openRepository(cfg domain.RepositoryConfig) (*repository.SQLRepository, error) {
	repo, err := repository.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize repository: %w", err)
	}
	return repo, nil
}

// ruleView returns what the engine reads: the primary repository, with the
// legacy additive table beneath it when the fallback is enabled.
func ruleView(primary domain.RuleRepository, useLegacy bool, m *metrics.Metrics) domain.RuleRepository {
	if !useLegacy {
		return primary
	}
	layered := repository.NewLayered(primary, repository.NewStatic(corpus.LegacySet()))
	layered.OnFallback = func(layer int, codes []string) {
		m.AdditiveFallback(len(codes))
		slog.Debug("additives resolved from legacy table",
			"layer", layer,
			"codes", codes,
		)
	}
	return layered
}

// seedIfEmpty writes the built-in corpus into a database with no ingredient rules.
func seedIfEmpty(ctx context.Context, repo domain.Repository) error {
	rules, err := repo.FetchActiveIngredientRulings(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect rule corpus: %w", err)
	}
	if len(rules) > 0 {
		return nil
	}

	stats, err := repository.Seed(ctx, repo, corpus.Default())
	if err != nil {
		return err
	}
	slog.Info("empty database seeded with built-in corpus",
		"corpus_version", corpus.Version,
		"additives", stats.Additives,
		"madhab_rulings", stats.MadhabRulings,
		"ingredient_rulings", stats.IngredientRulings,
	)
	return nil
}
