package repository

import (
	"context"
	"fmt"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
)

// SeedStats counts the records written by Seed.
type SeedStats struct {
	Additives         int `json:"additives"`
	MadhabRulings     int `json:"madhabRulings"`
	IngredientRulings int `json:"ingredientRulings"`
}

// Seed upserts a corpus into the repository. Ingredient rules are written in
// corpus order so new rules keep their tie-break position.
func Seed(ctx context.Context, repo domain.Repository, set *corpus.Set) (SeedStats, error) {
	var stats SeedStats
	if set == nil {
		return stats, fmt.Errorf("%w: corpus is required", ErrInvalidInput)
	}

	for i := range set.Additives {
		if err := repo.SaveAdditive(ctx, &set.Additives[i]); err != nil {
			return stats, fmt.Errorf("seed additive %s: %w", set.Additives[i].Code, err)
		}
		stats.Additives++
	}
	for i := range set.MadhabRulings {
		mr := &set.MadhabRulings[i]
		if err := repo.SaveMadhabRuling(ctx, mr); err != nil {
			return stats, fmt.Errorf("seed madhab ruling %s/%s: %w", mr.Key, mr.Madhab, err)
		}
		stats.MadhabRulings++
	}
	for i := range set.IngredientRulings {
		if err := repo.SaveIngredientRuling(ctx, &set.IngredientRulings[i]); err != nil {
			return stats, fmt.Errorf("seed ingredient rule %s: %w", set.IngredientRulings[i].ID, err)
		}
		stats.IngredientRulings++
	}
	return stats, nil
}
