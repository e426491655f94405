package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-food/mizan/internal/domain"
)

// AdditiveResolver turns OpenFoodFacts additive tags into resolved additives.
type AdditiveResolver struct {
	repo domain.RuleRepository
}

// NewAdditiveResolver creates a resolver over repo. Layer a legacy table under
// repo with repository.NewLayered to resolve codes the primary store lacks.
func NewAdditiveResolver(repo domain.RuleRepository) *AdditiveResolver {
	return &AdditiveResolver{repo: repo}
}

// Resolve canonicalizes and dedupes tags, then resolves them with one batched
// record query and one batched ruling query. Results follow the first
// occurrence of each code in tags; unknown codes are dropped.
func (r *AdditiveResolver) Resolve(ctx context.Context, tags []string, m domain.Madhab) ([]domain.AdditiveResult, error) {
	codes := canonicalCodes(tags)
	if len(codes) == 0 {
		return nil, nil
	}

	records, err := r.repo.FetchAdditivesByCodes(ctx, codes)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch additives: %w", err)
	}

	byCode := make(map[string]domain.AdditiveRecord, len(records))
	for _, rec := range records {
		byCode[strings.ToUpper(rec.Code)] = rec
	}

	found := make([]string, 0, len(byCode))
	for _, c := range codes {
		if _, ok := byCode[c]; ok {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}

	overrides := make(map[string]domain.MadhabRuling)
	if m.IsSchool() {
		rulings, err := r.repo.FetchMadhabRulings(ctx, found, m)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch madhab rulings: %w", err)
		}
		for _, mr := range rulings {
			overrides[strings.ToUpper(mr.Key)] = mr
		}
	}

	out := make([]domain.AdditiveResult, 0, len(found))
	for _, c := range found {
		rec := byCode[c]
		res := domain.AdditiveResult{
			Code:        rec.Code,
			Name:        rec.Name,
			Category:    rec.Category,
			Status:      rec.Status,
			Explanation: rec.Explanation,
			RiskFlags:   rec.RiskFlags,
		}

		if mr, ok := overrides[c]; ok {
			// A nil ruling defers the status but may still carry the school's note.
			if mr.Ruling != nil && *mr.Ruling != "" {
				res.Status = domain.ResolveRuling(rec.Status, mr.Ruling, m)
				res.Madhab = m
			}
			if mr.Explanation != "" {
				res.Explanation = fmt.Sprintf("%s (%s)", mr.Explanation, m.DisplayName())
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func canonicalCodes(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	codes := make([]string, 0, len(tags))
	for _, t := range tags {
		c := domain.CanonicalAdditiveCode(t)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	return codes
}
