package matcher

import (
	"sort"
	"strings"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/textnorm"
)

// Resolve evaluates every rule against text and returns the surviving hits,
// highest priority first.
//
// A hit is dropped when its pattern was already emitted, or when another hit
// declares it as OverridesKeyword with a higher priority. Equal priorities
// keep the order of rules.
func Resolve(text string, rules []*CompiledRule) []*CompiledRule {
	if text == "" || len(rules) == 0 {
		return nil
	}

	folded := textnorm.Fold(text)

	var hits []*CompiledRule
	maxOverride := make(map[string]int)

	for _, r := range rules {
		if !r.Matches(text, folded) {
			continue
		}
		hits = append(hits, r)

		if kw := strings.ToLower(r.Rule.OverridesKeyword); kw != "" {
			if p, ok := maxOverride[kw]; !ok || r.Rule.Priority > p {
				maxOverride[kw] = r.Rule.Priority
			}
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Rule.Priority > hits[j].Rule.Priority
	})

	seen := make(map[string]bool, len(hits))
	out := hits[:0]
	for _, h := range hits {
		if seen[h.key] {
			continue
		}
		if p, ok := maxOverride[h.key]; ok && p > h.Rule.Priority {
			continue
		}
		seen[h.key] = true
		out = append(out, h)
	}

	return out
}

// Results projects resolved hits onto one madhab.
func Results(hits []*CompiledRule, m domain.Madhab) []domain.MatchResult {
	out := make([]domain.MatchResult, 0, len(hits))
	for _, h := range hits {
		out = append(out, domain.MatchResult{
			RuleID:       h.Rule.ID,
			Pattern:      h.Rule.Pattern,
			Ruling:       h.Rule.RulingFor(m),
			Confidence:   h.Rule.Confidence,
			Priority:     h.Rule.Priority,
			Category:     h.Rule.Category,
			Explanation:  h.Rule.Explanation,
			AdditiveCode: h.Rule.AdditiveCode,
		})
	}
	return out
}
