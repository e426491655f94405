package repository

import (
	"context"
	"strings"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
)

var (
	_ domain.Repository     = (*SQLRepository)(nil)
	_ domain.RuleRepository = (*Static)(nil)
	_ domain.RuleRepository = (*Layered)(nil)
)

// Static is an immutable in-memory rule repository built from a corpus.
// It backs the legacy additive fallback and one-shot CLI analyses.
type Static struct {
	additives map[string]domain.AdditiveRecord
	rulings   map[rulingKey]domain.MadhabRuling
	rules     []domain.IngredientRuling
}

type rulingKey struct {
	key    string
	madhab domain.Madhab
}

// NewStatic indexes a corpus. Additive codes are canonicalized, so variant
// spellings of one code collapse onto a single record; the first one wins.
func NewStatic(set *corpus.Set) *Static {
	s := &Static{
		additives: make(map[string]domain.AdditiveRecord),
		rulings:   make(map[rulingKey]domain.MadhabRuling),
	}
	if set == nil {
		return s
	}

	for _, a := range set.Additives {
		code := domain.CanonicalAdditiveCode(a.Code)
		if _, ok := s.additives[code]; ok {
			continue
		}
		a.Code = code
		s.additives[code] = a
	}
	for _, mr := range set.MadhabRulings {
		s.rulings[rulingKey{strings.ToUpper(mr.Key), mr.Madhab}] = mr
	}
	for _, r := range set.IngredientRulings {
		if r.Active {
			s.rules = append(s.rules, r)
		}
	}
	return s
}

// FetchAdditivesByCodes implements domain.RuleRepository.
func (s *Static) FetchAdditivesByCodes(_ context.Context, codes []string) ([]domain.AdditiveRecord, error) {
	var out []domain.AdditiveRecord
	for _, c := range codes {
		if rec, ok := s.additives[c]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FetchMadhabRulings implements domain.RuleRepository.
func (s *Static) FetchMadhabRulings(_ context.Context, codes []string, madhab domain.Madhab) ([]domain.MadhabRuling, error) {
	if !madhab.IsSchool() {
		return nil, nil
	}
	var out []domain.MadhabRuling
	for _, c := range codes {
		if mr, ok := s.rulings[rulingKey{strings.ToUpper(c), madhab}]; ok {
			out = append(out, mr)
		}
	}
	return out, nil
}

// FetchActiveIngredientRulings implements domain.RuleRepository.
func (s *Static) FetchActiveIngredientRulings(_ context.Context) ([]domain.IngredientRuling, error) {
	out := make([]domain.IngredientRuling, len(s.rules))
	copy(out, s.rules)
	return out, nil
}

// Layered answers rule queries from an ordered list of repositories.
// Additives and madhab rulings come from the first layer that knows the code;
// ingredient rules are merged, earlier layers winning on duplicate IDs.
type Layered struct {
	layers []domain.RuleRepository

	// OnFallback, if set, is called with the codes a lower layer resolved.
	OnFallback func(layer int, codes []string)
}

// NewLayered stacks repositories, highest priority first.
func NewLayered(layers ...domain.RuleRepository) *Layered {
	return &Layered{layers: layers}
}

// FetchAdditivesByCodes asks each layer only for the codes still missing.
func (l *Layered) FetchAdditivesByCodes(ctx context.Context, codes []string) ([]domain.AdditiveRecord, error) {
	var out []domain.AdditiveRecord
	missing := codes

	for i, layer := range l.layers {
		if len(missing) == 0 {
			break
		}
		recs, err := layer.FetchAdditivesByCodes(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			continue
		}

		found := make(map[string]bool, len(recs))
		for _, rec := range recs {
			found[rec.Code] = true
		}
		out = append(out, recs...)

		if i > 0 && l.OnFallback != nil {
			var resolved []string
			for _, c := range missing {
				if found[c] {
					resolved = append(resolved, c)
				}
			}
			l.OnFallback(i, resolved)
		}

		var rest []string
		for _, c := range missing {
			if !found[c] {
				rest = append(rest, c)
			}
		}
		missing = rest
	}
	return out, nil
}

// FetchMadhabRulings asks each layer only for the codes without a ruling yet.
func (l *Layered) FetchMadhabRulings(ctx context.Context, codes []string, madhab domain.Madhab) ([]domain.MadhabRuling, error) {
	var out []domain.MadhabRuling
	missing := codes

	for _, layer := range l.layers {
		if len(missing) == 0 {
			break
		}
		rulings, err := layer.FetchMadhabRulings(ctx, missing, madhab)
		if err != nil {
			return nil, err
		}
		if len(rulings) == 0 {
			continue
		}

		found := make(map[string]bool, len(rulings))
		for _, mr := range rulings {
			found[strings.ToUpper(mr.Key)] = true
		}
		out = append(out, rulings...)

		var rest []string
		for _, c := range missing {
			if !found[strings.ToUpper(c)] {
				rest = append(rest, c)
			}
		}
		missing = rest
	}
	return out, nil
}

// FetchActiveIngredientRulings merges the rule sets of all layers.
func (l *Layered) FetchActiveIngredientRulings(ctx context.Context) ([]domain.IngredientRuling, error) {
	var out []domain.IngredientRuling
	seen := make(map[string]bool)

	for _, layer := range l.layers {
		rules, err := layer.FetchActiveIngredientRulings(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out, nil
}
