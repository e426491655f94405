// Package corpus holds the built-in rule corpus and the static lookup tables
// the engine consults: certifiers, generic halal labels and the legacy
// additive table.
package corpus

import (
	"fmt"
	"os"

	"github.com/opensource-food/mizan/internal/domain"
	"gopkg.in/yaml.v3"
)

// Version identifies the built-in corpus revision.
const Version = "2026.10"

// Set is a complete rule corpus: additive records, their school rulings and
// the ingredient pattern rules.
type Set struct {
	Version           string                    `yaml:"version"`
	Additives         []domain.AdditiveRecord   `yaml:"additives"`
	MadhabRulings     []domain.MadhabRuling     `yaml:"madhabRulings"`
	IngredientRulings []domain.IngredientRuling `yaml:"ingredientRulings"`
}

// Default returns a fresh copy of the built-in corpus.
func Default() *Set {
	s := &Set{
		Version:           Version,
		Additives:         make([]domain.AdditiveRecord, len(additives)),
		MadhabRulings:     make([]domain.MadhabRuling, len(madhabRulings)),
		IngredientRulings: make([]domain.IngredientRuling, len(ingredientRulings)),
	}
	copy(s.Additives, additives)
	copy(s.MadhabRulings, madhabRulings)
	copy(s.IngredientRulings, ingredientRulings)
	// Built-in rules are always active.
	for i := range s.IngredientRulings {
		s.IngredientRulings[i].Active = true
	}
	return s
}

// LoadFile reads a YAML corpus from disk.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML corpus.
// Ingredient rules without an explicit "active" key are active.
func Parse(data []byte) (*Set, error) {
	var raw struct {
		Version           string                   `yaml:"version"`
		Additives         []domain.AdditiveRecord  `yaml:"additives"`
		MadhabRulings     []domain.MadhabRuling    `yaml:"madhabRulings"`
		IngredientRulings []map[string]interface{} `yaml:"ingredientRulings"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	s := &Set{
		Version:       raw.Version,
		Additives:     raw.Additives,
		MadhabRulings: raw.MadhabRulings,
	}

	for i, m := range raw.IngredientRulings {
		if _, ok := m["active"]; !ok {
			m["active"] = true
		}
		// Round-trip through YAML to reuse the struct tags.
		b, err := yaml.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("ingredient rule %d: %w", i, err)
		}
		var r domain.IngredientRuling
		if err := yaml.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("ingredient rule %d: %w", i, err)
		}
		s.IngredientRulings = append(s.IngredientRulings, r)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the shape of the corpus. Pattern compilation is left to
// the matcher, which quarantines bad rules instead of rejecting the set.
func (s *Set) Validate() error {
	codes := make(map[string]bool, len(s.Additives))
	for _, a := range s.Additives {
		if a.Code == "" {
			return fmt.Errorf("additive with empty code")
		}
		if a.Code != domain.CanonicalAdditiveCode(a.Code) {
			return fmt.Errorf("additive %s: code is not canonical", a.Code)
		}
		if codes[a.Code] {
			return fmt.Errorf("additive %s: duplicate code", a.Code)
		}
		if !a.Status.Valid() {
			return fmt.Errorf("additive %s: invalid status %q", a.Code, a.Status)
		}
		codes[a.Code] = true
	}

	for _, r := range s.MadhabRulings {
		if r.Key == "" {
			return fmt.Errorf("madhab ruling with empty key")
		}
		if !r.Madhab.IsSchool() {
			return fmt.Errorf("madhab ruling %s: %q is not a school", r.Key, r.Madhab)
		}
		if r.Ruling != nil && !r.Ruling.Valid() {
			return fmt.Errorf("madhab ruling %s/%s: invalid ruling %q", r.Key, r.Madhab, *r.Ruling)
		}
	}

	ids := make(map[string]bool, len(s.IngredientRulings))
	for _, r := range s.IngredientRulings {
		if r.ID == "" {
			return fmt.Errorf("ingredient rule %q: empty id", r.Pattern)
		}
		if ids[r.ID] {
			return fmt.Errorf("ingredient rule %s: duplicate id", r.ID)
		}
		ids[r.ID] = true
		if !r.MatchType.Valid() {
			return fmt.Errorf("ingredient rule %s: invalid match type %q", r.ID, r.MatchType)
		}
		if !r.RulingDefault.Valid() {
			return fmt.Errorf("ingredient rule %s: invalid default ruling %q", r.ID, r.RulingDefault)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return fmt.Errorf("ingredient rule %s: confidence %v outside [0,1]", r.ID, r.Confidence)
		}
	}
	return nil
}
