package domain

import "strings"

// MatchType selects how an ingredient pattern is tested against text.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchContains     MatchType = "contains"
	MatchWordBoundary MatchType = "word_boundary"
	MatchRegex        MatchType = "regex"
)

// Valid reports whether t is a known match type.
func (t MatchType) Valid() bool {
	switch t {
	case MatchExact, MatchContains, MatchWordBoundary, MatchRegex:
		return true
	}
	return false
}

// Additive risk flags.
const (
	RiskAnimalOrigin = "animal_origin"
	RiskInsectOrigin = "insect_origin"
	RiskAlcohol      = "alcohol"
	RiskPork         = "pork"
)

// AdditiveRecord is the corpus entry for one E-number.
// Code is canonical: uppercase, no variant suffix (E322, never E322i).
type AdditiveRecord struct {
	Code        string   `json:"code" yaml:"code"`
	Name        string   `json:"name" yaml:"name"`
	Category    string   `json:"category" yaml:"category"`
	Status      Status   `json:"status" yaml:"status"`
	RiskFlags   []string `json:"riskFlags,omitempty" yaml:"riskFlags,omitempty"`
	Explanation string   `json:"explanation" yaml:"explanation"`
}

// MadhabRuling is a school-specific ruling keyed by (additive code or pattern, madhab).
// A nil Ruling defers to the record's default status.
type MadhabRuling struct {
	Key         string  `json:"key" yaml:"key"`
	Madhab      Madhab  `json:"madhab" yaml:"madhab"`
	Ruling      *Status `json:"ruling,omitempty" yaml:"ruling,omitempty"`
	Explanation string  `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Reference   string  `json:"reference,omitempty" yaml:"reference,omitempty"`
}

// IngredientRuling is a pattern rule evaluated against normalized ingredient text.
type IngredientRuling struct {
	ID        string    `json:"id" yaml:"id"`
	Pattern   string    `json:"pattern" yaml:"pattern"`
	MatchType MatchType `json:"matchType" yaml:"matchType"`

	// Priority totally orders candidate matches; higher wins.
	Priority int `json:"priority" yaml:"priority"`

	RulingDefault Status  `json:"rulingDefault" yaml:"rulingDefault"`
	Hanafi        *Status `json:"hanafi,omitempty" yaml:"hanafi,omitempty"`
	Shafii        *Status `json:"shafii,omitempty" yaml:"shafii,omitempty"`
	Maliki        *Status `json:"maliki,omitempty" yaml:"maliki,omitempty"`
	Hanbali       *Status `json:"hanbali,omitempty" yaml:"hanbali,omitempty"`

	Confidence  float64 `json:"confidence" yaml:"confidence"`
	Category    string  `json:"category" yaml:"category"`
	Explanation string  `json:"explanation" yaml:"explanation"`

	// OverridesKeyword names a more generic pattern this rule supersedes
	// when both match (compared case-insensitively).
	OverridesKeyword string `json:"overridesKeyword,omitempty" yaml:"overridesKeyword,omitempty"`

	// AdditiveCode links the rule to the E-number of the same compound.
	AdditiveCode string `json:"additiveCode,omitempty" yaml:"additiveCode,omitempty"`

	Active bool `json:"active" yaml:"active"`
}

// SchoolRuling returns the rule's own field for a school, nil when absent.
func (r *IngredientRuling) SchoolRuling(m Madhab) *Status {
	switch m {
	case MadhabHanafi:
		return r.Hanafi
	case MadhabShafii:
		return r.Shafii
	case MadhabMaliki:
		return r.Maliki
	case MadhabHanbali:
		return r.Hanbali
	}
	return nil
}

// RulingFor projects the rule's rulings onto one madhab.
func (r *IngredientRuling) RulingFor(m Madhab) Status {
	return ResolveRuling(r.RulingDefault, r.SchoolRuling(m), m)
}

// ResolveRuling is the madhab resolution shared by additive and ingredient rulings:
// general always yields the default, and a missing school ruling defers to it.
func ResolveRuling(def Status, school *Status, m Madhab) Status {
	if m == MadhabGeneral || school == nil || *school == "" {
		return def
	}
	return *school
}

// StatusPtr returns a pointer to s, for building optional rulings.
func StatusPtr(s Status) *Status {
	return &s
}

// CanonicalAdditiveCode turns an additive tag such as "en:e322i" into its
// canonical code "E322": the locale prefix and one trailing lowercase variant
// letter after a digit are dropped, the rest is uppercased.
func CanonicalAdditiveCode(tag string) string {
	s := strings.TrimSpace(tag)
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}
	if n := len(s); n >= 2 && s[n-1] >= 'a' && s[n-1] <= 'z' && s[n-2] >= '0' && s[n-2] <= '9' {
		s = s[:n-1]
	}
	return strings.ToUpper(s)
}
