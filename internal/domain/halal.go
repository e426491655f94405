package domain

import "strings"

// Status is the halal verdict for a product or a single ingredient.
type Status string

const (
	StatusHalal    Status = "halal"
	StatusHaram    Status = "haram"
	StatusDoubtful Status = "doubtful"
	StatusUnknown  Status = "unknown"
)

// Severity orders statuses for worst-case folding.
// halal and unknown share the lowest rank.
func (s Status) Severity() int {
	switch s {
	case StatusHaram:
		return 2
	case StatusDoubtful:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusHalal, StatusHaram, StatusDoubtful, StatusUnknown:
		return true
	}
	return false
}

// Tier is the provenance bucket of a verdict.
type Tier string

const (
	TierCertified     Tier = "certified"
	TierAnalyzedClean Tier = "analyzed_clean"
	TierDoubtful      Tier = "doubtful"
	TierHaram         Tier = "haram"
)

// TierFor derives the tier of an analyzed (non-certified) verdict.
// Status and tier are never set independently of each other.
func TierFor(s Status) Tier {
	switch s {
	case StatusHaram:
		return TierHaram
	case StatusHalal:
		return TierAnalyzedClean
	default:
		return TierDoubtful
	}
}

// Madhab is a school of jurisprudence, or "general" for the school-agnostic default.
type Madhab string

const (
	MadhabGeneral Madhab = "general"
	MadhabHanafi  Madhab = "hanafi"
	MadhabShafii  Madhab = "shafii"
	MadhabMaliki  Madhab = "maliki"
	MadhabHanbali Madhab = "hanbali"
)

// Schools lists the four schools that may carry a ruling of their own.
var Schools = []Madhab{MadhabHanafi, MadhabShafii, MadhabMaliki, MadhabHanbali}

// Valid reports whether m is general or one of the four schools.
func (m Madhab) Valid() bool {
	if m == MadhabGeneral {
		return true
	}
	return m.IsSchool()
}

// IsSchool reports whether m names one of the four schools.
func (m Madhab) IsSchool() bool {
	switch m {
	case MadhabHanafi, MadhabShafii, MadhabMaliki, MadhabHanbali:
		return true
	}
	return false
}

// DisplayName returns the school name used in explanations.
func (m Madhab) DisplayName() string {
	switch m {
	case MadhabHanafi:
		return "Hanafi"
	case MadhabShafii:
		return "Shafi'i"
	case MadhabMaliki:
		return "Maliki"
	case MadhabHanbali:
		return "Hanbali"
	default:
		return "General"
	}
}

// ParseMadhab parses a madhab name case-insensitively.
func ParseMadhab(s string) (Madhab, bool) {
	m := Madhab(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return MadhabGeneral, true
	}
	return m, m.Valid()
}

// Strictness governs how doubtful verdicts are surfaced to the user.
type Strictness string

const (
	StrictnessRelaxed    Strictness = "relaxed"
	StrictnessModerate   Strictness = "moderate"
	StrictnessStrict     Strictness = "strict"
	StrictnessVeryStrict Strictness = "very_strict"
)

// Valid reports whether s is a known strictness level.
func (s Strictness) Valid() bool {
	switch s {
	case StrictnessRelaxed, StrictnessModerate, StrictnessStrict, StrictnessVeryStrict:
		return true
	}
	return false
}

// ParseStrictness parses a strictness name case-insensitively.
func ParseStrictness(s string) (Strictness, bool) {
	st := Strictness(strings.ToLower(strings.TrimSpace(s)))
	if st == "" {
		return StrictnessModerate, true
	}
	return st, st.Valid()
}

// Options are the user preferences applied to one analysis.
type Options struct {
	Madhab     Madhab     `json:"madhab" yaml:"madhab"`
	Strictness Strictness `json:"strictness" yaml:"strictness"`
}

// DefaultOptions returns the school-agnostic, moderate preferences.
func DefaultOptions() Options {
	return Options{Madhab: MadhabGeneral, Strictness: StrictnessModerate}
}
