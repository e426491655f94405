package verdict

import "github.com/opensource-food/mizan/internal/domain"

// Confidences set by the strictness overlay.
const (
	relaxedConfidence    = 0.5
	strictMinConfidence  = 0.7
	veryStrictConfidence = 0.3
)

// ApplyStrictness adjusts a finished verdict to the user's strictness.
// Reasons are never modified. Unknown levels behave like moderate.
func ApplyStrictness(a domain.HalalAnalysis, s domain.Strictness) domain.HalalAnalysis {
	switch s {
	case domain.StrictnessRelaxed:
		if a.Status == domain.StatusDoubtful {
			a.Status = domain.StatusHalal
			a.Confidence = relaxedConfidence
			a.Tier = domain.TierFor(a.Status)
		}

	case domain.StrictnessStrict:
		if a.Status == domain.StatusDoubtful && a.Confidence < strictMinConfidence {
			a.Confidence = strictMinConfidence
		}

	case domain.StrictnessVeryStrict:
		if a.Tier == domain.TierCertified || a.Status == domain.StatusHaram {
			return a
		}
		a.Status = domain.StatusDoubtful
		a.Confidence = veryStrictConfidence
		a.Tier = domain.TierFor(a.Status)
	}
	return a
}
