package engine

import (
	"fmt"
	"strings"

	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
)

// CertifiedConfidence is reported for any label-based verdict.
const CertifiedConfidence = 0.95

// CertificationResolver recognizes halal certification labels.
type CertificationResolver struct{}

// Resolve returns a certified verdict when a label names a known certifier,
// or failing that a generic halal claim. The second result is false when no
// label qualifies and the product must be analyzed.
func (CertificationResolver) Resolve(labels []string) (domain.HalalAnalysis, bool) {
	if len(labels) == 0 {
		return domain.HalalAnalysis{}, false
	}

	variants := make([][]string, len(labels))
	for i, l := range labels {
		variants[i] = labelVariants(l)
	}

	for i, vs := range variants {
		for _, v := range vs {
			if c, ok := corpus.LookupCertifier(v); ok {
				return certified(labels[i], c.Name, fmt.Sprintf("Certifié halal par %s.", c.Name), c.ID, domain.SourceCertification), true
			}
		}
	}

	for i, vs := range variants {
		for _, v := range vs {
			if corpus.IsHalalLabel(v) {
				return certified(labels[i], "Label halal", "Le produit porte un label halal.", "", domain.SourceHalalLabel), true
			}
		}
	}

	return domain.HalalAnalysis{}, false
}

func certified(label, name, explanation, certifierID, source string) domain.HalalAnalysis {
	a := domain.HalalAnalysis{
		Status:     domain.StatusHalal,
		Confidence: CertifiedConfidence,
		Tier:       domain.TierCertified,
		Reasons: []domain.Reason{{
			Kind:        domain.ReasonLabel,
			Code:        label,
			Name:        name,
			Status:      domain.StatusHalal,
			Explanation: explanation,
		}},
		CertifierID:    certifierID,
		AnalysisSource: source,
	}
	if certifierID != "" {
		a.CertifierName = name
	}
	return a
}

// labelVariants returns the keys a label is looked up under: the whole tag,
// the tag without its locale, and that slug without its longest noise prefix.
func labelVariants(label string) []string {
	full := strings.ToLower(strings.TrimSpace(label))
	if full == "" {
		return nil
	}
	out := []string{full}

	slug := full
	if i := strings.IndexByte(full, ':'); i >= 0 {
		slug = full[i+1:]
		out = append(out, slug)
	}

	for _, p := range corpus.NoisePrefixes() {
		if strings.HasPrefix(slug, p) && len(slug) > len(p) {
			out = append(out, strings.TrimPrefix(slug, p))
			break
		}
	}
	return out
}
