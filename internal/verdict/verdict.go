// Package verdict folds additive and ingredient results into one halal
// verdict and applies the user's strictness preference.
package verdict

import (
	"strings"

	"github.com/opensource-food/mizan/internal/domain"
)

// CleanConfidence is reported for a verdict with nothing doubtful or haram.
const CleanConfidence = 0.8

// ExplanationNoIssues is the reason attached to a clean verdict with nothing to report.
const ExplanationNoIssues = "Aucun ingrédient ou additif problématique détecté."

// Processor aggregates resolved items and produces a verdict.
type Processor struct {
	// AdditiveConfidence maps an additive status to its confidence.
	// Additive records carry no confidence of their own.
	AdditiveConfidence map[domain.Status]float64

	// CleanConfidence is reported when nothing doubtful or haram was found.
	CleanConfidence float64
}

// NewProcessor creates a processor with default confidences.
func NewProcessor() *Processor {
	return &Processor{
		AdditiveConfidence: map[domain.Status]float64{
			domain.StatusHaram:    0.9,
			domain.StatusDoubtful: 0.6,
			domain.StatusHalal:    0.8,
		},
		CleanConfidence: CleanConfidence,
	}
}

// DecisionInput contains all data needed for a verdict.
type DecisionInput struct {
	// RawText is the ingredient list as printed, before normalization.
	RawText         string
	HasAdditiveTags bool
	Vegan           bool

	Additives []domain.AdditiveResult
	Matches   []domain.MatchResult
}

// Process folds additives first, then ingredient matches, into the worst
// status seen. Each item gets a reason; doubtful items may be upgraded by
// context first.
func (p *Processor) Process(input *DecisionInput) domain.HalalAnalysis {
	if strings.TrimSpace(input.RawText) == "" && !input.HasAdditiveTags {
		return domain.HalalAnalysis{
			Status:         domain.StatusUnknown,
			Confidence:     0,
			Tier:           domain.TierDoubtful,
			Reasons:        []domain.Reason{},
			AnalysisSource: domain.SourceNoData,
		}
	}

	ctx := NewContextChecker(input.RawText, input.Vegan)
	agg := &aggregate{worst: domain.StatusUnknown}

	additiveCodes := make(map[string]bool, len(input.Additives))
	for _, a := range input.Additives {
		status, expl := a.Status, a.Explanation
		if s, e, ok := ctx.Check(status, AdditiveTerms(a.Code, a.Name)); ok {
			status, expl = s, e
		}

		agg.reasons = append(agg.reasons, domain.Reason{
			Kind:        domain.ReasonAdditive,
			Code:        a.Code,
			Name:        a.Name,
			Status:      status,
			Explanation: expl,
			Category:    a.Category,
			Madhab:      a.Madhab,
		})
		additiveCodes[strings.ToUpper(a.Code)] = true
		agg.fold(status, p.additiveConfidence(status))
	}

	for _, m := range input.Matches {
		if isEmulsifier(m.Category) && m.AdditiveCode != "" && additiveCodes[strings.ToUpper(m.AdditiveCode)] {
			continue
		}

		status, expl := m.Ruling, m.Explanation
		if s, e, ok := ctx.Check(status, []string{m.Pattern}); ok {
			status, expl = s, e
		}

		agg.reasons = append(agg.reasons, domain.Reason{
			Kind:        domain.ReasonIngredient,
			Code:        m.AdditiveCode,
			Name:        m.Pattern,
			Status:      status,
			Explanation: expl,
			Category:    m.Category,
		})
		agg.fold(status, m.Confidence)
	}

	return agg.finish(p.CleanConfidence)
}

func (p *Processor) additiveConfidence(s domain.Status) float64 {
	if c, ok := p.AdditiveConfidence[s]; ok {
		return c
	}
	return 0
}

func isEmulsifier(category string) bool {
	return strings.EqualFold(category, "emulsifier")
}

// aggregate is the fold state: the worst status so far and the highest
// confidence seen at each severity.
type aggregate struct {
	worst   domain.Status
	maxConf [3]float64
	reasons []domain.Reason
}

// fold raises worst monotonically. Halal never replaces unknown: both have
// the lowest severity.
func (a *aggregate) fold(s domain.Status, confidence float64) {
	sev := s.Severity()
	if sev > a.worst.Severity() {
		a.worst = s
	}
	if confidence > a.maxConf[sev] {
		a.maxConf[sev] = confidence
	}
}

func (a *aggregate) finish(clean float64) domain.HalalAnalysis {
	out := domain.HalalAnalysis{
		Reasons:        a.reasons,
		AnalysisSource: domain.SourceIngredients,
	}

	switch a.worst {
	case domain.StatusHaram:
		out.Status = domain.StatusHaram
		out.Confidence = a.maxConf[domain.StatusHaram.Severity()]
	case domain.StatusDoubtful:
		out.Status = domain.StatusDoubtful
		out.Confidence = a.maxConf[domain.StatusDoubtful.Severity()]
	default:
		out.Status = domain.StatusHalal
		out.Confidence = clean
		if len(out.Reasons) == 0 {
			out.Reasons = []domain.Reason{{
				Kind:        domain.ReasonInfo,
				Name:        "no issues found",
				Status:      domain.StatusHalal,
				Explanation: ExplanationNoIssues,
			}}
		}
	}
	out.Tier = domain.TierFor(out.Status)
	return out
}
