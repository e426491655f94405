package domain

import (
	"strings"
	"time"
)

// ProductInput is the raw product data an analysis is computed from.
// An empty IngredientsText means the product has no ingredient list.
type ProductInput struct {
	Barcode                 string   `json:"barcode,omitempty"`
	IngredientsText         string   `json:"ingredientsText,omitempty"`
	AdditivesTags           []string `json:"additivesTags,omitempty"`
	LabelsTags              []string `json:"labelsTags,omitempty"`
	IngredientsAnalysisTags []string `json:"ingredientsAnalysisTags,omitempty"`
}

// VeganTag is the OpenFoodFacts ingredients-analysis marker for vegan products.
const VeganTag = "en:vegan"

// IsVegan reports whether the product carries the vegan analysis tag.
func (p *ProductInput) IsVegan() bool {
	for _, t := range p.IngredientsAnalysisTags {
		if strings.EqualFold(strings.TrimSpace(t), VeganTag) {
			return true
		}
	}
	return false
}

// MatchResult is one surviving ingredient-rule hit, resolved for a madhab.
type MatchResult struct {
	RuleID       string  `json:"ruleId"`
	Pattern      string  `json:"pattern"`
	Ruling       Status  `json:"ruling"`
	Confidence   float64 `json:"confidence"`
	Priority     int     `json:"priority"`
	Category     string  `json:"category"`
	Explanation  string  `json:"explanation"`
	AdditiveCode string  `json:"additiveCode,omitempty"`
}

// AdditiveResult is one resolved additive tag.
type AdditiveResult struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Status      Status   `json:"status"`
	Explanation string   `json:"explanation"`
	RiskFlags   []string `json:"riskFlags,omitempty"`

	// Madhab is set when a school-specific ruling replaced the default.
	Madhab Madhab `json:"madhab,omitempty"`
}

// ReasonKind tells where a reason came from.
type ReasonKind string

const (
	ReasonLabel      ReasonKind = "label"
	ReasonAdditive   ReasonKind = "additive"
	ReasonIngredient ReasonKind = "ingredient"
	ReasonInfo       ReasonKind = "info"
)

// Reason is a human-readable justification attached to an analysis.
type Reason struct {
	Kind        ReasonKind `json:"kind"`
	Code        string     `json:"code,omitempty"`
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	Explanation string     `json:"explanation"`
	Category    string     `json:"category,omitempty"`
	Madhab      Madhab     `json:"madhab,omitempty"`
}

// Analysis sources.
const (
	SourceCertification = "certification_label"
	SourceHalalLabel    = "halal_label"
	SourceIngredients   = "ingredient_analysis"
	SourceNoData        = "no_data"
)

// HalalAnalysis is the verdict for one product under one set of options.
type HalalAnalysis struct {
	Status         Status   `json:"status"`
	Confidence     float64  `json:"confidence"`
	Tier           Tier     `json:"tier"`
	Reasons        []Reason `json:"reasons"`
	CertifierName  string   `json:"certifierName,omitempty"`
	CertifierID    string   `json:"certifierId,omitempty"`
	AnalysisSource string   `json:"analysisSource"`
}

// Categories returns the distinct reason categories in order of appearance.
func (a *HalalAnalysis) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range a.Reasons {
		if r.Category == "" || seen[r.Category] {
			continue
		}
		seen[r.Category] = true
		out = append(out, r.Category)
	}
	return out
}

// Codes returns the additive codes cited by the reasons.
func (a *HalalAnalysis) Codes() []string {
	var out []string
	for _, r := range a.Reasons {
		if r.Kind == ReasonAdditive && r.Code != "" {
			out = append(out, r.Code)
		}
	}
	return out
}

// AnalysisRecord is a persisted analysis.
type AnalysisRecord struct {
	ID        string        `json:"id"`
	Barcode   string        `json:"barcode,omitempty"`
	InputHash string        `json:"inputHash"`
	Options   Options       `json:"options"`
	Analysis  HalalAnalysis `json:"analysis"`
	Alerts    []string      `json:"alerts,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`

	// Processing metadata
	Metadata AnalysisMetadata `json:"metadata"`
}

// AnalysisMetadata contains processing information.
type AnalysisMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	TotalMs       int64  `json:"totalMs"`
	RulesMatched  int    `json:"rulesMatched"`
	EngineVersion string `json:"engineVersion"`
}

// AlertRule is an operator-defined CEL condition evaluated over finished analyses.
type AlertRule struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Expression  string    `json:"expression" yaml:"expression"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	CreatedAt   time.Time `json:"createdAt,omitempty" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" yaml:"-"`
}
