package matcher

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/textnorm"
)

// CompiledRule is an ingredient rule whose pattern was prepared once at load time.
type CompiledRule struct {
	Rule domain.IngredientRuling

	// key is the lowercased pattern used for dedupe and override lookups.
	key string

	literal       string
	foldedLiteral string
	re            *regexp.Regexp
	foldedRe      *regexp.Regexp
}

// Key returns the lowercased pattern the rule is known by.
func (c *CompiledRule) Key() string {
	return c.key
}

// Quarantined is a rule excluded from matching because its pattern is unusable.
type Quarantined struct {
	RuleID  string `json:"ruleId"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// Compile prepares a rule for matching.
// It fails for empty patterns, unknown match types and malformed regexes.
func Compile(rule domain.IngredientRuling) (*CompiledRule, error) {
	if strings.TrimSpace(rule.Pattern) == "" {
		return nil, fmt.Errorf("rule %s: empty pattern", rule.ID)
	}

	c := &CompiledRule{
		Rule: rule,
		key:  strings.ToLower(rule.Pattern),
	}

	switch rule.MatchType {
	case domain.MatchExact, domain.MatchContains:
		c.literal = c.key
		c.foldedLiteral = textnorm.Fold(c.key)

	case domain.MatchWordBoundary:
		c.re = wordRegexp(c.key)
		c.foldedRe = wordRegexp(textnorm.Fold(c.key))

	case domain.MatchRegex:
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid regex %q: %w", rule.ID, rule.Pattern, err)
		}
		c.re = re

	default:
		return nil, fmt.Errorf("rule %s: unknown match type %q", rule.ID, rule.MatchType)
	}

	return c, nil
}

// CompileAll compiles every rule, quarantining the ones that fail.
// Input order is preserved in the result; it is the priority tie-break.
func CompileAll(rules []domain.IngredientRuling, logger *slog.Logger) ([]*CompiledRule, []Quarantined) {
	if logger == nil {
		logger = slog.Default()
	}

	compiled := make([]*CompiledRule, 0, len(rules))
	var quarantined []Quarantined

	for _, r := range rules {
		c, err := Compile(r)
		if err != nil {
			logger.Warn("quarantining ingredient rule",
				"rule_id", r.ID,
				"pattern", r.Pattern,
				"error", err,
			)
			quarantined = append(quarantined, Quarantined{
				RuleID:  r.ID,
				Pattern: r.Pattern,
				Reason:  err.Error(),
			})
			continue
		}
		compiled = append(compiled, c)
	}

	return compiled, quarantined
}

// Matches tests the rule against normalized text and its diacritic-folded form.
// Callers fold once per request and share folded across rules.
func (c *CompiledRule) Matches(text, folded string) bool {
	switch c.Rule.MatchType {
	case domain.MatchExact:
		return text == c.literal || folded == c.foldedLiteral

	case domain.MatchContains:
		return strings.Contains(text, c.literal) || strings.Contains(folded, c.foldedLiteral)

	case domain.MatchWordBoundary:
		return c.re.MatchString(text) || c.foldedRe.MatchString(folded)

	case domain.MatchRegex:
		return c.re.MatchString(text)
	}
	return false
}
