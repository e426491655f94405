package matcher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/textnorm"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		haystack string
		pattern  string
		mode     domain.MatchType
		want     bool
	}{
		{"exact verbatim", "gélatine", "gélatine", domain.MatchExact, true},
		{"exact folded", "gelatine", "gélatine", domain.MatchExact, true},
		{"exact partial", "gélatine de porc", "gélatine", domain.MatchExact, false},
		{"contains verbatim", "sucre, graisse de porc, sel", "graisse de porc", domain.MatchContains, true},
		{"contains folded haystack", "mono- et diglycerides", "diglycérides", domain.MatchContains, true},
		{"contains miss", "sucre, sel", "porc", domain.MatchContains, false},
		{"word boundary hit", "sucre, porc, sel", "porc", domain.MatchWordBoundary, true},
		{"word boundary at start", "porc et sel", "porc", domain.MatchWordBoundary, true},
		{"word boundary inside word", "porcelaine", "porc", domain.MatchWordBoundary, false},
		{"word boundary accented neighbour", "lactosérum", "rum", domain.MatchWordBoundary, false},
		{"word boundary accented pattern", "contient: présure animale", "présure", domain.MatchWordBoundary, true},
		{"word boundary folded fallback", "contient: presure animale", "présure", domain.MatchWordBoundary, true},
		{"regex hit", "gras de cochon", "gras de (porc|cochon)", domain.MatchRegex, true},
		{"regex case insensitive", "gras de cochon", "GRAS DE COCHON", domain.MatchRegex, true},
		{"regex malformed", "gras de cochon", "gras de (porc", domain.MatchRegex, false},
		{"empty pattern", "porc", "", domain.MatchContains, false},
		{"unknown mode", "porc", "porc", domain.MatchType("fuzzy"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.haystack, tt.pattern, tt.mode); got != tt.want {
				t.Errorf("Match(%q, %q, %s) = %v, want %v", tt.haystack, tt.pattern, tt.mode, got, tt.want)
			}
		})
	}
}

func TestCompiledMatchesAgreesWithMatch(t *testing.T) {
	texts := []string{
		"vinaigre de vin rouge",
		"lactosérum, sucre",
		"mono- et diglycerides d'acides gras",
		"gras de porc",
	}
	rules := []domain.IngredientRuling{
		{ID: "a", Pattern: "vin", MatchType: domain.MatchWordBoundary},
		{ID: "b", Pattern: "rum", MatchType: domain.MatchWordBoundary},
		{ID: "c", Pattern: "mono- et diglycérides", MatchType: domain.MatchContains},
		{ID: "d", Pattern: "gras de (porc|cochon)", MatchType: domain.MatchRegex},
		{ID: "e", Pattern: "gras de porc", MatchType: domain.MatchExact},
	}

	for _, r := range rules {
		c, err := Compile(r)
		if err != nil {
			t.Fatalf("Compile(%s): %v", r.ID, err)
		}
		for _, text := range texts {
			want := Match(text, r.Pattern, r.MatchType)
			got := c.Matches(text, textnorm.Fold(text))
			if got != want {
				t.Errorf("rule %s on %q: compiled=%v, Match=%v", r.ID, text, got, want)
			}
		}
	}
}

func TestCompileAllQuarantinesBadRules(t *testing.T) {
	rules := []domain.IngredientRuling{
		{ID: "ok", Pattern: "porc", MatchType: domain.MatchWordBoundary},
		{ID: "bad-regex", Pattern: "porc(", MatchType: domain.MatchRegex},
		{ID: "bad-mode", Pattern: "porc", MatchType: "fuzzy"},
		{ID: "empty", Pattern: "  ", MatchType: domain.MatchContains},
	}

	compiled, quarantined := CompileAll(rules, nil)
	if len(compiled) != 1 || compiled[0].Rule.ID != "ok" {
		t.Fatalf("expected only rule 'ok' compiled, got %d rules", len(compiled))
	}

	var ids []string
	for _, q := range quarantined {
		ids = append(ids, q.RuleID)
	}
	if diff := cmp.Diff([]string{"bad-regex", "bad-mode", "empty"}, ids); diff != "" {
		t.Errorf("quarantined mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveOverrideIndependentOfOrder(t *testing.T) {
	vin := domain.IngredientRuling{
		ID: "vin", Pattern: "vin", MatchType: domain.MatchWordBoundary,
		Priority: 30, RulingDefault: domain.StatusHaram,
	}
	vinaigre := domain.IngredientRuling{
		ID: "vinaigre-de-vin", Pattern: "vinaigre de vin", MatchType: domain.MatchContains,
		Priority: 110, RulingDefault: domain.StatusHalal, OverridesKeyword: "vin",
	}

	orders := map[string][]domain.IngredientRuling{
		"generic first":  {vin, vinaigre},
		"specific first": {vinaigre, vin},
	}

	for name, rules := range orders {
		t.Run(name, func(t *testing.T) {
			compiled, _ := CompileAll(rules, nil)
			hits := Resolve("vinaigre de vin rouge", compiled)

			var ids []string
			for _, h := range hits {
				ids = append(ids, h.Rule.ID)
			}
			if diff := cmp.Diff([]string{"vinaigre-de-vin"}, ids); diff != "" {
				t.Errorf("hits mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolveKeepsGenericWhenAlone(t *testing.T) {
	compiled, _ := CompileAll([]domain.IngredientRuling{
		{ID: "vin", Pattern: "vin", MatchType: domain.MatchWordBoundary, Priority: 30},
		{ID: "vinaigre-de-vin", Pattern: "vinaigre de vin", MatchType: domain.MatchContains, Priority: 110, OverridesKeyword: "VIN"},
	}, nil)

	hits := Resolve("vin rouge, sulfites", compiled)
	if len(hits) != 1 || hits[0].Rule.ID != "vin" {
		t.Fatalf("expected only the generic rule, got %d hits", len(hits))
	}
}

func TestResolveOrdersByPriorityAndDedupes(t *testing.T) {
	compiled, _ := CompileAll([]domain.IngredientRuling{
		{ID: "sel", Pattern: "sel", MatchType: domain.MatchWordBoundary, Priority: 10},
		{ID: "porc-1", Pattern: "porc", MatchType: domain.MatchWordBoundary, Priority: 50},
		{ID: "porc-2", Pattern: "Porc", MatchType: domain.MatchContains, Priority: 50},
		{ID: "graisse", Pattern: "graisse de porc", MatchType: domain.MatchContains, Priority: 100},
	}, nil)

	hits := Resolve("graisse de porc, sel, eau", compiled)

	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Rule.ID)
	}
	// porc-2 shares the pattern with porc-1 and loses the tie on order.
	if diff := cmp.Diff([]string{"graisse", "porc-1", "sel"}, ids); diff != "" {
		t.Errorf("hits mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveEmpty(t *testing.T) {
	compiled, _ := CompileAll([]domain.IngredientRuling{
		{ID: "porc", Pattern: "porc", MatchType: domain.MatchWordBoundary},
	}, nil)

	if hits := Resolve("", compiled); hits != nil {
		t.Errorf("expected no hits for empty text, got %d", len(hits))
	}
	if hits := Resolve("sucre, sel", compiled); len(hits) != 0 {
		t.Errorf("expected no hits, got %d", len(hits))
	}
}

func TestResults(t *testing.T) {
	compiled, _ := CompileAll([]domain.IngredientRuling{{
		ID:            "presure",
		Pattern:       "présure",
		MatchType:     domain.MatchWordBoundary,
		Priority:      40,
		RulingDefault: domain.StatusDoubtful,
		Hanafi:        domain.StatusPtr(domain.StatusHalal),
		Confidence:    0.6,
		Category:      "enzyme",
	}}, nil)

	tests := []struct {
		madhab domain.Madhab
		want   domain.Status
	}{
		{domain.MadhabGeneral, domain.StatusDoubtful},
		{domain.MadhabHanafi, domain.StatusHalal},
		{domain.MadhabMaliki, domain.StatusDoubtful},
	}

	for _, tt := range tests {
		got := Results(compiled, tt.madhab)
		if len(got) != 1 {
			t.Fatalf("expected 1 result, got %d", len(got))
		}
		if got[0].Ruling != tt.want {
			t.Errorf("madhab %s: ruling = %s, want %s", tt.madhab, got[0].Ruling, tt.want)
		}
	}
}
