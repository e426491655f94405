package alerts

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/opensource-food/mizan/internal/domain"
)

func haramPork() *Input {
	return &Input{
		Barcode: "3017620422003",
		Options: domain.Options{Madhab: domain.MadhabHanafi, Strictness: domain.StrictnessModerate},
		Analysis: domain.HalalAnalysis{
			Status:     domain.StatusHaram,
			Tier:       domain.TierHaram,
			Confidence: 0.98,
			Reasons: []domain.Reason{
				{Kind: domain.ReasonAdditive, Code: "E120", Category: "colorant", Status: domain.StatusHaram},
				{Kind: domain.ReasonIngredient, Name: "graisse de porc", Category: "pork", Status: domain.StatusHaram},
			},
			AnalysisSource: domain.SourceIngredients,
		},
	}
}

func TestEngineCreation(t *testing.T) {
	e, err := NewEngine(5, nil, nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if e.Count() != 0 {
		t.Errorf("expected 0 rules, got %d", e.Count())
	}
}

func TestValidate(t *testing.T) {
	e, _ := NewEngine(5, nil, nil)

	tests := []struct {
		name    string
		rule    *domain.AlertRule
		wantErr bool
	}{
		{"bool expression", &domain.AlertRule{ID: "a", Expression: `status == "haram"`}, false},
		{"list membership", &domain.AlertRule{ID: "a", Expression: `"pork" in categories && !certified`}, false},
		{"not bool", &domain.AlertRule{ID: "a", Expression: `confidence * 2.0`}, true},
		{"syntax error", &domain.AlertRule{ID: "a", Expression: `this is not valid CEL !!!`}, true},
		{"unknown variable", &domain.AlertRule{ID: "a", Expression: `amount > 10.0`}, true},
		{"missing id", &domain.AlertRule{Expression: `true`}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.Validate(tt.rule)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if e.Count() != 0 {
		t.Error("Validate must not load rules")
	}
}

func TestEvaluate(t *testing.T) {
	e, _ := NewEngine(2, nil, nil)

	rules := []*domain.AlertRule{
		{ID: "pork", Name: "Pork found", Expression: `"pork" in categories`, Enabled: true},
		{ID: "carmine", Name: "Carmine", Expression: `"E120" in codes && madhab == "hanafi"`, Enabled: true},
		{ID: "low-confidence", Name: "Low confidence", Expression: `confidence < 0.5`, Enabled: true},
		{ID: "certified", Name: "Certified", Expression: `certified`, Enabled: true},
		{ID: "disabled", Name: "Disabled", Expression: `true`, Enabled: false},
	}
	if err := e.Reload(rules); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if e.Count() != 4 {
		t.Fatalf("expected 4 enabled rules, got %d", e.Count())
	}

	got := e.Evaluate(context.Background(), haramPork())
	want := []Trigger{
		{RuleID: "carmine", Name: "Carmine"},
		{RuleID: "pork", Name: "Pork found"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("triggers mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluateWithoutReasons(t *testing.T) {
	e, _ := NewEngine(2, nil, nil)
	if err := e.Load(&domain.AlertRule{ID: "empty", Expression: `size(categories) == 0 && size(codes) == 0`, Enabled: true}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := e.Evaluate(context.Background(), &Input{Analysis: domain.HalalAnalysis{Status: domain.StatusUnknown}})
	if len(got) != 1 {
		t.Errorf("expected empty lists to be bound, got %v", got)
	}
}

func TestEvaluationErrorIsNotTriggered(t *testing.T) {
	e, _ := NewEngine(2, nil, nil)
	if err := e.Load(&domain.AlertRule{ID: "index", Expression: `codes[5] == "E120"`, Enabled: true}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := e.Evaluate(context.Background(), haramPork()); len(got) != 0 {
		t.Errorf("evaluation error must not trigger, got %v", got)
	}
}

func TestReloadIsAtomic(t *testing.T) {
	e, _ := NewEngine(2, nil, nil)
	if err := e.Load(&domain.AlertRule{ID: "keep", Expression: `true`, Enabled: true}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err := e.Reload([]*domain.AlertRule{
		{ID: "ok", Expression: `true`, Enabled: true},
		{ID: "bad", Expression: `status +`, Enabled: true},
	})
	if err == nil {
		t.Fatal("expected compile error")
	}
	rules := e.Rules()
	if len(rules) != 1 || rules[0].ID != "keep" {
		t.Errorf("failed reload must keep previous rules, got %v", rules)
	}
}

func TestLoadDisabledRemoves(t *testing.T) {
	e, _ := NewEngine(2, nil, nil)
	rule := &domain.AlertRule{ID: "r", Expression: `true`, Enabled: true}
	_ = e.Load(rule)

	rule.Enabled = false
	if err := e.Load(rule); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if e.Count() != 0 {
		t.Errorf("disabling a rule should unload it, got %d", e.Count())
	}
}
