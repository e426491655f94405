// Package alerts evaluates operator-defined CEL conditions over finished analyses.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/metrics"
)

// Engine is the CEL-based alert rule engine.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	rules      map[string]*CompiledRule
	maxWorkers int
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Rule    *domain.AlertRule
	Program cel.Program
}

// Trigger is one alert rule that fired.
type Trigger struct {
	RuleID string `json:"ruleId"`
	Name   string `json:"name"`
}

// Input is the analysis an alert rule is evaluated against.
type Input struct {
	Barcode  string
	Options  domain.Options
	Analysis domain.HalalAnalysis
}

// NewEngine creates an alert engine. A nil logger uses slog.Default.
func NewEngine(maxWorkers int, logger *slog.Logger, m *metrics.Metrics) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("tier", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("madhab", cel.StringType),
		cel.Variable("strictness", cel.StringType),
		cel.Variable("certified", cel.BoolType),
		cel.Variable("categories", cel.ListType(cel.StringType)),
		cel.Variable("codes", cel.ListType(cel.StringType)),
		cel.Variable("barcode", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		rules:      make(map[string]*CompiledRule),
		maxWorkers: maxWorkers,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Validate compiles a rule without loading it.
func (e *Engine) Validate(rule *domain.AlertRule) error {
	if rule == nil {
		return fmt.Errorf("alert rule is required")
	}
	_, err := e.compile(rule)
	return err
}

// Load compiles and loads one rule, replacing any rule with the same ID.
// Disabled rules are removed.
func (e *Engine) Load(rule *domain.AlertRule) error {
	if !rule.Enabled {
		e.mu.Lock()
		delete(e.rules, rule.ID)
		e.mu.Unlock()
		return nil
	}

	compiled, err := e.compile(rule)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.rules[rule.ID] = compiled
	e.mu.Unlock()
	return nil
}

// Reload replaces all loaded rules. On a compile error nothing changes.
func (e *Engine) Reload(rules []*domain.AlertRule) error {
	next := make(map[string]*CompiledRule, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		compiled, err := e.compile(r)
		if err != nil {
			return err
		}
		next[r.ID] = compiled
	}

	e.mu.Lock()
	e.rules = next
	e.mu.Unlock()
	return nil
}

// Rules returns the loaded rules ordered by ID.
func (e *Engine) Rules() []*domain.AlertRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.AlertRule, 0, len(e.rules))
	for _, c := range e.rules {
		out = append(out, c.Rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of loaded rules.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Evaluate runs every loaded rule in parallel and returns the ones that
// fired, ordered by rule ID. Evaluation errors are logged and count as not
// triggered.
func (e *Engine) Evaluate(ctx context.Context, in *Input) []Trigger {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := Activation(in)

	fired := make([]bool, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			fired[idx] = e.eval(ctx, r, activation)
		}(i, rule)
	}
	wg.Wait()

	var out []Trigger
	for i, r := range rules {
		if fired[i] {
			out = append(out, Trigger{RuleID: r.Rule.ID, Name: r.Rule.Name})
			e.metrics.AlertTriggered(r.Rule.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// Activation builds the CEL variables for an analysis.
func Activation(in *Input) map[string]any {
	a := in.Analysis
	categories := a.Categories()
	if categories == nil {
		categories = []string{}
	}
	codes := a.Codes()
	if codes == nil {
		codes = []string{}
	}

	return map[string]any{
		"status":     string(a.Status),
		"tier":       string(a.Tier),
		"confidence": a.Confidence,
		"madhab":     string(in.Options.Madhab),
		"strictness": string(in.Options.Strictness),
		"certified":  a.Tier == domain.TierCertified,
		"categories": categories,
		"codes":      codes,
		"barcode":    in.Barcode,
	}
}

func (e *Engine) eval(ctx context.Context, rule *CompiledRule, activation map[string]any) bool {
	out, _, err := rule.Program.ContextEval(ctx, activation)
	if err != nil {
		e.logger.Warn("alert rule evaluation failed",
			"rule_id", rule.Rule.ID,
			"error", err,
		)
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

func (e *Engine) compile(rule *domain.AlertRule) (*CompiledRule, error) {
	if rule.ID == "" {
		return nil, fmt.Errorf("alert rule id is required")
	}

	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile alert rule %s: %w", rule.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("alert rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("failed to create program for alert rule %s: %w", rule.ID, err)
	}

	return &CompiledRule{Rule: rule, Program: program}, nil
}
