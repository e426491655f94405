package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/repository"
)

// countingRepo counts batched queries and can fail them on demand.
type countingRepo struct {
	domain.RuleRepository

	mu            sync.Mutex
	additiveCalls int
	rulingCalls   int
	ruleLoads     int
	additivesErr  error
	rulesErr      error
}

func (c *countingRepo) FetchAdditivesByCodes(ctx context.Context, codes []string) ([]domain.AdditiveRecord, error) {
	c.mu.Lock()
	c.additiveCalls++
	err := c.additivesErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.RuleRepository.FetchAdditivesByCodes(ctx, codes)
}

func (c *countingRepo) FetchMadhabRulings(ctx context.Context, codes []string, m domain.Madhab) ([]domain.MadhabRuling, error) {
	c.mu.Lock()
	c.rulingCalls++
	c.mu.Unlock()
	return c.RuleRepository.FetchMadhabRulings(ctx, codes, m)
}

func (c *countingRepo) FetchActiveIngredientRulings(ctx context.Context) ([]domain.IngredientRuling, error) {
	c.mu.Lock()
	c.ruleLoads++
	err := c.rulesErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.RuleRepository.FetchActiveIngredientRulings(ctx)
}

func (c *countingRepo) loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ruleLoads
}

func TestRuleCache(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{RuleRepository: newTestRepo()}
	cache := NewRuleCache(repo, 10*time.Minute, nil, nil)

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if cache.Current() != nil {
		t.Fatal("cache must start empty")
	}

	first, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(first.Rules) == 0 {
		t.Fatal("expected compiled rules")
	}

	t.Run("ServedWithinTTL", func(t *testing.T) {
		now = now.Add(9 * time.Minute)
		s, err := cache.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if s != first || repo.loads() != 1 {
			t.Errorf("expected cached snapshot, loads=%d", repo.loads())
		}
	})

	t.Run("ReloadedAfterTTL", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		if err := cache.RefreshIfStale(ctx); err != nil {
			t.Fatalf("RefreshIfStale failed: %v", err)
		}
		if repo.loads() != 2 {
			t.Errorf("expected reload after TTL, loads=%d", repo.loads())
		}
		if !cache.Current().LoadedAt.Equal(now) {
			t.Errorf("expected LoadedAt %v, got %v", now, cache.Current().LoadedAt)
		}
	})

	t.Run("Invalidate", func(t *testing.T) {
		cache.Invalidate()
		if cache.Current() != nil {
			t.Fatal("Invalidate must drop the snapshot")
		}
		if _, err := cache.Snapshot(ctx); err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if repo.loads() != 3 {
			t.Errorf("expected reload after Invalidate, loads=%d", repo.loads())
		}
	})

	t.Run("FailedRefreshKeepsSnapshot", func(t *testing.T) {
		before := cache.Current()
		repo.mu.Lock()
		repo.rulesErr = errors.New("db down")
		repo.mu.Unlock()

		if _, err := cache.Refresh(ctx); err == nil {
			t.Fatal("expected refresh error")
		}
		if cache.Current() != before {
			t.Error("failed refresh must keep the previous snapshot")
		}
	})
}

func TestRuleCacheSeesNewRulesAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/rules.db"})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	defer repo.Close()

	e := New(repo, Config{})
	input := &domain.ProductInput{IngredientsText: "sucre, caroube"}

	got, err := e.Analyze(ctx, input, domain.DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.Status != domain.StatusHalal {
		t.Fatalf("expected halal before the rule exists, got %s", got.Status)
	}

	err = repo.SaveIngredientRuling(ctx, &domain.IngredientRuling{
		ID: "test-caroube", Pattern: "caroube", MatchType: domain.MatchWordBoundary, Priority: 10,
		RulingDefault: domain.StatusDoubtful, Confidence: 0.5, Category: "test", Active: true,
	})
	if err != nil {
		t.Fatalf("SaveIngredientRuling failed: %v", err)
	}

	got, _ = e.Analyze(ctx, input, domain.DefaultOptions())
	if got.Status != domain.StatusHalal {
		t.Errorf("snapshot must be served until invalidated, got %s", got.Status)
	}

	e.Rules().Invalidate()
	got, _ = e.Analyze(ctx, input, domain.DefaultOptions())
	if got.Status != domain.StatusDoubtful {
		t.Errorf("expected new rule after Invalidate, got %s", got.Status)
	}
}

func TestAdditiveResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("OrderAndDedupe", func(t *testing.T) {
		repo := &countingRepo{RuleRepository: newTestRepo()}
		r := NewAdditiveResolver(repo)

		got, err := r.Resolve(ctx, []string{"en:e471", "en:e330", "fr:e471", "en:e99999", "en:e322i"}, domain.MadhabGeneral)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		var codes []string
		for _, a := range got {
			codes = append(codes, a.Code)
		}
		if diff := cmp.Diff([]string{"E471", "E330", "E322"}, codes); diff != "" {
			t.Errorf("codes mismatch (-want +got):\n%s", diff)
		}
		if repo.additiveCalls != 1 || repo.rulingCalls != 0 {
			t.Errorf("expected 1 record query and no ruling query, got %d/%d", repo.additiveCalls, repo.rulingCalls)
		}
	})

	t.Run("OneRulingQueryForSchool", func(t *testing.T) {
		repo := &countingRepo{RuleRepository: newTestRepo()}
		r := NewAdditiveResolver(repo)

		if _, err := r.Resolve(ctx, []string{"en:e120", "en:e441", "en:e330"}, domain.MadhabHanafi); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if repo.additiveCalls != 1 || repo.rulingCalls != 1 {
			t.Errorf("expected one query each, got %d/%d", repo.additiveCalls, repo.rulingCalls)
		}
	})

	t.Run("NilRulingDefers", func(t *testing.T) {
		r := NewAdditiveResolver(newTestRepo())
		got, err := r.Resolve(ctx, []string{"en:e441"}, domain.MadhabMaliki)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if got[0].Status != domain.StatusDoubtful || got[0].Madhab != "" {
			t.Errorf("expected default doubtful without madhab, got %s/%q", got[0].Status, got[0].Madhab)
		}
		if want := "Pas d'avis propre. (" + domain.MadhabMaliki.DisplayName() + ")"; got[0].Explanation != want {
			t.Errorf("expected school explanation %q, got %q", want, got[0].Explanation)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		repo := &countingRepo{RuleRepository: newTestRepo()}
		got, err := NewAdditiveResolver(repo).Resolve(ctx, nil, domain.MadhabHanafi)
		if err != nil || got != nil {
			t.Errorf("expected nil result, got %v, %v", got, err)
		}
		if repo.additiveCalls != 0 {
			t.Error("no tags must not query the repository")
		}
	})

	t.Run("FallbackHook", func(t *testing.T) {
		layered := repository.NewLayered(
			repository.NewStatic(corpus.Default()),
			repository.NewStatic(corpus.LegacySet()),
		)
		var fallback []string
		layered.OnFallback = func(_ int, codes []string) { fallback = append(fallback, codes...) }

		got, err := NewAdditiveResolver(layered).Resolve(ctx, []string{"en:e913", "en:e330", "en:e160a"}, domain.MadhabGeneral)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 additives, got %d", len(got))
		}
		if diff := cmp.Diff([]string{"E913"}, fallback); diff != "" {
			t.Errorf("fallback codes mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestCertificationResolver(t *testing.T) {
	var r CertificationResolver

	tests := []struct {
		name        string
		labels      []string
		ok          bool
		certifierID string
	}{
		{"locale prefix", []string{"fr:certification-avs"}, true, "avs"},
		{"longest noise prefix", []string{"en:certification-halal-hfa"}, true, "hfa"},
		{"accented prefix", []string{"fr:certifié-achahada"}, true, "achahada"},
		{"bare slug", []string{"JAKIM"}, true, "jakim"},
		{"alias", []string{"fr:sfcvh"}, true, "mosquee-de-paris"},
		{"certifier beats earlier generic label", []string{"en:halal", "fr:certification-avs"}, true, "avs"},
		{"generic label", []string{"fr:produit-halal"}, true, ""},
		{"unrelated labels", []string{"en:organic", "fr:ab-agriculture-biologique"}, false, ""},
		{"prefix alone", []string{"fr:certification-"}, false, ""},
		{"none", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.labels)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if !ok {
				return
			}
			if got.Status != domain.StatusHalal || got.Tier != domain.TierCertified || got.Confidence != CertifiedConfidence {
				t.Errorf("expected halal/certified/0.95, got %s/%s/%.2f", got.Status, got.Tier, got.Confidence)
			}
			if got.CertifierID != tt.certifierID {
				t.Errorf("expected certifier %q, got %q", tt.certifierID, got.CertifierID)
			}
			if len(got.Reasons) != 1 || got.Reasons[0].Kind != domain.ReasonLabel {
				t.Errorf("expected one label reason, got %+v", got.Reasons)
			}
		})
	}
}

func TestLabelVariants(t *testing.T) {
	got := labelVariants(" FR:Certification-Halal-AVS ")
	want := []string{"fr:certification-halal-avs", "certification-halal-avs", "avs"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
}
