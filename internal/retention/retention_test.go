package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/repository"
)

type fakeStore struct {
	cutoff time.Time
	calls  int
	n      int64
	err    error
}

func (f *fakeStore) DeleteAnalysesBefore(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.cutoff = before
	return f.n, f.err
}

func TestPruner(t *testing.T) {
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)

	t.Run("CutoffIsNowMinusMaxAge", func(t *testing.T) {
		store := &fakeStore{n: 7}
		p := NewPruner(store, 30*24*time.Hour, nil)
		p.now = func() time.Time { return now }

		deleted, err := p.Prune(context.Background())
		if err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if deleted != 7 {
			t.Errorf("expected 7 deleted, got %d", deleted)
		}
		if want := now.Add(-30 * 24 * time.Hour); !store.cutoff.Equal(want) {
			t.Errorf("cutoff = %v, want %v", store.cutoff, want)
		}
	})

	t.Run("ZeroMaxAgeKeepsEverything", func(t *testing.T) {
		store := &fakeStore{}
		p := NewPruner(store, 0, nil)

		if _, err := p.Prune(context.Background()); err != nil {
			t.Fatalf("Prune failed: %v", err)
		}
		if store.calls != 0 {
			t.Errorf("expected no delete call, got %d", store.calls)
		}
	})

	t.Run("StoreError", func(t *testing.T) {
		p := NewPruner(&fakeStore{err: errors.New("locked")}, time.Hour, nil)
		if _, err := p.Prune(context.Background()); err == nil {
			t.Error("expected error from store")
		}
	})
}

func TestPrunerWithSQLite(t *testing.T) {
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/retention.db"})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	records := map[string]time.Time{
		"old":    now.Add(-40 * 24 * time.Hour),
		"recent": now.Add(-24 * time.Hour),
	}
	for id, created := range records {
		rec := &domain.AnalysisRecord{
			ID:        id,
			Options:   domain.DefaultOptions(),
			Analysis:  domain.HalalAnalysis{Status: domain.StatusHalal, Tier: domain.TierAnalyzedClean},
			CreatedAt: created,
		}
		if err := repo.SaveAnalysis(ctx, rec); err != nil {
			t.Fatalf("SaveAnalysis(%s) failed: %v", id, err)
		}
	}

	deleted, err := NewPruner(repo, 30*24*time.Hour, nil).Prune(ctx)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", deleted)
	}
	if _, err := repo.GetAnalysis(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("old analysis should be gone, got %v", err)
	}
	if _, err := repo.GetAnalysis(ctx, "recent"); err != nil {
		t.Errorf("recent analysis should be kept, got %v", err)
	}
}

func TestSchedulerStart(t *testing.T) {
	tests := []struct {
		name        string
		schedule    string
		wantRunning bool
		wantError   bool
	}{
		{"daily descriptor", "@daily", true, false},
		{"daily at 3 AM", "0 3 * * *", true, false},
		{"empty schedule", "", false, false},
		{"invalid schedule", "invalid cron", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(NewPruner(&fakeStore{}, time.Hour, nil), tt.schedule)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			err := s.Start(ctx)
			if (err != nil) != tt.wantError {
				t.Fatalf("Start() error = %v, wantError %v", err, tt.wantError)
			}
			if s.IsRunning() != tt.wantRunning {
				t.Errorf("IsRunning() = %v, want %v", s.IsRunning(), tt.wantRunning)
			}
			if tt.wantRunning {
				if next := s.NextRun(); next == nil || !next.After(time.Now()) {
					t.Errorf("expected a future next run, got %v", next)
				}
			}

			s.Stop()
			if s.IsRunning() {
				t.Error("scheduler still running after Stop")
			}
		})
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(NewPruner(&fakeStore{}, time.Hour, nil), "@hourly")

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not stop after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerRunOnce(t *testing.T) {
	store := &fakeStore{n: 3}
	s := NewScheduler(NewPruner(store, time.Hour, nil), "@daily")

	s.RunOnce(context.Background())
	if store.calls != 1 {
		t.Errorf("expected 1 prune, got %d", store.calls)
	}
}
