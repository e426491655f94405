package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-food/mizan/internal/alerts"
	"github.com/opensource-food/mizan/internal/api"
	"github.com/opensource-food/mizan/internal/bus"
	"github.com/opensource-food/mizan/internal/cache"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/engine"
	"github.com/opensource-food/mizan/internal/metrics"
	"github.com/opensource-food/mizan/internal/retention"
	"github.com/opensource-food/mizan/internal/service"
	"github.com/opensource-food/mizan/internal/tracing"
	"github.com/opensource-food/mizan/internal/worker"
)

var serveFlags struct {
	noSeed bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API with the configured repository, cache and event bus.

The async worker starts when worker.enabled is set (pro tier default), and
stored analyses are pruned on the retention schedule.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveFlags.noSeed, "no-seed", false, "do not seed an empty database with the built-in corpus")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("starting mizan",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"default_madhab", cfg.Engine.DefaultMadhab,
		"default_strictness", cfg.Engine.DefaultStrictness,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, Version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	m := metrics.New()

	// Initialize Repository
	repo, err := openRepository(cfg.Repository)
	if err != nil {
		return err
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	if !serveFlags.noSeed {
		if err := seedIfEmpty(ctx, repo); err != nil {
			return err
		}
	}

	// Initialize Cache
	cacheImpl, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return err
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize halal engine
	rules := ruleView(repo, cfg.Repository.UseLegacyFallback, m)
	eng := engine.New(rules, engine.Config{
		RuleCacheTTL: cfg.Engine.RuleCacheTTL,
		Metrics:      m,
	})
	snap, err := eng.Rules().Refresh(ctx)
	if err != nil {
		return err
	}
	slog.Info("halal engine initialized",
		"rules_count", len(snap.Rules),
		"quarantined", len(snap.Quarantined),
		"legacy_fallback", cfg.Repository.UseLegacyFallback,
	)

	// Initialize alert rules
	alertEngine, err := alerts.NewEngine(100, nil, m)
	if err != nil {
		return err
	}
	if err := loadAlertRules(ctx, repo, alertEngine); err != nil {
		return err
	}
	slog.Info("alert engine initialized", "rules_count", alertEngine.Count())

	analyzer := service.NewAnalyzer(service.Config{
		Engine:   eng,
		Repo:     repo,
		Cache:    cacheImpl,
		Alerts:   alertEngine,
		Metrics:  m,
		CacheTTL: cfg.Engine.AnalysisCacheTTL,
	})
	defaults := domain.Options{
		Madhab:     cfg.Engine.DefaultMadhab,
		Strictness: cfg.Engine.DefaultStrictness,
	}

	// Initialize async Worker
	var asyncWorker *worker.Worker
	if cfg.Worker.Enabled {
		asyncWorker = worker.NewWorker(busImpl, analyzer, worker.Config{
			Defaults:   defaults,
			QueueGroup: cfg.Worker.QueueGroup,
			Metrics:    m,
		})
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		}
	}

	// Initialize retention
	var scheduler *retention.Scheduler
	if cfg.Retention.Enabled {
		scheduler = retention.NewScheduler(
			retention.NewPruner(repo, cfg.Retention.MaxAge, m),
			cfg.Retention.Schedule,
		)
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Repo:     repo,
		Rules:    rules,
		Cache:    cacheImpl,
		Bus:      busImpl,
		Engine:   eng,
		Analyzer: analyzer,
		Alerts:   alertEngine,
		Metrics:  m,
		Defaults: defaults,
		Version:  Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("mizan is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		slog.Error("server failed", "error", err)
		return err
	}

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("mizan shutdown complete")
	return nil
}

// loadAlertRules loads stored alert rules. A failure to list them is logged
// and the server starts with none; they can be added via POST /alerts.
func loadAlertRules(ctx context.Context, repo domain.Repository, e *alerts.Engine) error {
	rules, err := repo.ListAlertRules(ctx)
	if err != nil {
		slog.Warn("failed to list alert rules from database", "error", err)
		return nil
	}
	if len(rules) == 0 {
		slog.Info("no alert rules in database - configure via POST /alerts API")
		return nil
	}
	return e.Reload(rules)
}
