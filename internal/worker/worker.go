// Package worker provides async product analysis from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-food/mizan/internal/bus"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/metrics"
	"github.com/opensource-food/mizan/internal/service"
)

// Worker analyzes scanned products published on the EventBus.
type Worker struct {
	bus        domain.EventBus
	analyzer   *service.Analyzer
	metrics    *metrics.Metrics
	defaults   domain.Options
	queueGroup string

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Defaults apply when a scan message names no madhab or strictness.
	Defaults domain.Options

	// QueueGroup, when set, makes this worker one member of a group that
	// shares the scan topic.
	QueueGroup string

	Metrics *metrics.Metrics
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, analyzer *service.Analyzer, cfg Config) *Worker {
	if cfg.Defaults.Madhab == "" || cfg.Defaults.Strictness == "" {
		def := domain.DefaultOptions()
		if cfg.Defaults.Madhab == "" {
			cfg.Defaults.Madhab = def.Madhab
		}
		if cfg.Defaults.Strictness == "" {
			cfg.Defaults.Strictness = def.Strictness
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        eventBus,
		analyzer:   analyzer,
		metrics:    cfg.Metrics,
		defaults:   cfg.Defaults,
		queueGroup: cfg.QueueGroup,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start subscribes to scanned products.
func (w *Worker) Start() error {
	sub, err := bus.Subscribe(w.ctx, w.bus, domain.TopicProductScanned, w.queueGroup, w.processScan)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicProductScanned, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("worker started",
		"topic", domain.TopicProductScanned,
		"queue_group", w.queueGroup,
	)
	return nil
}

// ScanMessage is the payload of a scanned product event.
type ScanMessage struct {
	domain.ProductInput
	Madhab     string `json:"madhab,omitempty"`
	Strictness string `json:"strictness,omitempty"`
	TraceID    string `json:"traceId,omitempty"`
}

// AlertMessage is published when alert rules trigger on an analysis.
type AlertMessage struct {
	AnalysisID string        `json:"analysisId"`
	Barcode    string        `json:"barcode,omitempty"`
	Status     domain.Status `json:"status"`
	Alerts     []string      `json:"alerts"`
}

// Reply answers a scan sent with Request.
type Reply struct {
	Record *domain.AnalysisRecord `json:"record,omitempty"`
	Cached bool                   `json:"cached"`
	Error  string                 `json:"error,omitempty"`
}

// Options resolves the message's madhab and strictness against defaults.
func (m *ScanMessage) Options(defaults domain.Options) (domain.Options, error) {
	opts := defaults
	if m.Madhab != "" {
		madhab, ok := domain.ParseMadhab(m.Madhab)
		if !ok {
			return opts, fmt.Errorf("unknown madhab %q", m.Madhab)
		}
		opts.Madhab = madhab
	}
	if m.Strictness != "" {
		strictness, ok := domain.ParseStrictness(m.Strictness)
		if !ok {
			return opts, fmt.Errorf("unknown strictness %q", m.Strictness)
		}
		opts.Strictness = strictness
	}
	return opts, nil
}

// processScan analyzes one scanned product and publishes the outcome.
func (w *Worker) processScan(ctx context.Context, msg *domain.Message) (err error) {
	start := time.Now()
	defer func() { w.metrics.BusMessage(msg.Topic, err) }()

	var scan ScanMessage
	if err := json.Unmarshal(msg.Payload, &scan); err != nil {
		slog.Error("failed to parse scan message",
			"message_id", msg.ID,
			"error", err,
		)
		w.reply(ctx, msg, Reply{Error: "invalid scan message"})
		return err
	}

	opts, err := scan.Options(w.defaults)
	if err != nil {
		w.reply(ctx, msg, Reply{Error: err.Error()})
		return err
	}

	traceID := scan.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing scan",
		"barcode", scan.Barcode,
		"trace_id", traceID,
	)

	res, err := w.analyzer.Analyze(ctx, &service.Request{
		Input:   scan.ProductInput,
		Options: opts,
		TraceID: traceID,
	})
	if err != nil {
		slog.Error("analysis failed",
			"barcode", scan.Barcode,
			"error", err,
		)
		w.reply(ctx, msg, Reply{Error: "analysis failed"})
		return err
	}
	rec := res.Record

	payload, _ := json.Marshal(rec)
	if err := w.bus.Publish(ctx, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Error("failed to publish analysis",
			"analysis_id", rec.ID,
			"error", err,
		)
	}

	if len(rec.Alerts) > 0 {
		alert, _ := json.Marshal(AlertMessage{
			AnalysisID: rec.ID,
			Barcode:    rec.Barcode,
			Status:     rec.Analysis.Status,
			Alerts:     rec.Alerts,
		})
		if err := w.bus.Publish(ctx, domain.TopicAlert, alert); err != nil {
			slog.Error("failed to publish alert",
				"analysis_id", rec.ID,
				"error", err,
			)
		}
	}

	w.reply(ctx, msg, Reply{Record: rec, Cached: res.Cached})

	slog.Info("scan processed",
		"analysis_id", rec.ID,
		"barcode", rec.Barcode,
		"status", rec.Analysis.Status,
		"tier", rec.Analysis.Tier,
		"cached", res.Cached,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (w *Worker) reply(ctx context.Context, msg *domain.Message, r Reply) {
	payload, _ := json.Marshal(r)
	if err := bus.Respond(ctx, w.bus, msg, payload); err != nil {
		slog.Error("failed to send reply",
			"message_id", msg.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
