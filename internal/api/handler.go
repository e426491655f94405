package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-food/mizan/internal/alerts"
	"github.com/opensource-food/mizan/internal/cache"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/engine"
	"github.com/opensource-food/mizan/internal/matcher"
	"github.com/opensource-food/mizan/internal/metrics"
	"github.com/opensource-food/mizan/internal/repository"
	"github.com/opensource-food/mizan/internal/service"
	"github.com/opensource-food/mizan/internal/worker"
)

// Deps holds the collaborators of the API. Repo, Cache, Bus and Alerts may be nil.
type Deps struct {
	Repo domain.Repository

	// Rules is the rule view the engine reads, typically Repo layered over
	// the legacy additive table. It defaults to Repo.
	Rules domain.RuleRepository

	Cache    domain.Cache
	Bus      domain.EventBus
	Engine   *engine.Engine
	Analyzer *service.Analyzer
	Alerts   *alerts.Engine
	Metrics  *metrics.Metrics

	// Defaults apply when a request names no madhab or strictness.
	Defaults domain.Options
	Version  string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	rules    domain.RuleRepository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	analyzer *service.Analyzer
	alerts   *alerts.Engine
	defaults domain.Options
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Rules == nil && deps.Repo != nil {
		deps.Rules = deps.Repo
	}
	if deps.Defaults.Madhab == "" {
		deps.Defaults.Madhab = domain.MadhabGeneral
	}
	if deps.Defaults.Strictness == "" {
		deps.Defaults.Strictness = domain.StrictnessModerate
	}
	return &Handler{
		repo:     deps.Repo,
		rules:    deps.Rules,
		cache:    deps.Cache,
		bus:      deps.Bus,
		engine:   deps.Engine,
		analyzer: deps.Analyzer,
		alerts:   deps.Alerts,
		defaults: deps.Defaults,
		version:  deps.Version,
	}
}

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	Barcode                 string   `json:"barcode,omitempty"`
	IngredientsText         string   `json:"ingredientsText,omitempty"`
	AdditivesTags           []string `json:"additivesTags,omitempty"`
	LabelsTags              []string `json:"labelsTags,omitempty"`
	IngredientsAnalysisTags []string `json:"ingredientsAnalysisTags,omitempty"`
	Madhab                  string   `json:"madhab,omitempty"`
	Strictness              string   `json:"strictness,omitempty"`
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	AnalysisID string               `json:"analysisId"`
	Barcode    string               `json:"barcode,omitempty"`
	Options    domain.Options       `json:"options"`
	Analysis   domain.HalalAnalysis `json:"analysis"`
	Alerts     []string             `json:"alerts"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
		Cached  bool   `json:"cached"`
	} `json:"metadata"`
}

func (req *AnalyzeRequest) input() domain.ProductInput {
	return domain.ProductInput{
		Barcode:                 req.Barcode,
		IngredientsText:         req.IngredientsText,
		AdditivesTags:           req.AdditivesTags,
		LabelsTags:              req.LabelsTags,
		IngredientsAnalysisTags: req.IngredientsAnalysisTags,
	}
}

// options validates the requested madhab and strictness.
func (h *Handler) options(madhab, strictness string) (domain.Options, string) {
	opts := h.defaults
	if madhab != "" {
		m, ok := domain.ParseMadhab(madhab)
		if !ok {
			return opts, "madhab must be one of general, hanafi, shafii, maliki, hanbali"
		}
		opts.Madhab = m
	}
	if strictness != "" {
		s, ok := domain.ParseStrictness(strictness)
		if !ok {
			return opts, "strictness must be one of relaxed, moderate, strict, very_strict"
		}
		opts.Strictness = s
	}
	return opts, ""
}

// Analyze handles POST /analyze requests.
// With ?async=true the product is published for the worker and 202 is returned.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	opts, msg := h.options(req.Madhab, req.Strictness)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.publishScan(w, r, &req, opts, traceID)
		return
	}

	if h.analyzer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "analyzer not available",
		})
		return
	}

	res, err := h.analyzer.Analyze(ctx, &service.Request{
		Input:   req.input(),
		Options: opts,
		TraceID: traceID,
	})
	if err != nil {
		slog.Error("analysis failed", "trace_id", traceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	rec := res.Record
	resp := AnalyzeResponse{
		AnalysisID: rec.ID,
		Barcode:    rec.Barcode,
		Options:    rec.Options,
		Analysis:   rec.Analysis,
		Alerts:     rec.Alerts,
	}
	if resp.Alerts == nil {
		resp.Alerts = []string{}
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version
	resp.Metadata.Cached = res.Cached

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) publishScan(w http.ResponseWriter, r *http.Request, req *AnalyzeRequest, opts domain.Options, traceID string) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	payload, _ := json.Marshal(worker.ScanMessage{
		ProductInput: req.input(),
		Madhab:       string(opts.Madhab),
		Strictness:   string(opts.Strictness),
		TraceID:      traceID,
	})
	if err := h.bus.Publish(r.Context(), domain.TopicProductScanned, payload); err != nil {
		slog.Error("failed to publish scan", "trace_id", traceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue analysis",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"traceId": traceID,
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports whether an ingredient rule snapshot can be served.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine != nil {
		if _, err := h.engine.Rules().Snapshot(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "ingredient rules unavailable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAnalysis retrieves a stored analysis by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rec, err := h.repo.GetAnalysis(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to get analysis", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load analysis",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// AdditiveResponse is the response for GET /additives/{code}.
type AdditiveResponse struct {
	Additive    domain.AdditiveRecord `json:"additive"`
	Madhab      domain.Madhab         `json:"madhab"`
	Status      domain.Status         `json:"status"`
	Explanation string                `json:"explanation"`

	// SchoolRuling is true when a madhab ruling replaced the default status.
	SchoolRuling bool `json:"schoolRuling"`
}

// GetAdditive returns an additive record and its status for ?madhab=.
func (h *Handler) GetAdditive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := domain.CanonicalAdditiveCode(chi.URLParam(r, "code"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "additive code is required",
		})
		return
	}

	opts, msg := h.options(r.URL.Query().Get("madhab"), "")
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	if h.rules == nil || h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule repository not available",
		})
		return
	}

	records, err := h.rules.FetchAdditivesByCodes(ctx, []string{code})
	if err != nil {
		slog.Error("failed to fetch additive", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load additive",
		})
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "additive not found",
		})
		return
	}

	results, err := h.engine.Additives().Resolve(ctx, []string{code}, opts.Madhab)
	if err != nil || len(results) == 0 {
		slog.Error("failed to resolve additive", "code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to resolve additive",
		})
		return
	}

	res := results[0]
	writeJSON(w, http.StatusOK, AdditiveResponse{
		Additive:     records[0],
		Madhab:       opts.Madhab,
		Status:       res.Status,
		Explanation:  res.Explanation,
		SchoolRuling: res.Madhab != "",
	})
}

// ListIngredientRules returns the active rule snapshot the engine matches against.
func (h *Handler) ListIngredientRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "engine not available",
		})
		return
	}

	snap, err := h.engine.Rules().Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to load ingredient rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load ingredient rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, snapshotBody(snap))
}

func snapshotBody(snap *engine.RuleSnapshot) map[string]interface{} {
	rules := make([]domain.IngredientRuling, len(snap.Rules))
	for i, c := range snap.Rules {
		rules[i] = c.Rule
	}
	quarantined := snap.Quarantined
	if quarantined == nil {
		quarantined = []matcher.Quarantined{}
	}
	return map[string]interface{}{
		"rules":       rules,
		"count":       len(rules),
		"quarantined": quarantined,
		"loadedAt":    snap.LoadedAt,
	}
}

// CreateIngredientRule validates, stores and activates an ingredient rule.
func (h *Handler) CreateIngredientRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.IngredientRuling
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if strings.TrimSpace(rule.ID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if !rule.RulingDefault.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rulingDefault must be a valid status",
		})
		return
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "confidence must be between 0 and 1",
		})
		return
	}
	if _, err := matcher.Compile(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo == nil || h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveIngredientRuling(ctx, &rule); err != nil {
		slog.Error("failed to save ingredient rule", "id", rule.ID, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{
			"error": "failed to save ingredient rule",
		})
		return
	}

	h.engine.Rules().Invalidate()
	h.purgeAnalyses(ctx)

	slog.Info("ingredient rule saved", "rule_id", rule.ID, "pattern", rule.Pattern)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule saved. It applies from the next analysis.",
	})
}

// ReloadIngredientRules drops the cached snapshot and loads a fresh one.
func (h *Handler) ReloadIngredientRules(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "engine not available",
		})
		return
	}

	h.engine.Rules().Invalidate()
	snap, err := h.engine.Rules().Refresh(r.Context())
	if err != nil {
		slog.Error("failed to reload ingredient rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload ingredient rules",
		})
		return
	}

	purged := h.purgeAnalyses(r.Context())

	slog.Info("ingredient rules reloaded",
		"count", len(snap.Rules),
		"quarantined", len(snap.Quarantined),
		"purged", purged,
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "ingredient rules reloaded successfully",
		"count":       len(snap.Rules),
		"quarantined": len(snap.Quarantined),
		"purged":      purged,
	})
}

// ListAlertRules returns all loaded alert rules.
func (h *Handler) ListAlertRules(w http.ResponseWriter, r *http.Request) {
	if h.alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "alert engine not available",
		})
		return
	}

	rules := h.alerts.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// CreateAlertRule validates an alert rule, stores it and loads it.
func (h *Handler) CreateAlertRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "alert engine not available",
		})
		return
	}

	var rule domain.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and expression are required",
		})
		return
	}

	if err := h.alerts.Validate(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if h.repo != nil {
		if err := h.repo.SaveAlertRule(ctx, &rule); err != nil {
			slog.Error("failed to save alert rule", "rule_id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save alert rule",
			})
			return
		}
	}

	if err := h.alerts.Load(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	h.purgeAnalyses(ctx)

	slog.Info("alert rule created", "rule_id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Alert rule saved and loaded.",
	})
}

// ReloadAlertRules reloads all alert rules from the database into the engine.
func (h *Handler) ReloadAlertRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if h.alerts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "alert engine not available",
		})
		return
	}

	dbRules, err := h.repo.ListAlertRules(ctx)
	if err != nil {
		slog.Error("failed to list alert rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load alert rules from database",
		})
		return
	}

	if err := h.alerts.Reload(dbRules); err != nil {
		slog.Error("failed to reload alert rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload alert rules: " + err.Error(),
		})
		return
	}

	h.purgeAnalyses(ctx)

	slog.Info("alert rules reloaded from database", "count", h.alerts.Count())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "alert rules reloaded successfully",
		"count":   h.alerts.Count(),
	})
}

// purgeAnalyses drops every cached analysis after a rule change, since a
// cached verdict or its alert list may no longer be what the engine answers.
// A failed purge is logged; entries then age out with their TTL.
func (h *Handler) purgeAnalyses(ctx context.Context) int {
	if h.cache == nil {
		return 0
	}
	n, err := h.cache.Purge(ctx, cache.AnalysisPrefix)
	if err != nil {
		slog.Warn("failed to purge cached analyses", "error", err)
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
