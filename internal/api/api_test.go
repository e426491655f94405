package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opensource-food/mizan/internal/alerts"
	"github.com/opensource-food/mizan/internal/bus"
	"github.com/opensource-food/mizan/internal/cache"
	"github.com/opensource-food/mizan/internal/corpus"
	"github.com/opensource-food/mizan/internal/domain"
	"github.com/opensource-food/mizan/internal/engine"
	"github.com/opensource-food/mizan/internal/metrics"
	"github.com/opensource-food/mizan/internal/repository"
	"github.com/opensource-food/mizan/internal/service"
)

type testEnv struct {
	server *Server
	repo   *repository.SQLRepository
	bus    *bus.ChannelBus
}

// createTestServer wires a seeded sqlite repository, the legacy fallback,
// an in-memory cache, a channel bus and one alert rule.
func createTestServer(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: t.TempDir() + "/api.db"})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	if _, err := repository.Seed(ctx, repo, corpus.Default()); err != nil {
		t.Fatalf("failed to seed repository: %v", err)
	}

	m := metrics.New()
	rules := repository.NewLayered(repo, repository.NewStatic(corpus.LegacySet()))
	eng := engine.New(rules, engine.Config{Metrics: m})

	alertEngine, err := alerts.NewEngine(2, nil, m)
	if err != nil {
		t.Fatalf("failed to create alert engine: %v", err)
	}
	alertEngine.Load(&domain.AlertRule{ID: "haram", Name: "Haram", Expression: `status == "haram"`, Enabled: true})

	c := cache.NewMemory(100)
	eventBus := bus.NewChannelBus(100)
	t.Cleanup(func() { eventBus.Close() })

	analyzer := service.NewAnalyzer(service.Config{
		Engine:   eng,
		Repo:     repo,
		Cache:    c,
		Alerts:   alertEngine,
		Metrics:  m,
		CacheTTL: time.Hour,
	})

	cfg := domain.ServerConfig{Host: "localhost", Port: 8080, ReadTimeout: 30, WriteTimeout: 30}
	server := NewServer(cfg, Deps{
		Repo:     repo,
		Rules:    rules,
		Cache:    c,
		Bus:      eventBus,
		Engine:   eng,
		Analyzer: analyzer,
		Alerts:   alertEngine,
		Metrics:  m,
		Defaults: domain.DefaultOptions(),
		Version:  "test-v1",
	})

	return &testEnv{server: server, repo: repo, bus: eventBus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := createTestServer(t)

	t.Run("SuccessfulAnalysis", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{
			Barcode:         "3017620422003",
			IngredientsText: "Graisse de porc, sel",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp AnalyzeResponse
		decode(t, rr, &resp)

		if resp.AnalysisID == "" {
			t.Error("expected analysisId")
		}
		if resp.Analysis.Status != domain.StatusHaram || resp.Analysis.Tier != domain.TierHaram {
			t.Errorf("expected haram/haram, got %s/%s", resp.Analysis.Status, resp.Analysis.Tier)
		}
		if len(resp.Alerts) != 1 || resp.Alerts[0] != "haram" {
			t.Errorf("expected haram alert, got %v", resp.Alerts)
		}
		if resp.Options != domain.DefaultOptions() {
			t.Errorf("expected default options, got %+v", resp.Options)
		}
		if resp.Metadata.Version != "test-v1" || resp.Metadata.TraceID == "" {
			t.Errorf("unexpected metadata %+v", resp.Metadata)
		}
		if resp.Metadata.Cached {
			t.Error("first analysis should not be cached")
		}
	})

	t.Run("IdenticalRequestIsCached", func(t *testing.T) {
		req := AnalyzeRequest{AdditivesTags: []string{"en:e120"}, Madhab: "Maliki"}

		first := env.do(t, http.MethodPost, "/analyze", req)
		second := env.do(t, http.MethodPost, "/analyze", req)

		var a, b AnalyzeResponse
		decode(t, first, &a)
		decode(t, second, &b)

		if !b.Metadata.Cached || a.AnalysisID != b.AnalysisID {
			t.Errorf("expected cached replay of %s, got %s (cached=%v)", a.AnalysisID, b.AnalysisID, b.Metadata.Cached)
		}
		if b.Analysis.Status != domain.StatusHalal {
			t.Errorf("carmine should be halal for maliki, got %s", b.Analysis.Status)
		}
	})

	t.Run("AlertsIsNeverNull", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{IngredientsText: "eau, sucre"})
		if !strings.Contains(rr.Body.String(), `"alerts":[]`) {
			t.Errorf("expected empty alerts array, got %s", rr.Body.String())
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", "invalid json")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidMadhab", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{Madhab: "zahiri"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidStrictness", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{Strictness: "lax"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{IngredientsText: "eau"})
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID header")
		}
		if rr.Header().Get(TraceIDHeader) == "" {
			t.Error("expected X-Trace-ID header")
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
	})

	t.Run("AsyncPublishesScan", func(t *testing.T) {
		received := make(chan *domain.Message, 1)
		sub, _ := env.bus.Subscribe(context.Background(), domain.TopicProductScanned, func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		defer sub.Unsubscribe()

		rr := env.do(t, http.MethodPost, "/analyze?async=true", AnalyzeRequest{Barcode: "123", Strictness: "strict"})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
		}

		select {
		case msg := <-received:
			var scan struct {
				Barcode    string `json:"barcode"`
				Madhab     string `json:"madhab"`
				Strictness string `json:"strictness"`
			}
			json.Unmarshal(msg.Payload, &scan)
			if scan.Barcode != "123" || scan.Madhab != "general" || scan.Strictness != "strict" {
				t.Errorf("unexpected scan payload %s", msg.Payload)
			}
		case <-time.After(time.Second):
			t.Fatal("expected scan message on the bus")
		}
	})
}

func TestAnalyzeWithoutDependencies(t *testing.T) {
	server := NewServer(domain.ServerConfig{}, Deps{Version: "test"})

	for _, path := range []string{"/analyze", "/analyze?async=true"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected status 503, got %d", path, rr.Code)
		}
	}
}

func TestGetAnalysis(t *testing.T) {
	env := createTestServer(t)

	rr := env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{Barcode: "42", LabelsTags: []string{"fr:avs"}})
	var created AnalyzeResponse
	decode(t, rr, &created)

	t.Run("Found", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/analyses/"+created.AnalysisID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var rec domain.AnalysisRecord
		decode(t, rr, &rec)
		if rec.Barcode != "42" || rec.Analysis.Tier != domain.TierCertified {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/analyses/does-not-exist", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestGetAdditive(t *testing.T) {
	env := createTestServer(t)

	tests := []struct {
		name         string
		path         string
		code         int
		status       domain.Status
		schoolRuling bool
	}{
		{"default ruling", "/additives/E120", http.StatusOK, domain.StatusHaram, false},
		{"maliki ruling", "/additives/en:e120?madhab=maliki", http.StatusOK, domain.StatusHalal, true},
		{"variant suffix", "/additives/e322i", http.StatusOK, "", false},
		{"legacy fallback", "/additives/E913", http.StatusOK, domain.StatusDoubtful, false},
		{"unknown code", "/additives/E99999", http.StatusNotFound, "", false},
		{"invalid madhab", "/additives/E120?madhab=zahiri", http.StatusBadRequest, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.path, nil)
			if rr.Code != tt.code {
				t.Fatalf("expected status %d, got %d: %s", tt.code, rr.Code, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				return
			}
			var resp AdditiveResponse
			decode(t, rr, &resp)
			if tt.status != "" && resp.Status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, resp.Status)
			}
			if resp.SchoolRuling != tt.schoolRuling {
				t.Errorf("expected schoolRuling %v, got %v", tt.schoolRuling, resp.SchoolRuling)
			}
		})
	}
}

func TestIngredientRuleEndpoints(t *testing.T) {
	env := createTestServer(t)

	var before struct {
		Count int `json:"count"`
	}
	decode(t, env.do(t, http.MethodGet, "/rules/ingredients", nil), &before)
	if before.Count == 0 {
		t.Fatal("expected seeded ingredient rules")
	}

	t.Run("CreateRuleAppliesToNextAnalysis", func(t *testing.T) {
		// Warm the analysis cache so the new rule must purge it.
		var warm AnalyzeResponse
		decode(t, env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{IngredientsText: "cerises, kirsch"}), &warm)
		if warm.Analysis.Status == domain.StatusHaram {
			t.Fatal("kirsch should be unknown before the rule exists")
		}

		rule := domain.IngredientRuling{
			ID:            "test-kirsch",
			Pattern:       "kirsch",
			MatchType:     domain.MatchWordBoundary,
			Priority:      90,
			RulingDefault: domain.StatusHaram,
			Confidence:    0.95,
			Category:      "alcohol",
			Explanation:   "Cherry brandy.",
			Active:        true,
		}
		rr := env.do(t, http.MethodPost, "/rules/ingredients", rule)
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp AnalyzeResponse
		decode(t, env.do(t, http.MethodPost, "/analyze", AnalyzeRequest{IngredientsText: "cerises, kirsch"}), &resp)
		if resp.Analysis.Status != domain.StatusHaram {
			t.Errorf("new rule should apply immediately, got %s", resp.Analysis.Status)
		}
		if resp.Metadata.Cached {
			t.Error("the cached pre-rule analysis should have been purged")
		}

		var after struct {
			Count int `json:"count"`
		}
		decode(t, env.do(t, http.MethodGet, "/rules/ingredients", nil), &after)
		if after.Count != before.Count+1 {
			t.Errorf("expected %d rules, got %d", before.Count+1, after.Count)
		}
	})

	t.Run("InvalidRules", func(t *testing.T) {
		bad := []domain.IngredientRuling{
			{ID: "bad-regex", Pattern: "(unclosed", MatchType: domain.MatchRegex, RulingDefault: domain.StatusHaram},
			{ID: "bad-type", Pattern: "x", MatchType: "fuzzy", RulingDefault: domain.StatusHaram},
			{ID: "bad-status", Pattern: "x", MatchType: domain.MatchContains, RulingDefault: "maybe"},
			{Pattern: "x", MatchType: domain.MatchContains, RulingDefault: domain.StatusHaram},
		}
		for _, rule := range bad {
			if rr := env.do(t, http.MethodPost, "/rules/ingredients", rule); rr.Code != http.StatusBadRequest {
				t.Errorf("rule %q: expected status 400, got %d", rule.ID, rr.Code)
			}
		}
	})

	t.Run("Reload", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/rules/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	})
}

func TestAlertRuleEndpoints(t *testing.T) {
	env := createTestServer(t)

	t.Run("List", func(t *testing.T) {
		var resp struct {
			Count int `json:"count"`
		}
		decode(t, env.do(t, http.MethodGet, "/alerts", nil), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 alert rule, got %d", resp.Count)
		}
	})

	t.Run("Create", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/alerts", domain.AlertRule{
			ID:         "insects",
			Name:       "Insect-derived",
			Expression: `"insect" in categories`,
			Enabled:    true,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("CreateInvalid", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/alerts", domain.AlertRule{ID: "bad", Expression: `confidence + 1.0`, Enabled: true})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("ReloadFromDatabase", func(t *testing.T) {
		// Only the rule created through the API is stored; the haram rule was loaded in memory.
		var resp struct {
			Count int `json:"count"`
		}
		rr := env.do(t, http.MethodPost, "/alerts/reload", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		decode(t, rr, &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 rule after reload, got %d", resp.Count)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	env := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/health", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		decode(t, rr, &resp)
		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/ready", nil)
		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		env.do(t, http.MethodGet, "/health", nil)
		rr := env.do(t, http.MethodGet, "/metrics", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		body := rr.Body.String()
		if !strings.Contains(body, "mizan_http_requests_total") {
			t.Error("expected HTTP request metrics in exposition")
		}
		if !strings.Contains(body, `route="/health"`) {
			t.Error("expected requests to be labelled by route pattern")
		}
	})
}

func TestServerServeAndShutdown(t *testing.T) {
	env := createTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- env.server.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never answered: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("expected ErrServerClosed, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var ctxTraceID string
		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctxTraceID = GetTraceID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Header().Get(RequestIDHeader) == "" {
			t.Error("expected X-Request-ID header to be set")
		}
		if ctxTraceID == "" || ctxTraceID != rr.Header().Get(TraceIDHeader) {
			t.Errorf("context trace id %q does not match header %q", ctxTraceID, rr.Header().Get(TraceIDHeader))
		}
	})

	t.Run("TracingMiddlewareKeepsRequestID", func(t *testing.T) {
		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if got := rr.Header().Get(RequestIDHeader); got != "req-123" {
			t.Errorf("expected request id req-123, got %s", got)
		}
	})

	t.Run("CORSPreflight", func(t *testing.T) {
		handler := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("preflight should not reach the handler")
		}))

		req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
		req.Header.Set("Origin", "https://example.org")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rr.Code)
		}
		if rr.Header().Get("Access-Control-Allow-Origin") != "https://example.org" {
			t.Error("expected origin to be echoed")
		}
	})

	t.Run("CORSAllowList", func(t *testing.T) {
		var reached int
		handler := CORSMiddleware([]string{"https://app.example.org/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached++
		}))

		tests := []struct {
			method string
			origin string
			code   int
			allow  string
		}{
			{http.MethodOptions, "https://app.example.org", http.StatusNoContent, "https://app.example.org"},
			{http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
			{http.MethodGet, "https://evil.example", http.StatusOK, ""},
			{http.MethodGet, "", http.StatusOK, "*"},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(tt.method, "/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.code {
				t.Errorf("%s from %q: expected %d, got %d", tt.method, tt.origin, tt.code, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.allow {
				t.Errorf("%s from %q: expected allow origin %q, got %q", tt.method, tt.origin, tt.allow, got)
			}
		}
		if reached != 2 {
			t.Errorf("expected 2 requests to reach the handler, got %d", reached)
		}
	})

	t.Run("StatusRecorderCountsBytes", func(t *testing.T) {
		rr := httptest.NewRecorder()
		rec := newStatusRecorder(rr)
		rec.WriteHeader(http.StatusTeapot)
		rec.Write([]byte("short and stout"))

		if rec.status != http.StatusTeapot || rec.bytes != 15 {
			t.Errorf("unexpected recorder state: status=%d bytes=%d", rec.status, rec.bytes)
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
