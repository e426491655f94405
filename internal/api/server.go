package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-food/mizan/internal/domain"
)

// Server is the Mizan HTTP API.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer wires the middleware stack and routes over deps.
func NewServer(cfg domain.ServerConfig, deps Deps) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		handler: NewHandler(deps),
		config:  cfg,
	}

	s.router.Use(CORSMiddleware(cfg.CORSOrigins))
	s.router.Use(RecoverMiddleware)
	s.router.Use(TracingMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(MetricsMiddleware(deps.Metrics))
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Compress(5))

	s.routes(deps)
	return s
}

func (s *Server) routes(deps Deps) {
	h := s.handler

	// Probes and scraping
	s.router.Get("/health", h.Health)
	s.router.Get("/ready", h.Ready)
	s.router.Handle("/metrics", deps.Metrics.Handler())

	// Verdicts
	s.router.Post("/analyze", h.Analyze)
	s.router.Get("/analyses/{id}", h.GetAnalysis)
	s.router.Get("/additives/{code}", h.GetAdditive)

	// Corpus administration
	s.router.Route("/rules", func(r chi.Router) {
		r.Get("/ingredients", h.ListIngredientRules)
		r.Post("/ingredients", h.CreateIngredientRule)
		r.Post("/reload", h.ReloadIngredientRules)
	})
	s.router.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.ListAlertRules)
		r.Post("/", h.CreateAlertRule)
		r.Post("/reload", h.ReloadAlertRules)
	})
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadTimeout:       seconds(s.config.ReadTimeout, 30),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      seconds(s.config.WriteTimeout, 30),
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}

	slog.Info("http server listening", "addr", ln.Addr().String())
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return http.ErrServerClosed
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
