package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/kir-gadjello/ant-router/pkg/config"
	"github.com/kir-gadjello/ant-router/pkg/journal"
	"github.com/kir-gadjello/ant-router/pkg/observability"
	"github.com/kir-gadjello/ant-router/pkg/ratelimit"
	"github.com/kir-gadjello/ant-router/pkg/upstream"
)

// Server is the process's single HTTP chassis: one chi.Router mounting
// §4.9's endpoints, backed by the shared Executor, the resolved
// Config, the observability Manager, the optional rate limiter, and the
// request journal.
type Server struct {
	cfg         *config.Config
	obs         *observability.Manager
	executor    *upstream.Executor
	rateLimiter ratelimit.RateLimiter
	journal     *journal.Journal
	version     string

	router     chi.Router
	httpServer *http.Server
}

// New builds a Server and mounts its routes. cfg is treated as read-only
// for the lifetime of the Server, per §9's "shared read-only config" note
// - there is no hot-reload in this proxy. rateLimiter may be nil (C14
// disabled); obs may be a Manager built from a nil *observability.Config
// (every accessor on a nil-ish Manager degrades to a no-op/disabled state).
func New(cfg *config.Config, obs *observability.Manager, executor *upstream.Executor, rateLimiter ratelimit.RateLimiter, jrnl *journal.Journal, version string) *Server {
	s := &Server{
		cfg:         cfg,
		obs:         obs,
		executor:    executor,
		rateLimiter: rateLimiter,
		journal:     jrnl,
		version:     version,
	}
	s.router = s.buildRouter()
	return s
}

// Address is the host:port the server will listen on (or is listening on).
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// Handler exposes the fully wrapped router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter assembles the chi.Router and its middleware stack. chi runs
// middleware in registration order, so panic recovery is outermost, then
// request-scoped logger injection, then CORS, and the observability
// span/metric wrapper is innermost: responses that CORS answers itself
// (preflight requests) never reach it.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(recoverMiddleware)
	r.Use(requestLoggerMiddleware)
	r.Use(corsMiddleware())
	r.Use(observabilityMiddleware(s.obs))

	r.Get("/health", s.handleHealth)
	if s.obs.MetricsEnabled() {
		r.Get(s.obs.MetricsEndpoint(), s.obs.MetricsHandler().ServeHTTP)
	}
	r.Post("/v1/messages", s.handleMessages)
	r.Post("/v1/chat/completions", s.handleChatCompletions)

	return r
}

// corsMiddleware builds the permissive-by-default CORS layer. This is a
// developer proxy, not a multi-tenant edge, so every origin/method/header
// is allowed unless a future config knob narrows it.
func corsMiddleware() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// observabilityMiddleware wraps the chain in a tracer/metrics span,
// degrading cleanly when obs is nil or its components are disabled -
// observability.HTTPMiddleware already nil-checks both arguments.
func observabilityMiddleware(obs *observability.Manager) func(http.Handler) http.Handler {
	return observability.HTTPMiddleware(obs.Tracer(), obs.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// Start binds the listener and serves until ctx is cancelled, per §4.8's
// graceful-shutdown contract: SIGINT/SIGTERM (handled by the caller, which
// cancels ctx) trigger a bounded Shutdown rather than an abrupt exit.
// Matches the pack's ListenAndServe-in-a-goroutine + errCh + ctx.Done()
// race (_examples/kadirpekel-hector/pkg/server/http.go).
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // unbounded: a streaming SSE response may run far longer than any fixed write timeout
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests within a bounded grace period before
// closing the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if s.obs != nil {
		_ = s.obs.Shutdown(shutdownCtx)
	}
	return nil
}
