// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/internal/state"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
	maxWait         = 5 * time.Minute
)

// Config holds the server settings. Only Addr is required to Start;
// History and Metrics enable their routes when set.
type Config struct {
	Addr    string
	History state.RunReader
	Metrics http.Handler
}

// Server serves the run API.
type Server struct {
	orch       *orchestrator.Orchestrator
	cfg        Config
	httpServer *http.Server
}

// New creates a Server for the orchestrator.
func New(orch *orchestrator.Orchestrator, cfg Config) *Server {
	return &Server{orch: orch, cfg: cfg}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleSubmit)
			r.Post("/sync", s.handleExecute)
			r.Get("/{id}", s.handleGetRun)
			r.Delete("/{id}", s.handleCancel)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Get("/{id}", s.handleGetAgent)
			r.Post("/{id}/reset", s.handleResetAgent)
			r.Post("/{id}/offline", s.handleOfflineAgent)
		})

		r.Get("/capabilities", s.handleCapabilities)
		r.Get("/pipelines", s.handlePipelines)
		r.Get("/stats", s.handleStats)

		if s.cfg.History != nil {
			r.Get("/history", s.handleListHistory)
			r.Get("/history/{id}", s.handleGetHistory)
		}
	})
	return r
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	log.Printf("[server] stopped")
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("[server] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}
