// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/monitoring"
	"github.com/sells-group/recipe-cli/internal/pipeline"
	"github.com/sells-group/recipe-cli/internal/store"
)

const (
	streamTimeout   = 2 * time.Minute
	syncTimeout     = 90 * time.Second
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

// Options wires a Server. Checker and Metrics may be nil.
type Options struct {
	Config       config.ServerConfig
	Auth         Authenticator
	Orchestrator *pipeline.Orchestrator
	// Web serves the synchronous endpoint, which skips cache and quota.
	Web     pipeline.Extractor
	Store   store.Store
	Checker *monitoring.Checker
	Metrics *monitoring.Metrics
	Now     func() time.Time
}

// Server holds the HTTP handlers.
type Server struct {
	cfg     config.ServerConfig
	auth    Authenticator
	orch    *pipeline.Orchestrator
	web     pipeline.Extractor
	store   store.Store
	checker *monitoring.Checker
	metrics *monitoring.Metrics
	now     func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		cfg:     opts.Config,
		auth:    opts.Auth,
		orch:    opts.Orchestrator,
		web:     opts.Web,
		store:   opts.Store,
		checker: opts.Checker,
		metrics: opts.Metrics,
		now:     now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/extract-stream", s.handleExtractStream)
		r.Post("/extract", s.handleExtract)
		r.Post("/share", s.handleCreateShare)
		r.Get("/share/{id}", s.handleGetShare)
	})
	return r
}

// Run serves on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("server: listening", zap.Int("port", s.cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server: listen")
	case <-ctx.Done():
	}

	zap.L().Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	h := s.checker.Check(r.Context())
	status := http.StatusOK
	label := "ok"
	if !h.StoreOK {
		status = http.StatusServiceUnavailable
		label = "degraded"
	}
	writeJSON(w, status, struct {
		Status string `json:"status"`
		monitoring.Health
	}{Status: label, Health: h})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
