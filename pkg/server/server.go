package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"civility-hq/kernel/pkg/config"
	"civility-hq/kernel/pkg/decision"
	"civility-hq/kernel/pkg/evidence"
	"civility-hq/kernel/pkg/policy/lint"
	"civility-hq/kernel/pkg/server/middleware"
	"civility-hq/kernel/pkg/telemetry/health"
	"civility-hq/kernel/pkg/telemetry/metrics"
	"civility-hq/kernel/pkg/telemetry/tracing"
)

// Deps are the components the server exposes. Decisions and Policy are
// required; the rest are optional and their routes are skipped or answer
// 503 when absent.
type Deps struct {
	Decisions *decision.Service
	Policy    decision.PolicySource
	Lint      lint.Deps
	Storage   evidence.Storage
	Metrics   *metrics.Collector
	Health    *health.Checker
	Tracer    *tracing.Tracer
	Version   health.VersionInfo
}

// Server is the decision API served by the watch daemon.
type Server struct {
	config       *config.Config
	deps         Deps
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. It does not listen until Start.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is nil")
	}
	if deps.Decisions == nil || deps.Policy == nil {
		return nil, errors.New("server requires a decision service and a policy source")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}, nil
}

// Start listens on the configured address and blocks until ctx is done or
// the listener fails. Cancelling ctx shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	watch := s.config.Watch
	s.httpServer = &http.Server{
		Addr:         watch.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  watch.ReadTimeout,
		WriteTimeout: watch.WriteTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting decision API", "address", watch.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Context cancelled, shutting down decision API")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		running := s.isRunning
		s.mu.Unlock()
		if !running || srv == nil {
			return
		}

		timeout := s.config.Watch.ShutdownTimeout
		s.logger.Info("Initiating graceful shutdown", "timeout", timeout.String())

		shutdownCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("Decision API stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/decide", s.handleDecide)
	mux.HandleFunc("GET /v1/policy", s.handlePolicy)
	mux.HandleFunc("POST /v1/lint", s.handleLint)
	mux.HandleFunc("GET /v1/traces", s.handleListTraces)
	mux.HandleFunc("GET /v1/traces/{id}", s.handleGetTrace)

	tel := s.config.Telemetry
	if s.deps.Metrics != nil && tel.Metrics.Enabled {
		mux.Handle(tel.Metrics.Path, s.deps.Metrics.Handler())
	}
	if s.deps.Health != nil && tel.Health.Enabled {
		health.Register(mux, s.deps.Health, tel.Health.LivenessPath, tel.Health.ReadinessPath, s.deps.Version)
	}

	var handler http.Handler = mux
	handler = middleware.MaxBytesMiddleware(s.config.Watch.MaxRequestBytes)(handler)
	handler = middleware.TracingMiddleware(s.deps.Tracer)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	return handler
}
