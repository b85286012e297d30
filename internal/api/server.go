// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the optional status endpoints of a running grab.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/ManuGH/epgsnoop/internal/api/middleware"
	"github.com/ManuGH/epgsnoop/internal/health"
	"github.com/ManuGH/epgsnoop/internal/jobs"
	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/version"
)

const (
	// DefaultShutdownTimeout bounds graceful shutdown once the grab ends.
	DefaultShutdownTimeout = 5 * time.Second
	// MaxConnections caps concurrent status connections.
	MaxConnections = 16
)

// StatusFunc reports the state of the grab being served.
type StatusFunc func() jobs.Status

// Server exposes /healthz, /readyz, /status and /metrics.
type Server struct {
	status StatusFunc
	health *health.Manager
	router chi.Router

	ShutdownTimeout time.Duration
}

// New builds the router. status must be safe for concurrent use; a nil
// hm serves liveness without component checks.
func New(status StatusFunc, hm *health.Manager) *Server {
	if hm == nil {
		hm = health.NewManager(version.Version)
	}
	s := &Server{
		status:          status,
		health:          hm,
		ShutdownTimeout: DefaultShutdownTimeout,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(middleware.Metrics())
	r.Use(middleware.Logging())
	r.Use(middleware.StatusRateLimit())

	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("status server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.WithComponentFromContext(ctx, "api")
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln = netutil.LimitListener(ln, MaxConnections)
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str(log.FieldEvent, "api.listen").
			Str("addr", ln.Addr().String()).
			Msg("status server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("status server failed")
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	// bounded even though the parent context is already cancelled
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	logger.Debug().Str(log.FieldEvent, "api.stopped").Msg("status server stopped")
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no grab running"})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
