package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/errors"
	"github.com/felloworks/wheelwright/internal/metrics"
)

// HTTPServer serves the daemon's admin API.
type HTTPServer struct {
	config       *config.Config
	daemon       *Daemon
	server       *http.Server
	errorAdapter *errors.HTTPErrorAdapter
	mchain       func(http.Handler) http.Handler
}

// NewHTTPServer creates the admin HTTP server for a daemon. The config is
// captured at construction, request handlers read the daemon's live config.
func NewHTTPServer(cfg *config.Config, daemon *Daemon) *HTTPServer {
	s := &HTTPServer{
		config:       cfg,
		daemon:       daemon,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
	s.mchain = middlewareChain(slog.Default(), s.errorAdapter)
	return s
}

// Start binds the admin listener and begins serving. The port is bound
// synchronously so a busy address fails daemon startup instead of logging
// from a goroutine later.
func (s *HTTPServer) Start(_ context.Context) error {
	addr := ":8080"
	if s.config.Daemon != nil && s.config.Daemon.Listen != "" {
		addr = s.config.Daemon.Listen
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin listener %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/release", s.handleTriggerRelease)
	mux.HandleFunc("/api/releases", s.handleReleases)
	if s.config.Metrics.Enabled && s.daemon.registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.daemon.registry))
	}

	s.server = &http.Server{
		Handler:      s.mchain(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("Admin server error", "error", err)
		}
	}()

	slog.Info("Admin server started", "addr", addr)
	return nil
}

// Stop gracefully shuts down the admin server.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	slog.Info("Admin server stopped")
	return nil
}
