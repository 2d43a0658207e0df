// Package server exposes a running tuning session over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/server/middleware"
	"github.com/haskel/codvfs/internal/session"
	"github.com/haskel/codvfs/internal/storage"
)

// Source is the session state the server reports on.
type Source interface {
	Progress() session.Progress
	Entries() []storage.Entry
}

type Server struct {
	httpServer *http.Server
	source     Source
	host       *monitor.Aggregator
	metrics    http.Handler
	logger     *slog.Logger
	version    string
	authConfig *middleware.AuthConfig
}

// New builds the status server. host and metrics may be nil, in which
// case host load is omitted from /status and /metrics is not served.
func New(cfg *config.Config, src Source, host *monitor.Aggregator, metrics http.Handler, logger *slog.Logger, version string) *Server {
	authConfig := middleware.NewAuthConfig(cfg.Auth.Enabled, cfg.Auth.User, cfg.Auth.Password)

	s := &Server{
		source:     src,
		host:       host,
		metrics:    metrics,
		logger:     logger,
		version:    version,
		authConfig: authConfig,
	}

	handler := middleware.Chain(
		s.setupRoutes(),
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.NoStore(),
		middleware.RateLimit(&middleware.RateLimitConfig{
			Enabled:           cfg.Server.RateLimit.Enabled,
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		}),
		middleware.Auth(authConfig, "/health"),
	)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ReloadAuth swaps the basic auth credentials of a running server.
func (s *Server) ReloadAuth(cfg config.AuthConfig) {
	s.authConfig.Update(cfg.Enabled, cfg.User, cfg.Password)
	s.logger.Info("auth configuration reloaded", "auth_enabled", cfg.Enabled)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks until the server stops. http.ErrServerClosed is not an
// error.
func (s *Server) Start() error {
	s.logger.Info("status server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("status server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
