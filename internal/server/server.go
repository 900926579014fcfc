// Package server exposes hubgate's REST surface: catalog reads, device
// control, health, audit, and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/hubgate/internal/audit"
	"github.com/HerbHall/hubgate/internal/catalog"
	"github.com/HerbHall/hubgate/internal/control"
	"github.com/HerbHall/hubgate/internal/hub"
	"github.com/HerbHall/hubgate/internal/token"
)

// AccessoryReader is the authenticated read capability the server uses for
// catalog requests. Implemented by hub.Bridge.
type AccessoryReader interface {
	FetchAccessories(ctx context.Context) ([]hub.Accessory, error)
}

// Config carries the server's collaborators and tuning.
type Config struct {
	Addr       string
	APIToken   token.Token
	Reader     AccessoryReader
	Catalog    *catalog.Catalog
	Dispatcher *control.Dispatcher
	Audit      *audit.Store // optional
	RateLimit  rate.Limit
	RateBurst  int
}

// Server is the hubgate HTTP server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *zap.Logger

	apiToken   token.Token
	reader     AccessoryReader
	catalog    *catalog.Catalog
	dispatcher *control.Dispatcher
	audit      *audit.Store
	limiter    *rate.Limiter
}

// New creates a Server with all routes registered.
func New(cfg Config, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:        mux,
		logger:     logger,
		apiToken:   cfg.APIToken,
		reader:     cfg.Reader,
		catalog:    cfg.Catalog,
		dispatcher: cfg.Dispatcher,
		audit:      cfg.Audit,
		limiter:    rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
	}

	s.registerRoutes()
	return s
}

// registerRoutes mounts the full REST surface. /health and /metrics are
// unauthenticated; everything under /api requires the bearer token.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.withMetrics(s.handleHealth))
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /api/devices", s.protected(s.handleListDevices))
	s.mux.HandleFunc("GET /api/devices/type/{type}", s.protected(s.handleDevicesByType))
	s.mux.HandleFunc("GET /api/devices/{id}", s.protected(s.handleGetDevice))
	s.mux.HandleFunc("POST /api/devices/{id}/control", s.protected(s.handleControlOne))
	s.mux.HandleFunc("POST /api/devices/control", s.protected(s.handleControlBatch))
	s.mux.HandleFunc("GET /api/audit", s.protected(s.handleListAudit))
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
