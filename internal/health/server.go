// Package health exposes HTTP health and metrics endpoints for container
// probes and scraping.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

const (
	dbPingTimeout     = 2 * time.Second
	readHeaderTimeout = 2 * time.Second
)

// DatabaseChecker defines the subset of store behavior required for health.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// Server hosts the health and metrics endpoints.
type Server struct {
	server    *http.Server
	logger    *logrus.Entry
	dbChecker DatabaseChecker
}

type response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// NewServer constructs a server exposing GET /healthz and GET /metrics on
// the provided port.
func NewServer(port int, dbChecker DatabaseChecker, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:    logger,
		dbChecker: dbChecker,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}
	dbStatus := "ok"

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.dbChecker == nil {
		dbStatus = "error"
		s.logger.WithField("event", "health_db_missing").Warn("database checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		err := s.dbChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			dbStatus = "error"
			s.logger.WithField("event", "health_db_error").WithError(err).Warn("database ping failed during health check")
		}
	}

	if dbStatus != "ok" {
		resp.Status = "degraded"
		resp.Database = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}
