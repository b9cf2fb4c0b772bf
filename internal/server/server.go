// Package server provides the HTTP presentation surface for mudra.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/server/api"
)

const shutdownTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Pipeline  api.Pipeline
	Stream    *StreamHandler
	Metrics   *metrics.Manager
	// WSRateHz caps transform pushes per websocket client.
	WSRateHz float64
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	events *EventsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Pipeline endpoints need a running application
	if p := s.config.Pipeline; p != nil {
		readiness := api.NewReadinessHandler(p)
		s.mux.Handle("/api/readiness", readiness)
		s.mux.Handle("/api/readiness/", readiness)
		s.mux.Handle("/api/tracking", api.NewTrackingHandler(p))
		s.mux.Handle("/api/transform", api.NewTransformHandler(p))

		s.events = NewEventsHandler(p, s.config.WSRateHz)
		s.mux.Handle("/api/ws", s.events)
	}

	if s.config.Stream != nil {
		s.mux.Handle("/api/stream", s.config.Stream)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}
	if p := s.config.Pipeline; p != nil {
		response["state"] = p.Readiness().Snapshot().State()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Logger.Infow("HTTP server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "listen on %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Streams and websockets never finish on their own.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warnw("HTTP shutdown incomplete", "error", err)
		return srv.Close()
	}
	return nil
}
