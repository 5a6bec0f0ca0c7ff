package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Server serves the metrics and health endpoints for one orchestrator
// process.
type Server struct {
	httpServer *http.Server
	port       int
	draining   atomic.Bool
}

// NewServer creates an observability server on the given port.
func NewServer(port int) *Server {
	return &Server{port: port}
}

// Start serves /metrics, /healthz and /readyz until Shutdown is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", HealthHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(&s.draining))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown marks the server draining and stops it gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.draining.Store(true)
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
