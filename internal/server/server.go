// Package server exposes the engine's operational HTTP endpoints:
// liveness, dependency health, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status represents the health state of the system or a dependency.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Checker reports whether a dependency is reachable.
type Checker interface {
	Health(ctx context.Context) error
}

// Report is the detailed health payload.
type Report struct {
	SystemStatus Status            `json:"system_status"`
	Dependencies map[string]Status `json:"dependencies"`
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	checkers map[string]Checker
	server   *http.Server
}

// NewServer creates a new health server. checkers maps a dependency
// name (e.g. "database", "cache") to its health probe.
func NewServer(checkers map[string]Checker, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		checkers: checkers,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	report := Report{
		SystemStatus: StatusHealthy,
		Dependencies: make(map[string]Status, len(s.checkers)),
	}
	for name, checker := range s.checkers {
		if err := checker.Health(ctx); err != nil {
			report.Dependencies[name] = StatusDegraded
			report.SystemStatus = StatusDegraded
		} else {
			report.Dependencies[name] = StatusHealthy
		}
	}
	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.SystemStatus != StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
