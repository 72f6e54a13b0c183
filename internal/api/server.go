// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"docverge/internal/common"
	"docverge/internal/orchestrator"
)

// Server is the HTTP surface in front of the job orchestrator.
type Server struct {
	router chi.Router
	orch   *orchestrator.Orchestrator
}

func NewServer(orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	srv := &Server{router: chi.NewRouter(), orch: orch}
	srv.routes()
	common.Logger().Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/compare", s.handleCompare)
	s.router.Get("/v1/jobs", s.handleJobHistory)
	s.router.Get("/v1/jobs/{jobID}", s.handleJobStatus)
	s.router.Delete("/v1/jobs/{jobID}", s.handleJobCancel)
	s.router.Get("/v1/results/{jobID}", s.handleJobResult)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Handle("/debug/vars", expvar.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.orch.Health()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"workers":        health.Workers,
		"queue_depth":    health.QueueDepth,
		"queue_capacity": health.QueueCapacity,
		"jobs_resident":  health.JobsResident,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
