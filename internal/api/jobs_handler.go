// File path: internal/api/jobs_handler.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"

	"docverge/internal/job"
	"docverge/internal/orchestrator"
)

type jobStatusResponse struct {
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"current_step,omitempty"`
	RetryCount  int       `json:"retry_count"`
	CreatedAt   time.Time `json:"created_at"`
	Error       string    `json:"error,omitempty"`
	FailureKind string    `json:"failure_kind,omitempty"`
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id required"))
		return
	}
	snapshot, err := s.orch.Status(id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{
		JobID:       snapshot.ID,
		Status:      string(snapshot.Status),
		Progress:    snapshot.Progress,
		CurrentStep: snapshot.Step,
		RetryCount:  snapshot.RetryCount,
		CreatedAt:   snapshot.CreatedAt,
		Error:       snapshot.Error,
		FailureKind: string(snapshot.FailureKind),
	})
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id required"))
		return
	}
	if err := s.orch.Cancel(id); err != nil {
		switch {
		case errors.Is(err, job.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, orchestrator.ErrNotCancelable):
			writeError(w, http.StatusConflict, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id":  id,
		"status":  "cancelled",
		"message": "Job cancellation requested",
	})
}

type jobResultResponse struct {
	JobID  string      `json:"job_id"`
	Status string      `json:"status"`
	Result *job.Result `json:"result,omitempty"`
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("job id required"))
		return
	}
	result, err := s.orch.Result(id)
	if err != nil {
		var failure *orchestrator.JobFailure
		switch {
		case errors.Is(err, job.ErrNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, orchestrator.ErrStillProcessing):
			writeJSON(w, http.StatusAccepted, jobResultResponse{JobID: id, Status: string(job.StatusProcessing)})
		case errors.As(err, &failure):
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"job_id":       id,
				"status":       string(job.StatusFailed),
				"error":        failure.Message,
				"failure_kind": string(failure.Kind),
			})
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, jobResultResponse{JobID: id, Status: string(job.StatusCompleted), Result: result})
}

func (s *Server) handleJobHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if value := strings.TrimSpace(r.URL.Query().Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", value))
			return
		}
		limit = parsed
	}
	records, err := s.orch.RecentJobs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": records})
}
