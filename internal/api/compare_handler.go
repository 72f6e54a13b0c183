// File path: internal/api/compare_handler.go
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"docverge/internal/common"
	"docverge/internal/job"
	"docverge/internal/orchestrator"
)

const maxUploadMemory = 64 << 20 // 64 MiB of in-memory file parts

type compareResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	PollURL    string `json:"poll_url"`
	ResultsURL string `json:"results_url"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		logger.Warn("api: compare form parse failed", "error", err)
		writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse upload form: %w", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	source, err := readUpload(r, "source")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	target, err := readUpload(r, "target")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	logger.Info("api: compare requested", "source", source.Name, "target", target.Name, "enrichment", opts.UseEnrichment)
	id, err := s.orch.Submit(source, target, opts)
	if err != nil {
		switch {
		case errors.Is(err, job.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err)
		case errors.Is(err, job.ErrValidation):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, orchestrator.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, compareResponse{
		JobID:      id,
		Status:     string(job.StatusPending),
		Message:    "Comparison job submitted successfully",
		PollURL:    "/v1/jobs/" + id,
		ResultsURL: "/v1/results/" + id,
	})
}

func readUpload(r *http.Request, field string) (orchestrator.Payload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return orchestrator.Payload{}, fmt.Errorf("%s file required: %w", field, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return orchestrator.Payload{}, fmt.Errorf("read %s file: %w", field, err)
	}
	return orchestrator.Payload{Name: uploadName(header, field), Data: data}, nil
}

func uploadName(header *multipart.FileHeader, fallback string) string {
	if header != nil {
		if name := strings.TrimSpace(header.Filename); name != "" {
			return name
		}
	}
	return fallback
}

func parseOptions(r *http.Request) (job.Options, error) {
	opts := job.Options{}
	if value := strings.TrimSpace(r.FormValue("use_enrichment")); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return job.Options{}, fmt.Errorf("parse use_enrichment: %w", err)
		}
		opts.UseEnrichment = parsed
	}
	opts.EnrichmentPrompt = strings.TrimSpace(r.FormValue("enrichment_prompt"))
	if value := strings.TrimSpace(r.FormValue("context_lines")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return job.Options{}, fmt.Errorf("parse context_lines: %w", err)
		}
		// Zero is rejected rather than treated as "no context": the pipeline
		// reads a non-positive value as unset and substitutes the default.
		if parsed <= 0 {
			return job.Options{}, fmt.Errorf("context_lines must be positive")
		}
		opts.ContextLines = parsed
	}
	if value := strings.TrimSpace(r.FormValue("extract_tables")); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return job.Options{}, fmt.Errorf("parse extract_tables: %w", err)
		}
		opts.ExtractTables = parsed
	}
	return opts, nil
}
