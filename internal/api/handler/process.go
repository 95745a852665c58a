package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unitutor/pagetutor/internal/api/response"
	"github.com/unitutor/pagetutor/internal/scheduler"
	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

// SchedulerService defines the run operations the handlers depend on.
type SchedulerService interface {
	Schedule(ctx context.Context, doc *models.Document, pages []int, cfg models.ModelConfig) (scheduler.Snapshot, error)
	Status(documentID string) (scheduler.Snapshot, bool)
	PageState(documentID string, page int) (models.PageJob, bool)
}

type pageJobPayload struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type progressPayload struct {
	DocumentID         string                 `json:"document_id"`
	RunID              string                 `json:"run_id"`
	Status             string                 `json:"status"`
	TotalPages         int                    `json:"total_pages"`
	SelectedPages      int                    `json:"selected_pages"`
	ProcessedPages     int                    `json:"processed_pages"`
	ProgressPercentage float64                `json:"progress_percentage"`
	Pages              map[int]pageJobPayload `json:"pages"`
	StartedAt          string                 `json:"started_at"`
}

func toProgressPayload(doc *models.Document, snap scheduler.Snapshot) progressPayload {
	pages := make(map[int]pageJobPayload, len(snap.Pages))
	for p, job := range snap.Pages {
		pages[p] = pageJobPayload{Status: job.Status, Error: job.ErrorMessage}
	}
	return progressPayload{
		DocumentID:         doc.ID,
		RunID:              snap.RunID.String(),
		Status:             snap.Status,
		TotalPages:         doc.TotalPages,
		SelectedPages:      snap.TotalSelected,
		ProcessedPages:     snap.Processed,
		ProgressPercentage: snap.Percentage,
		Pages:              pages,
		StartedAt:          snap.StartedAt.UTC().Format(time.RFC3339),
	}
}

// NewProcessHandler returns an http.HandlerFunc for
// POST /api/v1/documents/{documentID}/process.
func NewProcessHandler(docs DocumentService, sched SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Pages       []int              `json:"pages"`
			ModelConfig models.ModelConfig `json:"model_config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		doc, err := docs.Get(r.Context(), chi.URLParam(r, "documentID"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		snap, err := sched.Schedule(r.Context(), doc, req.Pages, req.ModelConfig)
		if err != nil {
			switch {
			case errors.Is(err, scheduler.ErrRunActive):
				response.Error(w, http.StatusConflict, "RUN_ACTIVE",
					"A processing run is already active for this document", nil)
			case errors.Is(err, scheduler.ErrInvalidPages):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					err.Error(), nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, toProgressPayload(doc, snap))
	}
}

// NewProgressHandler returns an http.HandlerFunc for
// GET /api/v1/documents/{documentID}/progress.
func NewProgressHandler(docs DocumentService, sched SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := docs.Get(r.Context(), chi.URLParam(r, "documentID"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		snap, ok := sched.Status(doc.ID)
		if !ok {
			response.Error(w, http.StatusNotFound, "NOT_FOUND",
				"No processing run for this document", nil)
			return
		}

		response.JSON(w, toProgressPayload(doc, snap))
	}
}
