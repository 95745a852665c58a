package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unitutor/pagetutor/internal/api/response"
	"github.com/unitutor/pagetutor/pkg/models"
)

// ExplanationService defines the cache operations the handlers depend on.
type ExplanationService interface {
	Get(ctx context.Context, documentID string, page int) (*models.ExplanationRecord, bool, error)
	Invalidate(ctx context.Context, documentID string, pages []int) (int, error)
}

type explanationResponse struct {
	PageNumber int    `json:"page_number"`
	Status     string `json:"status"`
	Content    string `json:"content,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func pageParam(r *http.Request) (int, bool) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

// NewExplanationHandler returns an http.HandlerFunc for
// GET /api/v1/documents/{documentID}/pages/{page}. A cached record wins;
// otherwise the page's job state decides between a processing placeholder,
// a failure description, and a miss.
func NewExplanationHandler(expl ExplanationService, sched SchedulerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "documentID")
		page, ok := pageParam(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"page must be a positive integer", nil)
			return
		}

		rec, found, err := expl.Get(r.Context(), documentID, page)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		if found {
			response.JSON(w, explanationResponse{
				PageNumber: rec.PageNumber,
				Status:     models.PageStatusCompleted,
				Content:    rec.Content,
				Summary:    rec.Summary,
				CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
			})
			return
		}

		job, ok := sched.PageState(documentID, page)
		if !ok {
			response.Error(w, http.StatusNotFound, "NOT_FOUND",
				"No explanation for this page", nil)
			return
		}

		if job.Status == models.PageStatusFailed {
			response.JSON(w, explanationResponse{
				PageNumber: page,
				Status:     models.PageStatusFailed,
				Error:      job.ErrorMessage,
			})
			return
		}

		response.Accepted(w, explanationResponse{
			PageNumber: page,
			Status:     models.PageStatusProcessing,
		})
	}
}

// NewInvalidateHandler returns an http.HandlerFunc for
// DELETE /api/v1/documents/{documentID}/cache.
func NewInvalidateHandler(expl ExplanationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Pages []int `json:"pages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if len(req.Pages) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"pages is required", nil)
			return
		}

		deleted, err := expl.Invalidate(r.Context(), chi.URLParam(r, "documentID"), req.Pages)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]int{"deleted_count": deleted})
	}
}
