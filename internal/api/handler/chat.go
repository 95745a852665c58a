package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unitutor/pagetutor/internal/api/response"
	"github.com/unitutor/pagetutor/internal/chat"
	"github.com/unitutor/pagetutor/pkg/models"
)

// ChatService defines the streaming operation the chat handler depends on.
type ChatService interface {
	Stream(ctx context.Context, documentID string, page int, question string, history []models.ChatMessage, cfg models.ModelConfig) (<-chan models.StreamDelta, error)
}

// NewChatHandler returns an http.HandlerFunc for
// POST /api/v1/documents/{documentID}/pages/{page}/chat. The answer is
// streamed as server-sent events and terminated with a [DONE] marker.
func NewChatHandler(svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "documentID")
		page, ok := pageParam(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"page must be a positive integer", nil)
			return
		}

		var req struct {
			Question    string               `json:"question"`
			History     []models.ChatMessage `json:"history"`
			ModelConfig models.ModelConfig   `json:"model_config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		deltas, err := svc.Stream(r.Context(), documentID, page, req.Question, req.History, req.ModelConfig)
		if err != nil {
			switch {
			case errors.Is(err, chat.ErrEmptyQuestion):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"question is required", nil)
			case errors.Is(err, models.ErrProviderUnavailable):
				response.Error(w, http.StatusBadGateway, "AI_PROVIDER_UNAVAILABLE",
					"The AI provider is not available", nil)
			case errors.Is(err, models.ErrInferenceTimeout):
				response.Error(w, http.StatusGatewayTimeout, "AI_INFERENCE_TIMEOUT",
					"The AI provider took too long to answer", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		stream, err := response.NewSSEStream(w)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Streaming is not supported by this connection", nil)
			return
		}

		for delta := range deltas {
			if delta.Err != nil {
				slog.Warn("chat stream failed mid-answer",
					"document_id", documentID, "page", page, "error", delta.Err)
				_ = stream.Event("error", map[string]string{"message": delta.Err.Error()})
				break
			}
			if delta.Done {
				break
			}
			if err := stream.Data(map[string]string{"content": delta.Content}); err != nil {
				// Client went away; the context cancellation stops the
				// upstream call.
				return
			}
		}
		_ = stream.Done()
	}
}
