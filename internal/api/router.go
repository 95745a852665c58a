package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/unitutor/pagetutor/internal/api/middleware"
	"github.com/unitutor/pagetutor/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	HealthHandler      http.HandlerFunc
	UploadHandler      http.HandlerFunc
	GetDocumentHandler http.HandlerFunc
	ProcessHandler     http.HandlerFunc
	ProgressHandler    http.HandlerFunc
	ExplanationHandler http.HandlerFunc
	ChatHandler        http.HandlerFunc
	InvalidateHandler  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Health check is exempt from rate limiting so probes never get throttled.
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/documents", orNotImplemented(deps.UploadHandler))
		r.Get("/api/v1/documents/{documentID}", orNotImplemented(deps.GetDocumentHandler))

		r.Post("/api/v1/documents/{documentID}/process", orNotImplemented(deps.ProcessHandler))
		r.Get("/api/v1/documents/{documentID}/progress", orNotImplemented(deps.ProgressHandler))

		r.Get("/api/v1/documents/{documentID}/pages/{page}", orNotImplemented(deps.ExplanationHandler))
		r.Post("/api/v1/documents/{documentID}/pages/{page}/chat", orNotImplemented(deps.ChatHandler))

		r.Delete("/api/v1/documents/{documentID}/cache", orNotImplemented(deps.InvalidateHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
