package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unitutor/pagetutor/internal/api/response"
	"github.com/unitutor/pagetutor/internal/docstore"
	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

// DocumentService defines the document operations the handlers depend on.
type DocumentService interface {
	Ingest(ctx context.Context, filename string, content []byte) (*models.Document, bool, error)
	Get(ctx context.Context, id string) (*models.Document, error)
}

type documentResponse struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	TotalPages int    `json:"total_pages"`
	UploadedAt string `json:"uploaded_at"`
	Created    bool   `json:"created"`
}

func toDocumentResponse(doc *models.Document, created bool) documentResponse {
	return documentResponse{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		TotalPages: doc.TotalPages,
		UploadedAt: doc.UploadedAt.UTC().Format(time.RFC3339),
		Created:    created,
	}
}

// NewUploadHandler returns an http.HandlerFunc for POST /api/v1/documents.
// The upload is a multipart form with the PDF under the "file" field.
func NewUploadHandler(svc DocumentService, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Small allowance on top of the document limit for multipart framing.
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1024*1024)

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Multipart upload with a \"file\" field is required", nil)
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Could not read the uploaded file", nil)
			return
		}

		doc, created, err := svc.Ingest(r.Context(), header.Filename, content)
		if err != nil {
			switch {
			case errors.Is(err, docstore.ErrInvalidFile):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"Only valid PDF files are supported", nil)
			case errors.Is(err, docstore.ErrTooLarge):
				response.Error(w, http.StatusRequestEntityTooLarge, "INVALID_REQUEST",
					"File exceeds the maximum upload size", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		if created {
			response.Created(w, toDocumentResponse(doc, true))
			return
		}
		response.JSON(w, toDocumentResponse(doc, false))
	}
}

// NewGetDocumentHandler returns an http.HandlerFunc for
// GET /api/v1/documents/{documentID}.
func NewGetDocumentHandler(svc DocumentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svc.Get(r.Context(), chi.URLParam(r, "documentID"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.JSON(w, toDocumentResponse(doc, false))
	}
}
