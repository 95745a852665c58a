// Package docstore is the content-addressed document registry. Identical
// uploads resolve to the same document identity without creating a duplicate.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unitutor/pagetutor/internal/render"
	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

var (
	ErrInvalidFile = errors.New("only PDF files are supported")
	ErrTooLarge    = errors.New("file exceeds maximum size")
)

// DocumentStore ingests uploads and serves document metadata.
type DocumentStore struct {
	store         store.Store
	uploadDir     string
	maxFileSizeMB int

	// pageCount is swappable in tests; defaults to pdfcpu.
	pageCount func(path string) (int, error)
}

// New creates a DocumentStore writing files under uploadDir.
func New(st store.Store, uploadDir string, maxFileSizeMB int) *DocumentStore {
	return &DocumentStore{
		store:         st,
		uploadDir:     uploadDir,
		maxFileSizeMB: maxFileSizeMB,
		pageCount:     render.PageCount,
	}
}

// Ingest registers the uploaded bytes under their content identity. If a
// document with the same identity already exists its metadata is returned
// unchanged with created=false and no side effects.
func (d *DocumentStore) Ingest(ctx context.Context, filename string, content []byte) (*models.Document, bool, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return nil, false, ErrInvalidFile
	}
	if len(content) > d.maxFileSizeMB*1024*1024 {
		return nil, false, fmt.Errorf("%w: max %dMB", ErrTooLarge, d.maxFileSizeMB)
	}

	sum := sha256.Sum256(content)
	id := hex.EncodeToString(sum[:])

	existing, err := d.store.GetDocument(ctx, id)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("checking for existing document: %w", err)
	}

	if err := os.MkdirAll(d.uploadDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("creating upload dir: %w", err)
	}
	path := filepath.Join(d.uploadDir, id+".pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, false, fmt.Errorf("persisting upload: %w", err)
	}

	pages, err := d.pageCount(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	doc := &models.Document{
		ID:         id,
		Filename:   filename,
		TotalPages: pages,
		FilePath:   path,
		UploadedAt: time.Now().UTC(),
	}

	if err := d.store.CreateDocument(ctx, doc); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// Lost a race with a concurrent upload of the same bytes; the
			// stored row is authoritative.
			existing, gerr := d.store.GetDocument(ctx, id)
			if gerr == nil {
				return existing, false, nil
			}
		}
		_ = os.Remove(path)
		return nil, false, fmt.Errorf("saving document metadata: %w", err)
	}

	slog.Info("document ingested", "document_id", id, "filename", filename, "pages", pages)
	return doc, true, nil
}

// Get returns document metadata by identity.
func (d *DocumentStore) Get(ctx context.Context, id string) (*models.Document, error) {
	return d.store.GetDocument(ctx, id)
}
