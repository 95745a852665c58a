package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

// ExplanationCache maps (document, page) to an explanation record. It is a
// write-through layer: Postgres is the source of truth, Redis absorbs the
// read traffic from progress polling. Redis failures degrade to the database
// rather than failing the request.
type ExplanationCache struct {
	cache Cache
	store store.Store
	ttl   time.Duration
}

// NewExplanationCache creates an ExplanationCache with the given Redis TTL.
func NewExplanationCache(c Cache, st store.Store, ttl time.Duration) *ExplanationCache {
	return &ExplanationCache{cache: c, store: st, ttl: ttl}
}

// Get returns the record for (documentID, page), or found=false on a miss.
func (e *ExplanationCache) Get(ctx context.Context, documentID string, page int) (*models.ExplanationRecord, bool, error) {
	key := ExplanationKey(documentID, page)

	raw, hit, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("explanation cache read failed, falling back to store", "key", key, "error", err)
	} else if hit {
		var rec models.ExplanationRecord
		if err := json.Unmarshal(raw, &rec); err == nil {
			return &rec, true, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = e.cache.Delete(ctx, key)
	}

	rec, err := e.store.GetExplanation(ctx, documentID, page)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading explanation: %w", err)
	}

	e.backfill(ctx, key, rec)
	return rec, true, nil
}

// Put persists the record and refreshes the cached copy. A later Put for the
// same key fully replaces the earlier one.
func (e *ExplanationCache) Put(ctx context.Context, rec *models.ExplanationRecord) error {
	if err := e.store.UpsertExplanation(ctx, rec); err != nil {
		return fmt.Errorf("writing explanation: %w", err)
	}
	e.backfill(ctx, ExplanationKey(rec.DocumentID, rec.PageNumber), rec)
	return nil
}

// Invalidate removes the records for the given pages. Subsequent Gets on an
// invalidated key miss until the page is reprocessed. Returns the number of
// stored records deleted.
func (e *ExplanationCache) Invalidate(ctx context.Context, documentID string, pages []int) (int, error) {
	deleted, err := e.store.DeleteExplanations(ctx, documentID, pages)
	if err != nil {
		return 0, fmt.Errorf("invalidating explanations: %w", err)
	}

	keys := make([]string, 0, len(pages))
	for _, page := range pages {
		keys = append(keys, ExplanationKey(documentID, page))
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("explanation cache delete failed", "document_id", documentID, "error", err)
	}

	return deleted, nil
}

func (e *ExplanationCache) backfill(ctx context.Context, key string, rec *models.ExplanationRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.ttl); err != nil {
		slog.Warn("explanation cache write failed", "key", key, "error", err)
	}
}
