package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unitutor/pagetutor/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Documents ---

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, filename, total_pages, file_path, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Filename, doc.TotalPages, doc.FilePath, doc.UploadedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, filename, total_pages, file_path, uploaded_at FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Filename, &d.TotalPages, &d.FilePath, &d.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}

// --- Explanations ---

func (s *PostgresStore) UpsertExplanation(ctx context.Context, rec *models.ExplanationRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO page_explanations (document_id, page_number, content, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (document_id, page_number)
		 DO UPDATE SET content = EXCLUDED.content, summary = EXCLUDED.summary, created_at = EXCLUDED.created_at`,
		rec.DocumentID, rec.PageNumber, rec.Content, rec.Summary, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert explanation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExplanation(ctx context.Context, documentID string, page int) (*models.ExplanationRecord, error) {
	var r models.ExplanationRecord
	err := s.pool.QueryRow(ctx,
		`SELECT document_id, page_number, content, summary, created_at
		 FROM page_explanations WHERE document_id = $1 AND page_number = $2`,
		documentID, page,
	).Scan(&r.DocumentID, &r.PageNumber, &r.Content, &r.Summary, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get explanation: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) DeleteExplanations(ctx context.Context, documentID string, pages []int) (int, error) {
	if len(pages) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM page_explanations WHERE document_id = $1 AND page_number = ANY($2)`,
		documentID, pages)
	if err != nil {
		return 0, fmt.Errorf("delete explanations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
