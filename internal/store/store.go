package store

import (
	"context"
	"errors"

	"github.com/unitutor/pagetutor/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)

	UpsertExplanation(ctx context.Context, rec *models.ExplanationRecord) error
	GetExplanation(ctx context.Context, documentID string, page int) (*models.ExplanationRecord, error)
	DeleteExplanations(ctx context.Context, documentID string, pages []int) (int, error)
}
