package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pagetutor_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func testDocument(id string) *models.Document {
	return &models.Document{
		ID:         id,
		Filename:   "lecture.pdf",
		TotalPages: 5,
		FilePath:   "/uploads/" + id + ".pdf",
		UploadedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestCreateDocument_AndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	doc := testDocument("abc123")
	require.NoError(t, s.CreateDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, doc.Filename, got.Filename)
	assert.Equal(t, doc.TotalPages, got.TotalPages)
	assert.Equal(t, doc.FilePath, got.FilePath)
}

func TestCreateDocument_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, testDocument("dup")))

	err := s.CreateDocument(ctx, testDocument("dup"))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestGetDocument_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpsertExplanation_LastWriteWins(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, testDocument("doc1")))

	first := &models.ExplanationRecord{
		DocumentID: "doc1",
		PageNumber: 2,
		Content:    "first version",
		Summary:    "v1",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.UpsertExplanation(ctx, first))

	second := &models.ExplanationRecord{
		DocumentID: "doc1",
		PageNumber: 2,
		Content:    "second version",
		Summary:    "v2",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.UpsertExplanation(ctx, second))

	got, err := s.GetExplanation(ctx, "doc1", 2)
	require.NoError(t, err)
	assert.Equal(t, "second version", got.Content)
	assert.Equal(t, "v2", got.Summary)
}

func TestGetExplanation_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, testDocument("doc2")))

	_, err := s.GetExplanation(ctx, "doc2", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteExplanations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	require.NoError(t, s.CreateDocument(ctx, testDocument("doc3")))

	for _, page := range []int{1, 2, 3} {
		rec := &models.ExplanationRecord{
			DocumentID: "doc3",
			PageNumber: page,
			Content:    "content",
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, s.UpsertExplanation(ctx, rec))
	}

	deleted, err := s.DeleteExplanations(ctx, "doc3", []int{1, 3, 99})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = s.GetExplanation(ctx, "doc3", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetExplanation(ctx, "doc3", 2)
	require.NoError(t, err)
	assert.Equal(t, "content", got.Content)
}

func TestDeleteExplanations_EmptyPages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	deleted, err := s.DeleteExplanations(context.Background(), "doc", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
