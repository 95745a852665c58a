package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/unitutor/pagetutor/internal/scheduler"
	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

// --- mock document service ---

type mockDocs struct {
	docs          map[string]*models.Document
	ingestDoc     *models.Document
	ingestCreated bool
	ingestErr     error

	gotFilename string
	gotContent  []byte
}

func (m *mockDocs) Ingest(_ context.Context, filename string, content []byte) (*models.Document, bool, error) {
	m.gotFilename = filename
	m.gotContent = content
	if m.ingestErr != nil {
		return nil, false, m.ingestErr
	}
	return m.ingestDoc, m.ingestCreated, nil
}

func (m *mockDocs) Get(_ context.Context, id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

// --- mock scheduler service ---

type mockSched struct {
	scheduleSnap scheduler.Snapshot
	scheduleErr  error
	statusSnap   scheduler.Snapshot
	statusOK     bool
	pageJob      models.PageJob
	pageOK       bool

	gotPages []int
}

func (m *mockSched) Schedule(_ context.Context, _ *models.Document, pages []int, _ models.ModelConfig) (scheduler.Snapshot, error) {
	m.gotPages = pages
	return m.scheduleSnap, m.scheduleErr
}

func (m *mockSched) Status(string) (scheduler.Snapshot, bool) {
	return m.statusSnap, m.statusOK
}

func (m *mockSched) PageState(string, int) (models.PageJob, bool) {
	return m.pageJob, m.pageOK
}

// --- mock explanation service ---

type mockExpl struct {
	rec    *models.ExplanationRecord
	found  bool
	getErr error

	deleted       int
	invalidateErr error
	gotPages      []int
}

func (m *mockExpl) Get(_ context.Context, _ string, _ int) (*models.ExplanationRecord, bool, error) {
	return m.rec, m.found, m.getErr
}

func (m *mockExpl) Invalidate(_ context.Context, _ string, pages []int) (int, error) {
	m.gotPages = pages
	return m.deleted, m.invalidateErr
}

// --- helpers ---

// serve routes the request through a chi mux so URL parameters resolve.
func serve(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func dataBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got: %s", w.Body.String())
	return data
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got: %s", w.Body.String())
	return errObj
}

func testDoc(id string, pages int) *models.Document {
	return &models.Document{
		ID:         id,
		Filename:   "lecture.pdf",
		TotalPages: pages,
		FilePath:   "/tmp/" + id + ".pdf",
	}
}
