package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitutor/pagetutor/internal/api"
	"github.com/unitutor/pagetutor/internal/api/handler"
	mw "github.com/unitutor/pagetutor/internal/api/middleware"
	"github.com/unitutor/pagetutor/internal/cache"
)

// --- stub cache for the rate limiter ---

type stubCache struct {
	counter int64
}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ ...string) error                      { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.counter++
	return c.counter, nil
}

var _ cache.Cache = (*stubCache)(nil)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type failPinger struct{}

func (failPinger) Ping(context.Context) error { return errors.New("connection refused") }

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		RateLimit:     mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: handler.NewHealthHandler(okPinger{}, okPinger{}),
	})
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_HealthUnavailableWhenBackingServiceDown(t *testing.T) {
	router := api.NewRouter(api.Dependencies{
		HealthHandler: handler.NewHealthHandler(failPinger{}, okPinger{}),
	})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_UnwiredEndpointsReturn501(t *testing.T) {
	router := newTestRouter()

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/documents"},
		{"GET", "/api/v1/documents/abc123"},
		{"POST", "/api/v1/documents/abc123/process"},
		{"GET", "/api/v1/documents/abc123/progress"},
		{"GET", "/api/v1/documents/abc123/pages/1"},
		{"POST", "/api/v1/documents/abc123/pages/1/chat"},
		{"DELETE", "/api/v1/documents/abc123/cache"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNotImplemented, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "NOT_IMPLEMENTED", errObj["code"])
		})
	}
}

func TestRouter_RateLimitHeadersOnLimitedRoutes(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/documents/abc123", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_HealthExemptFromRateLimit(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
