package chat_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unitutor/pagetutor/internal/ai/mock"
	"github.com/unitutor/pagetutor/internal/cache"
	"github.com/unitutor/pagetutor/internal/chat"
	"github.com/unitutor/pagetutor/internal/store"
	"github.com/unitutor/pagetutor/pkg/models"
)

type memStore struct {
	mu           sync.Mutex
	explanations map[string]*models.ExplanationRecord
}

func newMemStore() *memStore {
	return &memStore{explanations: make(map[string]*models.ExplanationRecord)}
}

func explKey(documentID string, page int) string {
	return fmt.Sprintf("%s:%d", documentID, page)
}

func (m *memStore) Ping(context.Context) error                             { return nil }
func (m *memStore) CreateDocument(context.Context, *models.Document) error { return nil }

func (m *memStore) GetDocument(context.Context, string) (*models.Document, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) UpsertExplanation(_ context.Context, rec *models.ExplanationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.explanations[explKey(rec.DocumentID, rec.PageNumber)] = &cp
	return nil
}

func (m *memStore) GetExplanation(_ context.Context, documentID string, page int) (*models.ExplanationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.explanations[explKey(documentID, page)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memStore) DeleteExplanations(_ context.Context, documentID string, pages []int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, p := range pages {
		key := explKey(documentID, p)
		if _, ok := m.explanations[key]; ok {
			delete(m.explanations, key)
			deleted++
		}
	}
	return deleted, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *memCache) Ping(context.Context) error { return nil }

func (m *memCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}

func seededCache(t *testing.T, documentID string, page int, content string) *cache.ExplanationCache {
	t.Helper()
	ec := cache.NewExplanationCache(newMemCache(), newMemStore(), time.Hour)
	require.NoError(t, ec.Put(context.Background(), &models.ExplanationRecord{
		DocumentID: documentID,
		PageNumber: page,
		Content:    content,
		Summary:    "seeded",
		CreatedAt:  time.Now().UTC(),
	}))
	return ec
}

func collect(t *testing.T, ch <-chan models.StreamDelta) []models.StreamDelta {
	t.Helper()
	var deltas []models.StreamDelta
	timeout := time.After(2 * time.Second)
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return deltas
			}
			deltas = append(deltas, d)
		case <-timeout:
			t.Fatal("stream never closed")
		}
	}
}

func TestStream_YieldsChunksThenDone(t *testing.T) {
	ec := seededCache(t, "doc1", 3, "Binary trees store ordered data.")
	streamer := chat.New(mock.NewMockProvider(), ec, time.Second)

	ch, err := streamer.Stream(context.Background(), "doc1", 3, "What is a binary tree?", nil, models.ModelConfig{})
	require.NoError(t, err)

	deltas := collect(t, ch)
	require.NotEmpty(t, deltas)

	var answer string
	for _, d := range deltas[:len(deltas)-1] {
		require.NoError(t, d.Err)
		answer += d.Content
	}
	assert.Equal(t, "Mock streamed answer.", answer)
	assert.True(t, deltas[len(deltas)-1].Done)
}

func TestStream_PromptCarriesExplanationAndHistory(t *testing.T) {
	ec := seededCache(t, "doc1", 1, "Recursion calls itself with a smaller input.")

	var captured string
	provider := &mock.MockProvider{
		Name_: "capturing",
		StreamFunc: func(_ context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error) {
			captured = req.Prompt
			return mock.StreamOf("ok"), nil
		},
	}
	streamer := chat.New(provider, ec, time.Second)

	history := []models.ChatMessage{
		{Role: "user", Content: "What is the base case?"},
		{Role: "assistant", Content: "The input small enough to answer directly."},
	}
	ch, err := streamer.Stream(context.Background(), "doc1", 1, "And the recursive case?", history, models.ModelConfig{})
	require.NoError(t, err)
	collect(t, ch)

	assert.Contains(t, captured, "Recursion calls itself with a smaller input.")
	assert.Contains(t, captured, "Student: What is the base case?")
	assert.Contains(t, captured, "Tutor: The input small enough to answer directly.")
	assert.Contains(t, captured, "Student: And the recursive case?")
}

func TestStream_NoExplanationStillChats(t *testing.T) {
	ec := cache.NewExplanationCache(newMemCache(), newMemStore(), time.Hour)

	var captured string
	provider := &mock.MockProvider{
		Name_: "capturing",
		StreamFunc: func(_ context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error) {
			captured = req.Prompt
			return mock.StreamOf("ok"), nil
		},
	}
	streamer := chat.New(provider, ec, time.Second)

	ch, err := streamer.Stream(context.Background(), "doc1", 9, "What is Big-O?", nil, models.ModelConfig{})
	require.NoError(t, err)
	collect(t, ch)

	assert.NotContains(t, captured, "Explanation of the page under discussion")
	assert.Contains(t, captured, "Student: What is Big-O?")
}

func TestStream_EmptyQuestionRejected(t *testing.T) {
	ec := cache.NewExplanationCache(newMemCache(), newMemStore(), time.Hour)
	streamer := chat.New(mock.NewMockProvider(), ec, time.Second)

	_, err := streamer.Stream(context.Background(), "doc1", 1, "", nil, models.ModelConfig{})
	assert.ErrorIs(t, err, chat.ErrEmptyQuestion)
}

func TestStream_ProviderErrorSurfaces(t *testing.T) {
	ec := cache.NewExplanationCache(newMemCache(), newMemStore(), time.Hour)
	streamer := chat.New(mock.NewFailingProvider(models.ErrProviderUnavailable), ec, time.Second)

	_, err := streamer.Stream(context.Background(), "doc1", 1, "Hello?", nil, models.ModelConfig{})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestStream_CancellationStopsForwarding(t *testing.T) {
	ec := cache.NewExplanationCache(newMemCache(), newMemStore(), time.Hour)

	src := make(chan models.StreamDelta)
	provider := &mock.MockProvider{
		Name_: "hanging",
		StreamFunc: func(_ context.Context, _ models.StreamRequest) (<-chan models.StreamDelta, error) {
			return src, nil
		},
	}
	streamer := chat.New(provider, ec, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := streamer.Stream(ctx, "doc1", 1, "Hello?", nil, models.ModelConfig{})
	require.NoError(t, err)

	src <- models.StreamDelta{Content: "first"}
	d := <-ch
	assert.Equal(t, "first", d.Content)

	cancel()
	// The forwarder notices the cancelled context even though the provider
	// never closes its channel.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}
