// Package mock provides an in-memory AIProvider for tests.
package mock

import (
	"context"

	"github.com/unitutor/pagetutor/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, req models.AnalysisRequest) (string, error)
	StreamFunc  func(ctx context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Analyze(ctx context.Context, req models.AnalysisRequest) (string, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return "", nil
}

func (m *MockProvider) AnalyzeStream(ctx context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error) {
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}
	return StreamOf(), nil
}

// NewMockProvider returns a MockProvider with sensible default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (string, error) {
			return `{"content": "# Mock explanation\nGenerated for testing.", "summary": "Mock summary"}`, nil
		},
		StreamFunc: func(_ context.Context, _ models.StreamRequest) (<-chan models.StreamDelta, error) {
			return StreamOf("Mock ", "streamed ", "answer."), nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		AnalyzeFunc: func(_ context.Context, _ models.AnalysisRequest) (string, error) {
			return "", err
		},
		StreamFunc: func(_ context.Context, _ models.StreamRequest) (<-chan models.StreamDelta, error) {
			return nil, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisRequest) (string, error) {
			<-ctx.Done()
			return "", models.ErrInferenceTimeout
		},
		StreamFunc: func(ctx context.Context, _ models.StreamRequest) (<-chan models.StreamDelta, error) {
			<-ctx.Done()
			return nil, models.ErrInferenceTimeout
		},
	}
}

// StreamOf returns a closed-after-use channel that yields the given chunks
// followed by a done delta.
func StreamOf(chunks ...string) <-chan models.StreamDelta {
	ch := make(chan models.StreamDelta, len(chunks)+1)
	for _, c := range chunks {
		ch <- models.StreamDelta{Content: c}
	}
	ch <- models.StreamDelta{Done: true}
	close(ch)
	return ch
}

var _ models.AIProvider = (*MockProvider)(nil)
