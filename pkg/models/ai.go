// Package models contains shared data models used across the PageTutor codebase.
package models

import "context"

// AIProvider is the core interface that all AI integrations must implement.
// Never call specific AI providers directly — always inject this interface.
type AIProvider interface {
	// Analyze generates a structured explanation for a single page.
	Analyze(ctx context.Context, req AnalysisRequest) (string, error)
	// AnalyzeStream answers a question in streaming mode. The returned channel
	// is closed after a final Done delta; the upstream call is aborted when
	// ctx is cancelled.
	AnalyzeStream(ctx context.Context, req StreamRequest) (<-chan StreamDelta, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
}

// ModelConfig carries per-request model tuning supplied by the caller.
// Zero values fall back to provider defaults.
type ModelConfig struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// AnalysisRequest is the input to a single-page analysis call.
type AnalysisRequest struct {
	Prompt   string
	Source   []byte // page bytes, e.g. a single-page PDF
	MIMEType string
	Config   ModelConfig
}

// StreamRequest is the input to a streaming chat call.
type StreamRequest struct {
	Prompt string
	Config ModelConfig
}

// StreamDelta is one incremental fragment of a streaming response.
type StreamDelta struct {
	Content string
	Err     error
	Done    bool
}

// ChatMessage is one turn of caller-owned conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}
