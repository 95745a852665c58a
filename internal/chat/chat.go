// Package chat streams tutoring answers about an explained page. The chat is
// stateless on the server: the caller carries the conversation history with
// every request.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unitutor/pagetutor/internal/ai"
	"github.com/unitutor/pagetutor/internal/cache"
	"github.com/unitutor/pagetutor/pkg/models"
)

var ErrEmptyQuestion = errors.New("question must not be empty")

// Streamer answers questions about a page using its cached explanation as
// grounding context.
type Streamer struct {
	provider models.AIProvider
	cache    *cache.ExplanationCache
	timeout  time.Duration
}

// New creates a Streamer. The timeout bounds the whole model stream.
func New(provider models.AIProvider, ec *cache.ExplanationCache, timeout time.Duration) *Streamer {
	return &Streamer{provider: provider, cache: ec, timeout: timeout}
}

// Stream starts a model stream for the question. If no explanation exists for
// the page the chat proceeds without grounding context rather than failing;
// the tutor can still answer general questions.
func (s *Streamer) Stream(ctx context.Context, documentID string, page int, question string, history []models.ChatMessage, mcfg models.ModelConfig) (<-chan models.StreamDelta, error) {
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	explanation := ""
	rec, found, err := s.cache.Get(ctx, documentID, page)
	if err != nil {
		slog.Warn("explanation lookup failed, chatting without context",
			"document_id", documentID, "page", page, "error", err)
	} else if found {
		explanation = rec.Content
	}

	prompt := ai.BuildChatPrompt(explanation, history, question)

	streamCtx, cancel := context.WithTimeout(ctx, s.timeout)
	src, err := s.provider.AnalyzeStream(streamCtx, models.StreamRequest{
		Prompt: prompt,
		Config: mcfg,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting chat stream: %w", err)
	}

	out := make(chan models.StreamDelta)
	go func() {
		defer cancel()
		defer close(out)
		for {
			select {
			case delta, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- delta:
				case <-streamCtx.Done():
					return
				}
				if delta.Done || delta.Err != nil {
					return
				}
			case <-streamCtx.Done():
				return
			}
		}
	}()
	return out, nil
}
