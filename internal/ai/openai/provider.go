// Package openai implements models.AIProvider against the OpenAI chat
// completions API, which also fronts many self-hosted gateways.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/unitutor/pagetutor/internal/config"
	"github.com/unitutor/pagetutor/pkg/models"
)

// Provider implements models.AIProvider using OpenAI.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "openai" }

// --- request/response wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type string    `json:"type"`
	Text string    `json:"text,omitempty"`
	File *filePart `json:"file,omitempty"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) model(cfg models.ModelConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return p.cfg.Model
}

func (p *Provider) post(ctx context.Context, req chatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}
	return resp, nil
}

// Analyze generates a page explanation in a single call, attaching the page
// bytes as a file content part.
func (p *Provider) Analyze(ctx context.Context, req models.AnalysisRequest) (string, error) {
	parts := []contentPart{{Type: "text", Text: req.Prompt}}
	if len(req.Source) > 0 {
		parts = append(parts, contentPart{
			Type: "file",
			File: &filePart{
				Filename: "page.pdf",
				FileData: fmt.Sprintf("data:%s;base64,%s",
					req.MIMEType, base64.StdEncoding.EncodeToString(req.Source)),
			},
		})
	}

	resp, err := p.post(ctx, chatRequest{
		Model:       p.model(req.Config),
		Messages:    []chatMessage{{Role: "user", Content: parts}},
		Temperature: req.Config.Temperature,
		MaxTokens:   req.Config.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: no choices", models.ErrInvalidResponse)
	}
	return chatResp.Choices[0].Message.Content, nil
}

// AnalyzeStream streams a chat answer via server-sent events.
func (p *Provider) AnalyzeStream(ctx context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error) {
	resp, err := p.post(ctx, chatRequest{
		Model:       p.model(req.Config),
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Config.Temperature,
		MaxTokens:   req.Config.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan models.StreamDelta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}
			var chunk chatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case ch <- models.StreamDelta{Content: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- models.StreamDelta{Err: classifyError(err)}:
			case <-ctx.Done():
			}
			return
		}

		select {
		case ch <- models.StreamDelta{Done: true}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
}

var _ models.AIProvider = (*Provider)(nil)
