// Package gemini implements models.AIProvider against the Gemini REST API.
package gemini

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

// Provider implements models.AIProvider using Gemini.
type Provider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	// No client-level timeout: request contexts carry the deadline, and
	// streaming responses outlive any fixed per-call budget.
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "gemini" }

// --- request/response wire types ---

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *Provider) model(cfg models.ModelConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return p.cfg.Model
}

func (p *Provider) buildBody(prompt string, source []byte, mimeType string, cfg models.ModelConfig) ([]byte, error) {
	parts := []part{{Text: prompt}}
	if len(source) > 0 {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(source),
		}})
	}
	req := generateRequest{Contents: []content{{Parts: parts}}}
	if cfg.Temperature > 0 || cfg.MaxTokens > 0 {
		req.GenerationConfig = &generationConfig{
			Temperature:     cfg.Temperature,
			MaxOutputTokens: cfg.MaxTokens,
		}
	}
	return json.Marshal(req)
}

// Analyze generates a page explanation in a single call.
func (p *Provider) Analyze(ctx context.Context, req models.AnalysisRequest) (string, error) {
	body, err := p.buildBody(req.Prompt, req.Source, req.MIMEType, req.Config)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.cfg.BaseURL, p.model(req.Config), p.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	text := extractText(genResp)
	if text == "" {
		return "", fmt.Errorf("%w: no candidates", models.ErrInvalidResponse)
	}
	return text, nil
}

// AnalyzeStream streams a chat answer via server-sent events.
func (p *Provider) AnalyzeStream(ctx context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error) {
	body, err := p.buildBody(req.Prompt, nil, "", req.Config)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		p.cfg.BaseURL, p.model(req.Config), p.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
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
			var chunk generateResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err != nil {
				continue
			}
			text := extractText(chunk)
			if text == "" {
				continue
			}
			select {
			case ch <- models.StreamDelta{Content: text}:
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

func extractText(resp generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var texts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "")
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
