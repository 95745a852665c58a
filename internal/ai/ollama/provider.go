// Package ollama implements models.AIProvider against a local Ollama server.
package ollama

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

	"github.com/unitutor/pagetutor/internal/config"
	"github.com/unitutor/pagetutor/pkg/models"
)

// Provider implements models.AIProvider using Ollama.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

// --- request/response wire types ---

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Images  []string       `json:"images,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *Provider) model(cfg models.ModelConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return p.cfg.Model
}

func options(cfg models.ModelConfig) map[string]any {
	opts := map[string]any{}
	if cfg.Temperature > 0 {
		opts["temperature"] = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		opts["num_predict"] = cfg.MaxTokens
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (p *Provider) post(ctx context.Context, req generateRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/generate", bytes.NewReader(body))
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
	return resp, nil
}

// Analyze generates a page explanation in a single call. Page bytes ride
// along as a base64 image for multimodal models.
func (p *Provider) Analyze(ctx context.Context, req models.AnalysisRequest) (string, error) {
	greq := generateRequest{
		Model:   p.model(req.Config),
		Prompt:  req.Prompt,
		Stream:  false,
		Options: options(req.Config),
	}
	if len(req.Source) > 0 {
		greq.Images = []string{base64.StdEncoding.EncodeToString(req.Source)}
	}

	resp, err := p.post(ctx, greq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}
	if genResp.Response == "" {
		return "", fmt.Errorf("%w: empty response", models.ErrInvalidResponse)
	}
	return genResp.Response, nil
}

// AnalyzeStream streams a chat answer; Ollama emits newline-delimited JSON.
func (p *Provider) AnalyzeStream(ctx context.Context, req models.StreamRequest) (<-chan models.StreamDelta, error) {
	resp, err := p.post(ctx, generateRequest{
		Model:   p.model(req.Config),
		Prompt:  req.Prompt,
		Stream:  true,
		Options: options(req.Config),
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
			var chunk generateResponse
			if err := json.Unmarshal(scanner.Bytes(), &chunk); err != nil {
				continue
			}
			if chunk.Response != "" {
				select {
				case ch <- models.StreamDelta{Content: chunk.Response}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.Done {
				break
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
