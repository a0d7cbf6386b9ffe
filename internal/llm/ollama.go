package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaGenerator implements Generator against an Ollama server's
// /api/generate endpoint.
type OllamaGenerator struct {
	baseURL     string
	model       string
	temperature float64
	topP        float64
	timeout     time.Duration
	client      *http.Client
}

// OllamaOption configures the Ollama generator.
type OllamaOption func(*OllamaGenerator)

// WithOllamaModel sets the model used for generation.
func WithOllamaModel(model string) OllamaOption {
	return func(g *OllamaGenerator) { g.model = model }
}

// WithOllamaTimeout sets the per-request deadline.
func WithOllamaTimeout(d time.Duration) OllamaOption {
	return func(g *OllamaGenerator) { g.timeout = d }
}

// WithOllamaSampling overrides the default temperature and top_p.
func WithOllamaSampling(temperature, topP float64) OllamaOption {
	return func(g *OllamaGenerator) {
		g.temperature = temperature
		g.topP = topP
	}
}

// WithOllamaHTTPClient sets a custom HTTP client.
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(g *OllamaGenerator) { g.client = client }
}

// NewOllamaGenerator creates a generator for the given Ollama server.
// baseURL defaults to "http://localhost:11434" when empty.
func NewOllamaGenerator(baseURL string, opts ...OllamaOption) *OllamaGenerator {
	cfg := DefaultGeneratorConfig()
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	g := &OllamaGenerator{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		timeout:     cfg.Timeout,
		// The HTTP client carries no timeout of its own; the
		// per-request context deadline governs.
		client: &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the model identifier used for generation.
func (g *OllamaGenerator) Model() string { return g.model }

// Ping checks if the Ollama server is reachable.
func (g *OllamaGenerator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrProcessUnavailable, resp.StatusCode)
	}
	return nil
}

// Generate runs a non-streaming completion request. The configured
// timeout bounds the entire call.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body := g.buildRequest(prompt, opts)
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", g.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama: HTTP %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama: %s", result.Error)
	}
	return result.Response, nil
}

// classifyTransportError maps transport failures onto the generator
// error taxonomy. Deadline expiry means the model is too slow for the
// request budget; anything else means the server is not there.
func (g *OllamaGenerator) classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrProcessUnavailable, err)
}

// ── Internal Types ──

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (g *OllamaGenerator) buildRequest(prompt string, opts *GenerateOptions) ollamaGenerateRequest {
	o := &ollamaOptions{
		Temperature: g.temperature,
		TopP:        g.topP,
	}
	if opts != nil {
		if opts.Temperature > 0 {
			o.Temperature = opts.Temperature
		}
		if opts.TopP > 0 {
			o.TopP = opts.TopP
		}
		if opts.MaxTokens > 0 {
			o.NumPredict = opts.MaxTokens
		}
	}
	return ollamaGenerateRequest{
		Model:   g.model,
		Prompt:  prompt,
		Stream:  false,
		Options: o,
	}
}
