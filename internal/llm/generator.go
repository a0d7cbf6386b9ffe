// Package llm provides the text generation layer backed by a local
// Ollama instance. Generation is best-effort and time-bounded: a slow
// or absent model surfaces as a typed error rather than a hung request.
package llm

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by generators.
var (
	ErrTimeout            = errors.New("llm: generation timed out")
	ErrProcessUnavailable = errors.New("llm: generation backend unavailable")
)

// GenerateOptions tunes a single generation request.
type GenerateOptions struct {
	// MaxTokens caps the number of tokens the model may produce.
	// Zero means the backend default.
	MaxTokens int

	// Temperature and TopP override the generator defaults when > 0.
	Temperature float64
	TopP        float64
}

// Generator produces text completions for prompts.
type Generator interface {
	// Generate runs a single prompt to completion. It returns
	// ErrTimeout when the configured deadline elapses and
	// ErrProcessUnavailable when the backend cannot be reached.
	Generate(ctx context.Context, prompt string, opts *GenerateOptions) (string, error)

	// Model returns the model identifier used for generation.
	Model() string

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}

// GeneratorConfig holds settings shared by generator constructors.
type GeneratorConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	Timeout     time.Duration
}

// DefaultGeneratorConfig returns defaults suitable for a local
// llama3.2:1b instance.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		BaseURL:     "http://localhost:11434",
		Model:       "llama3.2:1b",
		Temperature: 0.7,
		TopP:        0.9,
		Timeout:     30 * time.Second,
	}
}
