// Package llm talks to hosted text-generation APIs. The preference server
// uses it to turn free-text questionnaire answers into keyword lists.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoProviders is returned when no configured model could be used.
var ErrNoProviders = errors.New("no usable LLM configuration")

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts *Options) (string, error)

	// Name returns "<provider>:<model>".
	Name() string
}

// Options tune a single generation call. Zero values are left to the provider.
type Options struct {
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// KeywordOptions keeps extraction output short and close to deterministic.
func KeywordOptions() *Options {
	return &Options{
		MaxTokens:   512,
		Temperature: 0.2,
		TopP:        0.9,
		TopK:        40,
	}
}

// Config describes one model endpoint.
type Config struct {
	Provider  Provider
	APIKey    string
	BaseURL   string
	ModelName string
	Timeout   time.Duration
}

func (c *Config) key() string {
	return fmt.Sprintf("%s:%s", c.Provider, c.ModelName)
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}

// Factory builds a Generator for one provider.
type Factory interface {
	New(cfg *Config) (Generator, error)
	Models() []string
}

// APIError is a non-2xx reply or an error object returned by a provider.
type APIError struct {
	Provider string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}
