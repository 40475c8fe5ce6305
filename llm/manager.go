package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cine-match/logging"
)

// Provider names an API family.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Manager caches generators and walks a list of configs until one answers.
type Manager struct {
	mu        sync.Mutex
	factories map[Provider]Factory
	models    map[string]Generator
}

func NewManager() *Manager {
	m := &Manager{
		factories: make(map[Provider]Factory),
		models:    make(map[string]Generator),
	}
	m.Register(ProviderOpenAI, openAIFactory{})
	m.Register(ProviderGemini, geminiFactory{})
	return m
}

// Register adds or replaces the factory for a provider.
func (m *Manager) Register(p Provider, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[p] = f
}

// Get returns the cached generator for cfg, creating it on first use.
func (m *Manager) Get(cfg *Config) (Generator, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = DetectProvider(cfg.ModelName)
	}
	c := *cfg
	c.Provider = provider

	m.mu.Lock()
	defer m.mu.Unlock()

	if g, ok := m.models[c.key()]; ok {
		return g, nil
	}
	f, ok := m.factories[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported model provider %q for %q", provider, cfg.ModelName)
	}
	g, err := f.New(&c)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", provider, err)
	}
	m.models[c.key()] = g
	return g, nil
}

// SupportedModels lists known model names per provider.
func (m *Manager) SupportedModels() map[Provider][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Provider][]string, len(m.factories))
	for p, f := range m.factories {
		out[p] = f.Models()
	}
	return out
}

// GenerateWithFallback tries each config in order and returns the first
// completion along with the name of the model that produced it.
func (m *Manager) GenerateWithFallback(ctx context.Context, prompt string, configs []*Config, opts *Options) (string, string, error) {
	var lastErr error
	for _, cfg := range configs {
		g, err := m.Get(cfg)
		if err != nil {
			lastErr = err
			continue
		}
		text, err := g.Generate(ctx, prompt, opts)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			logging.Warn().Err(err).Str("model", g.Name()).Msg("Model failed, trying next")
			lastErr = err
			continue
		}
		return text, g.Name(), nil
	}
	if lastErr != nil {
		return "", "", fmt.Errorf("all models failed, last error: %w", lastErr)
	}
	return "", "", ErrNoProviders
}

// DetectProvider guesses the provider from a model name.
func DetectProvider(modelName string) Provider {
	name := strings.ToLower(modelName)
	switch {
	case strings.Contains(name, "gpt"), strings.Contains(name, "openai"):
		return ProviderOpenAI
	case strings.Contains(name, "gemini"):
		return ProviderGemini
	}
	return ""
}
