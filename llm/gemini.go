package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// Gemini calls the generateContent endpoint.
type Gemini struct {
	apiKey    string
	baseURL   string
	modelName string
	client    *http.Client
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGemini(cfg *Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required for Gemini")
	}
	g := &Gemini{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		modelName: cfg.ModelName,
		client:    &http.Client{Timeout: cfg.timeout()},
	}
	if g.baseURL == "" {
		g.baseURL = DefaultGeminiURL
	}
	if g.modelName == "" {
		g.modelName = DefaultGeminiModel
	}
	return g, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, opts *Options) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	if opts != nil {
		gc := &geminiGenerationConfig{StopSequences: opts.StopSequences}
		if opts.Temperature > 0 {
			gc.Temperature = &opts.Temperature
		}
		if opts.TopP > 0 {
			gc.TopP = &opts.TopP
		}
		if opts.TopK > 0 {
			gc.TopK = &opts.TopK
		}
		if opts.MaxTokens > 0 {
			gc.MaxOutputTokens = &opts.MaxTokens
		}
		req.GenerationConfig = gc
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.modelName))
	header := http.Header{"X-Goog-Api-Key": []string{g.apiKey}}

	data, code, err := postJSON(ctx, g.client, "Gemini", endpoint, header, req)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		if !isSuccess(code) {
			return "", statusError("Gemini", code, data)
		}
		return "", fmt.Errorf("failed to unmarshal Gemini response: %w", err)
	}
	if resp.Error != nil {
		return "", &APIError{Provider: "Gemini", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if !isSuccess(code) {
		return "", statusError("Gemini", code, data)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no candidates in Gemini response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (g *Gemini) Name() string {
	return "gemini:" + g.modelName
}

type geminiFactory struct{}

func (geminiFactory) New(cfg *Config) (Generator, error) {
	return NewGemini(cfg)
}

func (geminiFactory) Models() []string {
	return []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash"}
}
