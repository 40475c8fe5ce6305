package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

const (
	DefaultOpenAIURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o"
)

// OpenAI calls the chat completions endpoint. Any compatible server works
// when BaseURL points at it.
type OpenAI struct {
	apiKey    string
	baseURL   string
	modelName string
	client    *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func NewOpenAI(cfg *Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required for OpenAI")
	}
	o := &OpenAI{
		apiKey:    cfg.APIKey,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		modelName: cfg.ModelName,
		client:    &http.Client{Timeout: cfg.timeout()},
	}
	if o.baseURL == "" {
		o.baseURL = DefaultOpenAIURL
	}
	if o.modelName == "" {
		o.modelName = DefaultOpenAIModel
	}
	return o, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, opts *Options) (string, error) {
	req := chatRequest{
		Model:    o.modelName,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if opts != nil {
		req.MaxTokens = opts.MaxTokens
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
		req.Stop = opts.StopSequences
	}

	header := http.Header{"Authorization": []string{"Bearer " + o.apiKey}}
	data, code, err := postJSON(ctx, o.client, "OpenAI", o.baseURL+"/chat/completions", header, req)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		if !isSuccess(code) {
			return "", statusError("OpenAI", code, data)
		}
		return "", fmt.Errorf("failed to unmarshal OpenAI response: %w", err)
	}
	if resp.Error != nil {
		return "", &APIError{Provider: "OpenAI", Code: code, Message: resp.Error.Message}
	}
	if !isSuccess(code) {
		return "", statusError("OpenAI", code, data)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in OpenAI response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Name() string {
	return "openai:" + o.modelName
}

type openAIFactory struct{}

func (openAIFactory) New(cfg *Config) (Generator, error) {
	return NewOpenAI(cfg)
}

func (openAIFactory) Models() []string {
	return []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}
}
