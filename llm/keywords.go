package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cine-match/config"
	"cine-match/logging"
	"cine-match/metrics"
	"cine-match/preferences"
)

const (
	SourceLLM   = "llm"
	SourceLocal = "local"
)

const keywordInstruction = "\nExtract relevant keywords for each answer, mapping them to their corresponding question numbers. Format:\nQ1: [keywords]\nQ2: [keywords]"

// Response is a raw questionnaire answer.
type Response struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer"`
}

// KeywordPrompt numbers each pair from 1 and appends the extraction instruction.
func KeywordPrompt(responses []Response) string {
	var b strings.Builder
	for i, r := range responses {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", i+1, r.Question, i+1, r.Answer)
	}
	b.WriteString(keywordInstruction)
	return b.String()
}

// ParseKeywords reads "Qn: k1, k2" lines from a completion. A question with no
// matching line, or an empty one, gets no keywords. Matches never cross a line.
func ParseKeywords(text string, responses []Response) []preferences.Answer {
	out := make([]preferences.Answer, len(responses))
	for i, r := range responses {
		out[i] = preferences.Answer{Question: r.Question, Keywords: []string{}}
		re := regexp.MustCompile(fmt.Sprintf(`Q%d:[ \t]*([^\r\n]*)`, i+1))
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, k := range strings.Split(m[1], ",") {
			if k = strings.TrimSpace(k); k != "" {
				out[i].Keywords = append(out[i].Keywords, k)
			}
		}
	}
	return out
}

// LocalKeywords needs no model: each comma separated fragment of an answer
// becomes one "[fragment]" keyword in lower case.
func LocalKeywords(responses []Response) []preferences.Answer {
	out := make([]preferences.Answer, len(responses))
	for i, r := range responses {
		out[i] = preferences.Answer{Question: r.Question, Keywords: []string{}}
		for _, f := range strings.Split(r.Answer, ",") {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				out[i].Keywords = append(out[i].Keywords, "["+f+"]")
			}
		}
	}
	return out
}

// ExtractKeywords asks gen for keywords in a single batch prompt.
func ExtractKeywords(ctx context.Context, gen Generator, responses []Response) ([]preferences.Answer, error) {
	if len(responses) == 0 {
		return []preferences.Answer{}, nil
	}
	text, err := gen.Generate(ctx, KeywordPrompt(responses), KeywordOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to extract keywords with %s: %w", gen.Name(), err)
	}
	return ParseKeywords(text, responses), nil
}

// Extractor prefers the configured models and falls back to LocalKeywords
// when none is configured or all of them fail.
type Extractor struct {
	manager *Manager
	configs []*Config
}

func NewExtractor(manager *Manager, configs []*Config) *Extractor {
	return &Extractor{manager: manager, configs: configs}
}

// ConfigsFrom builds the ordered model list from settings. Providers without
// an API key are skipped and Gemini is tried first.
func ConfigsFrom(cfg config.LLMConfig) []*Config {
	var configs []*Config
	if cfg.GeminiAPIKey != "" {
		configs = append(configs, &Config{
			Provider:  ProviderGemini,
			APIKey:    cfg.GeminiAPIKey,
			BaseURL:   cfg.GeminiURL,
			ModelName: cfg.GeminiModel,
			Timeout:   cfg.Timeout,
		})
	}
	if cfg.OpenAIAPIKey != "" {
		configs = append(configs, &Config{
			Provider:  ProviderOpenAI,
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIURL,
			ModelName: cfg.OpenAIModel,
			Timeout:   cfg.Timeout,
		})
	}
	return configs
}

// Extract returns the keyword mapping and the source that produced it.
func (e *Extractor) Extract(ctx context.Context, responses []Response) ([]preferences.Answer, string, error) {
	if len(e.configs) > 0 && len(responses) > 0 {
		text, model, err := e.manager.GenerateWithFallback(ctx, KeywordPrompt(responses), e.configs, KeywordOptions())
		switch {
		case err == nil:
			logging.Debug().Str("model", model).Int("responses", len(responses)).Msg("Extracted keywords")
			metrics.KeywordExtractions.WithLabelValues(SourceLLM).Inc()
			return ParseKeywords(text, responses), SourceLLM, nil
		case ctx.Err() != nil:
			return nil, "", ctx.Err()
		default:
			logging.Warn().Err(err).Msg("Keyword extraction failed, using local extractor")
		}
	}
	metrics.KeywordExtractions.WithLabelValues(SourceLocal).Inc()
	return LocalKeywords(responses), SourceLocal, nil
}
