package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"cine-match/config"
	"cine-match/preferences"
)

var sampleResponses = []Response{
	{Question: "Movie or show?", Answer: "A movie"},
	{Question: "How do you feel?", Answer: "Happy"},
	{Question: "Favourite genres?", Answer: "Action, Comedy"},
}

func TestKeywordPrompt(t *testing.T) {
	got := KeywordPrompt(sampleResponses[:2])
	want := "Q1: Movie or show?\nA1: A movie\nQ2: How do you feel?\nA2: Happy\n" +
		"\nExtract relevant keywords for each answer, mapping them to their corresponding question numbers. Format:\nQ1: [keywords]\nQ2: [keywords]"
	if got != want {
		t.Errorf("KeywordPrompt() =\n%q\nwant\n%q", got, want)
	}
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][]string
	}{
		{
			name: "all lines",
			text: "Q1: [movie]\nQ2: happy, upbeat\nQ3: [action], [comedy]\n",
			want: [][]string{{"[movie]"}, {"happy", "upbeat"}, {"[action]", "[comedy]"}},
		},
		{
			name: "missing question and no trailing newline",
			text: "Q1: movie\nQ3: action, comedy",
			want: [][]string{{"movie"}, {}, {"action", "comedy"}},
		},
		{
			name: "empty entries dropped",
			text: "Q1: movie, ,\nQ2:\nQ3: x\n",
			want: [][]string{{"movie"}, {}, {"x"}},
		},
		{
			name: "empty line does not take the next one",
			text: "Q1: movie\nQ2:\nQ3: [drama]\n",
			want: [][]string{{"movie"}, {}, {"[drama]"}},
		},
		{
			name: "crlf line endings",
			text: "Q1: movie\r\nQ2: happy\r\nQ3: x",
			want: [][]string{{"movie"}, {"happy"}, {"x"}},
		},
		{
			name: "no match",
			text: "I cannot help with that.",
			want: [][]string{{}, {}, {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKeywords(tt.text, sampleResponses)
			if len(got) != len(sampleResponses) {
				t.Fatalf("len = %d, want %d", len(got), len(sampleResponses))
			}
			for i, a := range got {
				if a.Question != sampleResponses[i].Question {
					t.Errorf("answer %d question = %q", i, a.Question)
				}
				if !reflect.DeepEqual(a.Keywords, tt.want[i]) {
					t.Errorf("answer %d keywords = %q, want %q", i, a.Keywords, tt.want[i])
				}
			}
		})
	}
}

func TestParseKeywordsEmptyGenresKeepDefault(t *testing.T) {
	responses := []Response{
		{Question: "Movie or show?", Answer: "movie"},
		{Question: "Mood?", Answer: "happy"},
		{Question: "Genres?", Answer: ""},
		{Question: "Industry?", Answer: "hollywood"},
		{Question: "Length?", Answer: "90 minutes"},
	}
	text := "Q1: [movie]\nQ2: [happy]\nQ3:\nQ4: [hollywood]\nQ5: [90 minutes]\n"

	answers := ParseKeywords(text, responses)
	if len(answers[2].Keywords) != 0 {
		t.Fatalf("Q3 keywords = %q, want none", answers[2].Keywords)
	}
	if !reflect.DeepEqual(answers[3].Keywords, []string{"[hollywood]"}) {
		t.Errorf("Q4 keywords = %q", answers[3].Keywords)
	}

	p := preferences.Transform(answers)
	if p.Genres != preferences.DefaultGenre {
		t.Errorf("genres = %q, want %q", p.Genres, preferences.DefaultGenre)
	}
	if p.ProductionCountries != "US" {
		t.Errorf("production countries = %q, want US", p.ProductionCountries)
	}
}

func TestLocalKeywords(t *testing.T) {
	got := LocalKeywords([]Response{
		{Question: "q1", Answer: "Movie"},
		{Question: "q2", Answer: " Action ,Sci-Fi,"},
		{Question: "q3", Answer: ""},
	})
	want := [][]string{{"[movie]"}, {"[action]", "[sci-fi]"}, {}}
	for i := range want {
		if !reflect.DeepEqual(got[i].Keywords, want[i]) {
			t.Errorf("answer %d keywords = %q, want %q", i, got[i].Keywords, want[i])
		}
	}
}

func fakeGemini(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Goog-Api-Key") != "g-key" {
			t.Errorf("missing api key header")
		}
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || !strings.Contains(req.Contents[0].Parts[0].Text, "Extract relevant keywords") {
			t.Errorf("unexpected prompt %+v", req.Contents)
		}
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer o-key" {
			t.Errorf("missing bearer token")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q", req.Model)
		}
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiGenerate(t *testing.T) {
	srv := fakeGemini(t, `{"candidates":[{"content":{"parts":[{"text":"Q1: movie\n"}]}}]}`, http.StatusOK)
	g, err := NewGemini(&Config{APIKey: "g-key", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}
	answers, err := ExtractKeywords(context.Background(), g, sampleResponses[:1])
	if err != nil {
		t.Fatalf("ExtractKeywords() error = %v", err)
	}
	if !reflect.DeepEqual(answers[0].Keywords, []string{"movie"}) {
		t.Errorf("keywords = %q", answers[0].Keywords)
	}
	if g.Name() != "gemini:gemini-1.5-flash" {
		t.Errorf("Name() = %q", g.Name())
	}
}

func TestGeminiErrors(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		status int
		apiErr bool
	}{
		{"error object", `{"error":{"code":400,"message":"API key not valid"}}`, http.StatusBadRequest, true},
		{"plain 500", `upstream down`, http.StatusInternalServerError, true},
		{"no candidates", `{"candidates":[]}`, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeGemini(t, tt.reply, tt.status)
			g, _ := NewGemini(&Config{APIKey: "g-key", BaseURL: srv.URL})
			_, err := g.Generate(context.Background(), KeywordPrompt(sampleResponses), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if got := errors.As(err, &apiErr); got != tt.apiErr {
				t.Errorf("errors.As(*APIError) = %v, want %v (%v)", got, tt.apiErr, err)
			}
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(&Config{}); err == nil {
		t.Error("NewGemini without key should fail")
	}
	if _, err := NewOpenAI(&Config{}); err == nil {
		t.Error("NewOpenAI without key should fail")
	}
}

func TestOpenAIGenerate(t *testing.T) {
	srv := fakeOpenAI(t, `{"choices":[{"message":{"role":"assistant","content":"Q1: film"}}]}`)
	o, err := NewOpenAI(&Config{APIKey: "o-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAI() error = %v", err)
	}
	text, err := o.Generate(context.Background(), "hi", KeywordOptions())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Q1: film" {
		t.Errorf("Generate() = %q", text)
	}
}

func TestDetectProvider(t *testing.T) {
	tests := map[string]Provider{
		"gpt-4o":           ProviderOpenAI,
		"openai-compat":    ProviderOpenAI,
		"Gemini-1.5-Flash": ProviderGemini,
		"llama3":           "",
	}
	for name, want := range tests {
		if got := DetectProvider(name); got != want {
			t.Errorf("DetectProvider(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestManagerFallback(t *testing.T) {
	broken := fakeGemini(t, `{"error":{"code":429,"message":"quota"}}`, http.StatusTooManyRequests)
	working := fakeOpenAI(t, `{"choices":[{"message":{"role":"assistant","content":"Q1: movie"}}]}`)

	m := NewManager()
	configs := []*Config{
		{Provider: ProviderGemini, APIKey: "g-key", BaseURL: broken.URL},
		{ModelName: "gpt-4o", APIKey: "o-key", BaseURL: working.URL},
	}
	text, model, err := m.GenerateWithFallback(context.Background(), KeywordPrompt(sampleResponses[:1]), configs, nil)
	if err != nil {
		t.Fatalf("GenerateWithFallback() error = %v", err)
	}
	if text != "Q1: movie" || model != "openai:gpt-4o" {
		t.Errorf("got (%q, %q)", text, model)
	}

	g1, _ := m.Get(configs[1])
	g2, _ := m.Get(configs[1])
	if g1 != g2 {
		t.Error("Get() should return the cached generator")
	}

	if _, _, err := m.GenerateWithFallback(context.Background(), "x", nil, nil); !errors.Is(err, ErrNoProviders) {
		t.Errorf("empty configs error = %v, want ErrNoProviders", err)
	}
	if _, _, err := m.GenerateWithFallback(context.Background(), "x", []*Config{{ModelName: "llama3", APIKey: "k"}}, nil); err == nil {
		t.Error("unknown provider should fail")
	}
}

func TestExtractorFallsBackToLocal(t *testing.T) {
	broken := fakeGemini(t, `boom`, http.StatusInternalServerError)
	e := NewExtractor(NewManager(), []*Config{{Provider: ProviderGemini, APIKey: "g-key", BaseURL: broken.URL}})

	answers, source, err := e.Extract(context.Background(), sampleResponses)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if source != SourceLocal {
		t.Errorf("source = %q, want %q", source, SourceLocal)
	}
	if !reflect.DeepEqual(answers[2].Keywords, []string{"[action]", "[comedy]"}) {
		t.Errorf("keywords = %q", answers[2].Keywords)
	}
}

func TestExtractorUsesModel(t *testing.T) {
	srv := fakeGemini(t, `{"candidates":[{"content":{"parts":[{"text":"Q1: [movie]\nQ2: [happy]\nQ3: [action], [comedy]"}]}}]}`, http.StatusOK)
	configs := ConfigsFrom(config.LLMConfig{GeminiAPIKey: "g-key", GeminiModel: "gemini-1.5-flash", GeminiURL: srv.URL})
	if len(configs) != 1 {
		t.Fatalf("ConfigsFrom() returned %d configs, want 1", len(configs))
	}

	answers, source, err := NewExtractor(NewManager(), configs).Extract(context.Background(), sampleResponses)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if source != SourceLLM {
		t.Errorf("source = %q, want %q", source, SourceLLM)
	}
	if !reflect.DeepEqual(answers[1].Keywords, []string{"[happy]"}) {
		t.Errorf("keywords = %q", answers[1].Keywords)
	}
}
