package prefserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"cine-match/llm"
	"cine-match/preferences"
)

type stubExtractor struct {
	err   error
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, responses []llm.Response) ([]preferences.Answer, string, error) {
	s.calls++
	if s.err != nil {
		return nil, "", s.err
	}
	return llm.LocalKeywords(responses), llm.SourceLocal, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestResponsesLifecycle(t *testing.T) {
	ext := &stubExtractor{}
	h := New(ext).Routes()

	rec := do(t, h, http.MethodGet, "/api/get-responses", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET before save = %d, want 404", rec.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil || errResp.Error == "" {
		t.Errorf("404 body = %s", rec.Body.String())
	}

	body := `{"responses":[{"question":"Movie or show?","answer":"Movie"},{"question":"Genres?","answer":"Action, Comedy"}]}`
	rec = do(t, h, http.MethodPost, "/api/save-responses", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST save-responses = %d: %s", rec.Code, rec.Body.String())
	}
	var saved KeywordsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(saved.QuestionsAndKeywords) != 2 || saved.QuestionsAndKeywords[1].Keywords[1] != "[comedy]" {
		t.Errorf("saved = %+v", saved)
	}

	rec = do(t, h, http.MethodGet, "/api/get-responses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET after save = %d", rec.Code)
	}
	var got KeywordsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.QuestionsAndKeywords[0].Question != "Movie or show?" {
		t.Errorf("got = %+v", got)
	}

	rec = do(t, h, http.MethodDelete, "/api/get-responses", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/get-responses", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", rec.Code)
	}
}

func TestSaveResponsesRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `responses`},
		{"missing responses", `{}`},
		{"responses not array", `{"responses":"Movie"}`},
		{"missing question", `{"responses":[{"answer":"Movie"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := &stubExtractor{}
			rec := do(t, New(ext).Routes(), http.MethodPost, "/api/save-responses", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if ext.calls != 0 {
				t.Error("extractor should not be called")
			}
		})
	}
}

func TestSaveResponsesExtractionFailure(t *testing.T) {
	h := New(&stubExtractor{err: errors.New("model down")}).Routes()
	rec := do(t, h, http.MethodPost, "/api/save-responses", `{"responses":[{"question":"q","answer":"a"}]}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestData(t *testing.T) {
	h := New(&stubExtractor{}).Routes()

	rec := do(t, h, http.MethodGet, "/api/data", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"data":[]}` {
		t.Errorf("initial GET = %d %s", rec.Code, rec.Body.String())
	}

	for _, bad := range []string{`{"title":"x"}`, `"x"`, ``, `[1,`} {
		if rec := do(t, h, http.MethodPost, "/api/data", bad); rec.Code != http.StatusBadRequest {
			t.Errorf("POST %q = %d, want 400", bad, rec.Code)
		}
	}

	records := `[{"title":"Funny Film","type":"MOVIE","runtime":95}]`
	if rec := do(t, h, http.MethodPost, "/api/data", records); rec.Code != http.StatusOK {
		t.Fatalf("POST data = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/api/data", "")
	var got struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Data) != 1 || got.Data[0]["title"] != "Funny Film" {
		t.Errorf("data = %+v", got.Data)
	}
}

func TestTestEndpointAndMetrics(t *testing.T) {
	h := New(&stubExtractor{}).Routes()

	rec := do(t, h, http.MethodGet, "/api/test", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "working") {
		t.Errorf("GET /api/test = %d %q", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cinematch_http_requests_total") {
		t.Errorf("GET /metrics = %d, missing request counter", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := New(&stubExtractor{}).Routes()

	req := httptest.NewRequest(http.MethodOptions, "/api/save-responses", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code < 200 || rec.Code > 299 {
		t.Errorf("preflight = %d, want 2xx", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("preflight Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPost) {
		t.Errorf("preflight Access-Control-Allow-Methods = %q, want POST", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/test = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
