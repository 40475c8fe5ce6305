package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

func newTestClient(url string) *Client {
	return New(Config{
		BaseURL:             url + "/",
		ResponsesPath:       "/api/get-responses",
		RecommendationsPath: "/api/data",
		Timeout:             2 * time.Second,
	})
}

func TestGetAnswers(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr bool
	}{
		{"bare array", 200, `[{"question":"Movie or show?","keywords":["[movie]"]}]`, 1, false},
		{"wrapped", 200, `{"questionsAndKeywords":[{"question":"a","keywords":["[x]"]},{"question":"b","keywords":[]}]}`, 2, false},
		{"empty array", 200, `[]`, 0, false},
		{"null", 200, `null`, 0, false},
		{"not found", 404, `{"error":"No responses found"}`, 0, false},
		{"server error", 500, `boom`, 0, true},
		{"bad json", 200, `{"questionsAndKeywords":`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/get-responses" || r.Method != http.MethodGet {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			answers, err := newTestClient(srv.URL).GetAnswers(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetAnswers() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(answers) != tt.want {
				t.Errorf("got %d answers, want %d", len(answers), tt.want)
			}
		})
	}
}

func TestGetAnswersStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetAnswers(context.Background())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Errorf("error = %v, want StatusError 503", err)
	}
}

func TestPostRecommendations(t *testing.T) {
	var received []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/data" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"message":"Data received successfully!"}`)
	}))
	defer srv.Close()

	records := []any{map[string]any{"title": "Night Heist", "runtime": 118.0}}
	reply, err := newTestClient(srv.URL).PostRecommendations(context.Background(), records)
	if err != nil {
		t.Fatalf("PostRecommendations() error = %v", err)
	}
	if len(received) != 1 || received[0]["title"] != "Night Heist" {
		t.Errorf("server received %v", received)
	}
	m, ok := reply.(map[string]any)
	if !ok || m["message"] != "Data received successfully!" {
		t.Errorf("reply = %#v", reply)
	}
}

func TestPostRecommendationsEmptySendsArray(t *testing.T) {
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL).PostRecommendations(context.Background(), nil)
	if err != nil {
		t.Fatalf("PostRecommendations() error = %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("body = %q, want []", raw)
	}
	if reply != nil {
		t.Errorf("non-JSON reply should decode to nil, got %#v", reply)
	}
}

func TestCircuitBreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		if _, err := c.GetAnswers(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	}

	_, err := c.GetAnswers(context.Background())
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	if calls != 5 {
		t.Errorf("server saw %d calls, want 5", calls)
	}
}

func TestNotFoundDoesNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 10; i++ {
		if _, err := c.GetAnswers(context.Background()); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if c.cb.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", c.cb.State())
	}
}
