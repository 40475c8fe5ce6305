// Package apiclient talks to the preference API: it fetches user answers and
// posts ranked recommendations back.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"cine-match/logging"
	"cine-match/metrics"
	"cine-match/preferences"
)

const (
	DefaultTimeout = 10 * time.Second

	breakerName = "preference-api"
	maxBodySize = 10 << 20
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Config locates the preference API endpoints.
type Config struct {
	BaseURL             string
	ResponsesPath       string
	RecommendationsPath string
	Timeout             time.Duration
}

// Client calls the preference API through a circuit breaker.
type Client struct {
	responsesURL       string
	recommendationsURL string
	http               *http.Client
	cb                 *gobreaker.CircuitBreaker[[]byte]
}

// New returns a client. A zero timeout means DefaultTimeout.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var nf notFound
			return err == nil || errors.As(err, &nf)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		responsesURL:       base + cfg.ResponsesPath,
		recommendationsURL: base + cfg.RecommendationsPath,
		http:               &http.Client{Timeout: timeout},
		cb:                 cb,
	}
}

// GetAnswers fetches the latest answers. The body may be a bare JSON array or
// an object with a "questionsAndKeywords" array. A 404 means no answers yet and
// yields an empty slice.
func (c *Client) GetAnswers(ctx context.Context) ([]preferences.Answer, error) {
	body, err := c.do(ctx, http.MethodGet, c.responsesURL, nil, "get_responses")
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodeAnswers(body)
}

func decodeAnswers(body []byte) ([]preferences.Answer, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var answers []preferences.Answer
		if err := json.Unmarshal(trimmed, &answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
		return answers, nil
	}

	var wrapped struct {
		QuestionsAndKeywords []preferences.Answer `json:"questionsAndKeywords"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return wrapped.QuestionsAndKeywords, nil
}

// PostRecommendations sends records as a JSON array and returns the decoded
// response body, or nil when it is not JSON.
func (c *Client) PostRecommendations(ctx context.Context, records []any) (any, error) {
	if records == nil {
		records = []any{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommendations: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, c.recommendationsURL, payload, "post_data")
	if err != nil {
		return nil, err
	}

	var reply any
	if err := json.Unmarshal(body, &reply); err != nil {
		logging.Debug().Str("body", string(body)).Msg("Recommendation response is not JSON")
		return nil, nil
	}
	return reply, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, endpoint string) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.APIRequests.WithLabelValues(endpoint, "error").Inc()
			return nil, fmt.Errorf("%s %s: %w", method, url, err)
		}
		defer resp.Body.Close()
		metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: truncate(string(data), 200)}
			if resp.StatusCode == http.StatusNotFound {
				return nil, notFound{se}
			}
			return nil, se
		}
		return data, nil
	})

	var nf notFound
	if errors.As(err, &nf) {
		return nil, nf.StatusError
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Warn().Err(err).Str("url", url).Msg("Preference API request rejected by circuit breaker")
	}
	return body, err
}

// notFound marks a 404, which the breaker counts as a success.
type notFound struct{ *StatusError }

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
