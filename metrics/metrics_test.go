package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPollAttempts(t *testing.T) {
	before := testutil.ToFloat64(PollAttempts.WithLabelValues("served"))
	PollAttempts.WithLabelValues("served").Inc()
	if got := testutil.ToFloat64(PollAttempts.WithLabelValues("served")); got != before+1 {
		t.Errorf("served = %v, want %v", got, before+1)
	}
}

func TestObserveRank(t *testing.T) {
	ObserveRank("similarity", time.Now().Add(-time.Second))
	if n := testutil.CollectAndCount(RankDuration); n == 0 {
		t.Error("expected rank duration samples")
	}
}

func TestHandler(t *testing.T) {
	RecommendationsServed.WithLabelValues("model").Add(5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cinematch_recommendations_served_total") {
		t.Error("metrics output missing recommendations counter")
	}
}
