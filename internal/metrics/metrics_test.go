package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/pkg/llm"
)

func TestObserveResponse(t *testing.T) {
	m := New()
	m.Observe(cognitive.Event{
		Kind: cognitive.EventResponse,
		Response: &cognitive.Response{
			Meta: cognitive.Meta{
				Model:   cognitive.Selection{Integration: "openai", Model: "gpt-4o"},
				Latency: 1500 * time.Millisecond,
				Cost:    cognitive.Cost{Input: 0.01, Output: 0.02},
				Tokens:  cognitive.Tokens{Input: 100, Output: 40},
			},
		},
	})

	if got := testutil.ToFloat64(m.events.WithLabelValues("response")); got != 1 {
		t.Errorf("expected 1 response event, got %v", got)
	}
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("openai", "gpt-4o", "input")); got != 100 {
		t.Errorf("expected 100 input tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.tokens.WithLabelValues("openai", "gpt-4o", "output")); got != 40 {
		t.Errorf("expected 40 output tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.cost.WithLabelValues("openai", "gpt-4o")); got < 0.0299 || got > 0.0301 {
		t.Errorf("expected cost 0.03, got %v", got)
	}
}

func TestObserveFailures(t *testing.T) {
	m := New()
	req := &cognitive.Request{ID: "r1", Input: llm.GenerateInput{Model: "openai:gpt-4o"}}
	m.Observe(cognitive.Event{Kind: cognitive.EventRetry, Request: req, Err: errors.New("timeout")})
	m.Observe(cognitive.Event{Kind: cognitive.EventRetry, Request: req, Err: errors.New("timeout")})
	m.Observe(cognitive.Event{Kind: cognitive.EventFallback, Request: req, Err: errors.New("503")})

	if got := testutil.ToFloat64(m.failures.WithLabelValues("concrete", "retry")); got != 2 {
		t.Errorf("expected 2 retries, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("fallback")); got != 1 {
		t.Errorf("expected 1 fallback event, got %v", got)
	}
}

func TestObserveFailuresBoundedLabels(t *testing.T) {
	m := New()
	for _, ref := range []string{"openai:gpt-4o", "made-up:model", "x:" + strings.Repeat("y", 500), "", "best", "fast"} {
		req := &cognitive.Request{Input: llm.GenerateInput{Model: ref}}
		m.Observe(cognitive.Event{Kind: cognitive.EventError, Request: req, Err: errors.New("boom")})
	}

	if got := testutil.CollectAndCount(m.failures); got != 3 {
		t.Errorf("expected 3 label sets (best, fast, concrete), got %d", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("concrete", "error")); got != 3 {
		t.Errorf("expected 3 concrete failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("best", "error")); got != 2 {
		t.Errorf("expected empty and best refs under best, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(cognitive.Event{Kind: cognitive.EventRequest})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `cognitive_events_total{kind="request"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", body)
	}
}
