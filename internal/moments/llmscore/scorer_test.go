package llmscore_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipforge/internal/moments"
	"clipforge/internal/moments/llmscore"
	"clipforge/internal/services/llm"
)

func newScorer(t *testing.T, handler http.HandlerFunc) *llmscore.Scorer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := llm.NewClient(
		llm.Config{APIKey: "key", BaseURL: server.URL, Model: "test"},
		llm.WithSleeper(func(time.Duration) {}),
	)
	scorer, err := llmscore.New(client)
	if err != nil {
		t.Fatalf("llmscore.New: %v", err)
	}
	return scorer
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := llmscore.New(llm.NewClient(llm.Config{})); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestScoreParsesAndClampsPayload(t *testing.T) {
	scorer := newScorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"score\": 14.2, \"hook\": \"Wait for this\", \"caption\": \"The payoff\"}"}}]}`))
	})

	scored, err := scorer.Score(context.Background(), moments.Window{
		Start: 0, End: 30 * time.Second, Text: "An excerpt worth rating.",
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scored.Score != 10 {
		t.Fatalf("score = %v, want clamp to 10", scored.Score)
	}
	if scored.Hook != "Wait for this" || scored.Caption != "The payoff" {
		t.Fatalf("unexpected payload: %+v", scored)
	}
}

func TestScoreFallsBackToWindowTextCaption(t *testing.T) {
	scorer := newScorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"score\": 6}"}}]}`))
	})

	scored, err := scorer.Score(context.Background(), moments.Window{
		Start: 0, End: 20 * time.Second, Text: "Original excerpt text.",
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if scored.Caption != "Original excerpt text." {
		t.Fatalf("caption = %q", scored.Caption)
	}
}

func TestScoreSurfacesMalformedPayload(t *testing.T) {
	scorer := newScorer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"no json here at all"}}]}`))
	})

	if _, err := scorer.Score(context.Background(), moments.Window{End: 10 * time.Second, Text: "x"}); err == nil {
		t.Fatal("expected parse error")
	}
}
