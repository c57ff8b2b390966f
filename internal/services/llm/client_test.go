package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDecodeJSONHandlesCodeFences(t *testing.T) {
	var target struct {
		Score float64 `json:"score"`
	}
	payload := "```json\n{\"score\": 7.5}\n```"
	if err := DecodeJSON(payload, &target); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if target.Score != 7.5 {
		t.Fatalf("score = %v", target.Score)
	}
}

func TestDecodeJSONExtractsEmbeddedObject(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON("Sure, here you go: {\"ok\": true} hope that helps", &target); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !target.OK {
		t.Fatal("expected ok=true")
	}
}

func TestDecodeJSONEmptyPayload(t *testing.T) {
	var target map[string]any
	if err := DecodeJSON("   ", &target); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "key", BaseURL: server.URL, Model: "test"},
		WithRetryBackoff(time.Millisecond, time.Millisecond),
		WithSleeper(func(time.Duration) {}),
	)
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "key", BaseURL: server.URL, Model: "test"},
		WithSleeper(func(time.Duration) {}),
	)
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestCompleteJSONRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{})
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestIsTransientClassification(t *testing.T) {
	if IsTransient(nil) {
		t.Fatal("nil is not transient")
	}
	if !IsTransient(&httpStatusError{StatusCode: http.StatusTooManyRequests}) {
		t.Fatal("429 should be transient")
	}
	if IsTransient(&httpStatusError{StatusCode: http.StatusBadRequest}) {
		t.Fatal("400 should not be transient")
	}
	if IsTransient(context.Canceled) {
		t.Fatal("cancellation should not be transient")
	}
}

func TestBackoffDelayDoubles(t *testing.T) {
	client := NewClient(Config{APIKey: "k"}, WithRetryBackoff(time.Second, 8*time.Second))
	if got := client.backoffDelay(1); got != time.Second {
		t.Fatalf("attempt 1 delay = %v", got)
	}
	if got := client.backoffDelay(2); got != 2*time.Second {
		t.Fatalf("attempt 2 delay = %v", got)
	}
	if got := client.backoffDelay(5); got != 8*time.Second {
		t.Fatalf("attempt 5 delay = %v, want cap", got)
	}
}
