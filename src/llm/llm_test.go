package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	c := NewClient("test-model", url, 5*time.Second)
	c.RetryDelay = time.Millisecond
	return c
}

func reply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":`+quote(text)+`}]},"finishReason":"STOP"}]}`)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestRecognizeRequestShape(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/test-model:generateContent" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("Missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Bad request body: %v", err)
		}
		reply(w, "  Hello \n")
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Recognize(context.Background(), "k", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if text != "Hello" {
		t.Fatalf("Expected trimmed Hello, got %q", text)
	}

	parts := got.Contents[0].Parts
	if parts[0].Text != RecognizePrompt {
		t.Errorf("Unexpected prompt %q", parts[0].Text)
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/png" {
		t.Fatalf("Expected inline PNG part, got %+v", parts[1])
	}
	if parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Errorf("Image not base64 encoded")
	}
	if len(got.SafetySettings) != 4 {
		t.Errorf("Expected 4 safety settings, got %d", len(got.SafetySettings))
	}
	for _, s := range got.SafetySettings {
		if s.Threshold != "BLOCK_NONE" {
			t.Errorf("Expected BLOCK_NONE for %s", s.Category)
		}
	}
	if got.GenerationConfig == nil || got.GenerationConfig.ThinkingConfig == nil || got.GenerationConfig.ThinkingConfig.ThinkingBudget != 0 {
		t.Errorf("Expected thinking budget 0")
	}
}

func TestTranslatePrompt(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		reply(w, "안녕")
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Translate(context.Background(), "k", "Hello", "Korean")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if text != "안녕" {
		t.Fatalf("Expected 안녕, got %q", text)
	}
	prompt := got.Contents[0].Parts[0].Text
	if !strings.HasPrefix(prompt, "Translate the following text to Korean.") || !strings.Contains(prompt, `"""Hello"""`) {
		t.Fatalf("Unexpected translate prompt %q", prompt)
	}
	if len(got.SafetySettings) != 4 {
		t.Errorf("Expected 4 safety settings on translate, got %d", len(got.SafetySettings))
	}
	for _, s := range got.SafetySettings {
		if s.Threshold != "BLOCK_NONE" {
			t.Errorf("Expected BLOCK_NONE for %s", s.Category)
		}
	}
}

func TestRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`)
			return
		}
		reply(w, "ok")
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Translate(context.Background(), "k", "x", "English")
	if err != nil {
		t.Fatalf("Expected success after retries: %v", err)
	}
	if text != "ok" || calls.Load() != 3 {
		t.Fatalf("Expected ok after 3 calls, got %q after %d", text, calls.Load())
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Recognize(context.Background(), "bad", []byte{0})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != 400 || !strings.Contains(apiErr.Error(), "API key not valid") {
		t.Fatalf("Unexpected error %v", apiErr)
	}
	if calls.Load() != 1 {
		t.Fatalf("Expected a single call, got %d", calls.Load())
	}
}

func TestBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"promptFeedback":{"blockReason":"OTHER"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Translate(context.Background(), "k", "x", "English")
	if err == nil || !strings.Contains(err.Error(), "OTHER") {
		t.Fatalf("Expected block reason error, got %v", err)
	}
}

func TestEmptyCandidatesIsEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL).Recognize(context.Background(), "k", []byte{0})
	if err != nil || text != "" {
		t.Fatalf("Expected empty text without error, got %q, %v", text, err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1")
	if _, err := c.Recognize(context.Background(), "", nil); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
	if err := c.Ping(context.Background(), ""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey from Ping, got %v", err)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.RetryDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Translate(ctx, "k", "x", "English")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("Retry backoff ignored context")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/test-model" {
			t.Errorf("Unexpected ping %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") == "good" {
			io.WriteString(w, `{"name":"models/test-model"}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.Ping(context.Background(), "good"); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := c.Ping(context.Background(), "bad"); err == nil {
		t.Fatal("Expected ping failure with bad key")
	}
}
