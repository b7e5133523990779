package transcription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:      endpoint,
		APIKey:        "test-key-0123456789",
		APIVersion:    "2024-02-01",
		Model:         "whisper-1",
		Timeout:       5 * time.Second,
		MaxConcurrent: 2,
	}
}

// newTestBackend returns a fake Azure OpenAI transcription endpoint and a
// counter of requests it served.
func newTestBackend(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		if r.Header.Get("api-key") == "" {
			t.Error("Expected api-key header on backend request")
		}

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("Backend request is not multipart: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server, &requests
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"valid", func(c *Config) {}, true},
		{"empty endpoint", func(c *Config) { c.Endpoint = "" }, false},
		{"relative endpoint", func(c *Config) { c.Endpoint = "example.com" }, false},
		{"empty api key", func(c *Config) { c.APIKey = "  " }, false},
		{"empty model", func(c *Config) { c.Model = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig("https://example.openai.azure.com")
			tt.modify(&config)

			client, err := NewClient(config)
			if tt.valid {
				if err != nil {
					t.Errorf("Expected valid config, got error: %v", err)
				}
				if client == nil {
					t.Error("Expected client, got nil")
				}
			} else if err == nil {
				t.Error("Expected construction error, got nil")
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	config := testConfig("https://example.openai.azure.com")
	config.Timeout = 0
	config.MaxConcurrent = 0

	client, err := NewClient(config)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.config.Timeout)
	}

	if cap(client.semaphore) != 10 {
		t.Errorf("Expected default concurrency 10, got %d", cap(client.semaphore))
	}
}

func TestTranscribeTrimsText(t *testing.T) {
	server, requests := newTestBackend(t, http.StatusOK, `{"text":"  hello world \n"}`)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), make([]byte, 2048), "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "hello world" {
		t.Errorf("Expected trimmed %q, got %q", "hello world", text)
	}

	if requests.Load() != 1 {
		t.Errorf("Expected 1 backend request, got %d", requests.Load())
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 || stats.TotalRequests != 1 {
		t.Errorf("Unexpected stats after success: %+v", stats)
	}
}

func TestTranscribeEmptyResult(t *testing.T) {
	server, _ := newTestBackend(t, http.StatusOK, `{"text":""}`)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	text, err := client.Transcribe(context.Background(), make([]byte, 2048), "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "" {
		t.Errorf("Expected empty text, got %q", text)
	}
}

func TestTranscribeBackendFailure(t *testing.T) {
	server, _ := newTestBackend(t, http.StatusInternalServerError, `{"error":{"message":"boom"}}`)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.Transcribe(context.Background(), make([]byte, 2048), "")
	if err == nil {
		t.Fatal("Expected backend error, got nil")
	}

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Errorf("Expected *BackendError, got %T: %v", err, err)
	}

	stats := client.GetStats()
	if stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestTranscribeSkipsSmallPayload(t *testing.T) {
	server, requests := newTestBackend(t, http.StatusOK, `{"text":"should not happen"}`)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	for _, size := range []int{0, 100, MinAudioBytes - 1} {
		text, err := client.Transcribe(context.Background(), make([]byte, size), "")
		if err != nil {
			t.Errorf("Size %d: expected nil error, got %v", size, err)
		}
		if text != "" {
			t.Errorf("Size %d: expected no text, got %q", size, text)
		}
	}

	if requests.Load() != 0 {
		t.Errorf("Expected backend never called, got %d requests", requests.Load())
	}

	stats := client.GetStats()
	if stats.SkippedRequests != 3 {
		t.Errorf("Expected 3 skipped requests, got %d", stats.SkippedRequests)
	}
	if stats.TotalRequests != 0 {
		t.Errorf("Expected 0 total requests, got %d", stats.TotalRequests)
	}
}

func TestTranscribeMinimumBoundary(t *testing.T) {
	server, requests := newTestBackend(t, http.StatusOK, `{"text":"ok"}`)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	// Exactly MinAudioBytes must reach the backend
	text, err := client.Transcribe(context.Background(), make([]byte, MinAudioBytes), "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if text != "ok" {
		t.Errorf("Expected text %q, got %q", "ok", text)
	}

	if requests.Load() != 1 {
		t.Errorf("Expected 1 backend request, got %d", requests.Load())
	}
}

func TestTranscribeCancelledContext(t *testing.T) {
	server, _ := newTestBackend(t, http.StatusOK, `{"text":"ok"}`)

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Transcribe(ctx, make([]byte, 2048), "")
	if err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestClose(t *testing.T) {
	client, err := NewClient(testConfig("https://example.openai.azure.com"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
