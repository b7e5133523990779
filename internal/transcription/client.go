package transcription

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// MinAudioBytes is the smallest payload worth sending to the backend.
// Anything below this is almost certainly not a valid utterance, so the
// client declines the call and reports no text instead.
const MinAudioBytes = 1024

// uploadFilename names the in-memory upload; the API requires a filename
// with a recognized audio extension.
const uploadFilename = "audio.wav"

// BackendError wraps any transport, authentication, or service-side
// failure of a transcription call.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("transcription backend: %v", e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Config contains transcription client configuration
type Config struct {
	Endpoint      string
	APIKey        string
	APIVersion    string
	Model         string
	Language      string // empty means let the backend detect
	Timeout       time.Duration
	MaxConcurrent int
}

// Client calls the Azure OpenAI transcription API. One client is shared by
// all sessions; the semaphore caps concurrent backend calls.
type Client struct {
	config    Config
	api       *openai.Client
	semaphore chan struct{}

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	skippedRequests uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SkippedRequests uint64        `json:"skipped_requests"`
	SuccessRate     float64       `json:"success_rate"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a transcription client for the given Azure OpenAI
// deployment. A construction error here is fatal for the process.
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	parsed, err := url.Parse(config.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute URL, got %q", config.Endpoint)
	}

	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if strings.TrimSpace(config.Model) == "" {
		return nil, fmt.Errorf("model cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	apiConfig := openai.DefaultAzureConfig(config.APIKey, config.Endpoint)
	if config.APIVersion != "" {
		apiConfig.APIVersion = config.APIVersion
	}

	return &Client{
		config:    config,
		api:       openai.NewClientWithConfig(apiConfig),
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Transcribe sends one complete utterance to the backend and returns the
// transcribed text, trimmed of surrounding whitespace. An empty result with
// a nil error means the backend produced no usable text, or the payload was
// too small to plausibly be audio; language overrides the configured hint
// for this call only. Transcribe blocks on network I/O and must not run on
// a goroutine that reads connection events.
func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) < MinAudioBytes {
		c.incrementSkippedRequests()
		return "", nil
	}

	// Acquire semaphore to cap concurrent backend calls
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return "", &BackendError{Err: ctx.Err()}
	}

	if language == "" {
		language = c.config.Language
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	startTime := time.Now()
	c.incrementTotalRequests()

	response, err := c.api.CreateTranscription(callCtx, openai.AudioRequest{
		Model:    c.config.Model,
		Reader:   bytes.NewReader(audio),
		FilePath: uploadFilename,
		Language: language,
	})
	if err != nil {
		c.incrementFailedRequests()
		return "", &BackendError{Err: err}
	}

	c.incrementSuccessRequests()
	c.updateAvgResponseTime(time.Since(startTime))

	return strings.TrimSpace(response.Text), nil
}

// Model returns the configured model/deployment name.
func (c *Client) Model() string {
	return c.config.Model
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementSkippedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skippedRequests++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SkippedRequests: c.skippedRequests,
		SuccessRate:     successRate,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close waits for all in-flight backend calls to complete.
func (c *Client) Close() error {
	for i := 0; i < cap(c.semaphore); i++ {
		c.semaphore <- struct{}{}
	}

	return nil
}
