package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmservera/casabot/internal/audio"
	"github.com/jmservera/casabot/internal/metrics"
	"github.com/jmservera/casabot/internal/protocol"
)

// errorContext tags error events with the processing stage that failed.
const errorContext = "transcription"

// State tracks where a session is within the utterance lifecycle
type State int

const (
	// StateIdle means no utterance is in progress
	StateIdle State = iota
	// StateReceiving means audio-start was seen and chunks are being buffered
	StateReceiving
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	default:
		return "unknown"
	}
}

// Transcriber converts one complete utterance to text. An empty result with
// a nil error means the backend produced no usable text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// EventWriter sends protocol events back to the client.
type EventWriter interface {
	WriteEvent(e *protocol.Event) error
}

// Config contains everything a session needs from its connection
type Config struct {
	ID         string
	RemoteAddr string
	Logger     *slog.Logger
	Writer     EventWriter
	Client     Transcriber
	Info       *protocol.Info

	// Language is the configured backend hint; empty means auto-detect
	Language string

	Metrics *metrics.Metrics
}

// Session is the per-connection state machine. HandleEvent must be called
// from a single goroutine; statistics may be read concurrently.
type Session struct {
	id         string
	remoteAddr string
	startTime  time.Time
	logger     *slog.Logger
	writer     EventWriter
	client     Transcriber
	info       *protocol.Info
	metrics    *metrics.Metrics

	// Configured language hint and per-connection override from a
	// transcribe event. The override wins until replaced.
	language         string
	languageOverride string

	buffer *audio.Buffer
	state  State

	// Statistics
	chunksReceived   uint64
	unexpectedChunks uint64
	utterances       uint64
	transcripts      uint64
	errorEvents      uint64
	totalAudioBytes  uint64
	bufferedBytes    int
	lastActivity     time.Time

	mu sync.RWMutex
}

// SessionInfo is the monitoring snapshot of one session
type SessionInfo struct {
	ID               string    `json:"id"`
	RemoteAddr       string    `json:"remote_addr"`
	State            string    `json:"state"`
	StartTime        time.Time `json:"start_time"`
	LastActivity     time.Time `json:"last_activity"`
	Language         string    `json:"language,omitempty"`
	ChunksReceived   uint64    `json:"chunks_received"`
	UnexpectedChunks uint64    `json:"unexpected_chunks"`
	TotalAudioBytes  uint64    `json:"total_audio_bytes"`
	BufferedBytes    int       `json:"buffered_bytes"`
	Utterances       uint64    `json:"utterances"`
	Transcripts      uint64    `json:"transcripts"`
	ErrorEvents      uint64    `json:"error_events"`
}

// New creates a session in the idle state
func New(config Config) *Session {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	return &Session{
		id:           config.ID,
		remoteAddr:   config.RemoteAddr,
		startTime:    now,
		lastActivity: now,
		logger:       logger,
		writer:       config.Writer,
		client:       config.Client,
		info:         config.Info,
		metrics:      config.Metrics,
		language:     config.Language,
		buffer:       audio.NewBuffer(),
		state:        StateIdle,
	}
}

// HandleEvent processes one incoming event. It returns false when the
// connection should close; a non-nil error describes why. Per-utterance
// failures are reported to the client as error events and keep the
// connection alive.
func (s *Session) HandleEvent(ctx context.Context, event *protocol.Event) (bool, error) {
	s.touch()

	switch event.Type {
	case protocol.EventTypeDescribe:
		return s.handleDescribe()

	case protocol.EventTypeTranscribe:
		return s.handleTranscribe(event)

	case protocol.EventTypeAudioStart:
		return s.handleAudioStart(event)

	case protocol.EventTypeAudioChunk:
		return s.handleAudioChunk(event)

	case protocol.EventTypeAudioStop:
		return s.finalize(ctx)

	default:
		s.logger.Debug("Ignoring event",
			slog.String("session_id", s.id),
			slog.String("type", event.Type),
		)
		return true, nil
	}
}

func (s *Session) handleDescribe() (bool, error) {
	if s.info == nil {
		s.logger.Warn("No service descriptor configured, ignoring describe",
			slog.String("session_id", s.id),
		)
		return true, nil
	}

	return s.writeEvent(s.info.Event())
}

func (s *Session) handleTranscribe(event *protocol.Event) (bool, error) {
	req, err := protocol.ParseTranscribe(event)
	if err != nil {
		s.logger.Warn("Malformed transcribe event",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	if req.Language != "" {
		s.mu.Lock()
		s.languageOverride = req.Language
		s.mu.Unlock()
	}

	s.logger.Debug("Transcription preferences updated",
		slog.String("session_id", s.id),
		slog.String("model", req.Name),
		slog.String("language", req.Language),
	)

	return true, nil
}

func (s *Session) handleAudioStart(event *protocol.Event) (bool, error) {
	start, err := protocol.ParseAudioStart(event)
	if err != nil {
		s.logger.Warn("Malformed audio-start event",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	// A new start always wins: any partially received utterance is dropped
	s.buffer.Reset()

	s.mu.Lock()
	if s.state == StateReceiving {
		s.logger.Warn("audio-start while receiving, discarding buffered audio",
			slog.String("session_id", s.id),
		)
	}
	s.state = StateReceiving
	s.bufferedBytes = 0
	s.utterances++
	s.mu.Unlock()

	s.metrics.RecordUtteranceStarted()

	s.logger.Debug("Utterance started",
		slog.String("session_id", s.id),
		slog.Int("rate", start.Rate),
		slog.Int("width", start.Width),
		slog.Int("channels", start.Channels),
	)

	return true, nil
}

func (s *Session) handleAudioChunk(event *protocol.Event) (bool, error) {
	chunk, err := protocol.ParseAudioChunk(event)
	if err != nil {
		s.logger.Warn("Malformed audio-chunk event",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	s.mu.Lock()
	// Tolerated for compatibility with permissive clients, but counted
	unexpected := s.state != StateReceiving
	if unexpected {
		s.unexpectedChunks++
	}
	s.buffer.Append(chunk.Audio)
	s.chunksReceived++
	s.totalAudioBytes += uint64(len(chunk.Audio))
	s.bufferedBytes = s.buffer.Len()
	s.mu.Unlock()

	if unexpected {
		s.metrics.RecordUnexpectedChunk()
		s.logger.Warn("audio-chunk outside an utterance",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(chunk.Audio)),
		)
	}

	return true, nil
}

// finalize handles audio-stop: it snapshots the buffered utterance, runs
// the backend call on its own goroutine, and reports the outcome. The
// session returns to idle whatever happens.
func (s *Session) finalize(ctx context.Context) (bool, error) {
	data := s.buffer.Snapshot()

	s.mu.Lock()
	s.state = StateIdle
	s.bufferedBytes = 0
	language := s.languageOverride
	if language == "" {
		language = s.language
	}
	s.mu.Unlock()

	s.metrics.RecordUtteranceCompleted(len(data))

	if len(data) == 0 {
		s.metrics.RecordEmptyUtterance()
		s.logger.Warn("Utterance finished with no audio data",
			slog.String("session_id", s.id),
		)
		return s.writeError("No audio data received")
	}

	s.logger.Debug("Transcribing utterance",
		slog.String("session_id", s.id),
		slog.Int("bytes", len(data)),
		slog.String("language", language),
	)

	type result struct {
		text string
		err  error
	}

	// The blocking backend call runs on its own goroutine so connection
	// teardown is never stuck behind network I/O. The channel is buffered:
	// if the connection dies first, the call finishes and is discarded.
	startTime := time.Now()
	s.metrics.RecordTranscriptionRequest()

	resultCh := make(chan result, 1)
	go func() {
		text, err := s.client.Transcribe(ctx, data, language)
		resultCh <- result{text: text, err: err}
	}()

	var res result
	select {
	case res = <-resultCh:
	case <-ctx.Done():
		return false, ctx.Err()
	}

	elapsed := time.Since(startTime)

	if res.err != nil {
		s.metrics.RecordTranscriptionFailure(elapsed.Seconds())
		s.logger.Error("Transcription failed",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(data)),
			slog.String("error", res.err.Error()),
		)
		return s.writeError(fmt.Sprintf("Transcription failed: %v", res.err))
	}

	s.metrics.RecordTranscriptionSuccess(elapsed.Seconds())

	if res.text == "" {
		s.logger.Warn("Transcription produced no text",
			slog.String("session_id", s.id),
			slog.Int("bytes", len(data)),
		)
		return s.writeError("No transcription result")
	}

	s.logger.Info("Transcription completed",
		slog.String("session_id", s.id),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", elapsed),
		slog.Int("text_length", len(res.text)),
	)

	transcript := &protocol.Transcript{Text: res.text}
	cont, err := s.writeEvent(transcript.Event())
	if err == nil {
		s.mu.Lock()
		s.transcripts++
		s.mu.Unlock()
	}

	return cont, err
}

// writeError reports a recoverable failure to the client. The connection
// stays open unless the write itself fails.
func (s *Session) writeError(text string) (bool, error) {
	errEvent := &protocol.ErrorEvent{Text: text, Context: errorContext}

	cont, err := s.writeEvent(errEvent.Event())
	if err == nil {
		s.mu.Lock()
		s.errorEvents++
		s.mu.Unlock()
	}

	return cont, err
}

func (s *Session) writeEvent(e *protocol.Event) (bool, error) {
	if err := s.writer.WriteEvent(e); err != nil {
		return false, fmt.Errorf("failed to write %s event: %w", e.Type, err)
	}

	s.metrics.RecordEventSent(e.Type)
	return true, nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// GetSessionInfo returns a monitoring snapshot of the session
func (s *Session) GetSessionInfo() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	language := s.languageOverride
	if language == "" {
		language = s.language
	}

	return SessionInfo{
		ID:               s.id,
		RemoteAddr:       s.remoteAddr,
		State:            s.state.String(),
		StartTime:        s.startTime,
		LastActivity:     s.lastActivity,
		Language:         language,
		ChunksReceived:   s.chunksReceived,
		UnexpectedChunks: s.unexpectedChunks,
		TotalAudioBytes:  s.totalAudioBytes,
		BufferedBytes:    s.bufferedBytes,
		Utterances:       s.utterances,
		Transcripts:      s.transcripts,
		ErrorEvents:      s.errorEvents,
	}
}
