package protocol

import (
	"encoding/json"
	"fmt"
)

// AudioStart marks the beginning of an audio stream. The format fields
// describe the PCM data carried by the following audio-chunk events.
type AudioStart struct {
	Rate      int   `json:"rate"`
	Width     int   `json:"width"`
	Channels  int   `json:"channels"`
	Timestamp int64 `json:"timestamp,omitempty"`
}

// AudioChunk carries one span of raw PCM audio in the event payload.
type AudioChunk struct {
	Rate      int   `json:"rate"`
	Width     int   `json:"width"`
	Channels  int   `json:"channels"`
	Timestamp int64 `json:"timestamp,omitempty"`

	// Audio is the event payload, not part of the JSON data object
	Audio []byte `json:"-"`
}

// AudioStop marks the end of an audio stream.
type AudioStop struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Transcribe is a client request naming a preferred model or language for
// upcoming transcriptions.
type Transcribe struct {
	Name     string `json:"name,omitempty"`
	Language string `json:"language,omitempty"`
}

// Transcript carries the text result of a completed transcription.
type Transcript struct {
	Text string `json:"text"`
}

// ErrorEvent reports a recoverable failure to the client. Context tags the
// processing stage that failed.
type ErrorEvent struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

// Event converts the audio-start data to a wire event.
func (a *AudioStart) Event() *Event {
	return mustEvent(EventTypeAudioStart, a, nil)
}

// Event converts the audio-chunk data and payload to a wire event.
func (a *AudioChunk) Event() *Event {
	return mustEvent(EventTypeAudioChunk, &AudioChunk{
		Rate:      a.Rate,
		Width:     a.Width,
		Channels:  a.Channels,
		Timestamp: a.Timestamp,
	}, a.Audio)
}

// Event converts the audio-stop data to a wire event.
func (a *AudioStop) Event() *Event {
	return mustEvent(EventTypeAudioStop, a, nil)
}

// Event converts the transcribe request to a wire event.
func (t *Transcribe) Event() *Event {
	return mustEvent(EventTypeTranscribe, t, nil)
}

// Event converts the transcript result to a wire event.
func (t *Transcript) Event() *Event {
	return mustEvent(EventTypeTranscript, t, nil)
}

// Event converts the error report to a wire event.
func (e *ErrorEvent) Event() *Event {
	return mustEvent(EventTypeError, e, nil)
}

// DescribeEvent builds a capability query event.
func DescribeEvent() *Event {
	return &Event{Type: EventTypeDescribe}
}

// ParseAudioStart extracts audio-start data from a wire event.
func ParseAudioStart(e *Event) (*AudioStart, error) {
	if !e.Is(EventTypeAudioStart) {
		return nil, fmt.Errorf("not an audio-start event: %s", e.Type)
	}

	start := &AudioStart{}
	if err := unmarshalData(e, start); err != nil {
		return nil, err
	}

	return start, nil
}

// ParseAudioChunk extracts audio-chunk data and payload from a wire event.
func ParseAudioChunk(e *Event) (*AudioChunk, error) {
	if !e.Is(EventTypeAudioChunk) {
		return nil, fmt.Errorf("not an audio-chunk event: %s", e.Type)
	}

	chunk := &AudioChunk{}
	if err := unmarshalData(e, chunk); err != nil {
		return nil, err
	}

	chunk.Audio = e.Payload
	return chunk, nil
}

// ParseAudioStop extracts audio-stop data from a wire event.
func ParseAudioStop(e *Event) (*AudioStop, error) {
	if !e.Is(EventTypeAudioStop) {
		return nil, fmt.Errorf("not an audio-stop event: %s", e.Type)
	}

	stop := &AudioStop{}
	if err := unmarshalData(e, stop); err != nil {
		return nil, err
	}

	return stop, nil
}

// ParseTranscribe extracts transcribe request data from a wire event.
func ParseTranscribe(e *Event) (*Transcribe, error) {
	if !e.Is(EventTypeTranscribe) {
		return nil, fmt.Errorf("not a transcribe event: %s", e.Type)
	}

	req := &Transcribe{}
	if err := unmarshalData(e, req); err != nil {
		return nil, err
	}

	return req, nil
}

// ParseTranscript extracts transcript data from a wire event.
func ParseTranscript(e *Event) (*Transcript, error) {
	if !e.Is(EventTypeTranscript) {
		return nil, fmt.Errorf("not a transcript event: %s", e.Type)
	}

	transcript := &Transcript{}
	if err := unmarshalData(e, transcript); err != nil {
		return nil, err
	}

	return transcript, nil
}

// ParseError extracts error data from a wire event.
func ParseError(e *Event) (*ErrorEvent, error) {
	if !e.Is(EventTypeError) {
		return nil, fmt.Errorf("not an error event: %s", e.Type)
	}

	errEvent := &ErrorEvent{}
	if err := unmarshalData(e, errEvent); err != nil {
		return nil, err
	}

	return errEvent, nil
}

func unmarshalData(e *Event, v interface{}) error {
	if len(e.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", e.Type, err)
	}

	return nil
}

func mustEvent(eventType string, data interface{}, payload []byte) *Event {
	raw, err := json.Marshal(data)
	if err != nil {
		// Event data structs contain only marshalable fields
		panic(fmt.Sprintf("failed to marshal %s data: %v", eventType, err))
	}

	return &Event{
		Type:    eventType,
		Data:    raw,
		Payload: payload,
	}
}
