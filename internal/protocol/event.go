package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Event type names defined by the Wyoming protocol
const (
	EventTypeDescribe   = "describe"
	EventTypeInfo       = "info"
	EventTypeTranscribe = "transcribe"
	EventTypeTranscript = "transcript"
	EventTypeAudioStart = "audio-start"
	EventTypeAudioChunk = "audio-chunk"
	EventTypeAudioStop  = "audio-stop"
	EventTypeError      = "error"
)

const (
	// MaxHeaderSize limits the JSON header line of a single event
	MaxHeaderSize = 1024 * 1024

	// MaxPayloadSize limits the binary payload of a single event
	MaxPayloadSize = 32 * 1024 * 1024
)

// Event represents a single Wyoming protocol event: a type, an optional
// JSON data object, and an optional binary payload.
type Event struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload []byte          `json:"-"`
}

// eventHeader is the wire representation of the JSON header line.
// Older Wyoming implementations ship the data object as a separate
// continuation block announced by data_length instead of inlining it.
type eventHeader struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// Is reports whether the event has the given type.
func (e *Event) Is(eventType string) bool {
	return e != nil && e.Type == eventType
}

// String returns a human-readable representation of the event.
func (e *Event) String() string {
	return fmt.Sprintf("Event{Type:%s, DataLen:%d, PayloadLen:%d}",
		e.Type, len(e.Data), len(e.Payload))
}

// ReadEvent reads the next event from the connection. It returns io.EOF
// when the peer closed the connection cleanly between events.
func ReadEvent(r *bufio.Reader) (*Event, error) {
	line, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}

	var header eventHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, fmt.Errorf("failed to parse event header: %w", err)
	}

	if header.Type == "" {
		return nil, fmt.Errorf("event header missing type")
	}

	event := &Event{
		Type: header.Type,
		Data: header.Data,
	}

	// Legacy framing: data object follows the header as a separate block
	if header.DataLength > 0 {
		if header.DataLength > MaxHeaderSize {
			return nil, fmt.Errorf("event data too large: %d bytes (maximum %d)",
				header.DataLength, MaxHeaderSize)
		}

		data := make([]byte, header.DataLength)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("failed to read event data block: %w", err)
		}
		event.Data = data
	}

	if header.PayloadLength > 0 {
		if header.PayloadLength > MaxPayloadSize {
			return nil, fmt.Errorf("event payload too large: %d bytes (maximum %d)",
				header.PayloadLength, MaxPayloadSize)
		}

		payload := make([]byte, header.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("failed to read event payload: %w", err)
		}
		event.Payload = payload
	}

	return event, nil
}

// readHeaderLine reads one newline-terminated header line, enforcing the
// header size limit even when the reader's internal buffer is smaller.
func readHeaderLine(r *bufio.Reader) ([]byte, error) {
	var line []byte

	for {
		part, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) == 0 {
				return nil, io.EOF
			}
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("failed to read event header: %w", err)
		}

		line = append(line, part...)
		if len(line) > MaxHeaderSize {
			return nil, fmt.Errorf("event header too large: %d bytes (maximum %d)",
				len(line), MaxHeaderSize)
		}

		if !isPrefix {
			return line, nil
		}
	}
}

// WriteEvent serializes an event to the connection: the JSON header line
// first, then the payload bytes when present.
func WriteEvent(w io.Writer, e *Event) error {
	header := eventHeader{
		Type: e.Type,
		Data: e.Data,
	}
	if len(e.Payload) > 0 {
		header.PayloadLength = len(e.Payload)
	}

	line, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal event header: %w", err)
	}

	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("failed to write event header: %w", err)
	}

	if len(e.Payload) > 0 {
		if _, err := w.Write(e.Payload); err != nil {
			return fmt.Errorf("failed to write event payload: %w", err)
		}
	}

	return nil
}
