package audio

import (
	"bytes"
	"testing"
)

func TestNewBuffer(t *testing.T) {
	buffer := NewBuffer()

	if buffer == nil {
		t.Fatal("NewBuffer returned nil")
	}

	if buffer.Len() != 0 {
		t.Errorf("Expected initial length 0, got %d", buffer.Len())
	}

	if len(buffer.Snapshot()) != 0 {
		t.Errorf("Expected empty snapshot, got %d bytes", len(buffer.Snapshot()))
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	buffer := NewBuffer()

	chunks := [][]byte{
		{0x01, 0x02},
		{0x03},
		{0x04, 0x05, 0x06},
	}

	var expected []byte
	for _, chunk := range chunks {
		buffer.Append(chunk)
		expected = append(expected, chunk...)
	}

	if buffer.Len() != len(expected) {
		t.Errorf("Expected length %d, got %d", len(expected), buffer.Len())
	}

	if !bytes.Equal(buffer.Snapshot(), expected) {
		t.Errorf("Expected snapshot %v, got %v", expected, buffer.Snapshot())
	}
}

func TestAppendCopiesChunk(t *testing.T) {
	buffer := NewBuffer()

	chunk := []byte{0x01, 0x02, 0x03}
	buffer.Append(chunk)

	// Mutating the caller's slice must not affect the buffer
	chunk[0] = 0xFF

	snapshot := buffer.Snapshot()
	if snapshot[0] != 0x01 {
		t.Errorf("Buffer shares memory with the appended chunk: got %#x", snapshot[0])
	}
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append([]byte{0x01, 0x02, 0x03})

	first := buffer.Snapshot()
	second := buffer.Snapshot()

	if !bytes.Equal(first, second) {
		t.Error("Consecutive snapshots differ")
	}

	// Mutating a snapshot must not affect the buffer
	first[0] = 0xFF

	if buffer.Snapshot()[0] != 0x01 {
		t.Error("Snapshot shares memory with the buffer")
	}

	if buffer.Len() != 3 {
		t.Errorf("Expected length 3 after snapshots, got %d", buffer.Len())
	}
}

func TestReset(t *testing.T) {
	buffer := NewBuffer()
	buffer.Append([]byte{0x01, 0x02, 0x03, 0x04})

	buffer.Reset()

	if buffer.Len() != 0 {
		t.Errorf("Expected length 0 after reset, got %d", buffer.Len())
	}

	// The buffer must remain usable after a reset
	buffer.Append([]byte{0x05, 0x06})

	if !bytes.Equal(buffer.Snapshot(), []byte{0x05, 0x06}) {
		t.Errorf("Expected fresh data after reset, got %v", buffer.Snapshot())
	}
}

func TestResetEmptyBuffer(t *testing.T) {
	buffer := NewBuffer()

	// Resetting an empty buffer is a no-op, not an error
	buffer.Reset()
	buffer.Reset()

	if buffer.Len() != 0 {
		t.Errorf("Expected length 0, got %d", buffer.Len())
	}
}

func TestAppendEmptyChunk(t *testing.T) {
	buffer := NewBuffer()

	buffer.Append(nil)
	buffer.Append([]byte{})

	if buffer.Len() != 0 {
		t.Errorf("Expected length 0 after empty appends, got %d", buffer.Len())
	}
}

func TestLargeAccumulation(t *testing.T) {
	buffer := NewBuffer()

	// Grow well past the initial capacity
	chunk := make([]byte, 4096)
	for i := range chunk {
		chunk[i] = byte(i % 256)
	}

	const count = 64
	for i := 0; i < count; i++ {
		buffer.Append(chunk)
	}

	if buffer.Len() != count*len(chunk) {
		t.Errorf("Expected length %d, got %d", count*len(chunk), buffer.Len())
	}

	snapshot := buffer.Snapshot()
	if !bytes.Equal(snapshot[:len(chunk)], chunk) {
		t.Error("First chunk corrupted after growth")
	}
	if !bytes.Equal(snapshot[len(snapshot)-len(chunk):], chunk) {
		t.Error("Last chunk corrupted after growth")
	}
}
