package audio

// initialCapacity pre-allocates room for two seconds of 16 kHz 16-bit mono
// audio, the common satellite format
const initialCapacity = 16000 * 2 * 2

// Buffer accumulates the raw audio bytes of a single utterance. It is
// mutated only by the session that owns it, always from the same goroutine,
// so it carries no locking.
type Buffer struct {
	data []byte
}

// NewBuffer creates an empty utterance buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		data: make([]byte, 0, initialCapacity),
	}
}

// Reset discards any accumulated audio.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Append adds audio bytes to the end of the buffer, preserving arrival
// order. The chunk is copied; callers may reuse their slice.
func (b *Buffer) Append(chunk []byte) {
	b.data = append(b.data, chunk...)
}

// Snapshot returns a copy of the accumulated audio without mutating the
// buffer.
func (b *Buffer) Snapshot() []byte {
	snapshot := make([]byte, len(b.data))
	copy(snapshot, b.data)
	return snapshot
}

// Len returns the number of accumulated bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}
