// Package audio provides the utterance buffer that accumulates streamed PCM
// audio between an audio-start and an audio-stop event. The buffer preserves
// arrival order and is owned exclusively by one session.
package audio
