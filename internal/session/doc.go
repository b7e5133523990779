// Package session implements the per-connection Wyoming state machine.
// A session owns one utterance buffer, reacts to incoming protocol events,
// and turns each audio-start/audio-stop span into a single transcription
// backend call whose result is written back as a transcript or error event.
package session
