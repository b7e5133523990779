// Package transcription implements the Azure OpenAI speech-to-text client.
// It wraps the OpenAI SDK with concurrency limiting, a per-call timeout,
// a minimum-size guard for implausibly small payloads, and request
// statistics for monitoring.
package transcription
