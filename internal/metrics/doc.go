// Package metrics exposes Prometheus instrumentation for the Wyoming
// listener, session activity, and transcription backend calls.
package metrics
