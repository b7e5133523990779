// Package server contains the network-facing parts of the service: the
// Wyoming event-stream listener that accepts client connections and the
// optional HTTP API for monitoring.
package server
