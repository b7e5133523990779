// Package protocol implements the Wyoming wire protocol used between voice
// satellites and this server. Every event is one JSON header line, optionally
// followed by a binary payload whose length the header announces, exchanged
// over a TCP or unix stream connection.
package protocol
