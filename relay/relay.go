// Package relay turns an upstream server-sent-event completion response into
// a stream of text chunks, and optionally splits that stream so one copy is
// returned to the client while the other is drained and persisted.
//
//	upstream body ──▶ Transcoder ──▶ Tee ──┬──▶ foreground Branch ──▶ Body ──▶ client
//	                                       └──▶ background Branch ──▶ Recorder ──▶ worker.Pool
package relay

import (
	"context"
	"errors"
)

var (
	// ErrMalformedEvent is returned when an upstream data record cannot be
	// decoded into a completion delta.
	ErrMalformedEvent = errors.New("malformed completion event")

	// ErrStreamClosed is returned by Next after the stream was closed by its
	// consumer.
	ErrStreamClosed = errors.New("stream closed")
)

// Stream is a pull-based sequence of text chunks.
//
// Next returns io.EOF once the stream completed gracefully. Any other error
// is terminal and is returned again by every later call. Chunks are shared
// between consumers and must not be modified.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}
