package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
)

const defaultFragmentSize = 4 * 1024

// errStop is returned by the event callback when the upstream signalled the
// end of the completion.
var errStop = errors.New("completion stopped")

type transcoderState int

const (
	stateReading transcoderState = iota
	stateEmitting
	stateClosed
	stateErrored
)

func (s transcoderState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateEmitting:
		return "emitting"
	case stateClosed:
		return "closed"
	case stateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transcoder converts an upstream SSE completion body into a Stream of
// content deltas.
//
// Each call to Next that finds no pending chunk pulls exactly one fragment
// from the source, feeds it to the SSE parser and collects the deltas of
// every record it completes. Those chunks are emitted before the next
// fragment is read. A record whose first choice has finish_reason "stop"
// (or a "[DONE]" record) closes the stream; nothing after it is processed.
// A record that is not valid JSON, or that lacks choices[0].delta, fails the
// stream with ErrMalformedEvent once the chunks that preceded it have been
// emitted.
//
// A Transcoder is not safe for concurrent calls to Next. Close may be called
// concurrently to abort a blocked read.
type Transcoder struct {
	src    io.ReadCloser
	parser *sse.Parser
	buf    []byte

	state transcoderState
	// after is the state entered once pending chunks are emitted.
	after   transcoderState
	pending [][]byte
	err     error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewTranscoder returns a Transcoder reading from src, typically an
// *http.Response body. The Transcoder closes src once the stream terminates.
func NewTranscoder(src io.ReadCloser) *Transcoder {
	return &Transcoder{
		src:    src,
		parser: sse.NewParser(),
		buf:    make([]byte, defaultFragmentSize),
		state:  stateReading,
	}
}

// Next returns the next non-empty content delta.
func (t *Transcoder) Next(ctx context.Context) ([]byte, error) {
	for {
		switch t.state {
		case stateEmitting:
			if len(t.pending) > 0 {
				chunk := t.pending[0]
				t.pending[0] = nil
				t.pending = t.pending[1:]
				return chunk, nil
			}
			t.state = t.after
		case stateClosed:
			return nil, io.EOF
		case stateErrored:
			return nil, t.err
		default:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if t.closed.Load() {
				t.state, t.err = stateErrored, ErrStreamClosed
				continue
			}
			t.pull()
		}
	}
}

// Close releases the upstream body. A stream closed before it terminated
// reports ErrStreamClosed from later reads.
func (t *Transcoder) Close() error {
	t.closed.Store(true)
	t.closeOnce.Do(func() {
		t.closeErr = t.src.Close()
	})
	return t.closeErr
}

// pull reads one fragment from the source and runs the parser over it.
func (t *Transcoder) pull() {
	t.after = stateReading

	n, readErr := t.src.Read(t.buf)
	if n > 0 {
		if err := t.parser.Feed(t.buf[:n], t.onEvent); err != nil {
			t.finish(err)
		}
	}

	if readErr != nil && t.after == stateReading {
		switch {
		case t.closed.Load():
			t.finish(ErrStreamClosed)
		case errors.Is(readErr, io.EOF):
			// The upstream closed the connection. A record cut off without a
			// trailing blank line is still processed.
			if err := t.parser.Flush(t.onEvent); err != nil {
				t.finish(err)
			} else {
				t.finish(errStop)
			}
		default:
			t.finish(fmt.Errorf("reading upstream: %w", readErr))
		}
	}

	t.state = stateEmitting
}

// finish records the terminal outcome and releases the upstream body.
func (t *Transcoder) finish(err error) {
	if errors.Is(err, errStop) {
		t.after = stateClosed
	} else {
		t.after = stateErrored
		t.err = err
	}

	if closeErr := t.Close(); closeErr != nil && t.after == stateClosed {
		t.after = stateErrored
		t.err = fmt.Errorf("closing upstream: %w", closeErr)
	}
}

// onEvent extracts the content delta of a single data record.
func (t *Transcoder) onEvent(ev *sse.Event) error {
	if ev.Data == llm.DoneSentinel {
		return errStop
	}

	if !gjson.Valid(ev.Data) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrMalformedEvent)
	}

	choice := gjson.Get(ev.Data, "choices.0")
	if !choice.IsObject() {
		return fmt.Errorf("%w: missing choices[0]", ErrMalformedEvent)
	}

	if fr := choice.Get("finish_reason"); fr.Type == gjson.String && fr.Str == llm.StopReason {
		return errStop
	}

	delta := choice.Get("delta")
	if !delta.IsObject() {
		return fmt.Errorf("%w: missing choices[0].delta", ErrMalformedEvent)
	}

	content := delta.Get("content")
	if content.Type == gjson.Null || content.String() == "" {
		return nil
	}

	t.pending = append(t.pending, []byte(content.String()))
	return nil
}
