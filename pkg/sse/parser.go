package sse

import (
	"bytes"
	"strings"
)

// Parser incrementally decodes SSE framing from arbitrarily sized byte
// fragments.
//
// ┌────────────────┐   ┌──────────────┐   ┌──────────────┐
// │ Feed(fragment) │──▶│ line framing │──▶│ fn(*Event)   │
// └────────────────┘   └──────────────┘   └──────────────┘
//
// Lines may be terminated by "\n", "\r\n" or a lone "\r", and a terminator
// may be split across two fragments. Comment lines (":" prefix) and "retry"
// fields are ignored; they never produce an Event.
type Parser struct {
	// line holds the bytes of a line that has not been terminated yet.
	line []byte

	// pendingCR is set when the previous fragment ended in "\r", so a leading
	// "\n" in the next fragment completes the same "\r\n" terminator.
	pendingCR bool

	// current accumulates fields for the event being built.
	current *Event
	hasData bool
}

// NewParser returns a Parser with no buffered state.
func NewParser() *Parser {
	return &Parser{current: &Event{}}
}

// Feed consumes one fragment of the stream. Every event completed by the
// fragment is passed to fn synchronously, in order, before Feed returns.
//
// If fn returns an error, Feed stops immediately and returns that error;
// the rest of the fragment is discarded.
func (p *Parser) Feed(fragment []byte, fn func(*Event) error) error {
	if p.pendingCR {
		p.pendingCR = false
		if len(fragment) > 0 && fragment[0] == '\n' {
			fragment = fragment[1:]
		}
	}

	for len(fragment) > 0 {
		i := bytes.IndexAny(fragment, "\r\n")
		if i < 0 {
			p.line = append(p.line, fragment...)
			return nil
		}

		p.line = append(p.line, fragment[:i]...)
		if fragment[i] == '\r' {
			switch {
			case i+1 == len(fragment):
				p.pendingCR = true
			case fragment[i+1] == '\n':
				i++
			}
		}
		fragment = fragment[i+1:]

		raw := string(p.line)
		p.line = p.line[:0]

		if err := p.processLine(raw, fn); err != nil {
			return err
		}
	}

	return nil
}

// Flush dispatches an event that is still in progress when the source is
// exhausted (the stream ended without a trailing blank line).
func (p *Parser) Flush(fn func(*Event) error) error {
	if len(p.line) > 0 {
		raw := string(p.line)
		p.line = p.line[:0]
		p.parseLine(raw)
	}

	if !p.hasData {
		return nil
	}

	ev := p.current
	p.reset()
	return fn(ev)
}

// Buffered reports the number of bytes held for the current partial line.
func (p *Parser) Buffered() int {
	return len(p.line)
}

func (p *Parser) processLine(raw string, fn func(*Event) error) error {
	// A blank line signals the end of the current event.
	if raw == "" {
		if !p.hasData {
			// Blank line with no accumulated data, e.g. leading blank lines
			// or keep-alive newlines. Drop any event/id fields seen so far.
			p.reset()
			return nil
		}

		ev := p.current
		p.reset()
		return fn(ev)
	}

	// Lines starting with ':' are comments (often keep-alives).
	if strings.HasPrefix(raw, ":") {
		return nil
	}

	p.parseLine(raw)
	return nil
}

// parseLine processes a single non-empty, non-comment SSE line and
// accumulates the field into the current event.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func (p *Parser) parseLine(line string) {
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if p.hasData {
			// Multiple data fields are joined with "\n".
			p.current.Data += "\n"
		}
		p.current.Data += value
		p.hasData = true
	case "event":
		p.current.Type = value
	case "id":
		p.current.ID = value
	default:
		// * "retry" is intentionally ignored, reconnection is not supported.
		// * Other unknown fields are ignored per the SSE spec.
	}
}

// reset clears the accumulated event state for the next event.
func (p *Parser) reset() {
	p.current = &Event{}
	p.hasData = false
}
