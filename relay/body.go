package relay

import (
	"context"
)

// Body adapts a Stream into an io.ReadCloser suitable for a streamed HTTP
// response body. Each Read pulls at most one chunk from the stream; a
// terminal stream error is returned as-is so the transport aborts the
// response instead of completing it.
type Body struct {
	ctx    context.Context
	stream Stream
	rest   []byte
}

// NewBody returns a Body reading s under ctx.
func NewBody(ctx context.Context, s Stream) *Body {
	return &Body{ctx: ctx, stream: s}
}

func (b *Body) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(b.rest) == 0 {
		chunk, err := b.stream.Next(b.ctx)
		if err != nil {
			return 0, err
		}
		b.rest = chunk
	}

	n := copy(p, b.rest)
	b.rest = b.rest[n:]
	return n, nil
}

// Close stops reading the underlying stream. The HTTP transport calls this
// when the response is finished or the client went away.
func (b *Body) Close() error {
	return b.stream.Close()
}
