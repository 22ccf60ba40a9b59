package relay

import (
	"context"
	"sync"
)

// DefaultTeeBuffer is the number of chunks the faster branch of a Tee may
// run ahead of the slower one.
const DefaultTeeBuffer = 64

// Tee splits src into two Branches that observe the identical ordered chunk
// sequence and the identical terminal error.
//
// A single producer goroutine pulls from src into a shared buffer holding at
// most size chunks that the slowest open branch has not consumed yet. When
// the buffer is full the producer waits, so a stalled reader applies
// backpressure to the source instead of growing memory. Closing a branch
// detaches it; the other branch keeps reading at its own pace. Once both
// branches are closed src is closed.
func Tee(src Stream, size int) (*Branch, *Branch) {
	if size <= 0 {
		size = DefaultTeeBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &tee{
		src:     src,
		size:    size,
		changed: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	t.branches[0] = &Branch{t: t}
	t.branches[1] = &Branch{t: t}

	go t.run()

	return t.branches[0], t.branches[1]
}

type tee struct {
	src  Stream
	size int

	mu sync.Mutex
	// chunks holds buffered chunks; chunks[0] has absolute index base.
	chunks [][]byte
	base   int
	done   bool
	err    error

	branches [2]*Branch

	// changed is closed and replaced whenever the buffer, a cursor or the
	// terminal state changes.
	changed chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// Branch is one independently read copy of a teed Stream.
type Branch struct {
	t      *tee
	pos    int
	closed bool
}

// Next returns the chunk at this branch's cursor, waiting for the producer
// when the branch has caught up.
func (b *Branch) Next(ctx context.Context) ([]byte, error) {
	t := b.t

	t.mu.Lock()
	for {
		if b.closed {
			t.mu.Unlock()
			return nil, ErrStreamClosed
		}

		if b.pos < t.base+len(t.chunks) {
			chunk := t.chunks[b.pos-t.base]
			b.pos++
			t.trim()
			t.broadcast()
			t.mu.Unlock()
			return chunk, nil
		}

		if t.done {
			err := t.err
			t.mu.Unlock()
			return nil, err
		}

		changed := t.changed
		t.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		t.mu.Lock()
	}
}

// Close detaches the branch. Closing the last open branch stops the
// producer and closes the source.
func (b *Branch) Close() error {
	t := b.t

	t.mu.Lock()
	if b.closed {
		t.mu.Unlock()
		return nil
	}
	b.closed = true
	t.trim()
	t.broadcast()
	last := t.allClosed()
	t.mu.Unlock()

	if !last {
		return nil
	}

	t.cancel()
	return t.src.Close()
}

// run is the single producer feeding the shared buffer.
func (t *tee) run() {
	for t.waitForSpace() {
		chunk, err := t.src.Next(t.ctx)

		t.mu.Lock()
		if err != nil {
			t.done = true
			t.err = err
			t.broadcast()
			t.mu.Unlock()
			_ = t.src.Close()
			return
		}

		if !t.allClosed() {
			t.chunks = append(t.chunks, chunk)
		}
		t.broadcast()
		t.mu.Unlock()
	}
}

// waitForSpace blocks until the buffer has room for another chunk. It
// returns false when no branch is left to read.
func (t *tee) waitForSpace() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		if t.allClosed() {
			return false
		}
		if len(t.chunks) < t.size {
			return true
		}

		changed := t.changed
		t.mu.Unlock()
		select {
		case <-changed:
		case <-t.ctx.Done():
		}
		t.mu.Lock()
	}
}

// trim drops chunks every open branch has consumed. Callers hold mu.
func (t *tee) trim() {
	low := t.base + len(t.chunks)
	for _, b := range t.branches {
		if !b.closed && b.pos < low {
			low = b.pos
		}
	}

	drop := low - t.base
	if drop <= 0 {
		return
	}

	clear(t.chunks[:drop])
	t.chunks = t.chunks[drop:]
	t.base = low
}

// allClosed reports whether both branches are closed. Callers hold mu.
func (t *tee) allClosed() bool {
	return t.branches[0].closed && t.branches[1].closed
}

// broadcast wakes every waiter. Callers hold mu.
func (t *tee) broadcast() {
	close(t.changed)
	t.changed = make(chan struct{})
}
