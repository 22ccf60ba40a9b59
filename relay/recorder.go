package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// Enqueuer accepts persistence jobs without blocking.
type Enqueuer interface {
	Enqueue(job worker.Job) bool
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Enqueuer receives the accumulated completion once a stream closes.
	Enqueuer Enqueuer

	// TeeBuffer bounds how far the two branches may drift apart, in chunks.
	// Defaults to DefaultTeeBuffer.
	TeeBuffer int

	Logger *slog.Logger
}

// Recorder tees completion streams and persists the full completion text
// after each stream finishes.
//
// The background drain is detached from the HTTP request: it runs with its
// own context and keeps going if the client disconnects, so the completion
// is stored even when nobody reads the foreground branch to the end.
type Recorder struct {
	enqueuer  Enqueuer
	teeBuffer int
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewRecorder creates a Recorder.
func NewRecorder(c RecorderConfig) *Recorder {
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Recorder{
		enqueuer:  c.Enqueuer,
		teeBuffer: c.TeeBuffer,
		logger:    c.Logger,
	}
}

// Record splits src and returns the foreground branch for the caller. The
// background branch is drained into a job with role "assistant" that is
// handed to the Enqueuer once src closes gracefully. A stream that fails is
// logged and not persisted.
func (r *Recorder) Record(src Stream, job worker.Job) Stream {
	fg, bg := Tee(src, r.teeBuffer)

	job.Role = llm.RoleAssistant
	r.wg.Add(1)
	go r.drain(bg, job)

	return fg
}

// Wait blocks until every in-flight drain has handed off its job.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) drain(bg *Branch, job worker.Job) {
	defer r.wg.Done()
	defer bg.Close()

	start := time.Now()
	ctx := context.Background()

	var completion strings.Builder
	chunks := 0
	for {
		chunk, err := bg.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.logger.Error("completion stream failed, not persisting",
				"conversation_id", job.ConversationID,
				"chunk_count", chunks,
				"error", err,
			)
			return
		}

		completion.Write(chunk)
		chunks++
	}

	job.Content = completion.String()

	r.logger.Debug("completion drained",
		"conversation_id", job.ConversationID,
		"chunk_count", chunks,
		"duration", time.Since(start),
	)

	r.enqueuer.Enqueue(job)
}
