// Package worker provides an asynchronous worker pool for persisting chat
// messages using the provided storage.Driver and announcing them on the
// provided eventstream.Publisher.
//
// The pool decouples storage operations from the HTTP hot path so that a
// slow database never stalls a streamed response.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/tokens"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	ConversationID string
	Role           string
	Content        string

	// Context is the retrieved document text the message relates to.
	Context string

	// Model is the upstream model that produced or will answer the message.
	Model string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting messages.
	Driver storage.Driver

	// Publisher optionally announces persisted messages.
	Publisher eventstream.Publisher

	// Counter counts message tokens. Defaults to tokens.EstimateCounter.
	Counter tokens.Counter

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Counter == nil {
		c.Counter = tokens.EstimateCounter{}
	}

	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"conversation_id", job.ConversationID,
			"role", job.Role,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"conversation_id", job.ConversationID,
			"role", job.Role,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob stores the message and publishes its event. Failures are
// logged; nothing is retried.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	msg, err := p.Persist(ctx, job)
	if err != nil {
		p.logger.Error("async message storage failed",
			"conversation_id", job.ConversationID,
			"role", job.Role,
			"error", err,
		)
		return
	}

	p.logger.Info("message stored",
		"id", msg.ID,
		"conversation_id", msg.ConversationID,
		"role", msg.Role,
		"n_tokens", msg.Tokens,
	)

	p.publish(ctx, msg, job.Model)
}

// Persist counts the job's tokens and appends it as a message. It runs on
// the caller's goroutine and is used directly where the message must be
// stored before the request continues.
func (p *Pool) Persist(ctx context.Context, job Job) (*storage.Message, error) {
	msg := &storage.Message{
		ConversationID: job.ConversationID,
		Role:           job.Role,
		Content:        job.Content,
		Context:        job.Context,
		Tokens:         p.config.Counter.Count(job.Content),
	}

	if err := p.config.Driver.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	return msg, nil
}

// PersistAndPublish is Persist followed by the event publish.
func (p *Pool) PersistAndPublish(ctx context.Context, job Job) (*storage.Message, error) {
	msg, err := p.Persist(ctx, job)
	if err != nil {
		return nil, err
	}

	p.publish(ctx, msg, job.Model)
	return msg, nil
}

func (p *Pool) publish(ctx context.Context, msg *storage.Message, model string) {
	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewMessagePersistedEvent(msg, model)
	if err := p.config.Publisher.PublishMessage(ctx, event); err != nil {
		p.logger.Warn("failed to publish message event",
			"id", msg.ID,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	p.logger.Debug("published message event",
		"id", msg.ID,
		"event_id", event.EventID,
	)
}
