// Package persist runs message writes in the background so a live stream
// never waits on the store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PabloGalante/chatrelay/internal/domain"
	"github.com/PabloGalante/chatrelay/internal/observability"
)

var (
	ErrQueueFull = errors.New("persist queue is full")
	ErrClosed    = errors.New("persist writer is closed")
)

// Job is one pending message write.
type Job struct {
	Message *domain.Message
	// Done, when set, runs on the worker goroutine with the write result.
	Done func(error)

	ctx context.Context
}

type Options struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
	Metrics      *observability.Metrics
}

func (o *Options) applyDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

// Writer drains a bounded queue of message writes with a fixed worker pool.
// Failures are logged, counted and published on Errors().
type Writer struct {
	store domain.MessageStore
	opts  Options

	mu     sync.RWMutex
	closed bool
	queue  chan Job
	errs   chan error
	wg     sync.WaitGroup
}

// NewWriter starts the workers. Call Close to drain them.
func NewWriter(store domain.MessageStore, opts Options) *Writer {
	opts.applyDefaults()

	w := &Writer{
		store: store,
		opts:  opts,
		queue: make(chan Job, opts.QueueSize),
		errs:  make(chan error, opts.QueueSize),
	}

	w.wg.Add(opts.Workers)
	for range opts.Workers {
		go w.worker()
	}
	return w
}

// Enqueue schedules job without blocking. ctx only contributes its values
// (request id, trace); its cancellation does not affect the write.
func (w *Writer) Enqueue(ctx context.Context, job Job) error {
	if job.Message == nil {
		return errors.New("persist: nil message")
	}
	job.ctx = context.WithoutCancel(ctx)

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrClosed
	}

	select {
	case w.queue <- job:
		w.opts.Metrics.QueueDepth(len(w.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Errors publishes failed writes. Errors are dropped when nobody reads
// and the buffer is full. The channel is closed once Close has drained
// every worker.
func (w *Writer) Errors() <-chan error {
	return w.errs
}

// Close stops accepting jobs and waits until queued writes finish or ctx
// ends, whichever comes first.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(w.errs)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining persist queue: %w", ctx.Err())
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()
	for job := range w.queue {
		w.opts.Metrics.QueueDepth(len(w.queue))
		w.write(job)
	}
}

func (w *Writer) write(job Job) {
	ctx, cancel := context.WithTimeout(job.ctx, w.opts.WriteTimeout)
	defer cancel()

	msg := job.Message
	log := observability.LoggerFromContext(ctx).With(
		"chat_id", msg.ChatID,
		"role", msg.Role,
	)

	err := w.store.AppendMessage(ctx, msg)
	if err != nil {
		err = &domain.PersistenceError{Op: "append " + msg.Role.String() + " message", Err: err}
		log.Error("background write failed", "error", err)
		w.opts.Metrics.PersistResult(observability.StatusError)

		select {
		case w.errs <- err:
		default:
		}
	} else {
		log.Debug("background write completed", "message_id", msg.ID)
		w.opts.Metrics.PersistResult(observability.StatusSuccess)
	}

	if job.Done != nil {
		job.Done(err)
	}
}
