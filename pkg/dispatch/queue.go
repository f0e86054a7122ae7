package dispatch

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Queue serializes function execution.
//
// The zero value is not usable; create queues with New.
type Queue struct {
	mu      sync.Mutex
	jobs    []func()
	running bool

	logger *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger used to report recovered job panics.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Do submits fn for serialized execution.
//
// If no drain is in progress, the calling goroutine becomes the drainer and
// Do returns only after fn (and any jobs submitted during it) have run, so
// a call from outside the queue executes synchronously. If a drain is
// already in progress, on this goroutine or another, fn is queued and Do
// returns immediately; the active drainer runs it in FIFO order.
func (q *Queue) Do(fn func()) {
	if fn == nil {
		return
	}

	q.mu.Lock()
	q.jobs = append(q.jobs, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true

	for len(q.jobs) > 0 {
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.run(job)

		q.mu.Lock()
	}
	q.running = false
	q.mu.Unlock()
}

// run executes a single job with panic recovery.
// A panicking job must not abandon the drain, or every queued job behind
// it would be stranded.
func (q *Queue) run(job func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queued job panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	job()
}
