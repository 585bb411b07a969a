// Package processing runs face-match jobs on an in-process worker pool. It is
// the queue used by the single-binary mode and by tests; production workers
// consume the asynq queue instead.
package processing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by EnqueueFaceMatch when the buffer is exhausted.
var ErrQueueFull = errors.New("processing queue full")

// ErrStopped is returned by EnqueueFaceMatch after the pool has shut down.
var ErrStopped = errors.New("processing queue stopped")

// Handler runs one job. A non-nil error schedules a retry until the attempt
// budget is spent.
type Handler func(ctx context.Context, sessionID string) error

type job struct {
	sessionID string
	attempt   int
}

// Processor consumes jobs with a fixed number of goroutines.
type Processor struct {
	queue       chan job
	workers     int
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

type Option func(*Processor)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry sets how many times a job runs before it is dropped and the
// delay before each retry.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if maxAttempts > 0 {
			p.maxAttempts = maxAttempts
		}
		p.backoff = backoff
	}
}

// New builds a Processor with queue capacity tied to worker count.
func New(workers int, opts ...Option) *Processor {
	if workers <= 0 {
		workers = 1
	}
	p := &Processor{
		queue:       make(chan job, workers*16),
		workers:     workers,
		maxAttempts: 5,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Start launches the worker goroutines. They exit when ctx is cancelled;
// Wait blocks until they have.
func (p *Processor) Start(ctx context.Context, handle Handler) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx, handle)
		}()
	}
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
	}()
}

// Wait blocks until every worker has exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// EnqueueFaceMatch queues a face match without blocking.
func (p *Processor) EnqueueFaceMatch(_ context.Context, sessionID string) error {
	return p.submit(job{sessionID: sessionID, attempt: 1})
}

func (p *Processor) submit(j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Processor) worker(ctx context.Context, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.process(ctx, handle, j)
		}
	}
}

func (p *Processor) process(ctx context.Context, handle Handler, j job) {
	err := handle(ctx, j.sessionID)
	if err == nil {
		return
	}
	if j.attempt >= p.maxAttempts || ctx.Err() != nil {
		p.logger.ErrorContext(ctx, "face match job dropped",
			"session_id", j.sessionID,
			"attempt", j.attempt,
			"error", err,
		)
		return
	}
	p.logger.WarnContext(ctx, "face match job failed, retrying",
		"session_id", j.sessionID,
		"attempt", j.attempt,
		"error", err,
	)
	next := job{sessionID: j.sessionID, attempt: j.attempt + 1}
	time.AfterFunc(p.backoff*time.Duration(j.attempt), func() {
		if err := p.submit(next); err != nil {
			p.logger.Error("face match retry not queued", "session_id", j.sessionID, "error", err)
		}
	})
}
