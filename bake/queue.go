package bake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggtile"
)

var (
	// ErrClosed is returned by jobs enqueued after Close.
	ErrClosed = errors.New("bake: queue closed")

	// ErrJobPanicked wraps the value recovered from a panicking job.
	ErrJobPanicked = errors.New("bake: job panicked")
)

// Func is one unit of bake work.
type Func func(ctx context.Context) error

// Job is a handle to an enqueued Func.
type Job struct {
	name string
	fn   Func
	done chan struct{}
	err  error
}

// Name returns the label the job was enqueued with.
func (j *Job) Name() string { return j.name }

// Done returns a channel that is closed once the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Err returns the job result. It is only meaningful after Done is closed.
func (j *Job) Err() error {
	select {
	case <-j.done:
		return j.err
	default:
		return nil
	}
}

// Wait blocks until the job finishes or ctx is done.
// It returns the job's error, or ctx.Err() if ctx ended first.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) finish(err error) {
	j.err = err
	close(j.done)
}

// Option configures a Queue.
type Option func(*Queue)

// WithErrorHandler sets the function that receives every job error,
// including recovered panics. It is called from the worker goroutine.
func WithErrorHandler(fn func(error)) Option {
	return func(q *Queue) {
		q.onError = fn
	}
}

// WithLogger sets the queue logger. The shared ggtile logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.log = l
	}
}

// Queue runs bake jobs one at a time in FIFO order.
//
// Thread safety: Queue is safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	pending []*Job
	closed  bool

	// wake is signalled whenever pending grows.
	wake chan struct{}
	// stopped is closed when the worker exits.
	stopped chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	running  atomic.Bool
	finished atomic.Uint64

	onError func(error)
	log     *slog.Logger
}

// NewQueue starts a queue and its worker goroutine.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = ggtile.LoggerOr(q.log)
	q.ctx, q.cancel = context.WithCancel(context.Background())

	go q.worker()
	return q
}

// Enqueue appends fn to the queue. The returned job completes after every
// job enqueued before it.
func (q *Queue) Enqueue(name string, fn Func) *Job {
	j := &Job{name: name, fn: fn, done: make(chan struct{})}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		j.finish(ErrClosed)
		return j
	}
	q.pending = append(q.pending, j)
	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return j
}

// Wait blocks until every job enqueued before the call has finished.
func (q *Queue) Wait(ctx context.Context) error {
	barrier := q.Enqueue("barrier", func(context.Context) error { return nil })
	err := barrier.Wait(ctx)
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Len returns the number of jobs waiting to run, excluding a running job.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a job is running or waiting.
func (q *Queue) Busy() bool {
	return q.running.Load() || q.Len() > 0
}

// Finished returns the number of jobs that have run to completion,
// successfully or not.
func (q *Queue) Finished() uint64 {
	return q.finished.Load()
}

// Close stops accepting jobs, waits for queued jobs to finish and stops
// the worker. Close is safe to call multiple times.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.wake)
	}
	q.mu.Unlock()

	<-q.stopped
	q.cancel()
	return nil
}

func (q *Queue) worker() {
	defer close(q.stopped)

	for {
		j, ok := q.next()
		if !ok {
			if _, open := <-q.wake; !open && q.Len() == 0 {
				return
			}
			continue
		}
		q.run(j)
	}
}

func (q *Queue) next() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}
	j := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	q.running.Store(true)
	return j, true
}

func (q *Queue) run(j *Job) {
	var err error
	defer func() {
		q.running.Store(false)
		q.finished.Add(1)
		if err != nil {
			q.log.Warn("bake: job failed", "job", j.name, "err", err)
			if q.onError != nil {
				q.onError(err)
			}
		}
		j.finish(err)
	}()

	err = q.call(j)
}

func (q *Queue) call(j *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, j.name, r)
		}
	}()
	return j.fn(q.ctx)
}
