package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/ellapad/runner"
)

var (
	// ErrWorkerStopped is returned when posting to a stopped worker, and
	// handed to the fail callback of jobs that were queued when it stopped.
	ErrWorkerStopped = errors.New("session worker stopped")

	// ErrQueueFull is returned when the worker's queue has no room.
	ErrQueueFull = errors.New("session worker queue is full")
)

// DefaultQueueDepth is the job capacity of a worker when none is configured.
const DefaultQueueDepth = 64

// workerJob is a unit of work to be run on the session goroutine.
type workerJob struct {
	fn   func(*runner.Session)
	fail func(error)
}

// SessionWorker serializes all access to one runner.Session through a
// single goroutine. Sessions are single-threaded; every transport goes
// through the worker.
type SessionWorker struct {
	session *runner.Session
	jobs    chan workerJob

	mu      sync.RWMutex
	closed  bool
	quit    chan struct{}
	stopped chan struct{}
}

// NewSessionWorker creates a SessionWorker and starts the processing
// goroutine. queue bounds the number of jobs waiting to run.
func NewSessionWorker(session *runner.Session, queue int) *SessionWorker {
	if queue <= 0 {
		queue = DefaultQueueDepth
	}
	w := &SessionWorker{
		session: session,
		jobs:    make(chan workerJob, queue),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes jobs sequentially on a dedicated goroutine. Jobs still
// queued at shutdown are failed with ErrWorkerStopped.
func (w *SessionWorker) loop() {
	defer close(w.stopped)
	for {
		select {
		case <-w.quit:
			w.drain()
			return
		default:
		}
		select {
		case job := <-w.jobs:
			w.execute(job)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

func (w *SessionWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			if job.fail != nil {
				job.fail(ErrWorkerStopped)
			}
		default:
			return
		}
	}
}

// execute runs a job on the session, recovering from panics.
func (w *SessionWorker) execute(job workerJob) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			log.Errorf("session worker recovered: %v", err)
			if job.fail != nil {
				job.fail(err)
			}
		}
	}()
	job.fn(w.session)
}

// Post queues fn to run on the session goroutine and returns without
// waiting. If fn panics, fail receives the panic as an error and the
// worker keeps running. fail may be nil.
func (w *SessionWorker) Post(fn func(*runner.Session), fail func(error)) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkerStopped
	}
	select {
	case w.jobs <- workerJob{fn: fn, fail: fail}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the session goroutine and blocks until it completes.
// Returns the result and any error (including panics).
func (w *SessionWorker) Do(fn func(*runner.Session) interface{}) (interface{}, error) {
	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)
	err := w.Post(
		func(s *runner.Session) { done <- result{value: fn(s)} },
		func(err error) { done <- result{err: err} },
	)
	if err != nil {
		return nil, err
	}
	r := <-done
	return r.value, r.err
}

// Stop shuts down the worker goroutine and waits for the running job to
// finish. It is safe to call more than once.
func (w *SessionWorker) Stop() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.quit)
	}
	w.mu.Unlock()
	<-w.stopped
}
