package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chazu/ellapad/runner"
)

// routeBuffer is the number of responses a route holds before the
// worker waits for its consumer.
const routeBuffer = 16

// route is the response sink of one request.
type route struct {
	id  string
	ch  chan Response
	sub *runner.Subscription

	// gone is closed when the requester disposes the route.
	gone     chan struct{}
	goneOnce sync.Once

	mu       sync.Mutex
	state    RequestState
	disposed bool
}

// send delivers a response unless the requester is gone. It blocks while
// the route's buffer is full and the requester is still listening.
func (r *route) send(resp Response) {
	if !r.sub.Live() {
		return
	}
	select {
	case r.ch <- resp:
	case <-r.gone:
	}
}

func (r *route) dispose() {
	r.sub.Cancel()
	r.goneOnce.Do(func() { close(r.gone) })
}

// Dispatcher correlates requests with their responses. Every request gets
// a generated handler id and its own response channel; responses are only
// ever sent on the channel of the request that produced them.
type Dispatcher struct {
	worker *SessionWorker

	mu     sync.RWMutex
	routes map[string]*route
}

// NewDispatcher creates a dispatcher that runs requests on worker.
func NewDispatcher(worker *SessionWorker) *Dispatcher {
	return &Dispatcher{
		worker: worker,
		routes: make(map[string]*route),
	}
}

// Handle accepts a request. Only ExecuteCode is defined.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (string, <-chan Response, error) {
	switch req.Kind {
	case ExecuteCode:
		return d.Execute(ctx, req.Source)
	default:
		return "", nil, fmt.Errorf("unknown request kind %d", req.Kind)
	}
}

// Execute queues source for compilation and execution and returns the
// request's handler id and response channel. The channel yields zero or
// more Stdout responses and at most one terminal Error, then closes.
// Cancelling ctx disposes the route.
func (d *Dispatcher) Execute(ctx context.Context, source string) (string, <-chan Response, error) {
	id := uuid.NewString()
	r := &route{
		id:    id,
		ch:    make(chan Response, routeBuffer),
		gone:  make(chan struct{}),
		state: StateReceived,
	}
	r.sub = runner.NewSubscription(func(transcript string) {
		r.send(Response{HandlerID: id, Kind: ResponseStdout, Text: transcript})
	})

	d.mu.Lock()
	d.routes[id] = r
	d.mu.Unlock()
	log.Debugf("request %s: %s", id, StateReceived)

	err := d.worker.Post(
		func(s *runner.Session) { d.run(s, r, source) },
		func(err error) { d.fail(r, err) },
	)
	if err != nil {
		d.forget(id)
		return "", nil, fmt.Errorf("dispatch %s: %w", id, err)
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				d.Dispose(id)
			case <-r.gone:
			}
		}()
	}
	return id, r.ch, nil
}

// run is the pipeline for one request. Must be called on the worker
// goroutine.
func (d *Dispatcher) run(s *runner.Session, r *route, source string) {
	d.transition(r, StateCompiling)
	program, err := s.Compile(source)
	if err != nil {
		r.send(Response{HandlerID: r.id, Kind: ResponseError, Text: err.Error()})
		d.finish(r, StateCompileFailed)
		return
	}

	d.transition(r, StateExecuting)
	_, err = s.Execute(program, r.sub)
	if err != nil {
		r.send(Response{HandlerID: r.id, Kind: ResponseError, Text: err.Error()})
	}
	d.finish(r, StateCompleted)
}

// fail ends a request whose job panicked or was never run.
func (d *Dispatcher) fail(r *route, err error) {
	r.send(Response{HandlerID: r.id, Kind: ResponseError, Text: "internal error: " + err.Error()})

	r.mu.Lock()
	terminal := StateCompleted
	if r.state == StateCompiling || r.state == StateReceived {
		terminal = StateCompileFailed
	}
	r.mu.Unlock()
	d.finish(r, terminal)
}

func (d *Dispatcher) transition(r *route, state RequestState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	log.Debugf("request %s: %s", r.id, state)
}

// finish moves the route to a terminal state and closes its channel. A
// route that was already disposed is forgotten.
func (d *Dispatcher) finish(r *route, state RequestState) {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return
	}
	r.state = state
	disposed := r.disposed
	r.mu.Unlock()

	if disposed {
		d.forget(r.id)
	}
	log.Debugf("request %s: %s", r.id, state)
	close(r.ch)
}

// Dispose tells the dispatcher the requester is gone. Output still being
// produced for id is dropped; the request itself runs to completion. A
// request that already finished is forgotten.
func (d *Dispatcher) Dispose(id string) {
	d.mu.RLock()
	r, ok := d.routes[id]
	d.mu.RUnlock()
	if !ok {
		return
	}
	r.dispose()

	r.mu.Lock()
	r.disposed = true
	terminal := r.state.Terminal()
	r.mu.Unlock()
	if terminal {
		d.forget(id)
	}
}

// DisposeAll disposes every known route.
func (d *Dispatcher) DisposeAll() {
	d.mu.RLock()
	ids := make([]string, 0, len(d.routes))
	for id := range d.routes {
		ids = append(ids, id)
	}
	d.mu.RUnlock()

	for _, id := range ids {
		d.Dispose(id)
	}
}

// State reports the state of a request that has not been forgotten.
func (d *Dispatcher) State(id string) (RequestState, bool) {
	d.mu.RLock()
	r, ok := d.routes[id]
	d.mu.RUnlock()
	if !ok {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, true
}

// Pending returns the number of routes the dispatcher still tracks.
func (d *Dispatcher) Pending() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.routes)
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.routes, id)
	d.mu.Unlock()
}
