// Package fanout runs one backend operation per repository concurrently and
// resolves each run to quorum or anti-quorum. All user handlers execute
// under a single serialization point, so handler code needs no locking of
// its own.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Spec describes one fan-out run over params of type P producing results of
// type R.
type Spec[P comparable, R any] struct {
	// Params is the full set of inputs; one worker runs per param.
	Params []P

	// Worker performs the backend operation for one param.
	Worker func(ctx context.Context, param P) (R, error)

	// Quorum is the success count that resolves the run. Zero means
	// len(Params).
	Quorum int

	// NConcurrent caps workers in flight for this run (on top of the
	// process-wide pool). Zero means len(Params).
	NConcurrent int

	// AbortOnError makes the first failure set a cooperative abort flag:
	// workers not yet dispatched are skipped, and the run resolves to
	// anti-quorum with rollback.
	AbortOnError bool

	// OnSuccess runs after each completed worker, OnFailure after each
	// failed one. Rollback undoes one successful param when an aborting
	// run ends in anti-quorum; it is called at most once per param.
	// OnTerminated runs once when every param is accounted for.
	// Handler panics are swallowed and logged.
	OnSuccess    func(param P, result R)
	OnFailure    func(param P, err error)
	Rollback     func(param P, result R)
	OnTerminated func()
}

// Outcome reports the resolution of a run at decision time. Workers still
// in flight keep running to termination in the background.
type Outcome[P comparable, R any] struct {
	// Quorum is true when enough workers succeeded, false when success
	// became impossible (anti-quorum).
	Quorum bool

	// Results maps each successful param to its result, Errors each
	// failed param to its error, as of the decision point.
	Results map[P]R
	Errors  map[P]error
}

// FirstError returns one recorded failure, or nil.
func (o *Outcome[P, R]) FirstError() error {
	for _, err := range o.Errors {
		return err
	}
	return nil
}

// Executor runs fan-out specs against the shared worker pool.
type Executor struct {
	pool *Pool
	log  *slog.Logger
}

// NewExecutor creates an executor backed by the given pool.
func NewExecutor(pool *Pool, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{pool: pool, log: log.With("component", "fanout")}
}

type run[P comparable, R any] struct {
	spec Spec[P, R]
	ex   *Executor

	mu       sync.Mutex // the single serialization point for all handlers
	results  map[P]R
	errors   map[P]error
	skipped  int
	abort    bool
	decided  bool
	rolled   map[P]bool
	quorum   int
	decision chan bool // buffered(1); receives the quorum verdict once
}

// Run executes the spec and blocks until quorum or anti-quorum is decided,
// or ctx is cancelled. Remaining workers drain in the background; handlers
// keep firing for them after Run returns.
func Run[P comparable, R any](ctx context.Context, ex *Executor, spec Spec[P, R]) *Outcome[P, R] {
	n := len(spec.Params)
	quorum := spec.Quorum
	if quorum <= 0 || quorum > n {
		quorum = n
	}
	nc := spec.NConcurrent
	if nc <= 0 || nc > n {
		nc = n
	}

	r := &run[P, R]{
		spec:     spec,
		ex:       ex,
		results:  make(map[P]R, n),
		errors:   make(map[P]error),
		rolled:   make(map[P]bool),
		quorum:   quorum,
		decision: make(chan bool, 1),
	}

	// Per-run concurrency gate; the process-wide pool is acquired inside
	// each worker goroutine.
	gate := make(chan struct{}, nc)
	for _, param := range spec.Params {
		go func(param P) {
			gate <- struct{}{}
			defer func() { <-gate }()
			r.dispatch(ctx, param)
		}(param)
	}

	select {
	case ok := <-r.decision:
		return r.snapshot(ok)
	case <-ctx.Done():
		r.mu.Lock()
		r.abort = true
		r.mu.Unlock()
		return r.snapshot(false)
	}
}

func (r *run[P, R]) dispatch(ctx context.Context, param P) {
	r.mu.Lock()
	aborted := r.abort
	r.mu.Unlock()
	if aborted {
		r.skip()
		return
	}

	if err := r.ex.pool.acquire(ctx); err != nil {
		r.fail(param, fmt.Errorf("worker pool: %w", err))
		return
	}
	defer r.ex.pool.release()

	// Re-check after waiting for a pool slot.
	r.mu.Lock()
	aborted = r.abort
	r.mu.Unlock()
	if aborted {
		r.skip()
		return
	}

	result, err := r.spec.Worker(ctx, param)
	if err != nil {
		r.fail(param, err)
		return
	}
	r.complete(param, result)
}

// complete, fail, and skip hold the run mutex for the whole bookkeeping +
// handler sequence: at most one handler executes at a time per run.

func (r *run[P, R]) complete(param P, result R) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results[param] = result
	r.invoke("success", func() {
		if r.spec.OnSuccess != nil {
			r.spec.OnSuccess(param, result)
		}
	})
	r.checkLocked()

	// A success arriving after an aborting run already failed gets undone
	// immediately.
	if r.abort && r.decided {
		r.rollbackLocked(param)
	}
	r.maybeTerminateLocked()
}

func (r *run[P, R]) fail(param P, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors[param] = err
	r.invoke("failure", func() {
		if r.spec.OnFailure != nil {
			r.spec.OnFailure(param, err)
		}
	})
	if r.spec.AbortOnError {
		r.abort = true
	}
	r.checkLocked()
	r.maybeTerminateLocked()
}

func (r *run[P, R]) skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
	r.maybeTerminateLocked()
}

func (r *run[P, R]) checkLocked() {
	if r.decided {
		return
	}
	n := len(r.spec.Params)
	switch {
	case r.abort:
		r.decideLocked(false)
	case len(r.results) >= r.quorum:
		r.decideLocked(true)
	case n-len(r.errors) < r.quorum:
		r.decideLocked(false)
	}
}

func (r *run[P, R]) decideLocked(quorum bool) {
	r.decided = true
	r.decision <- quorum
	if !quorum && r.abort {
		for param := range r.results {
			r.rollbackLocked(param)
		}
	}
}

func (r *run[P, R]) rollbackLocked(param P) {
	if r.spec.Rollback == nil || r.rolled[param] {
		return
	}
	r.rolled[param] = true
	result := r.results[param]
	r.invoke("rollback", func() { r.spec.Rollback(param, result) })
}

func (r *run[P, R]) maybeTerminateLocked() {
	if len(r.results)+len(r.errors)+r.skipped != len(r.spec.Params) {
		return
	}
	r.invoke("terminated", func() {
		if r.spec.OnTerminated != nil {
			r.spec.OnTerminated()
		}
	})
}

// invoke shields the run from handler bugs: a panicking handler may not
// prevent termination.
func (r *run[P, R]) invoke(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.ex.log.Error("suppressing handler panic", "handler", name, "panic", rec)
		}
	}()
	fn()
}

func (r *run[P, R]) snapshot(quorum bool) *Outcome[P, R] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := &Outcome[P, R]{
		Quorum:  quorum,
		Results: make(map[P]R, len(r.results)),
		Errors:  make(map[P]error, len(r.errors)),
	}
	for p, v := range r.results {
		out.Results[p] = v
	}
	for p, e := range r.errors {
		out.Errors[p] = e
	}
	return out
}
