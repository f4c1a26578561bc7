package shard

import (
	"errors"
	"runtime/trace"
	"sync"
)

// ErrBrokenPromise is the error a Future resolves to when its paired
// Promise is disposed of (a coroutine frame destroyed, a bare Promise
// explicitly abandoned) before ever being set.
var ErrBrokenPromise = errors.New("shard: broken promise")

// ErrFutureNotReady is the contract-violation error produced by a
// Get call on a future that is not yet Available. Callers must gate
// Get on Available; this package never calls Get without checking
// first, so this error should only ever surface from misuse outside
// the package.
var ErrFutureNotReady = errors.New("shard: future not ready")

const futureTraceCategory = "shard-future"

type futureState[T any] struct {
	mu    sync.Mutex
	ready bool
	value T
	err   error
	cont  Task
	taken bool // set once Get has consumed the outcome
}

// Future is a one-shot, single-consumer container for an eventual
// value or error, plus an optional continuation task to run once the
// value or error is set. A Future is produced by exactly one Promise
// and consumed by exactly one caller via Get.
type Future[T any] struct {
	shared *futureState[T]
}

// Available reports whether the future holds an outcome (value or
// error) that has been set and not yet consumed by Get. It is purely
// observational and never consumes state.
func (f Future[T]) Available() bool {
	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()
	return f.shared.ready
}

// Get destructively consumes the future's outcome: afterwards the
// future is empty, Available reports false and a further Get returns
// ErrFutureNotReady. Calling Get before Available reports true is a
// contract violation; the future's
// continuation slot has no bearing once this is called,
// since the continuation only ever runs in response to the promise
// being set, never in response to Get.
func (f Future[T]) Get() (T, error) {
	f.shared.mu.Lock()
	defer f.shared.mu.Unlock()
	if !f.shared.ready {
		var zero T
		return zero, ErrFutureNotReady
	}
	v, err := f.shared.value, f.shared.err
	var zero T
	f.shared.value, f.shared.err, f.shared.ready = zero, nil, false
	f.shared.taken = true
	return v, err
}

// setContinuation installs t as the task to schedule once this
// future's outcome is set. It may be called at most once, and only
// while the future is not yet ready — setting it on an already-ready
// future is a user error. Used internally by Await; not exported,
// since futures are single-consumer by design.
func (f Future[T]) setContinuation(sh *Shard, t Task) {
	f.shared.mu.Lock()
	if f.shared.ready {
		f.shared.mu.Unlock()
		panic("shard: setContinuation called on a ready future")
	}
	if f.shared.cont != nil {
		f.shared.mu.Unlock()
		panic("shard: continuation slot already set")
	}
	f.shared.cont = t
	f.shared.mu.Unlock()
}

// Promise is the producer end of a Future. Exactly one of SetValue,
// SetError, or Abandon resolves a Promise; a second SetValue or
// SetError panics, while Abandon on an already-resolved Promise does
// nothing.
type Promise[T any] struct {
	shared *futureState[T]
	group  Group
	sh     *Shard
	taken  bool
	done   bool
}

// NewPromise creates a Promise scoped to the given shard and
// scheduling group. The shard is where a continuation attached to the
// paired future is scheduled when the outcome is set.
func NewPromise[T any](sh *Shard, g Group) *Promise[T] {
	return &Promise[T]{shared: &futureState[T]{}, group: g, sh: sh}
}

// GetFuture returns the paired Future. It may be called at most once.
func (p *Promise[T]) GetFuture() Future[T] {
	if p.taken {
		panic("shard: GetFuture called more than once")
	}
	p.taken = true
	return Future[T]{shared: p.shared}
}

// SetValue transitions the paired future from pending to
// ready-with-value and schedules its continuation, if any, urgently,
// so that completion callbacks run promptly.
func (p *Promise[T]) SetValue(v T) {
	p.resolve(v, nil)
}

// SetError transitions the paired future from pending to
// ready-with-exception and schedules its continuation, if any,
// urgently.
func (p *Promise[T]) SetError(err error) {
	var zero T
	p.resolve(zero, err)
}

// Abandon resolves the paired future with ErrBrokenPromise if it has
// not already been set. Used by callers managing a bare Promise
// outside the coroutine bridge (which does this automatically on
// Dispose), as the deterministic alternative to a GC finalizer.
func (p *Promise[T]) Abandon() {
	if p.done {
		return
	}
	var zero T
	p.resolve(zero, ErrBrokenPromise)
}

func (p *Promise[T]) resolve(v T, err error) {
	if p.done {
		panic("shard: promise already resolved")
	}
	p.done = true

	s := p.shared
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		panic("shard: promise already resolved")
	}
	s.value, s.err, s.ready = v, err, true
	cont := s.cont
	s.cont = nil
	s.mu.Unlock()

	if trace.IsEnabled() {
		if err != nil {
			trace.Logf(p.sh.ctx, futureTraceCategory, "SET_EXCEPTION group=%v err=%v", p.group, err)
		} else {
			trace.Logf(p.sh.ctx, futureTraceCategory, "SET_VALUE group=%v", p.group)
		}
	}

	if cont != nil && p.sh != nil {
		p.sh.ScheduleUrgent(cont)
	}
}
