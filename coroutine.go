package shard

import (
	"context"
	"fmt"
	"runtime/trace"

	"github.com/webriots/coro"
)

const asyncTraceCategory = "shard-async"

// Async is the handle a coroutine body receives: the bridge between
// plain Go control flow inside the body and this package's
// cooperative scheduler. Await is the operation defined against it;
// Context exposes the context the body runs under.
type Async struct {
	ctx     context.Context
	sh      *Shard
	group   Group
	task    *coroutineTask
	suspend func() struct{}
}

// Context returns the context the coroutine body runs under: sh's
// root context carrying this coroutine's scheduling group and its own
// Async handle, recoverable via GroupFromContext/AsyncFromContext.
func (a *Async) Context() context.Context { return a.ctx }

// coroutineTask is the Task that drives one coroutine frame forward.
// RunAndDispose resumes it; Dispose tears it down, resolving its
// paired promise with ErrBrokenPromise if the frame never reached
// completion, the same broken-promise edge case a bare Promise's
// Abandon covers.
type coroutineTask struct {
	group    Group
	resume   func(struct{}) (struct{}, bool)
	cancel   func()
	abandon  func()
	onDone   func()
	finished bool
}

func (t *coroutineTask) RunAndDispose() {
	_, ok := t.resume(struct{}{})
	if !ok {
		t.finished = true
		t.cancel()
		if t.onDone != nil {
			t.onDone()
		}
	}
}

func (t *coroutineTask) Dispose() {
	if t.finished {
		return
	}
	t.finished = true
	t.cancel()
	t.abandon()
	if t.onDone != nil {
		t.onDone()
	}
}

func (t *coroutineTask) Group() Group { return t.group }

// Go starts body running as a coroutine frame on sh under scheduling
// group g, and returns a Future that resolves with body's return
// value once body returns, or with the error recovered from a panic
// escaping body — a panic-propagates-through-future discipline, which
// is also how Await below reports an awaited future's own error back
// into the body.
//
// The frame is scheduled onto sh's normal lane and does not begin
// running until the shard's run loop reaches it.
func Go[T any](sh *Shard, g Group, body func(*Async) T) Future[T] {
	p := NewPromise[T](sh, g)
	future := p.GetFuture()

	a := &Async{sh: sh, group: g}
	a.ctx = withAsyncContext(WithGroup(sh.ctx, g), a)

	resume, cancel := coro.New(func(_ func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
		a.suspend = suspend

		var result T
		var escaped error
		func() {
			defer func() {
				if r := recover(); r != nil {
					if e, ok := r.(error); ok {
						escaped = e
					} else {
						escaped = fmt.Errorf("shard: coroutine panic: %v", r)
					}
				}
			}()
			result = body(a)
		}()

		if trace.IsEnabled() {
			trace.Logf(a.ctx, asyncTraceCategory, "RETURN group=%v err=%v", g, escaped)
		}

		if escaped != nil {
			p.SetError(escaped)
		} else {
			p.SetValue(result)
		}
		return
	})

	ct := &coroutineTask{
		group:   g,
		resume:  resume,
		cancel:  cancel,
		abandon: p.Abandon,
	}
	a.task = ct
	ct.onDone = func() { sh.untrackFrame(ct) }
	sh.trackFrame(ct)

	if trace.IsEnabled() {
		trace.Logf(a.ctx, asyncTraceCategory, "SPAWN group=%v", g)
	}

	sh.Schedule(ct)
	return future
}

// Await suspends the running coroutine until f is available, then
// returns its value — or re-panics with its error, letting it
// propagate up through the body. A panic raised this way is caught by
// Go's own recovery wrapper and turned into the error of the future Go
// returned for this coroutine, so an unhandled awaited error simply
// becomes this frame's own error.
//
// Await must only be called with the *Async belonging to the
// coroutine currently running — passing one recovered from a
// different frame, or calling it outside any frame, is a programming
// error with undefined results.
func Await[T any](a *Async, f Future[T]) T {
	if !f.Available() {
		f.setContinuation(a.sh, a.task)
		a.suspend()
	}

	v, err := f.Get()
	if err != nil {
		panic(err)
	}
	return v
}
