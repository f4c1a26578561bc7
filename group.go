package shard

import (
	"context"
)

// Group is an opaque scheduling-group handle: an accounting class
// identity, structurally comparable. The runtime does nothing with a
// Group beyond carrying it from construction time through to whatever
// the embedding system does with it for resource accounting; shard
// itself never branches on a Group's value.
type Group uint32

// DefaultGroup is the scheduling group assumed when no ambient group
// has been installed on a context.
const DefaultGroup Group = 0

// groupContextKey is a unique type used as a key for storing the
// ambient scheduling group in a context.
type groupContextKey struct{}

// WithGroup returns a context carrying g as the ambient "current
// scheduling group", which GroupFromContext reads back. The task,
// promise and coroutine constructors of this package do not read it:
// TaskFuncGroup, NewPromise and Go take their group as an argument,
// and TaskFunc always uses DefaultGroup.
func WithGroup(ctx context.Context, g Group) context.Context {
	return context.WithValue(ctx, groupContextKey{}, g)
}

// GroupFromContext returns the ambient scheduling group carried by
// ctx, or DefaultGroup if none was installed.
func GroupFromContext(ctx context.Context) Group {
	if g, ok := ctx.Value(groupContextKey{}).(Group); ok {
		return g
	}
	return DefaultGroup
}

// taskContextKey is the context key under which the currently
// executing *Async handle is stored, so that code running inside a
// coroutine body can recover it without threading it through every
// call explicitly.
type taskContextKey struct{}

// withAsyncContext returns a context that carries a running
// coroutine's Async handle.
func withAsyncContext(ctx context.Context, a *Async) context.Context {
	return context.WithValue(ctx, taskContextKey{}, a)
}

// AsyncFromContext retrieves the Async handle of the coroutine that
// produced ctx, if any.
func AsyncFromContext(ctx context.Context) (*Async, bool) {
	val, ok := ctx.Value(taskContextKey{}).(*Async)
	return val, ok
}
