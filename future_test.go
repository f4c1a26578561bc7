package shard

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFutureAtMostOnceContinuation checks that a future's
// continuation, once set, runs exactly once, triggered by exactly one
// of SetValue/SetError/Abandon.
func TestFutureAtMostOnceContinuation(t *testing.T) {
	r := require.New(t)

	sh := NewShard(context.Background())
	p := NewPromise[int](sh, DefaultGroup)
	f := p.GetFuture()

	runs := 0
	f.setContinuation(sh, TaskFunc(func() { runs++ }))

	p.SetValue(42)
	sh.RunUntilIdle()

	r.Equal(1, runs)
	r.True(f.Available())

	v, err := f.Get()
	r.NoError(err)
	r.Equal(42, v)
}

// TestFutureAtomicity checks that concurrent SetValue callers racing
// against Available/Get never observe a torn state — either the value
// is fully there or it is not yet.
func TestFutureAtomicity(t *testing.T) {
	r := require.New(t)

	sh := NewShard(context.Background())
	p := NewPromise[int](sh, DefaultGroup)
	f := p.GetFuture()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.SetValue(7)
	}()

	for !f.Available() {
	}
	wg.Wait()

	v, err := f.Get()
	r.NoError(err)
	r.Equal(7, v)
}

func TestPromiseGetFutureTwicePanics(t *testing.T) {
	r := require.New(t)

	sh := NewShard(context.Background())
	p := NewPromise[int](sh, DefaultGroup)
	p.GetFuture()

	r.Panics(func() { p.GetFuture() })
}

func TestPromiseResolveTwicePanics(t *testing.T) {
	r := require.New(t)

	sh := NewShard(context.Background())
	p := NewPromise[int](sh, DefaultGroup)
	p.GetFuture()
	p.SetValue(1)

	r.Panics(func() { p.SetValue(2) })
}

func TestPromiseAbandon(t *testing.T) {
	r := require.New(t)

	sh := NewShard(context.Background())
	p := NewPromise[int](sh, DefaultGroup)
	f := p.GetFuture()

	p.Abandon()
	sh.RunUntilIdle()

	r.True(f.Available())
	_, err := f.Get()
	r.ErrorIs(err, ErrBrokenPromise)

	// Abandon is a no-op once the promise is already resolved.
	r.NotPanics(func() { p.Abandon() })
}

func TestFutureGetBeforeReady(t *testing.T) {
	r := require.New(t)

	sh := NewShard(context.Background())
	p := NewPromise[int](sh, DefaultGroup)
	f := p.GetFuture()

	_, err := f.Get()
	r.ErrorIs(err, ErrFutureNotReady)
}
