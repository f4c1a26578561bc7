package coroutil

import (
	"context"

	"github.com/loopcore/shard"
)

// ErrGroup spawns a group of coroutine frames and collects the first
// error any of them returns, cancelling the group's shared context
// once one does — the coroutine-frame counterpart of
// golang.org/x/sync/errgroup.Group, but spawning shard.Go frames
// rather than plain goroutines.
type ErrGroup struct {
	sh     *shard.Shard
	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     WaitGroup
	err    error
}

// NewErrGroup creates an ErrGroup whose spawned frames run on sh,
// under a context derived from a's own that is cancelled with the
// group's first error.
func NewErrGroup(sh *shard.Shard, a *shard.Async) *ErrGroup {
	ctx, cancel := context.WithCancelCause(a.Context())
	return &ErrGroup{sh: sh, ctx: ctx, cancel: cancel}
}

// Go spawns fn as a new coroutine frame under the group's own
// context.
func (g *ErrGroup) Go(fn func(context.Context) error) {
	g.GoWithContext(g.ctx, fn)
}

// GoWithContext spawns fn as a new coroutine frame under ctx, which
// must be derived from the group's own context (so that GroupFromContext(ctx)
// still resolves to the scheduling group the group itself runs in).
func (g *ErrGroup) GoWithContext(ctx context.Context, fn func(context.Context) error) {
	g.wg.Add(1)
	shard.Go(g.sh, shard.GroupFromContext(ctx), func(a *shard.Async) shard.Void {
		defer g.wg.Done()
		if err := fn(ctx); err != nil && g.err == nil {
			g.err = err
			g.cancel(err)
		}
		return shard.Void{}
	})
}

// Wait suspends the calling frame until every spawned frame has
// finished, then returns the first error any of them reported, or nil
// if none did. A spawned frame that panics rather than returning an
// error is still counted by Wait (the panic unwinds through this
// frame's own deferred Done call before shard.Go's recovery catches
// it), but does not become the group's error — only errors returned
// through fn's own signature do.
func (g *ErrGroup) Wait(sh *shard.Shard, a *shard.Async) error {
	g.wg.Wait(sh, a)
	g.cancel(g.err)
	return g.err
}
