package shard

import (
	"context"
	"runtime/trace"

	"github.com/loopcore/shard/memalloc"
	"github.com/loopcore/shard/rpcframe"
)

const shardTraceCategory = "shard-core"

// Shard is the per-core scheduler: a single-threaded run loop driving
// a two-lane task queue, plus two resources scoped one-per-shard — the
// temporary memory allocator and the RPC frame codec. A Shard must
// only ever be driven from the one goroutine that owns it; nothing in
// this package synchronizes across shards — each core runs its own,
// and cross-shard communication is the caller's concern.
type Shard struct {
	ctx    context.Context
	queue  taskQueue
	frames map[*coroutineTask]struct{}

	Alloc *memalloc.Allocator
	Codec *rpcframe.Codec
}

// NewShard creates a Shard bound to ctx, with its own allocator and
// codec instances. ctx is also the root context handed to coroutine
// frames spawned on this shard via Go, and to ambient trace calls.
func NewShard(ctx context.Context) *Shard {
	return &Shard{
		ctx:    ctx,
		frames: make(map[*coroutineTask]struct{}),
		Alloc:  memalloc.New(ctx),
		Codec:  rpcframe.NewCodec(ctx),
	}
}

func (sh *Shard) trackFrame(ct *coroutineTask)   { sh.frames[ct] = struct{}{} }
func (sh *Shard) untrackFrame(ct *coroutineTask) { delete(sh.frames, ct) }

// Schedule enqueues t at the tail of the normal lane.
func (sh *Shard) Schedule(t Task) {
	sh.queue.schedule(t)
}

// ScheduleUrgent enqueues t at the tail of the urgent lane, which
// drains entirely ahead of anything in the normal lane. Promise
// resolution uses this lane so that a coroutine awaiting an
// already-produced value resumes at the next opportunity rather than
// behind unrelated normal-lane work.
func (sh *Shard) ScheduleUrgent(t Task) {
	sh.queue.scheduleUrgent(t)
}

// Pending reports the number of tasks still queued across both lanes.
func (sh *Shard) Pending() int {
	return sh.queue.len()
}

// RunUntilIdle repeatedly pops and runs the next task — urgent lane
// first, normal lane otherwise — until both lanes are empty. It is
// the cooperative run loop that drives the shard forward; dispatching
// actual reactor-level I/O onto this queue is a caller concern, not
// something this package does itself.
func (sh *Shard) RunUntilIdle() {
	for {
		t, ok := sh.queue.pop()
		if !ok {
			return
		}
		if trace.IsEnabled() {
			trace.Logf(sh.ctx, shardTraceCategory, "RUN group=%v", t.Group())
		}
		t.RunAndDispose()
	}
}

// Close tears down the shard. Any task still queued is disposed of
// without running, and any coroutine frame still suspended on a future
// it will now never see resolved is disposed of too. A disposed
// coroutine frame resolves its own future with ErrBrokenPromise; a
// disposed closure task just drops its closure, so whatever that
// closure would have resolved stays pending. Finally the shard's
// allocator is closed; the codec holds nothing that needs closing.
func (sh *Shard) Close() {
	for {
		t, ok := sh.queue.pop()
		if !ok {
			break
		}
		t.Dispose()
	}
	for ct := range sh.frames {
		ct.Dispose()
	}
	sh.Alloc.Close()
}
