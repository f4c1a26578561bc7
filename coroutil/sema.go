package coroutil

import (
	"github.com/gammazero/deque"
	"github.com/loopcore/shard"
)

// sema is a counting semaphore built on shard.Promise/Future: a
// blocked acquire installs a Promise[shard.Void] as its waiter token
// and awaits the paired future; release either grants a free permit
// directly or hands the single released permit straight to the
// longest-waiting acquirer.
type sema struct {
	noCopy noCopy
	v      uint32
	w      deque.Deque[*shard.Promise[shard.Void]]
}

// acquire blocks the calling coroutine frame until a permit is
// available.
func (s *sema) acquire(sh *shard.Shard, a *shard.Async) {
	if s.v > 0 {
		s.v--
		return
	}

	p := shard.NewPromise[shard.Void](sh, shard.GroupFromContext(a.Context()))
	s.w.PushBack(p)
	shard.Await(a, p.GetFuture())
}

// release returns a permit. If a frame is waiting, the permit is
// handed to it directly — reported via the returned bool — rather
// than being added back to v and immediately taken again; this keeps
// the permit count exact even though the actual wakeup happens on a
// later scheduler turn, not synchronously.
func (s *sema) release() bool {
	if s.w.Len() == 0 {
		s.v++
		return false
	}

	p := s.w.PopFront()
	p.SetValue(shard.Void{})
	return true
}

func (s *sema) waitCount() int {
	return s.w.Len()
}
