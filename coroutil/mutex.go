package coroutil

import "github.com/loopcore/shard"

// Mutex provides mutual exclusion across coroutine frames running on
// the same shard. Only one frame holds it at a time; others attempting
// Lock suspend until it is released.
type Mutex struct {
	noCopy noCopy
	held   bool
	sema   sema
}

// Lock acquires m, suspending the calling frame if it is already held.
func (m *Mutex) Lock(sh *shard.Shard, a *shard.Async) {
	if !m.held {
		m.held = true
		return
	}
	m.sema.acquire(sh, a)
}

// Unlock releases m. If a frame is waiting, ownership transfers to it
// directly: held stays true across the handoff, so there is never a
// window, however brief, where a third frame could see m as free
// while a handoff is in flight — see package.go for why that window
// matters given continuations run on a later scheduler turn rather
// than inline.
func (m *Mutex) Unlock() {
	if m.sema.waitCount() == 0 {
		m.held = false
		return
	}
	m.sema.release()
}

// WaitCount returns the number of frames currently suspended on Lock.
func (m *Mutex) WaitCount() int {
	return m.sema.waitCount()
}
