package coroutil

import "github.com/loopcore/shard"

// WaitGroup waits for a collection of coroutine frames to finish.
// Frames call Add(1) when they start and Done() when they finish;
// other frames call Wait to suspend until the counter returns to
// zero.
type WaitGroup struct {
	noCopy noCopy
	v      int32
	w      uint32
	sema   sema
}

// Add adds delta to the counter. If it reaches zero, every waiting
// frame is woken. A negative counter, or an Add racing a Wait that
// just observed zero, panics.
func (wg *WaitGroup) Add(delta int) {
	wg.v += int32(delta)

	if wg.v < 0 {
		panic("coroutil: negative WaitGroup counter")
	}
	if wg.w != 0 && delta > 0 && wg.v == int32(delta) {
		panic("coroutil: WaitGroup misuse: Add called concurrently with Wait")
	}
	if wg.v > 0 || wg.w == 0 {
		return
	}

	for ; wg.w != 0; wg.w-- {
		wg.sema.release()
	}
}

// Done decrements the counter by one, equivalent to Add(-1).
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait suspends the calling frame until the counter is zero. It
// returns immediately if it already is.
func (wg *WaitGroup) Wait(sh *shard.Shard, a *shard.Async) {
	if wg.v == 0 {
		return
	}
	wg.w++
	wg.sema.acquire(sh, a)
}
