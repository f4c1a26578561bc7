package coroutil

import "github.com/loopcore/shard"

// singleFlightCall is one in-flight keyed call, possibly shared among
// several concurrent callers.
type singleFlightCall struct {
	wg   WaitGroup
	val  any
	err  error
	dups int
}

// SingleFlight deduplicates concurrent calls sharing the same key: the
// first caller for a key actually runs fn; every other caller for the
// same key suspends and receives its result instead of running fn
// again.
type SingleFlight struct {
	m map[any]*singleFlightCall
}

// Do runs fn for key, or, if a call for key is already in flight,
// suspends the calling frame and returns that call's result instead.
// shared reports whether the result was shared with at least one
// other caller.
func (g *SingleFlight) Do(sh *shard.Shard, a *shard.Async, key any, fn func() (any, error)) (v any, err error, shared bool) {
	if g.m == nil {
		g.m = make(map[any]*singleFlightCall)
	}

	if c, ok := g.m[key]; ok {
		c.dups++
		c.wg.Wait(sh, a)
		return c.val, c.err, true
	}

	c := new(singleFlightCall)
	c.wg.Add(1)
	g.m[key] = c

	g.doCall(c, key, fn)
	return c.val, c.err, c.dups > 0
}

func (g *SingleFlight) doCall(c *singleFlightCall, key any, fn func() (any, error)) {
	defer func() {
		c.wg.Done()
		if g.m[key] == c {
			delete(g.m, key)
		}
	}()
	c.val, c.err = fn()
}
