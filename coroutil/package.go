// Package coroutil provides the synchronization primitives external
// collaborators build on top of the shard package's Future/Promise
// and coroutine types — Mutex, WaitGroup, ErrGroup, and SingleFlight.
//
// These block a coroutine frame by installing a Future[shard.Void] as
// its waiter token and awaiting it, rather than suspending the frame
// directly: a released waiter resumes on a later scheduler turn, not
// inline. That means a handoff must never pass through a state that
// looks "free" before the new holder is committed, since nothing
// guarantees the new holder runs before some other unrelated caller
// gets a turn first — see mutex.go's Unlock for where this mattered.
//
// None of this package is imported by the shard package itself; it is
// deliberately kept as an external consumer of its Future/Task types.
package coroutil
