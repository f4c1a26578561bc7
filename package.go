// Package shard provides the scheduling core of a shard-per-core
// asynchronous runtime: a polymorphic task abstraction, a one-shot
// future/promise pair, and a coroutine bridge that binds Go's
// goroutine-backed coroutine emulation to that future type so that
// awaiting an unready future suspends back to the scheduler instead
// of blocking the underlying OS thread.
//
// Key components:
//
//   - Task: a polymorphic unit of deferred work exposing
//     RunAndDispose and Dispose. Closures and coroutine frames are
//     both tasks.
//
//   - Future / Promise: a single-producer, single-consumer result
//     cell that may carry a continuation task to be scheduled the
//     moment its value or error is set.
//
//   - Go / Await: the coroutine bridge and its awaiter, letting a
//     body function suspend on a Future without blocking the shard's
//     single OS thread.
//
//   - Shard: the per-core scheduler loop, owning the task queues plus
//     the temporary allocator and codec instances a shard needs for
//     the lifetime of the process.
//
// Synchronization primitives that use this package's Future/Task
// types from the outside (Mutex, WaitGroup, ErrGroup, SingleFlight)
// live in the sibling package shard/coroutil; they are deliberately
// not part of this package.
package shard
