// Package memalloc implements a per-shard monotonic temporary memory
// allocator: a bump allocator whose lifetime discipline turns
// short-lived allocations into pointer increments, with deallocation
// cost amortised to a block header.
//
// Allocation is done over Go's unsafe.Pointer arithmetic on
// over-allocated, manually-aligned byte slices, since Go has no
// aligned-allocation primitive in the standard library — the usual
// workaround for managed-memory languages without one.
package memalloc

import (
	"context"
	"errors"
	"runtime/trace"
	"sync/atomic"
	"unsafe"
)

const (
	// BlockSize is the size, in bytes, of a bump-allocation block.
	// Must be a power of two: the low bits of any live pointer are
	// its byte offset into the block, which the deallocation path
	// depends on.
	BlockSize = 128 * 1024

	// MaxObjectSize is the largest allocation size served by the
	// bump path. Larger requests take the dedicated large-object
	// path.
	MaxObjectSize = 32 * 1024

	// Alignment is the alignment every returned pointer satisfies —
	// the Go stand-in for __STDCPP_DEFAULT_NEW_ALIGNMENT__.
	Alignment = 16
)

const allocTraceCategory = "shard-memalloc"

// ErrOutOfMemory is returned when the backing allocator (Go's runtime
// allocator) cannot satisfy a request. Alloc never returns a pointer
// together with a nil error unless the allocation is real.
var ErrOutOfMemory = errors.New("memalloc: out of memory")

func init() {
	if BlockSize&(BlockSize-1) != 0 {
		panic("memalloc: BlockSize must be a power of two")
	}
	if MaxObjectSize > BlockSize-headerSize {
		panic("memalloc: MaxObjectSize too large for BlockSize")
	}
}

// blockHeader sits at offset 0 of every block, bump block or large
// object alike. useCount is a signed live-object counter: while a
// block is open it tracks (possibly negative) net deallocations
// against it; once the block is closed it holds the true live-object
// count.
//
// It is padded out to Alignment bytes so the first bump allocation,
// which starts right after the header, is itself already aligned.
type blockHeader struct {
	useCount int32
	_        [Alignment - 4]byte
}

const headerSize = Alignment

// Allocator is a monotonic bump allocator bound to exactly one owning
// goroutine — conceptually one shard. It must not be used, nor have
// Free called against pointers it issued, from any other goroutine.
// There is no internal locking.
//
// Allocator is an ordinary value explicitly owned and Close()-d by
// whatever constructs it (a *shard.Shard in this module), giving
// deterministic finalisation instead of relying on a finalizer or
// thread-local teardown.
type Allocator struct {
	ctx context.Context

	current         unsafe.Pointer // *blockHeader of the open block, nil if none
	position        unsafe.Pointer // next bump position within the open block
	end             unsafe.Pointer // exclusive end of the open block
	currentUseCount int32

	stats Stats
}

// Stats is a point-in-time snapshot of allocator activity, useful for
// tests that assert on path selection and full reclamation rather
// than on real resident-set size, since a managed runtime has no
// user-visible munmap.
type Stats struct {
	SmallPathAllocs int64
	LargePathAllocs int64
	LiveBlocks      int64
}

// New creates an Allocator. ctx is used only for runtime/trace
// annotations of block lifecycle events.
func New(ctx context.Context) *Allocator {
	return &Allocator{ctx: ctx}
}

// Alloc allocates size bytes. Requests larger than MaxObjectSize take
// the dedicated large-object path; otherwise the bump pointer is
// advanced within the current block, opening a fresh block first if
// the current one (if any) cannot fit the request.
func (a *Allocator) Alloc(size int) (unsafe.Pointer, error) {
	if size > MaxObjectSize {
		return a.allocateLargeObject(size)
	}

	if a.current == nil {
		return a.allocateNewBlock(size)
	}

	pos := a.position
	end := unsafe.Add(pos, size)
	if uintptr(end) > uintptr(a.end) {
		return a.allocateNewBlock(size)
	}

	a.position = unsafe.Pointer(alignUp(uintptr(end), Alignment))
	a.currentUseCount++
	return pos, nil
}

// Free decrements the live-object count of the block ptr belongs to
// and, if that brings the count to zero, counts the block as
// reclaimed. The allocator keeps no reference to a closed block, so
// the Go garbage collector frees it once no pointer into it remains.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if freeHeader(ptr) {
		atomic.AddInt64(&a.stats.LiveBlocks, -1)
		if trace.IsEnabled() {
			trace.Log(a.ctx, allocTraceCategory, "BLOCK_RECLAIMED")
		}
	}
}

// FreeSized is Free with an ignored size hint, for callers that track
// sizes and would otherwise need a branch to avoid passing one.
func (a *Allocator) FreeSized(ptr unsafe.Pointer, _ int) {
	a.Free(ptr)
}

// Close runs a final close_current, matching shard teardown: any
// block still open when the owning shard shuts down is closed and,
// if it has no survivors, reclaimed immediately.
func (a *Allocator) Close() {
	a.closeCurrent()
}

// Stats returns a snapshot of allocator activity counters.
func (a *Allocator) Stats() Stats {
	return Stats{
		SmallPathAllocs: atomic.LoadInt64(&a.stats.SmallPathAllocs),
		LargePathAllocs: atomic.LoadInt64(&a.stats.LargePathAllocs),
		LiveBlocks:      atomic.LoadInt64(&a.stats.LiveBlocks),
	}
}

// closeCurrent posts the running allocation count kept outside the
// header into the header's signed counter; because frees against this
// still-open block (same goroutine only, but interleaved with bumps)
// already went through the header and drove it negative, the sum is
// exactly the net live-object count. Zero means the block has no
// survivors and is freed on the spot.
func (a *Allocator) closeCurrent() {
	if a.current == nil {
		return
	}

	hdr := (*blockHeader)(a.current)
	hdr.useCount += a.currentUseCount
	if hdr.useCount == 0 {
		atomic.AddInt64(&a.stats.LiveBlocks, -1)
		if trace.IsEnabled() {
			trace.Log(a.ctx, allocTraceCategory, "BLOCK_RECLAIMED_ON_CLOSE")
		}
	}

	a.current = nil
	a.position = nil
	a.end = nil
	a.currentUseCount = 0
}

func (a *Allocator) allocateNewBlock(size int) (unsafe.Pointer, error) {
	a.closeCurrent()

	block, err := alignedAlloc(BlockSize)
	if err != nil {
		return nil, err
	}

	*(*blockHeader)(block) = blockHeader{}
	headerEnd := unsafe.Add(block, headerSize)

	a.current = block
	a.position = unsafe.Pointer(alignUp(uintptr(unsafe.Add(headerEnd, size)), Alignment))
	a.end = unsafe.Add(block, BlockSize)
	a.currentUseCount = 1

	atomic.AddInt64(&a.stats.SmallPathAllocs, 1)
	atomic.AddInt64(&a.stats.LiveBlocks, 1)
	if trace.IsEnabled() {
		trace.Log(a.ctx, allocTraceCategory, "BLOCK_OPENED")
	}

	return headerEnd, nil
}

func (a *Allocator) allocateLargeObject(size int) (unsafe.Pointer, error) {
	block, err := alignedAlloc(headerSize + size)
	if err != nil {
		return nil, err
	}

	*(*blockHeader)(block) = blockHeader{useCount: 1}

	atomic.AddInt64(&a.stats.LargePathAllocs, 1)
	atomic.AddInt64(&a.stats.LiveBlocks, 1)
	if trace.IsEnabled() {
		trace.Log(a.ctx, allocTraceCategory, "LARGE_OBJECT_ALLOCATED")
	}

	return unsafe.Add(block, headerSize), nil
}

// freeHeader is the allocator-agnostic half of Free: the header
// carries its own live count, so decrementing it needs no allocator
// state at all, only the BlockSize-aligned address trick (ptr &^
// (BlockSize-1) always lands on the block's header because every
// block, bump or large-object, starts on a BlockSize boundary and
// every pointer handed out lies within its first BlockSize bytes).
func freeHeader(ptr unsafe.Pointer) (reclaimed bool) {
	hdr := (*blockHeader)(unsafe.Pointer(uintptr(ptr) &^ uintptr(BlockSize-1)))
	hdr.useCount--
	return hdr.useCount == 0
}

// alignedAlloc returns a BlockSize-aligned pointer to a region of at
// least size bytes, backed by an over-allocated Go byte slice. The
// backing slice is never referenced again after this call returns:
// the returned unsafe.Pointer is itself an interior pointer into it,
// which is sufficient to keep the whole backing array reachable for
// as long as any allocation handed out of it is still referenced.
func alignedAlloc(size int) (aligned unsafe.Pointer, err error) {
	defer func() {
		if r := recover(); r != nil {
			aligned, err = nil, ErrOutOfMemory
		}
	}()

	raw := make([]byte, size+BlockSize)
	base := uintptr(unsafe.Pointer(&raw[0]))
	var offset uintptr
	if rem := base % BlockSize; rem != 0 {
		offset = BlockSize - rem
	}
	return unsafe.Pointer(&raw[offset]), nil
}

func alignUp(p, align uintptr) uintptr {
	return (p + align - 1) &^ (align - 1)
}
