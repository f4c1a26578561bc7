package memalloc

import (
	"context"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// TestAllocatorConservation allocates a large number of small
// objects, shuffles the returned pointers with a seeded PRNG, frees
// them all in that shuffled order, and expects full reclamation — no
// leaked blocks.
func TestAllocatorConservation(t *testing.T) {
	r := require.New(t)

	const n = 1 << 20 // 1_048_576
	a := New(context.Background())

	ptrs := make([]unsafe.Pointer, n)
	for i := range ptrs {
		p, err := a.Alloc(16)
		r.NoError(err)
		ptrs[i] = p
	}
	a.Close()

	rand.New(rand.NewSource(0)).Shuffle(len(ptrs), func(i, j int) {
		ptrs[i], ptrs[j] = ptrs[j], ptrs[i]
	})

	for _, p := range ptrs {
		a.Free(p)
	}

	r.Zero(a.Stats().LiveBlocks, "all blocks must be reclaimed once every allocation is freed")
}

// TestAllocatorLargeObjectPath allocates objects above MaxObjectSize,
// shuffles, frees all. The large-object path must be taken exactly
// once per allocation and the small-object path never.
func TestAllocatorLargeObjectPath(t *testing.T) {
	r := require.New(t)

	const n = 8
	const size = 524288
	a := New(context.Background())

	ptrs := make([]unsafe.Pointer, n)
	for i := range ptrs {
		p, err := a.Alloc(size)
		r.NoError(err)
		ptrs[i] = p
	}

	rand.New(rand.NewSource(1)).Shuffle(len(ptrs), func(i, j int) {
		ptrs[i], ptrs[j] = ptrs[j], ptrs[i]
	})

	for _, p := range ptrs {
		a.Free(p)
	}

	stats := a.Stats()
	r.EqualValues(n, stats.LargePathAllocs)
	r.Zero(stats.SmallPathAllocs)
	r.Zero(stats.LiveBlocks)
}

// TestAllocatorAlignment checks that every pointer returned for a
// request within the bump path lands at an offset in
// [headerSize, BlockSize-size] from its block's aligned base, and
// satisfies Alignment.
func TestAllocatorAlignment(t *testing.T) {
	r := require.New(t)

	a := New(context.Background())
	for i := 0; i < 5000; i++ {
		size := 1 + i%MaxObjectSize
		p, err := a.Alloc(size)
		r.NoError(err)

		off := uintptr(p) & (BlockSize - 1)
		r.GreaterOrEqual(int(off), headerSize)
		r.LessOrEqual(int(off), BlockSize-size)
		r.Zero(uintptr(p) % Alignment)
	}
}

// TestAllocatorBlockReclamation checks that a free order which
// empties a closed block reclaims it on the last free.
func TestAllocatorBlockReclamation(t *testing.T) {
	r := require.New(t)

	a := New(context.Background())

	var ptrs []unsafe.Pointer
	for {
		p, err := a.Alloc(16)
		r.NoError(err)
		ptrs = append(ptrs, p)
		if a.Stats().SmallPathAllocs == 2 {
			break // forced a second block to open, closing the first
		}
	}
	r.EqualValues(2, a.Stats().LiveBlocks)

	// free everything from the first (now closed) block: it was
	// closed by the second allocateNewBlock call, so every pointer
	// but the very last belongs to it.
	for _, p := range ptrs[:len(ptrs)-1] {
		a.Free(p)
	}
	r.EqualValues(1, a.Stats().LiveBlocks, "closed block must be reclaimed once emptied")

	a.Free(ptrs[len(ptrs)-1])
	a.Close()
	r.Zero(a.Stats().LiveBlocks)
}

func TestArenaNewDelete(t *testing.T) {
	r := require.New(t)

	type payload struct {
		a, b, c int64
	}

	a := New(context.Background())
	p, err := NewValue[payload](a)
	r.NoError(err)
	r.NotNil(p)

	p.a, p.b, p.c = 1, 2, 3
	r.EqualValues(1, p.a)

	Delete(a, p)
	a.Close()
	r.Zero(a.Stats().LiveBlocks)
}
