package rpcframe

// ChunkSize is the codec's chunk granularity: 128 KiB.
const ChunkSize = 128 * 1024

// Buffer is the scatter-gather wire buffer: either a single contiguous
// byte slice, or an ordered sequence of segments each exactly
// ChunkSize long except possibly the last. Whether it holds one
// segment or many collapses to a length-1 check on Segments.
type Buffer struct {
	Segments [][]byte
	Size     int
}

// Single wraps one contiguous slice as a Buffer.
func Single(b []byte) Buffer {
	return Buffer{Segments: [][]byte{b}, Size: len(b)}
}

// Fragmented wraps an ordered sequence of segments as a Buffer. Every
// segment but the last must be exactly ChunkSize long; violating it
// is a caller bug, not a codec error, so it is not checked at this
// layer — callers that cannot guarantee it must coalesce first.
func Fragmented(segments [][]byte) Buffer {
	size := 0
	for _, s := range segments {
		size += len(s)
	}
	return Buffer{Segments: segments, Size: size}
}

// IsSingle reports whether b is a single contiguous segment — the
// fast-path precondition on both the compress and decompress sides.
func (b Buffer) IsSingle() bool {
	return len(b.Segments) == 1
}

// Bytes concatenates every segment into one contiguous slice. It
// exists for callers and tests that want a flat view; the codec's own
// internal walk never needs it.
func (b Buffer) Bytes() []byte {
	if b.IsSingle() {
		return b.Segments[0]
	}
	out := make([]byte, 0, b.Size)
	for _, s := range b.Segments {
		out = append(out, s...)
	}
	return out
}
