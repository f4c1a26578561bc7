// Package rpcframe implements a framed, fragmented streaming
// compressor: a chunk-framing format over a streaming LZ-family
// compressor, preserving scatter-gather layout on both input and
// output, with a fast path for single-chunk messages.
//
// The real compression work is done by github.com/pierrec/lz4/v4's
// block API (CompressBlockBound / Compressor.CompressBlock /
// UncompressBlock). One deliberate simplification follows from using
// that API: each chunk is compressed as an independently valid LZ4
// block rather than sharing one literal sliding-dictionary window
// across a frame, since the public block API exposes no such window.
// The wire framing — header bit layout, chunk sizes, boundary
// placement — stays bit-exact regardless, which is the part of the
// format that actually matters to a decoder on the other end.
package rpcframe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime/trace"

	"github.com/pierrec/lz4/v4"
)

const (
	lastChunkFlag = uint32(1) << 31
	headerSize    = 4
)

const codecTraceCategory = "shard-rpcframe"

// ErrTruncatedHeader is returned when a frame ends in the middle of a
// 4-byte chunk header.
var ErrTruncatedHeader = errors.New("rpcframe: truncated chunk header")

// ErrDecompressFailed wraps any underlying LZ4 decompression failure,
// including an intermediate chunk that does not decompress to exactly
// ChunkSize bytes; a frame cut short inside a chunk header is reported
// as ErrTruncatedHeader instead. The caller must treat either as a
// dropped frame and reset the
// stream before handling another — Codec carries no persistent
// sliding-dictionary state to reset, so a fresh Decompress call is
// already equivalent to that reset.
var ErrDecompressFailed = errors.New("rpcframe: frame decompression failed")

// Codec holds the per-shard compression/decompression state: the
// persisted LZ4 compressor (reset at the start of every frame,
// mirroring LZ4_resetStream) and the retained decompression scratch
// buffer that grows on demand.
type Codec struct {
	ctx context.Context

	comp           lz4.Compressor
	compressScratch []byte

	decompressScratch []byte
}

// NewCodec creates a per-shard Codec. ctx is used only for
// runtime/trace annotations.
func NewCodec(ctx context.Context) *Codec {
	return &Codec{ctx: ctx}
}

// Compress compresses input, reserving headSpace bytes at the start
// of the output for the caller's own out-of-band framing. The
// returned Buffer's last segment is trimmed to its actual content.
func (c *Codec) Compress(headSpace int, input Buffer) (Buffer, error) {
	c.comp = lz4.Compressor{} // LZ4_resetStream, once per frame

	size := input.Size
	bound := lz4.CompressBlockBound(size)
	singleChunkSize := bound + headSpace + headerSize

	if input.IsSingle() && singleChunkSize <= ChunkSize && size <= ChunkSize {
		return c.compressFastPath(headSpace, input.Segments[0], bound)
	}
	return c.compressGeneral(headSpace, input)
}

func (c *Codec) compressFastPath(headSpace int, src []byte, bound int) (Buffer, error) {
	dst := make([]byte, headSpace+headerSize+bound)

	n := 0
	if len(src) > 0 {
		var err error
		n, err = c.comp.CompressBlock(src, dst[headSpace+headerSize:])
		if err != nil {
			return Buffer{}, fmt.Errorf("rpcframe: compress: %w", err)
		}
	}

	binary.LittleEndian.PutUint32(dst[headSpace:], lastChunkFlag|uint32(len(src)))
	out := dst[:headSpace+headerSize+n]

	if trace.IsEnabled() {
		trace.Logf(c.ctx, codecTraceCategory, "COMPRESS_FAST size=%d compressed=%d", len(src), n)
	}
	return Single(out), nil
}

func (c *Codec) compressGeneral(headSpace int, input Buffer) (Buffer, error) {
	chunks := chunksOf(input)

	firstSegSize := ChunkSize
	if headSpace > firstSegSize {
		firstSegSize = headSpace
	}
	segments := [][]byte{make([]byte, firstSegSize)}
	segOffset := headSpace

	write := func(b []byte) {
		n := len(b)
		off := 0
		for n > 0 {
			last := segments[len(segments)-1]
			if segOffset == len(last) {
				segments = append(segments, make([]byte, ChunkSize))
				segOffset = 0
				last = segments[len(segments)-1]
			}
			room := len(last) - segOffset
			take := room
			if take > n {
				take = n
			}
			copy(last[segOffset:segOffset+take], b[off:off+take])
			segOffset += take
			off += take
			n -= take
		}
	}

	if len(c.compressScratch) < lz4.CompressBlockBound(ChunkSize) {
		c.compressScratch = make([]byte, lz4.CompressBlockBound(ChunkSize))
	}

	var hdr [headerSize]byte
	for i, chunk := range chunks {
		isLast := i == len(chunks)-1

		n := 0
		if len(chunk) > 0 {
			var err error
			n, err = c.comp.CompressBlock(chunk, c.compressScratch)
			if err != nil {
				return Buffer{}, fmt.Errorf("rpcframe: compress chunk %d: %w", i, err)
			}
		}

		var headerValue uint32
		if isLast {
			headerValue = lastChunkFlag | uint32(len(chunk))
		} else {
			headerValue = uint32(n)
		}

		binary.LittleEndian.PutUint32(hdr[:], headerValue)
		write(hdr[:])
		write(c.compressScratch[:n])
	}

	last := segments[len(segments)-1]
	segments[len(segments)-1] = last[:segOffset]

	if trace.IsEnabled() {
		trace.Logf(c.ctx, codecTraceCategory, "COMPRESS_GENERAL chunks=%d segments=%d", len(chunks), len(segments))
	}

	if len(segments) == 1 {
		return Single(segments[0]), nil
	}
	return Fragmented(segments), nil
}

// Decompress decompresses input, which must start exactly at the
// first chunk header (any headSpace reserved by Compress must already
// be stripped by the caller). Inputs shorter than 4 bytes are rejected
// with ErrTruncatedHeader.
func (c *Codec) Decompress(input Buffer) (Buffer, error) {
	if input.Size < headerSize {
		return Buffer{}, ErrTruncatedHeader
	}

	if input.IsSingle() {
		header := binary.LittleEndian.Uint32(input.Segments[0][:headerSize])
		if header&lastChunkFlag != 0 {
			return c.decompressFastPath(input.Segments[0], header&^lastChunkFlag)
		}
	}
	return c.decompressGeneral(input)
}

func (c *Codec) decompressFastPath(src []byte, size uint32) (Buffer, error) {
	dst := make([]byte, size)
	if size > 0 {
		n, err := lz4.UncompressBlock(src[headerSize:], dst)
		if err != nil {
			return Buffer{}, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
		}
		dst = dst[:n]
	}
	if trace.IsEnabled() {
		trace.Logf(c.ctx, codecTraceCategory, "DECOMPRESS_FAST size=%d", size)
	}
	return Single(dst), nil
}

func (c *Codec) decompressGeneral(input Buffer) (Buffer, error) {
	rd := newReader(input)
	var segments [][]byte

	for {
		var hdrBuf [headerSize]byte
		if rd.remaining() < headerSize {
			return Buffer{}, ErrTruncatedHeader
		}
		rd.copyN(hdrBuf[:], headerSize)
		header := binary.LittleEndian.Uint32(hdrBuf[:])

		if header&lastChunkFlag == 0 {
			compressedSize := int(header)
			if compressedSize > len(c.decompressScratch) {
				c.decompressScratch = make([]byte, compressedSize)
			}
			rd.copyN(c.decompressScratch[:compressedSize], compressedSize)

			out := make([]byte, ChunkSize)
			n, err := lz4.UncompressBlock(c.decompressScratch[:compressedSize], out)
			if err != nil {
				return Buffer{}, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
			}
			if n != ChunkSize {
				return Buffer{}, fmt.Errorf("%w: intermediate chunk decompressed to %d bytes, want %d", ErrDecompressFailed, n, ChunkSize)
			}
			segments = append(segments, out)
			continue
		}

		decompSize := int(header &^ lastChunkFlag)
		compressedSize := rd.remaining()
		out := make([]byte, decompSize)
		if decompSize > 0 {
			if compressedSize > len(c.decompressScratch) {
				c.decompressScratch = make([]byte, compressedSize)
			}
			rd.copyN(c.decompressScratch[:compressedSize], compressedSize)
			n, err := lz4.UncompressBlock(c.decompressScratch[:compressedSize], out)
			if err != nil {
				return Buffer{}, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
			}
			out = out[:n]
		}
		segments = append(segments, out)
		break
	}

	if trace.IsEnabled() {
		trace.Logf(c.ctx, codecTraceCategory, "DECOMPRESS_GENERAL segments=%d", len(segments))
	}

	if len(segments) == 1 {
		return Single(segments[0]), nil
	}
	return Fragmented(segments), nil
}

// chunksOf splits input into ChunkSize-long plaintext chunks (last
// one possibly shorter, or exactly ChunkSize when the input size is
// an exact multiple). An already-fragmented Buffer is trusted to obey
// the scatter-gather contract and returned as-is; a single contiguous
// buffer larger than one chunk is split here so the general path
// never needs to special-case buffer shape.
func chunksOf(input Buffer) [][]byte {
	if len(input.Segments) != 1 {
		return input.Segments
	}
	buf := input.Segments[0]
	if len(buf) <= ChunkSize {
		return [][]byte{buf}
	}
	var chunks [][]byte
	for len(buf) > ChunkSize {
		chunks = append(chunks, buf[:ChunkSize])
		buf = buf[ChunkSize:]
	}
	return append(chunks, buf)
}

// reader is a cursor over a Buffer's segments: it always copies into a
// caller-supplied destination rather than trying to hand back a
// zero-copy view, matching the decompress path's own discipline of
// copying into a retained scratch buffer.
type reader struct {
	segs []([]byte)
	seg  int
	off  int
	left int
}

func newReader(b Buffer) *reader {
	return &reader{segs: b.Segments, left: b.Size}
}

func (r *reader) remaining() int { return r.left }

func (r *reader) copyN(dst []byte, n int) {
	r.left -= n
	copied := 0
	for copied < n {
		cur := r.segs[r.seg]
		avail := len(cur) - r.off
		take := avail
		if take > n-copied {
			take = n - copied
		}
		copy(dst[copied:copied+take], cur[r.off:r.off+take])
		r.off += take
		copied += take
		if r.off == len(cur) {
			r.seg++
			r.off = 0
		}
	}
}
