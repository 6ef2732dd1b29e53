package chunker

import (
	"io"
	"os"
	"time"

	"github.com/glycerine/bkchunk/allzero"
	"github.com/glycerine/bkchunk/chunk"
	"github.com/glycerine/bkchunk/sparsemap"
	"github.com/glycerine/idem"
)

// FixedConfig parameterizes the fixed-size chunker.
type FixedConfig struct {
	BlockSize  int  `zid:"0"`
	HeaderSize int  `zid:"1"`
	Sparse     bool `zid:"2"`
}

// FixedChunker emits block-aligned chunks, optionally skipping
// filesystem holes without reading them.
type FixedChunker struct {
	cfg     FixedConfig
	elapsed time.Duration
	doneCh  *idem.IdemCloseChan
}

// NewFixedChunker validates cfg against the process-wide zero buffer
// that backs all-zero classification.
func NewFixedChunker(cfg FixedConfig) (*FixedChunker, error) {
	if cfg.BlockSize <= 0 {
		return nil, &ConfigError{Field: "BlockSize", Msg: "must be positive"}
	}
	if cfg.BlockSize > len(allzero.Zero) {
		return nil, &ConfigError{Field: "BlockSize", Msg: "exceeds the zero-buffer length"}
	}
	if cfg.HeaderSize < 0 {
		return nil, &ConfigError{Field: "HeaderSize", Msg: "must not be negative"}
	}
	return &FixedChunker{cfg: cfg, doneCh: idem.NewIdemCloseChan()}, nil
}

func (c *FixedChunker) Elapsed() time.Duration { return c.elapsed }

// Done reports when the current stream has been fully consumed.
func (c *FixedChunker) Done() <-chan struct{} { return c.doneCh.Chan }

func (c *FixedChunker) Chunkify(src Source) Iterator {
	c.doneCh = idem.NewIdemCloseChan()
	return &fixedIterator{c: c, src: src, ranges: c.buildMap(src), offset: c.startOffset(src)}
}

func (c *FixedChunker) startOffset(src Source) int64 {
	if seeker, ok := src.(io.Seeker); ok {
		if pos, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			return pos
		}
	}
	return 0
}

// buildMap attempts a sparse map when configured and the source
// supports it, falling back to a synthesized map of (header) +
// (infinite data) ranges otherwise. A sparse-seek failure, or a
// source that doesn't support sparse seeking at all, is never
// surfaced to the caller — it is the one error this module swallows
// internally, always degrading to sequential reads instead.
func (c *FixedChunker) buildMap(src Source) []sparsemap.Range {
	if c.cfg.Sparse {
		if dhs, ok := c.sparseSeeker(src); ok {
			if ranges, ok := c.trySparseMap(dhs); ok {
				return ranges
			}
			vv("sparse map attempt failed, falling back to non-sparse")
		}
	}
	if c.cfg.HeaderSize > 0 {
		return []sparsemap.Range{
			{Start: 0, Length: int64(c.cfg.HeaderSize), IsData: true},
			{Start: int64(c.cfg.HeaderSize), Length: 1<<62, IsData: true},
		}
	}
	return []sparsemap.Range{{Start: 0, Length: 1 << 62, IsData: true}}
}

// sparseSeeker resolves src to a DataHoleSeeker worth attempting, or
// reports false if the attempt isn't worth making at all: src already
// implements DataHoleSeeker directly, or src is a plain *os.File that
// this platform knows how to wrap, the wrap's minimum hole
// granularity doesn't exceed BlockSize, and the file actually has a
// hole to skip.
func (c *FixedChunker) sparseSeeker(src Source) (sparsemap.DataHoleSeeker, bool) {
	if dhs, ok := src.(sparsemap.DataHoleSeeker); ok {
		return dhs, true
	}
	f, ok := src.(*os.File)
	if !ok {
		return nil, false
	}
	if min, err := sparsemap.MinHoleSize(f); err == nil && min > int64(c.cfg.BlockSize) {
		vv("min hole size %d exceeds block size %d, skipping sparse attempt", min, c.cfg.BlockSize)
		return nil, false
	}
	sparse, err := sparsemap.IsSparse(f)
	if err != nil || !sparse {
		vv("file is not sparse, skipping sparse attempt")
		return nil, false
	}
	return sparsemap.NewFileSeeker(f), true
}

func (c *FixedChunker) trySparseMap(dhs sparsemap.DataHoleSeeker) ([]sparsemap.Range, bool) {
	if c.cfg.HeaderSize > 0 {
		if _, err := dhs.Seek(int64(c.cfg.HeaderSize), io.SeekStart); err != nil {
			return nil, false
		}
	}
	body, err := sparsemap.Enumerate(dhs)
	if err != nil {
		return nil, false
	}
	if _, err := dhs.Seek(0, io.SeekStart); err != nil {
		return nil, false
	}
	if c.cfg.HeaderSize == 0 {
		return body, true
	}
	ranges := make([]sparsemap.Range, 0, len(body)+1)
	ranges = append(ranges, sparsemap.Range{Start: 0, Length: int64(c.cfg.HeaderSize), IsData: true})
	ranges = append(ranges, body...)
	return ranges, true
}

type fixedIterator struct {
	c      *FixedChunker
	src    Source
	ranges []sparsemap.Range
	ri     int   // index into ranges
	off    int64 // offset within the current range already consumed
	offset int64 // logical stream offset, for seeking to skipped ranges
	done   bool
}

func (it *fixedIterator) finish() {
	if !it.done {
		it.done = true
		it.c.doneCh.Close()
	}
}

func (it *fixedIterator) Next() (chunk.Chunk, error) {
	if it.done {
		return chunk.Chunk{}, io.EOF
	}
	start := time.Now()
	defer func() { it.c.elapsed += time.Since(start) }()

	for {
		if it.ri >= len(it.ranges) {
			it.finish()
			return chunk.Chunk{}, io.EOF
		}
		r := it.ranges[it.ri]
		if it.off >= r.Length {
			it.ri++
			it.off = 0
			continue
		}
		// step 3: seek to the range start if the map skipped a region.
		want := r.Start + it.off
		if want != it.offset {
			if seeker, ok := it.src.(io.Seeker); ok {
				if _, err := seeker.Seek(want, io.SeekStart); err != nil {
					return chunk.Chunk{}, err
				}
				it.offset = want
			}
		}

		remaining := r.Length - it.off
		blockLen := int64(it.c.cfg.BlockSize)
		if blockLen > remaining {
			blockLen = remaining
		}

		if !r.IsData {
			seeker, ok := it.src.(io.Seeker)
			if !ok {
				it.finish()
				return chunk.Chunk{}, io.EOF
			}
			if _, err := seeker.Seek(blockLen, io.SeekCurrent); err != nil {
				return chunk.Chunk{}, err
			}
			it.off += blockLen
			it.offset += blockLen
			return chunk.Chunk{Kind: chunk.KindHole, Size: blockLen}, nil
		}

		buf := make([]byte, blockLen)
		n, err := io.ReadFull(it.src, buf)
		if n > 0 {
			it.off += int64(n)
			it.offset += int64(n)
		}
		if n == 0 {
			it.finish()
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return chunk.Chunk{}, err
			}
			return chunk.Chunk{}, io.EOF
		}
		payload := buf[:n]
		if int64(n) < blockLen {
			// step 5: short read terminates after this emission.
			it.finish()
		}
		if allzero.IsAllZero(payload) {
			return chunk.Chunk{Kind: chunk.KindAlloc, Size: int64(n)}, nil
		}
		return chunk.Chunk{Kind: chunk.KindData, Size: int64(n), Payload: payload}, nil
	}
}
