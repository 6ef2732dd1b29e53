package chunker

import (
	"io"
	"time"

	"github.com/glycerine/bkchunk/allzero"
	"github.com/glycerine/bkchunk/buzhash"
	"github.com/glycerine/bkchunk/chunk"
	"github.com/glycerine/idem"
)

// CDCConfig parameterizes the content-defined chunker. MinSize and
// MaxSize are derived as 1<<MinExp and 1<<MaxExp; ChunkMask is
// (1<<MaskBits)-1. Construction requires WindowSize+MinSize+1 <=
// MaxSize.
type CDCConfig struct {
	Seed       uint32 `zid:"0"`
	MinExp     int    `zid:"1"`
	MaxExp     int    `zid:"2"`
	MaskBits   int    `zid:"3"`
	WindowSize int    `zid:"4"`
}

func (c CDCConfig) minSize() int   { return 1 << c.MinExp }
func (c CDCConfig) maxSize() int   { return 1 << c.MaxExp }
func (c CDCConfig) chunkMask() int { return (1 << c.MaskBits) - 1 }

// CDCChunker is the rolling-hash (buzhash) content-defined chunker. It
// owns one buffer of length MaxSize and processes one source at a
// time; calling Chunkify again resets all buffer/position state for
// the new source.
type CDCChunker struct {
	cfg     CDCConfig
	minSize int
	maxSize int
	chkMask int
	w       int
	hasher  *buzhash.Hasher
	elapsed time.Duration
	doneCh  *idem.IdemCloseChan

	src io.Reader
	buf []byte

	position  int
	remaining int
	last      int

	bytesRead    int64
	bytesYielded int64
	eof          bool
	done         bool
}

// NewCDCChunker validates cfg and allocates the chunker's buffer.
func NewCDCChunker(cfg CDCConfig) (*CDCChunker, error) {
	minSize := cfg.minSize()
	maxSize := cfg.maxSize()
	if maxSize > len(allzero.Zero) {
		return nil, &ConfigError{Field: "MaxExp", Msg: "max_size exceeds the zero-buffer length"}
	}
	if cfg.WindowSize+minSize+1 > maxSize {
		return nil, &ConfigError{Field: "WindowSize", Msg: "window_size + min_size + 1 must not exceed max_size"}
	}
	return &CDCChunker{
		cfg:     cfg,
		minSize: minSize,
		maxSize: maxSize,
		chkMask: cfg.chunkMask(),
		w:       cfg.WindowSize,
		hasher:  buzhash.New(cfg.Seed),
		buf:     make([]byte, maxSize),
		doneCh:  idem.NewIdemCloseChan(),
	}, nil
}

func (c *CDCChunker) Elapsed() time.Duration { return c.elapsed }

// Done reports when the current stream has reached its terminal
// state. Each Chunkify call installs a fresh channel, which is closed
// exactly once, by the same goroutine driving Next, when that stream
// ends.
func (c *CDCChunker) Done() <-chan struct{} { return c.doneCh.Chan }

// Chunkify binds c to src, resetting all buffer and position state
// left over from any previous stream.
func (c *CDCChunker) Chunkify(src Source) Iterator {
	c.src = src
	c.position = 0
	c.remaining = 0
	c.last = 0
	c.bytesRead = 0
	c.bytesYielded = 0
	c.eof = false
	c.done = false
	c.doneCh = idem.NewIdemCloseChan()
	return &cdcIterator{c: c}
}

type cdcIterator struct {
	c *CDCChunker
}

// refillOnce compacts [last, position+remaining) to offset 0 and
// performs one Read into the freed tail space. It is the single
// mechanism behind both the initial refill guard and the mid-search
// refill below; boundaries stay independent of read granularity
// because the cut search only ever consults buffered bytes, never how
// many arrived per Read call.
func (c *CDCChunker) refillOnce() (int, error) {
	if c.last > 0 {
		n := c.position + c.remaining - c.last
		copy(c.buf[0:n], c.buf[c.last:c.last+n])
		c.position -= c.last
		c.last = 0
	}
	space := len(c.buf) - c.position - c.remaining
	if space <= 0 {
		return 0, nil
	}
	n, err := c.src.Read(c.buf[c.position+c.remaining : c.position+c.remaining+space])
	c.bytesRead += int64(n)
	c.remaining += n
	vv("refill: read %d bytes, remaining=%d, eof=%v", n, c.remaining, err == io.EOF)
	if n == 0 {
		c.eof = true
	}
	if err != nil {
		if err == io.EOF {
			c.eof = true
			return n, nil
		}
		return n, err
	}
	return n, nil
}

func (c *CDCChunker) classify(payload []byte) chunk.Chunk {
	if allzero.IsAllZero(payload) {
		return chunk.Chunk{Kind: chunk.KindAlloc, Size: int64(len(payload))}
	}
	return chunk.Chunk{Kind: chunk.KindData, Size: int64(len(payload)), Payload: payload}
}

func (it *cdcIterator) Next() (chunk.Chunk, error) {
	c := it.c
	if c.done {
		return chunk.Chunk{}, io.EOF
	}
	start := time.Now()
	defer func() { c.elapsed += time.Since(start) }()

	minNeed := c.minSize + c.w + 1

	// step 1: refill guard
	for c.remaining < minNeed && !c.eof {
		if _, err := c.refillOnce(); err != nil {
			return chunk.Chunk{}, err
		}
	}

	// step 2: short-tail case
	if c.remaining < minNeed {
		c.done = true
		c.doneCh.Close()
		if c.remaining > 0 {
			n := c.remaining
			payload := c.buf[c.last : c.last+n]
			c.position = c.last + n
			c.remaining = 0
			c.bytesYielded += int64(n)
			return c.classify(payload), nil
		}
		if c.bytesRead == c.bytesYielded {
			return chunk.Chunk{}, io.EOF
		}
		panic(&ConsistencyError{BytesRead: c.bytesRead, BytesYielded: c.bytesYielded})
	}

	// step 3: minimum-size skip
	c.position += c.minSize
	c.remaining -= c.minSize

	// step 4: initialize window
	sum := c.hasher.Sum(c.buf[c.position : c.position+c.w])

	// step 5: slide and test
	for c.remaining > c.w && sum&uint32(c.chkMask) != 0 {
		limit := c.position + c.remaining - c.w
		p := c.position
		cut := false
		for p < limit {
			sum = c.hasher.Update(sum, c.buf[p], c.buf[p+c.w], c.w)
			p++
			if sum&uint32(c.chkMask) == 0 {
				cut = true
				break
			}
		}
		c.remaining -= p - c.position
		c.position = p
		if c.remaining <= c.w && !c.eof {
			if _, err := c.refillOnce(); err != nil {
				return chunk.Chunk{}, err
			}
		}
		if cut {
			vv("cut found at position %d", c.position)
			break
		}
	}

	// step 6: absorb tail if the loop left us without a full window
	if c.remaining <= c.w {
		c.position += c.remaining
		c.remaining = 0
	}

	// step 7: emit
	n := c.position - c.last
	payload := c.buf[c.last:c.position]
	c.last = c.position
	c.bytesYielded += int64(n)

	return c.classify(payload), nil
}
