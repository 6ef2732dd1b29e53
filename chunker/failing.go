package chunker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/glycerine/bkchunk/chunk"
)

// FailingConfig parameterizes the fault-injection chunker. Map is a
// string over the alphabet {R, E} (case-insensitive): R emits a real
// chunk, E fails the read with a simulated EIO.
type FailingConfig struct {
	BlockSize int    `zid:"0"`
	Map       string `zid:"1"`
}

// FailingChunker deterministically emits chunks or simulated I/O
// failures according to Map, for exercising a caller's error-recovery
// paths. It is never used against production data.
//
// Quirk, preserved deliberately: the read counter advances with every
// Next call that consults Map and is never reset, even across a fresh call to
// Chunkify on a new source. Whether this was intended to let a single
// FailingChunker script failures across several source files in one
// test run is not documented upstream; this module preserves the
// behavior rather than guessing at a fix.
type FailingChunker struct {
	cfg     FailingConfig
	elapsed time.Duration
	count   int
}

// NewFailingChunker rejects any Map character outside {r, R, e, E} at
// construction.
func NewFailingChunker(cfg FailingConfig) (*FailingChunker, error) {
	if cfg.BlockSize <= 0 {
		return nil, &ConfigError{Field: "BlockSize", Msg: "must be positive"}
	}
	if cfg.Map == "" {
		return nil, &ConfigError{Field: "Map", Msg: "must not be empty"}
	}
	for _, r := range cfg.Map {
		switch r {
		case 'R', 'r', 'E', 'e':
		default:
			return nil, &ConfigError{Field: "Map", Msg: fmt.Sprintf("unknown character %q, want R or E", r)}
		}
	}
	return &FailingChunker{cfg: cfg}, nil
}

func (c *FailingChunker) Elapsed() time.Duration { return c.elapsed }

func (c *FailingChunker) Chunkify(src Source) Iterator {
	return &failingIterator{c: c, src: src}
}

type failingIterator struct {
	c    *FailingChunker
	src  Source
	done bool
}

// ioError wraps syscall.EIO in an *fs.PathError shape so callers doing
// errors.Is(err, syscall.EIO) succeed exactly as against a real disk.
func ioError(op string) error {
	return &os.PathError{Op: op, Path: "failingchunker", Err: syscall.EIO}
}

func (it *failingIterator) Next() (chunk.Chunk, error) {
	if it.done {
		return chunk.Chunk{}, io.EOF
	}
	start := time.Now()
	defer func() { it.c.elapsed += time.Since(start) }()

	c := it.c
	idx := c.count
	if idx >= len(c.cfg.Map) {
		idx = len(c.cfg.Map) - 1
	}
	action := strings.ToUpper(string(c.cfg.Map[idx]))
	c.count++

	if action == "E" {
		vv("map[%d]=E, injecting EIO", idx)
		return chunk.Chunk{}, ioError("read")
	}

	buf := make([]byte, c.cfg.BlockSize)
	n, err := io.ReadFull(it.src, buf)
	if n == 0 {
		it.done = true
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return chunk.Chunk{}, err
		}
		return chunk.Chunk{}, io.EOF
	}
	if int64(n) < int64(c.cfg.BlockSize) {
		it.done = true
	}
	return chunk.Chunk{Kind: chunk.KindData, Size: int64(n), Payload: buf[:n]}, nil
}
