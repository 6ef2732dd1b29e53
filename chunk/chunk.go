// Package chunk defines the metadata envelope produced by every
// chunker variant: a kind tag, a logical size, and an optional
// payload.
package chunk

import (
	"io"

	"github.com/glycerine/bkchunk/allzero"
)

// Kind distinguishes a chunk carrying real bytes from one standing in
// for an all-zero or sparse-hole region.
type Kind int

const (
	// KindData chunks carry a non-zero payload of length Size.
	KindData Kind = iota
	// KindAlloc chunks are a data range the all-zero classifier
	// proved is entirely zero; Payload is omitted.
	KindAlloc
	// KindHole chunks are a region inside a filesystem sparse hole;
	// Payload is omitted.
	KindHole
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindAlloc:
		return "ALLOC"
	case KindHole:
		return "HOLE"
	default:
		return "UNKNOWN"
	}
}

// Chunk is an immutable value produced by a chunker. Payload is
// present iff Kind == KindData; for KindAlloc and KindHole it is nil
// and Size alone records how many logical bytes the chunk represents.
//
// For the content-defined chunker, Payload is a borrowed view into
// the chunker's internal buffer: it is valid only until the next
// Next() call on the same iterator. Callers that must retain it past
// that point must copy it.
type Chunk struct {
	Kind    Kind   `zid:"0"`
	Size    int64  `zid:"1"`
	Payload []byte `zid:"2"`
}

// Reader returns an io.Reader over the chunk's logical content. For
// KindData it reads Payload directly. For KindAlloc and KindHole it
// reads Size zero bytes from the process-wide zero buffer, looping if
// Size exceeds the buffer's length, so a caller reconstructing the
// original stream never has to special-case the no-payload kinds.
func (c Chunk) Reader() io.Reader {
	if c.Kind == KindData {
		return bytesReader(c.Payload)
	}
	return &zeroReader{remaining: c.Size}
}

func bytesReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b []byte
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

// zeroReader yields `remaining` zero bytes drawn from allzero.Zero,
// looping over the buffer as needed.
type zeroReader struct {
	remaining int64
}

func (r *zeroReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	n := int64(len(p))
	if n > r.remaining {
		n = r.remaining
	}
	if n > int64(len(allzero.Zero)) {
		n = int64(len(allzero.Zero))
	}
	copy(p, allzero.Zero[:n])
	r.remaining -= n
	return int(n), nil
}
