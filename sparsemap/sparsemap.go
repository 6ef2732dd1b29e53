// Package sparsemap enumerates a seekable file into alternating
// data/hole regions using the filesystem's SEEK_DATA/SEEK_HOLE
// extension, the same mechanism the fixed chunker uses to skip
// reading allocation holes entirely.
package sparsemap

import (
	"errors"
	"io"
)

// ErrNoRegion is returned by SeekData/SeekHole when no such region
// exists past the requested offset — the filesystem's ENXIO, the
// signal that the rest of the file (from offset to EOF) is a single
// hole (for SeekData) or there are no more holes before EOF (for
// SeekHole).
var ErrNoRegion = errors.New("sparsemap: no such region past offset")

// Range is one contiguous region of a file: [Start, Start+Length),
// either entirely data or entirely hole.
type Range struct {
	Start  int64
	Length int64
	IsData bool
}

// Seeker is the minimal whole-file positioning a source must support.
type Seeker interface {
	Seek(offset int64, whence int) (int64, error)
}

// DataHoleSeeker additionally supports seeking to the next data or
// hole region at or after a given offset. *os.File implements this on
// Linux and Darwin via the OS-specific adapters in this package; on
// platforms without SEEK_DATA/SEEK_HOLE, sparse handling is
// unavailable and callers must fall back to treating the file as
// entirely data (see chunker.FixedChunker).
type DataHoleSeeker interface {
	Seeker
	SeekData(offset int64) (int64, error)
	SeekHole(offset int64) (int64, error)
}

// Enumerate maps src into an ordered, non-overlapping sequence of
// Ranges covering [curr, fileLen), where curr is src's seek position
// at the time of the call. src's position is restored to curr before
// Enumerate returns, on every exit path including error.
func Enumerate(src DataHoleSeeker) (ranges []Range, err error) {
	curr, err := src.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	defer func() {
		// restore regardless of how we got here; a restore failure
		// only matters if the original call otherwise succeeded.
		if _, serr := src.Seek(curr, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()

	fileLen, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err = src.Seek(curr, io.SeekStart); err != nil {
		return nil, err
	}

	offset := curr
	for offset < fileLen {
		dataBeg, serr := src.SeekData(offset)
		if serr != nil {
			if errors.Is(serr, ErrNoRegion) {
				// the rest of the file, from offset to EOF, is hole.
				if fileLen > offset {
					ranges = append(ranges, Range{Start: offset, Length: fileLen - offset, IsData: false})
				}
				return ranges, nil
			}
			return nil, serr
		}

		if dataBeg > offset {
			ranges = append(ranges, Range{Start: offset, Length: dataBeg - offset, IsData: false})
		}
		if dataBeg >= fileLen {
			return ranges, nil
		}

		holeBeg, herr := src.SeekHole(dataBeg)
		if herr != nil {
			if errors.Is(herr, ErrNoRegion) {
				ranges = append(ranges, Range{Start: dataBeg, Length: fileLen - dataBeg, IsData: true})
				return ranges, nil
			}
			return nil, herr
		}

		if holeBeg > dataBeg {
			ranges = append(ranges, Range{Start: dataBeg, Length: holeBeg - dataBeg, IsData: true})
		}
		offset = holeBeg
	}
	return ranges, nil
}
