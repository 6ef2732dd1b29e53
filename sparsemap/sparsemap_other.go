//go:build !linux && !darwin

package sparsemap

import (
	"errors"
	"os"
)

// ErrUnsupported is returned by NewFileSeeker's SeekData/SeekHole on
// platforms without a SEEK_DATA/SEEK_HOLE equivalent wired up here.
// Callers (FixedChunker) treat this the same as any other sparse-seek
// failure: fall back to non-sparse mode.
var ErrUnsupported = errors.New("sparsemap: data/hole seeking not supported on this platform")

// FileSeeker on unsupported platforms implements DataHoleSeeker but
// every SeekData/SeekHole call fails with ErrUnsupported, so callers
// degrade to their non-sparse fallback rather than failing to build.
type FileSeeker struct {
	*os.File
}

func NewFileSeeker(f *os.File) *FileSeeker { return &FileSeeker{f} }

func (f *FileSeeker) SeekData(offset int64) (int64, error) { return 0, ErrUnsupported }
func (f *FileSeeker) SeekHole(offset int64) (int64, error) { return 0, ErrUnsupported }

func MinHoleSize(f *os.File) (int64, error) { return 0, ErrUnsupported }

func IsSparse(f *os.File) (bool, error) { return false, nil }
