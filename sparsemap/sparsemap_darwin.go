//go:build darwin

package sparsemap

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// FileSeeker adapts an *os.File to DataHoleSeeker using Darwin's
// SEEK_DATA/SEEK_HOLE lseek(2) whence values (same numeric values as
// Linux, but a separate build-tagged file keeps the platform-specific
// error mapping explicit rather than relying on that coincidence).
type FileSeeker struct {
	*os.File
}

func NewFileSeeker(f *os.File) *FileSeeker { return &FileSeeker{f} }

func (f *FileSeeker) SeekData(offset int64) (int64, error) {
	return seekWhence(f.File, offset, unix.SEEK_DATA)
}

func (f *FileSeeker) SeekHole(offset int64) (int64, error) {
	return seekWhence(f.File, offset, unix.SEEK_HOLE)
}

func seekWhence(f *os.File, offset int64, whence int) (int64, error) {
	pos, err := unix.Seek(int(f.Fd()), offset, whence)
	if err != nil {
		if err == syscall.ENXIO {
			return 0, ErrNoRegion
		}
		return 0, &os.PathError{Op: "seek", Path: f.Name(), Err: err}
	}
	return pos, nil
}

// MinHoleSize returns the filesystem's preferred minimum hole size.
// Darwin exposes this via fpathconf(_PC_MIN_HOLE_SIZE); this module
// reports the stat block size as a portable approximation instead of
// binding to that syscall directly.
func MinHoleSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, nil
	}
	return int64(st.Blksize), nil
}

// IsSparse reports whether f has at least one allocation hole before
// its logical end. It does not modify f's seek position.
func IsSparse(f *os.File) (bool, error) {
	fi, err := f.Stat()
	if err != nil {
		return false, err
	}
	size := fi.Size()
	if size == 0 {
		return false, nil
	}

	curr, err := f.Seek(0, 1)
	if err != nil {
		return false, err
	}
	defer f.Seek(curr, 0)

	holeBeg, err := seekWhence(f, 0, unix.SEEK_HOLE)
	if err != nil {
		if err == ErrNoRegion {
			return false, nil
		}
		return false, err
	}
	return holeBeg < size, nil
}
