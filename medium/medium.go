// Package medium provides the byte-addressable persistent stores that hold
// the settings record: battery-backed RAM, page-erased flash, AT24 I2C
// EEPROMs and a memory-mapped file for host builds.
package medium

import (
	"errors"
	"fmt"
	"io"
)

// Erased is the value of a byte that was never programmed
const Erased = 0xFF

var (
	// ErrOutOfRange is returned for accesses beyond the medium capacity
	ErrOutOfRange = errors.New("medium: access out of range")

	// ErrClosed is returned once the medium has been closed
	ErrClosed = errors.New("medium: closed")
)

// Medium is a byte-addressable persistent store
type Medium interface {
	io.ReaderAt
	io.WriterAt

	// Capacity returns the number of addressable bytes
	Capacity() int

	// Sync commits buffered writes to the backing store
	Sync() error

	// WriteOnce reports that the medium cannot rewrite a byte without
	// erasing the page holding it
	WriteOnce() bool
}

// checkRange validates an access of n bytes at off against capacity
func checkRange(off int64, n int, capacity int) error {
	if off < 0 || off+int64(n) > int64(capacity) {
		return fmt.Errorf("%w: %d bytes at %d (capacity %d)", ErrOutOfRange, n, off, capacity)
	}
	return nil
}
