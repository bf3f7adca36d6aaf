//go:build !(linux || darwin || freebsd)

package medium

import "errors"

// File is unavailable on this platform
type File struct {
	RAM
}

// OpenFile is not supported without mmap
func OpenFile(path string, capacity int) (*File, error) {
	return nil, errors.New("file medium: not supported on this platform")
}

// Close is a no-op
func (m *File) Close() error {
	return nil
}
