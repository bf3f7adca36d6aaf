//go:build linux || darwin || freebsd

package medium

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// File is a memory-mapped file medium for host builds and simulators.
// Writes land in the shared mapping; Sync flushes it with msync.
type File struct {
	f    *os.File
	data []byte
}

// OpenFile maps path as a medium of the given capacity, creating or growing
// the file as needed. New bytes start in the erased state.
func OpenFile(path string, capacity int) (*File, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("file medium %s: invalid capacity %d", path, capacity)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open medium file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat medium file %s: %w", path, err)
	}
	oldSize := info.Size()
	if oldSize < int64(capacity) {
		if err := f.Truncate(int64(capacity)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size medium file %s: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map medium file %s: %w", path, err)
	}

	for i := oldSize; i < int64(capacity); i++ {
		data[i] = Erased
	}

	return &File{f: f, data: data}, nil
}

// ReadAt reads len(p) bytes at off
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, ErrClosed
	}
	if err := checkRange(off, len(p), len(m.data)); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

// WriteAt writes p at off
func (m *File) WriteAt(p []byte, off int64) (int, error) {
	if m.data == nil {
		return 0, ErrClosed
	}
	if err := checkRange(off, len(p), len(m.data)); err != nil {
		return 0, err
	}
	return copy(m.data[off:], p), nil
}

// Capacity returns the mapped size in bytes
func (m *File) Capacity() int {
	return len(m.data)
}

// Sync flushes the mapping to the file
func (m *File) Sync() error {
	if m.data == nil {
		return ErrClosed
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync %s: %w", m.f.Name(), err)
	}
	return nil
}

// WriteOnce returns false
func (m *File) WriteOnce() bool {
	return false
}

// Close unmaps and closes the file
func (m *File) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
