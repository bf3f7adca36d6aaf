package medium

// RAM is a battery-backed SRAM style medium: byte-rewritable, no commit step
type RAM struct {
	data []byte
}

// NewRAM creates a RAM medium of the given capacity in the erased state
func NewRAM(capacity int) *RAM {
	data := make([]byte, capacity)
	for i := range data {
		data[i] = Erased
	}
	return &RAM{data: data}
}

// NewRAMFrom creates a RAM medium holding a copy of image
func NewRAMFrom(image []byte) *RAM {
	data := make([]byte, len(image))
	copy(data, image)
	return &RAM{data: data}
}

// ReadAt reads len(p) bytes at off
func (r *RAM) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), len(r.data)); err != nil {
		return 0, err
	}
	return copy(p, r.data[off:]), nil
}

// WriteAt writes p at off
func (r *RAM) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), len(r.data)); err != nil {
		return 0, err
	}
	return copy(r.data[off:], p), nil
}

// Capacity returns the size in bytes
func (r *RAM) Capacity() int {
	return len(r.data)
}

// Sync is a no-op; writes land immediately
func (r *RAM) Sync() error {
	return nil
}

// WriteOnce returns false
func (r *RAM) WriteOnce() bool {
	return false
}

// Bytes exposes the backing array
func (r *RAM) Bytes() []byte {
	return r.data
}
