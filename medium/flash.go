package medium

import "fmt"

// Flash emulates a page-erased flash region behind a RAM page buffer.
// Writes only touch the buffer; Sync erases every changed page and programs
// it from the buffer. Until Sync, the programmed pages keep the previous
// contents, so an interrupted store leaves the old record intact.
type Flash struct {
	pages    []byte
	shadow   []byte
	pageSize int
	dirty    []bool
	erases   int
}

// NewFlash creates an erased flash region. capacity must be a multiple of
// pageSize.
func NewFlash(capacity, pageSize int) (*Flash, error) {
	image := make([]byte, capacity)
	for i := range image {
		image[i] = Erased
	}
	return NewFlashFrom(image, pageSize)
}

// NewFlashFrom creates a flash region holding a copy of image
func NewFlashFrom(image []byte, pageSize int) (*Flash, error) {
	if pageSize <= 0 || len(image)%pageSize != 0 {
		return nil, fmt.Errorf("flash capacity %d is not a multiple of page size %d", len(image), pageSize)
	}
	f := &Flash{
		pages:    make([]byte, len(image)),
		shadow:   make([]byte, len(image)),
		pageSize: pageSize,
		dirty:    make([]bool, len(image)/pageSize),
	}
	copy(f.pages, image)
	copy(f.shadow, image)
	return f, nil
}

// ReadAt reads from the page buffer
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), len(f.shadow)); err != nil {
		return 0, err
	}
	return copy(p, f.shadow[off:]), nil
}

// WriteAt updates the page buffer and marks changed pages for the next Sync
func (f *Flash) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), len(f.shadow)); err != nil {
		return 0, err
	}
	for i, b := range p {
		addr := int(off) + i
		if f.shadow[addr] != b {
			f.shadow[addr] = b
			f.dirty[addr/f.pageSize] = true
		}
	}
	return len(p), nil
}

// Sync erases and reprograms every dirty page
func (f *Flash) Sync() error {
	for page, dirty := range f.dirty {
		if !dirty {
			continue
		}
		start := page * f.pageSize
		end := start + f.pageSize
		for i := start; i < end; i++ {
			f.pages[i] = Erased
		}
		f.erases++
		// Programming can only clear bits
		for i := start; i < end; i++ {
			f.pages[i] &= f.shadow[i]
		}
		f.dirty[page] = false
	}
	return nil
}

// Capacity returns the size in bytes
func (f *Flash) Capacity() int {
	return len(f.shadow)
}

// WriteOnce returns true: bytes cannot be rewritten in place
func (f *Flash) WriteOnce() bool {
	return true
}

// PageSize returns the erase unit in bytes
func (f *Flash) PageSize() int {
	return f.pageSize
}

// Erases returns the number of page erase cycles so far
func (f *Flash) Erases() int {
	return f.erases
}

// Image returns a copy of the programmed pages, i.e. what survives a reset
func (f *Flash) Image() []byte {
	image := make([]byte, len(f.pages))
	copy(image, f.pages)
	return image
}
