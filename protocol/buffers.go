package protocol

// Receiver hands over already-received bytes without blocking.
// It returns the number of bytes copied into p (0 when nothing is pending).
type Receiver interface {
	Receive(p []byte) int
}

// FifoBuffer is a circular buffer for serial I/O
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}

// LineBuffer accumulates the reply to one request from a line-oriented peer.
// It holds at most LineMax-1 bytes; anything beyond that stays with the
// Receiver until the buffer is reset by the next request.
type LineBuffer struct {
	buf [LineMax - 1]byte
	n   int
}

// Fill drains r into the buffer. It reports true when the buffer overran.
func (l *LineBuffer) Fill(r Receiver) bool {
	for l.n < len(l.buf) {
		got := r.Receive(l.buf[l.n:])
		if got == 0 {
			return false
		}
		l.n += got
	}
	return true
}

// HasSuffix reports whether the received data ends with s. CR and LF are
// treated as the same terminator on both sides.
func (l *LineBuffer) HasSuffix(s string) bool {
	if l.n < len(s) {
		return false
	}
	data := l.buf[l.n-len(s) : l.n]
	for i := 0; i < len(s); i++ {
		want, got := s[i], data[i]
		if want == got || isTerminator(want) && isTerminator(got) {
			continue
		}
		return false
	}
	return true
}

// Number parses the unsigned decimal prefix of the received data, as in
// "132ok". ok is false when the data does not start with a digit.
func (l *LineBuffer) Number() (value int, ok bool) {
	for i := 0; i < l.n; i++ {
		c := l.buf[i]
		if c < '0' || c > '9' {
			break
		}
		value = value*10 + int(c-'0')
		ok = true
	}
	return value, ok
}

// Len returns the number of buffered bytes
func (l *LineBuffer) Len() int {
	return l.n
}

// String returns the buffered bytes
func (l *LineBuffer) String() string {
	return string(l.buf[:l.n])
}

// Reset clears the buffer
func (l *LineBuffer) Reset() {
	l.n = 0
}

func isTerminator(c byte) bool {
	return c == CR || c == LF
}
