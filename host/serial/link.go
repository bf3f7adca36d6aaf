package serial

import (
	"errors"
	"io"
	"sync"

	"printcore/protocol"
)

// RxBufferSize is the receive FIFO capacity of a Link
const RxBufferSize = 256

// Link adapts a blocking Port to the non-blocking Receive the polled state
// machines expect. A reader goroutine moves incoming bytes into a FIFO;
// Receive drains it without waiting.
type Link struct {
	port Port

	mu      sync.Mutex
	rx      *protocol.FifoBuffer
	dropped int
	err     error

	done chan struct{}
}

// NewLink starts reading from port
func NewLink(port Port) *Link {
	l := &Link{
		port: port,
		rx:   protocol.NewFifoBuffer(RxBufferSize),
		done: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	defer close(l.done)
	buf := make([]byte, 64)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			l.mu.Lock()
			if w := l.rx.Write(buf[:n]); w < n {
				l.dropped += n - w
			}
			l.mu.Unlock()
		}
		if err != nil {
			if l.closing() {
				return
			}
			// tarm/serial reports a read timeout as EOF
			if errors.Is(err, io.EOF) {
				continue
			}
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			return
		}
	}
}

func (l *Link) closing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err != nil
}

// Receive copies pending bytes into p and returns how many it copied
func (l *Link) Receive(p []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rx.Read(p)
}

// Write sends p to the peer
func (l *Link) Write(p []byte) (int, error) {
	return l.port.Write(p)
}

// Dropped returns the number of bytes lost to a full FIFO
func (l *Link) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Err returns the error that stopped the reader, if any
func (l *Link) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if errors.Is(l.err, errClosed) {
		return nil
	}
	return l.err
}

var errClosed = errors.New("serial: link closed")

// Close closes the port and waits for the reader to stop
func (l *Link) Close() error {
	l.mu.Lock()
	if l.err == nil {
		l.err = errClosed
	}
	l.mu.Unlock()

	err := l.port.Close()
	<-l.done
	return err
}
