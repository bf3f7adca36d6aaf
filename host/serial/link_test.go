package serial

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// chanPort delivers chunks pushed by the test and reports EOF once closed
type chanPort struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []byte
	readErr error
}

func newChanPort() *chanPort {
	return &chanPort{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (p *chanPort) Read(b []byte) (int, error) {
	select {
	case data := <-p.in:
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

func (p *chanPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *chanPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *chanPort) Flush() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLinkReceive(t *testing.T) {
	port := newChanPort()
	link := NewLink(port)
	defer link.Close()

	buf := make([]byte, 16)
	if n := link.Receive(buf); n != 0 {
		t.Fatalf("Receive on idle link = %d", n)
	}

	port.in <- []byte("132")
	port.in <- []byte("ok\n")

	var got []byte
	waitFor(t, func() bool {
		n := link.Receive(buf)
		got = append(got, buf[:n]...)
		return len(got) == 6
	})
	if string(got) != "132ok\n" {
		t.Errorf("received %q", got)
	}
}

func TestLinkWrite(t *testing.T) {
	port := newChanPort()
	link := NewLink(port)
	defer link.Close()

	if _, err := link.Write([]byte("P0\n")); err != nil {
		t.Fatal(err)
	}
	port.mu.Lock()
	defer port.mu.Unlock()
	if string(port.written) != "P0\n" {
		t.Errorf("written %q", port.written)
	}
}

func TestLinkOverflow(t *testing.T) {
	port := newChanPort()
	link := NewLink(port)
	defer link.Close()

	big := make([]byte, 64)
	for i := 0; i < 5; i++ {
		port.in <- big
	}
	// The FIFO keeps one slot free
	waitFor(t, func() bool { return link.Dropped() == 5*64-(RxBufferSize-1) })
}

type failingPort struct {
	*chanPort
}

var errUnplugged = errors.New("device unplugged")

func (p failingPort) Read(b []byte) (int, error) {
	return 0, errUnplugged
}

func TestLinkReadError(t *testing.T) {
	link := NewLink(failingPort{newChanPort()})
	waitFor(t, func() bool { return link.Err() != nil })
	if !errors.Is(link.Err(), errUnplugged) {
		t.Errorf("Err = %v", link.Err())
	}
	link.Close()
}

func TestLinkClose(t *testing.T) {
	link := NewLink(newChanPort())
	if err := link.Close(); err != nil {
		t.Fatal(err)
	}
	if link.Err() != nil {
		t.Errorf("Err after Close = %v", link.Err())
	}
}
