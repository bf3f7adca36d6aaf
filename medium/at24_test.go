package medium

import (
	"bytes"
	"errors"
	"testing"
)

// fakeAT24 answers I2C transactions the way an AT24C32 does: two address
// bytes followed by data for a write, two address bytes then a sequential
// read otherwise.
type fakeAT24 struct {
	addr     uint16
	pageSize int
	mem      []byte
	writes   int
	fail     bool
}

func newFakeAT24(capacity int) *fakeAT24 {
	mem := make([]byte, capacity)
	for i := range mem {
		mem[i] = Erased
	}
	return &fakeAT24{addr: 0x57, pageSize: 32, mem: mem}
}

func (f *fakeAT24) Tx(addr uint16, w, r []byte) error {
	if f.fail {
		return errors.New("i2c: nack")
	}
	if addr != f.addr {
		return errors.New("i2c: no device at address")
	}
	if len(w) < 2 {
		return errors.New("i2c: missing word address")
	}
	start := int(w[0])<<8 | int(w[1])

	if len(r) > 0 {
		for i := range r {
			r[i] = f.mem[(start+i)%len(f.mem)]
		}
		return nil
	}

	// Page writes roll over inside the page
	page := start - start%f.pageSize
	for i, b := range w[2:] {
		f.mem[page+(start-page+i)%f.pageSize] = b
	}
	f.writes++
	return nil
}

func TestAT24ReadWrite(t *testing.T) {
	bus := newFakeAT24(4096)
	eeprom, err := NewAT24(bus, AT24Config{})
	if err != nil {
		t.Fatalf("NewAT24 failed: %v", err)
	}

	if eeprom.Capacity() != 4096 {
		t.Errorf("Expected default capacity 4096, got %d", eeprom.Capacity())
	}

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i * 3)
	}

	// Crosses page boundaries at 64, 96, 128
	if _, err := eeprom.WriteAt(data, 50); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if bus.writes < 4 {
		t.Errorf("Expected the write to be split into page writes, got %d transactions", bus.writes)
	}
	if !bytes.Equal(bus.mem[50:150], data) {
		t.Error("Device memory does not match written data")
	}

	buf := make([]byte, 100)
	if _, err := eeprom.ReadAt(buf, 50); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if !bytes.Equal(buf, data) {
		t.Error("Read back data mismatch")
	}
}

func TestAT24Address(t *testing.T) {
	bus := newFakeAT24(4096)
	bus.addr = 0x50

	eeprom, _ := NewAT24(bus, AT24Config{Address: 0x50})
	if _, err := eeprom.WriteAt([]byte{1}, 0); err != nil {
		t.Errorf("Write to configured address failed: %v", err)
	}
}

func TestAT24Errors(t *testing.T) {
	bus := newFakeAT24(4096)
	eeprom, _ := NewAT24(bus, AT24Config{})

	if _, err := eeprom.WriteAt([]byte{1, 2}, 4095); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange, got %v", err)
	}

	bus.fail = true
	if _, err := eeprom.WriteAt([]byte{1}, 0); err == nil {
		t.Error("Expected bus error to propagate")
	}
	if _, err := eeprom.ReadAt(make([]byte, 1), 0); err == nil {
		t.Error("Expected bus error on read")
	}

	if _, err := NewAT24(bus, AT24Config{Capacity: 0x20000}); err == nil {
		t.Error("Expected error for capacity beyond 16-bit addressing")
	}
}
