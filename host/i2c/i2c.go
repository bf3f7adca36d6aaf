// Package i2c opens Linux I2C buses through periph.io for the AT24
// settings medium.
package i2c

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var initOnce = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// Bus is a periph bus usable as a tinygo drivers.I2C
type Bus struct {
	bus i2c.Bus
	c   io.Closer
}

// Wrap adapts an open periph bus. The bus is closed with the Bus.
func Wrap(bus i2c.BusCloser) *Bus {
	return &Bus{bus: bus, c: bus}
}

// Open loads the host drivers and opens the named bus. An empty name
// selects the first bus found.
func Open(name string) (*Bus, error) {
	if err := initOnce(); err != nil {
		return nil, fmt.Errorf("i2c: host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("i2c: open bus %q: %w", name, err)
	}
	return Wrap(b), nil
}

// Tx writes w and then reads len(r) bytes from the device at addr
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.bus.Tx(addr, w, r)
}

// Close releases the bus
func (b *Bus) Close() error {
	return b.c.Close()
}

// Opener opens a bus for the settings medium. It has the shape of
// standalone.BusOpener.
func Opener(name string) (drivers.I2C, io.Closer, error) {
	b, err := Open(name)
	if err != nil {
		return nil, nil, err
	}
	return b, b, nil
}
