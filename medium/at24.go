package medium

import (
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/at24cx"
)

// AT24Config describes an AT24Cxx EEPROM on an I2C bus
type AT24Config struct {
	// Address is the 7-bit bus address (0 = driver default 0x57)
	Address uint16

	// PageSize is the device write page in bytes (0 = 32)
	PageSize uint16

	// Capacity is the device size in bytes (0 = 4096, an AT24C32)
	Capacity int
}

// AT24 is an I2C EEPROM medium built on the tinygo at24cx driver
type AT24 struct {
	dev      at24cx.Device
	capacity int
}

// NewAT24 wraps an AT24Cxx device on bus. Any drivers.I2C works, including
// TinyGo machine buses and periph.io host buses.
func NewAT24(bus drivers.I2C, cfg AT24Config) (*AT24, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = 4096
	}
	if cfg.Capacity > 0x10000 {
		return nil, fmt.Errorf("at24: capacity %d exceeds 16-bit addressing", cfg.Capacity)
	}

	dev := at24cx.New(bus)
	if cfg.Address != 0 {
		dev.Address = cfg.Address
	}
	dev.Configure(at24cx.Config{
		PageSize:      cfg.PageSize,
		EndRAMAddress: uint16(min(cfg.Capacity, 0xFFFF)),
	})

	return &AT24{dev: dev, capacity: cfg.Capacity}, nil
}

// ReadAt reads len(p) bytes at off with one sequential read
func (a *AT24) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), a.capacity); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := a.dev.ReadAt(p, off)
	if err != nil {
		return 0, fmt.Errorf("at24: read %d bytes at %d: %w", len(p), off, err)
	}
	return n, nil
}

// WriteAt writes p at off; the driver splits it into page writes
func (a *AT24) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, len(p), a.capacity); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := a.dev.WriteAt(p, off)
	if err != nil {
		return 0, fmt.Errorf("at24: write %d bytes at %d: %w", len(p), off, err)
	}
	return n, nil
}

// Capacity returns the device size in bytes
func (a *AT24) Capacity() int {
	return a.capacity
}

// Sync is a no-op; page writes complete inside WriteAt
func (a *AT24) Sync() error {
	return nil
}

// WriteOnce returns false
func (a *AT24) WriteOnce() bool {
	return false
}
