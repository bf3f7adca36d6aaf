// Package serial connects line-protocol peers such as the MMU2 to a host
// serial device.
package serial

import (
	"io"
)

// Port represents a serial port interface. Native ports come from Open;
// tests substitute in-memory ports.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the MMU2 link settings for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
	}
}
