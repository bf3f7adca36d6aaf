// Package protocol holds the byte-level helpers shared by the settings store
// and the serial peers: the record checksum, the receive FIFO and the
// line matcher used by line-oriented device protocols.
package protocol

// Version represents the printcore firmware version
const Version = "0.3.0"

// Line protocol constants
const (
	LineMax = 16 // Receive buffer size for short request/response peers

	CR = '\r'
	LF = '\n'
)
