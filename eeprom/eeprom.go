// Package eeprom persists the printer settings record on a byte-addressable
// medium.
//
// The record starts at a fixed offset with a 6-byte version tag and a
// little-endian CRC-16 of everything after the header, followed by every
// registered block in registry order:
//
//	offset+0  versionTag[6]  5 significant characters, NUL padded
//	offset+6  crc uint16     CRC-16/XMODEM over the block bytes
//	offset+8  blocks...
//
// Leveling meshes live in separate slots at the top of the medium, each with
// its own CRC, so a mesh can be swapped without rewriting the record.
package eeprom

import (
	"fmt"

	"printcore/core"
	"printcore/medium"
)

// headerSize is the tag plus the checksum
const headerSize = 8

// invalidMarker is written over the tag before a store starts
var invalidMarker = [6]byte{'E', 'R', 'R', 'O', 'R', 0}

// Options configures the engine
type Options struct {
	// Version is the record tag; only the first 5 characters are compared
	Version string

	// Offset is the medium address of the header
	Offset int

	// AutoInit writes factory defaults back when a load fails
	AutoInit bool

	// Chitchat echoes progress lines for store and load
	Chitchat bool

	// ReservedTrailer is kept free at the top of the medium, above the
	// mesh slots
	ReservedTrailer int
}

// DefaultOptions returns the stock engine options
func DefaultOptions() Options {
	return Options{
		Version:         "PCV01",
		Offset:          100,
		AutoInit:        false,
		Chitchat:        true,
		ReservedTrailer: 129,
	}
}

// Mesh is the live leveling mesh kept in storage slots
type Mesh interface {
	// Values returns the live grid, row-major
	Values() []float32

	// StorageSlot returns the bound slot, or -1
	StorageSlot() int

	// Clear invalidates the live grid
	Clear()
}

// Engine stores, validates, loads and resets the settings record
type Engine struct {
	m       medium.Medium
	reg     *Registry
	opts    Options
	console *core.Console
	tag     [6]byte

	mesh     Mesh
	feedback func(ok bool)
}

// New creates an engine for reg on m. It fails when the record does not fit
// the medium.
func New(m medium.Medium, reg *Registry, opts Options, console *core.Console) (*Engine, error) {
	if len(opts.Version) == 0 || len(opts.Version) > 5 {
		return nil, fmt.Errorf("eeprom: version tag %q must have 1 to 5 characters", opts.Version)
	}
	if console == nil {
		console = core.NewConsole(nil)
	}

	e := &Engine{
		m:        m,
		reg:      reg,
		opts:     opts,
		console:  console,
		feedback: func(bool) {},
	}
	copy(e.tag[:], opts.Version)

	if end := opts.Offset + e.DataSize(); opts.Offset < 0 || end > m.Capacity() {
		return nil, fmt.Errorf("eeprom: record [%d, %d) does not fit medium of %d bytes", opts.Offset, end, m.Capacity())
	}
	return e, nil
}

// DataSize returns the record size including the header
func (e *Engine) DataSize() int {
	return headerSize + e.reg.Size()
}

// Version returns the firmware tag
func (e *Engine) Version() string {
	return e.opts.Version
}

// Medium returns the backing medium
func (e *Engine) Medium() medium.Medium {
	return e.m
}

// BindMesh attaches the live mesh stored in slots
func (e *Engine) BindMesh(mesh Mesh) {
	e.mesh = mesh
}

// SetFeedback installs the success/failure indicator called by Store and
// Validate
func (e *Engine) SetFeedback(fn func(ok bool)) {
	if fn == nil {
		fn = func(bool) {}
	}
	e.feedback = fn
}

// Reset loads factory defaults into every block and recomputes derived
// state. It does not touch the medium.
func (e *Engine) Reset() {
	e.reg.reset()
	if e.mesh != nil {
		e.mesh.Clear()
	}
	e.reg.postProcess()
	e.console.Echo("Factory Settings Loaded")
}

// PostProcess recomputes derived state from the live settings
func (e *Engine) PostProcess() {
	e.reg.postProcess()
}

func (e *Engine) echo(format string, args ...any) {
	if e.opts.Chitchat {
		e.console.Echo(format, args...)
	}
}

// storedTag renders a stored tag for messages; tags from another product
// show as "??"
func (e *Engine) storedTag(tag [6]byte) string {
	if tag[0] != e.tag[0] {
		return "??"
	}
	n := 0
	for n < 5 && tag[n] != 0 {
		n++
	}
	return string(tag[:n])
}
