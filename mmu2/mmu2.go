// Package mmu2 drives a Prusa MMU2 filament changer over its line protocol.
//
// The Session is a polled state machine: every scheduler pass calls Poll,
// which reads whatever the peer has sent, advances at most one state and
// issues at most one request. There is never more than one request
// outstanding.
package mmu2

import (
	"errors"
	"fmt"

	"printcore/protocol"
)

// Protocol timing in ms
const (
	PollInterval   = 300
	PollTimeout    = 3000
	CommandTimeout = 60000
)

// Peer firmware requirements
const (
	MinBuild    = 126
	MinBuild12V = 132
)

const (
	// NoTool is the loaded tool when no filament is in the extruder
	NoTool = 99

	// Slots is the number of filament slots
	Slots = 5

	// QueueSize bounds the pending command queue
	QueueSize = 4

	// Baud is the default link speed
	Baud = 115200
)

var (
	// ErrPeerTimeout is reported when the peer never sent its banner
	ErrPeerTimeout = errors.New("mmu2: peer not responding")

	// ErrPeerIncompatible is reported when the peer build is too old
	ErrPeerIncompatible = errors.New("mmu2: incompatible peer firmware")

	// ErrNotEnabled is returned for commands before the handshake finished
	ErrNotEnabled = errors.New("mmu2: not enabled")

	// ErrQueueFull is returned when QueueSize commands are pending
	ErrQueueFull = errors.New("mmu2: command queue full")

	// ErrInvalidCommand is returned for unknown opcodes or slots
	ErrInvalidCommand = errors.New("mmu2: invalid command")
)

// State is the session state. Negative states belong to the handshake.
type State int8

const (
	StateAwaitStart       State = -1
	StateAwaitVersion     State = -2
	StateAwaitBuild       State = -3
	StateAwaitInitialPoll State = -4
	StateAwaitModeAck     State = -5
	StateDisabled         State = 0
	StateIdle             State = 1
	StateAwaitPoll        State = 2
	StateAwaitCommand     State = 3
)

func (s State) String() string {
	switch s {
	case StateAwaitStart:
		return "await-start"
	case StateAwaitVersion:
		return "await-version"
	case StateAwaitBuild:
		return "await-build"
	case StateAwaitInitialPoll:
		return "await-initial-poll"
	case StateAwaitModeAck:
		return "await-mode-ack"
	case StateDisabled:
		return "disabled"
	case StateIdle:
		return "idle"
	case StateAwaitPoll:
		return "await-poll"
	case StateAwaitCommand:
		return "await-command"
	}
	return fmt.Sprintf("state(%d)", int8(s))
}

// Opcode is one of the commands the peer accepts
type Opcode uint8

const (
	OpNone Opcode = iota
	OpToolChange
	OpLoad
	OpContinue
	OpUnload
	OpEject
	OpRecover
	OpFilamentType
)

// Command is an opcode with its slot index and, for OpFilamentType, the
// filament type
type Command struct {
	Op    Opcode
	Index uint8
	Arg   uint8
}

// Line returns the request as sent on the wire, without terminator.
// ok is false for commands outside the opcode set.
func (c Command) Line() (line string, ok bool) {
	switch c.Op {
	case OpToolChange:
		return fmt.Sprintf("T%d", c.Index), c.Index < Slots
	case OpLoad:
		return fmt.Sprintf("L%d", c.Index), c.Index < Slots
	case OpContinue:
		return "C0", true
	case OpUnload:
		return "U0", true
	case OpEject:
		return fmt.Sprintf("E%d", c.Index), c.Index < Slots
	case OpRecover:
		return "R0", true
	case OpFilamentType:
		return fmt.Sprintf("F%d %d", c.Index, c.Arg), c.Index < Slots
	}
	return "", false
}

// Policy returns what the host does while this command is stalled: park
// the head and let the hotend cool
func (c Command) Policy() (park, coolDown bool) {
	switch c.Op {
	case OpToolChange, OpFilamentType:
		return true, true
	case OpUnload:
		return false, true
	}
	return false, false
}

func (c Command) String() string {
	if line, ok := c.Line(); ok {
		return line
	}
	return fmt.Sprintf("op(%d)", c.Op)
}

// Link is the serial connection to the peer. Receive never blocks.
type Link interface {
	protocol.Receiver
	Write(p []byte) (int, error)
}

// Host is the printer side of the session
type Host interface {
	// Stall is called once when a command went unanswered twice
	Stall(park, coolDown bool)
	// Resume is called when the stalled command finally completed
	Resume(park, coolDown bool)
	// Kill halts the machine
	Kill(reason string)
	// FilamentRunout is called when FINDA lost the filament while armed
	FilamentRunout()
}

// Config holds the session options
type Config struct {
	Mode12V        bool
	StartupTimeout uint32 // ms, 0 waits forever
	Runout         bool   // arm FINDA runout detection after tool changes
}

func (c Config) minBuild() int {
	if c.Mode12V {
		return MinBuild12V
	}
	return MinBuild
}
