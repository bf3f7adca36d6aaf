package mmu2

import (
	"fmt"

	"printcore/core"
	"printcore/protocol"
)

// Session is one connection to the peer
type Session struct {
	cfg     Config
	link    Link
	host    Host
	console *core.Console

	state   State
	enabled bool
	ready   bool
	err     error

	version int
	build   int
	finda   int

	queue []Command
	last  Command

	retried bool // last command already re-sent once
	stalled bool // host is parked waiting for the peer
	holding bool // stalled and the peer has not answered a poll yet

	tool        int
	pendingTool int
	runoutArmed bool

	rx          protocol.LineBuffer
	started     uint32
	lastRequest uint32
	nextPoll    uint32

	onComplete func(Command)
}

// New creates a disabled session. Call Start to begin the handshake.
func New(link Link, host Host, cfg Config, console *core.Console) *Session {
	if console == nil {
		console = core.NewConsole(nil)
	}
	return &Session{
		cfg:         cfg,
		link:        link,
		host:        host,
		console:     console,
		version:     -1,
		build:       -1,
		finda:       1,
		tool:        NoTool,
		pendingTool: NoTool,
		queue:       make([]Command, 0, QueueSize),
	}
}

// OnComplete sets a function called with every command the peer
// acknowledged
func (s *Session) OnComplete(fn func(Command)) {
	s.onComplete = fn
}

// Start soft-resets the peer and waits for its banner
func (s *Session) Start(now uint32) {
	s.runoutArmed = false
	s.enabled = false
	s.ready = false
	s.err = nil
	s.tool = NoTool
	s.clearQueue()
	s.started = now
	s.send(now, "X0")
	s.state = StateAwaitStart
}

// Stop disables the session and drops pending commands
func (s *Session) Stop() {
	s.state = StateDisabled
	s.enabled = false
	s.ready = false
	s.clearQueue()
}

// clearQueue drops pending commands along with any retry or stall in
// progress for them
func (s *Session) clearQueue() {
	s.queue = s.queue[:0]
	s.last = Command{}
	s.retried = false
	s.stalled = false
	s.holding = false
}

// Poll advances the state machine
func (s *Session) Poll(now uint32) {
	switch s.state {
	case StateDisabled:

	case StateAwaitStart:
		if s.receive("start\n") {
			s.nextPoll = now
			s.console.Debug("MMU => 'start'")
			s.send(now, "S1")
			s.state = StateAwaitVersion
		} else if s.cfg.StartupTimeout > 0 && core.Elapsed(now, s.started, s.cfg.StartupTimeout) {
			s.console.Echo("MMU not responding - DISABLED")
			s.err = ErrPeerTimeout
			s.state = StateDisabled
		}

	case StateAwaitVersion:
		if s.receiveOK(now) {
			s.version, _ = s.rx.Number()
			s.console.Debug("MMU => %d", s.version)
			s.send(now, "S2")
			s.state = StateAwaitBuild
		}

	case StateAwaitBuild:
		if s.receiveOK(now) {
			s.build, _ = s.rx.Number()
			s.console.Debug("MMU => %d", s.build)
			if !s.checkBuild() {
				return
			}
			if s.cfg.Mode12V {
				s.send(now, "M1")
				s.state = StateAwaitModeAck
			} else {
				s.send(now, "P0")
				s.state = StateAwaitInitialPoll
			}
		}

	case StateAwaitModeAck:
		if s.receiveOK(now) {
			s.send(now, "P0")
			s.state = StateAwaitInitialPoll
		}

	case StateAwaitInitialPoll:
		if s.receiveOK(now) {
			s.finda, _ = s.rx.Number()
			s.enabled = true
			s.ready = len(s.queue) == 0
			s.state = StateIdle
			s.console.Echo("MMU - ENABLED")
		}

	case StateIdle:
		if len(s.queue) > 0 && !s.holding {
			s.dispatch(now)
		} else if core.Expired(&s.nextPoll, now, PollInterval) {
			s.send(now, "P0")
			s.state = StateAwaitPoll
		}

	case StateAwaitPoll:
		if s.receiveOK(now) {
			s.pollReply()
		} else if core.Elapsed(now, s.lastRequest, PollTimeout) {
			s.state = StateIdle
		}

	case StateAwaitCommand:
		if s.receiveOK(now) {
			s.commandReply()
		} else if core.Elapsed(now, s.lastRequest, CommandTimeout) {
			s.commandTimeout()
		}
	}
}

func (s *Session) checkBuild() bool {
	need := s.cfg.minBuild()
	if s.build >= need {
		return true
	}
	s.console.Error("MMU2 firmware version invalid. Required version >= %d", need)
	s.err = fmt.Errorf("%w: build %d, need %d", ErrPeerIncompatible, s.build, need)
	s.state = StateDisabled
	if s.host != nil {
		s.host.Kill("MMU2 firmware version invalid")
	}
	return false
}

func (s *Session) dispatch(now uint32) {
	cmd := s.queue[0]
	s.queue = s.queue[1:]

	line, ok := cmd.Line()
	if !ok {
		s.console.Error("MMU dropped invalid command %v", cmd)
		s.ready = len(s.queue) == 0
		return
	}
	s.console.Debug("MMU <= '%s'", line)
	s.send(now, line)
	s.last = cmd
	s.state = StateAwaitCommand
}

func (s *Session) pollReply() {
	s.finda, _ = s.rx.Number()
	s.state = StateIdle

	if s.holding {
		s.holding = false
		s.queue = append([]Command{s.last}, s.queue...)
		s.console.Echo("MMU starts responding")
		return
	}

	if len(s.queue) == 0 && !s.stalled {
		s.ready = true
	}
	if s.finda == 0 && s.runoutArmed {
		s.runoutArmed = false
		if s.host != nil {
			s.host.FilamentRunout()
		}
	}
}

func (s *Session) commandReply() {
	cmd := s.last
	s.console.Debug("MMU => 'ok'")
	s.state = StateIdle
	s.last = Command{}
	s.retried = false

	switch cmd.Op {
	case OpToolChange:
		s.pendingTool = int(cmd.Index)
	case OpContinue:
		if s.pendingTool != NoTool {
			s.tool = s.pendingTool
			s.pendingTool = NoTool
			s.runoutArmed = s.cfg.Runout
			s.console.Echo("Active Extruder: %d", s.tool)
		}
	case OpUnload, OpEject:
		s.tool = NoTool
		s.runoutArmed = false
	}

	if s.stalled {
		s.stalled = false
		if s.host != nil {
			s.host.Resume(cmd.Policy())
		}
	}
	if len(s.queue) == 0 {
		s.ready = true
	}
	if s.onComplete != nil {
		s.onComplete(cmd)
	}
}

// commandTimeout re-sends the command once, then stalls
func (s *Session) commandTimeout() {
	s.state = StateIdle
	if !s.retried {
		s.retried = true
		s.console.Debug("MMU retry")
		s.queue = append([]Command{s.last}, s.queue...)
		return
	}

	s.retried = false
	s.ready = false
	s.holding = true
	if s.stalled {
		return
	}
	s.stalled = true
	s.console.Echo("MMU not responding")
	if s.host != nil {
		s.host.Stall(s.last.Policy())
	}
}

// send clears any stale input and writes one request line
func (s *Session) send(now uint32, line string) {
	s.drain()
	s.rx.Reset()
	if _, err := s.link.Write([]byte(line + "\n")); err != nil {
		s.console.Error("MMU write failed: %v", err)
	}
	s.lastRequest = now
}

func (s *Session) drain() {
	var scratch [protocol.LineMax]byte
	for s.link.Receive(scratch[:]) > 0 {
	}
}

func (s *Session) receive(suffix string) bool {
	if s.rx.Fill(s.link) {
		s.console.Debug("MMU rx overrun: %q", s.rx.String())
	}
	return s.rx.HasSuffix(suffix)
}

func (s *Session) receiveOK(now uint32) bool {
	if s.receive("ok\n") {
		s.nextPoll = now
		return true
	}
	return false
}

// Enqueue queues a command for dispatch from the idle state
func (s *Session) Enqueue(cmd Command) error {
	if !s.enabled {
		return ErrNotEnabled
	}
	if _, ok := cmd.Line(); !ok {
		return fmt.Errorf("%w: %v", ErrInvalidCommand, cmd)
	}
	if len(s.queue) >= QueueSize {
		return ErrQueueFull
	}
	s.queue = append(s.queue, cmd)
	s.ready = false
	return nil
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Enabled reports whether the handshake completed
func (s *Session) Enabled() bool {
	return s.enabled
}

// Ready reports whether the last command completed and nothing is queued
func (s *Session) Ready() bool {
	return s.ready
}

// Stalled reports whether the host is parked waiting for the peer
func (s *Session) Stalled() bool {
	return s.stalled
}

// Err returns why the session disabled itself, if it did
func (s *Session) Err() error {
	return s.err
}

// Version returns the peer firmware version, or -1
func (s *Session) Version() int {
	return s.version
}

// Build returns the peer firmware build, or -1
func (s *Session) Build() int {
	return s.build
}

// Finda returns the last filament sensor value
func (s *Session) Finda() int {
	return s.finda
}

// Tool returns the loaded slot, or NoTool
func (s *Session) Tool() int {
	return s.tool
}

// Pending returns the number of queued commands
func (s *Session) Pending() int {
	return len(s.queue)
}
