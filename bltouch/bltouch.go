// Package bltouch drives a BLTouch probe. Commands are servo angles; each
// one needs a settle delay before the next, and sequences wait for it by
// running scheduler passes.
package bltouch

import (
	"errors"
	"fmt"

	"printcore/core"
)

// Command is a servo angle understood by the probe
type Command uint8

const (
	CmdDeploy    Command = 10
	CmdModeSW    Command = 60
	CmdStow      Command = 90
	CmdSelfTest  Command = 120
	CmdModeStore Command = 130
	CmdMode5V    Command = 140
	CmdModeOD    Command = 150
	CmdReset     Command = 160
)

// Settle delays in ms
const (
	DeployDelay  = 750
	StowDelay    = 750
	CommandDelay = 500
)

var (
	// ErrBusy is returned when a command is sent during another's delay
	ErrBusy = errors.New("bltouch: command in progress")

	// ErrAlarm is returned when the probe stays triggered after a deploy
	// or stow, which is its alarm signal
	ErrAlarm = errors.New("bltouch: alarm")
)

func (c Command) String() string {
	switch c {
	case CmdDeploy:
		return "deploy"
	case CmdModeSW:
		return "mode_sw"
	case CmdStow:
		return "stow"
	case CmdSelfTest:
		return "selftest"
	case CmdModeStore:
		return "mode_store"
	case CmdMode5V:
		return "mode_5v"
	case CmdModeOD:
		return "mode_od"
	case CmdReset:
		return "reset"
	}
	return fmt.Sprintf("angle_%d", uint8(c))
}

// Servo positions the probe's control servo
type Servo interface {
	SetAngle(angle int) error
}

// Sensor reads the probe's trigger output
type Sensor interface {
	Triggered() bool
}

// Probe is one BLTouch. LastMode is persisted: false for open drain,
// true for 5V output.
type Probe struct {
	LastMode bool

	servo  Servo
	sensor Sensor
	sched  *core.Scheduler
	timer  core.Timer
	busy   bool
	last   Command
}

// New creates a probe. A nil sensor reads as never triggered.
func New(sched *core.Scheduler, servo Servo, sensor Sensor) *Probe {
	p := &Probe{servo: servo, sensor: sensor, sched: sched}
	p.timer.Handler = func(*core.Timer) uint8 {
		p.busy = false
		return core.SF_DONE
	}
	return p
}

// Reset loads the factory mode
func (p *Probe) Reset() {
	p.LastMode = false
}

// Busy reports whether a command is still settling
func (p *Probe) Busy() bool {
	return p.busy
}

// Last returns the last command sent
func (p *Probe) Last() Command {
	return p.last
}

// Send writes cmd and starts its settle delay. It does not wait.
func (p *Probe) Send(cmd Command, delay uint32) error {
	if p.busy {
		return ErrBusy
	}
	if err := p.servo.SetAngle(int(cmd)); err != nil {
		return fmt.Errorf("bltouch %s: %w", cmd, err)
	}
	p.last = cmd
	p.busy = true
	p.timer.WakeTime = p.sched.Now() + delay
	p.sched.ScheduleTimer(&p.timer)
	return nil
}

// command sends cmd and waits out its delay
func (p *Probe) command(cmd Command, delay uint32) error {
	if err := p.Send(cmd, delay); err != nil {
		return err
	}
	p.sched.WaitFor(func() bool { return !p.busy }, 0)
	return nil
}

func (p *Probe) triggered() bool {
	return p.sensor != nil && p.sensor.Triggered()
}

// clear resets a pending alarm and stows the pin
func (p *Probe) clear() error {
	if err := p.command(CmdReset, CommandDelay); err != nil {
		return err
	}
	return p.command(CmdStow, StowDelay)
}

// Init clears any alarm. With setVoltage it also reprograms the stored
// output mode.
func (p *Probe) Init(setVoltage bool) error {
	if err := p.clear(); err != nil {
		return err
	}
	if setVoltage {
		return p.ModeConv(p.LastMode)
	}
	return nil
}

// Deploy lowers the pin. A probe that reads triggered afterwards is in
// alarm; it gets one clear and retry.
func (p *Probe) Deploy() error {
	if err := p.command(CmdDeploy, DeployDelay); err != nil {
		return err
	}
	if !p.triggered() {
		return nil
	}
	if err := p.clear(); err != nil {
		return err
	}
	if err := p.command(CmdDeploy, DeployDelay); err != nil {
		return err
	}
	if p.triggered() {
		return fmt.Errorf("%w: deploy failed", ErrAlarm)
	}
	return nil
}

// Stow raises the pin, with the same single retry as Deploy
func (p *Probe) Stow() error {
	if err := p.command(CmdStow, StowDelay); err != nil {
		return err
	}
	if !p.triggered() {
		return nil
	}
	if err := p.clear(); err != nil {
		return err
	}
	if p.triggered() {
		return fmt.Errorf("%w: stow failed", ErrAlarm)
	}
	return nil
}

// SelfTest starts the probe's built-in test cycle
func (p *Probe) SelfTest() error {
	return p.command(CmdSelfTest, CommandDelay)
}

// ResetAlarm sends the reset command only
func (p *Probe) ResetAlarm() error {
	return p.command(CmdReset, CommandDelay)
}

// ModeSW switches the probe into switch mode
func (p *Probe) ModeSW() error {
	return p.command(CmdModeSW, CommandDelay)
}

// ResetModeSW leaves switch mode by moving the pin to its other position
func (p *Probe) ResetModeSW() error {
	if p.triggered() {
		return p.command(CmdStow, StowDelay)
	}
	return p.command(CmdDeploy, DeployDelay)
}

// Mode5V selects 5V output until the next power cycle
func (p *Probe) Mode5V() error {
	return p.command(CmdMode5V, CommandDelay)
}

// ModeOD selects open-drain output until the next power cycle
func (p *Probe) ModeOD() error {
	return p.command(CmdModeOD, CommandDelay)
}

// ModeStore makes the selected output mode permanent
func (p *Probe) ModeStore() error {
	return p.command(CmdModeStore, CommandDelay)
}

// ModeConv permanently programs 5V (true) or open-drain (false) output
// and remembers the choice
func (p *Probe) ModeConv(v5 bool) error {
	steps := []struct {
		cmd   Command
		delay uint32
	}{
		{CmdDeploy, DeployDelay},
		{CmdModeSW, CommandDelay},
		{CmdModeStore, CommandDelay},
		{CmdModeOD, CommandDelay},
		{CmdStow, StowDelay},
	}
	if v5 {
		steps[3].cmd = CmdMode5V
	}
	for _, s := range steps {
		if err := p.command(s.cmd, s.delay); err != nil {
			return err
		}
	}
	p.LastMode = v5
	return nil
}
