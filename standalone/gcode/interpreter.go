package gcode

import (
	"errors"
	"fmt"
	"math"

	"printcore/core"
	"printcore/mmu2"
	"printcore/standalone/config"
	"printcore/standalone/kinematics"
	"printcore/standalone/planner"
)

// ErrUnknownCommand is returned for codes without a handler
var ErrUnknownCommand = errors.New("unknown command")

// Planner interface for motion planning
type Planner interface {
	QueueMove(move *planner.Move) error
	GetCurrentPosition() kinematics.Position
	SetPosition(pos kinematics.Position)
	ClearQueue()
}

// Machine is the settings and filament changer side of the printer
type Machine interface {
	TriggerStore() error
	TriggerLoad() error
	TriggerFactoryReset()
	PrintSettings()

	StoreMeshToSlot(slot int) error
	LoadMeshFromSlot(slot int) error

	EnqueueDeviceCommand(op mmu2.Opcode, index, arg int) error
	DeviceReady() bool
}

// HandlerFunc executes one command
type HandlerFunc func(cmd *Command) error

type handlerKey struct {
	typ    byte
	number int
}

// Interpreter executes G-code commands
type Interpreter struct {
	state    *MachineState
	config   *config.Machine
	planner  Planner
	machine  Machine
	console  *core.Console
	handlers map[handlerKey]HandlerFunc
}

// NewInterpreter creates an interpreter with the motion and settings codes
// registered. machine may be nil, which leaves the settings codes out.
func NewInterpreter(cfg *config.Machine, p Planner, machine Machine, console *core.Console) *Interpreter {
	if console == nil {
		console = core.NewConsole(nil)
	}
	interp := &Interpreter{
		state:    newMachineState(cfg.DefaultVelocity),
		config:   cfg,
		planner:  p,
		machine:  machine,
		console:  console,
		handlers: make(map[handlerKey]HandlerFunc),
	}
	interp.registerMotion()
	if machine != nil {
		interp.registerSettings()
	}
	return interp
}

// Register binds fn to a code, replacing any earlier handler
func (interp *Interpreter) Register(typ byte, number int, fn HandlerFunc) {
	interp.handlers[handlerKey{typ, number}] = fn
}

// Handler returns the handler bound to a code, or nil
func (interp *Interpreter) Handler(typ byte, number int) HandlerFunc {
	return interp.handlers[handlerKey{typ, number}]
}

// Execute executes a parsed G-code command
func (interp *Interpreter) Execute(cmd *Command) error {
	if cmd == nil || cmd.Type == 0 {
		return nil
	}

	fn, ok := interp.handlers[handlerKey{cmd.Type, cmd.Number}]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	return fn(cmd)
}

func (interp *Interpreter) registerMotion() {
	interp.Register('G', 0, interp.doMove)
	interp.Register('G', 1, interp.doMove)
	interp.Register('G', 28, interp.doHome)
	interp.Register('G', 90, func(*Command) error { interp.state.AbsoluteMode = true; return nil })
	interp.Register('G', 91, func(*Command) error { interp.state.AbsoluteMode = false; return nil })
	interp.Register('G', 92, interp.doSetPosition)

	interp.Register('M', 82, func(*Command) error { interp.state.ExtrudeMode = false; return nil })
	interp.Register('M', 83, func(*Command) error { interp.state.ExtrudeMode = true; return nil })

	interp.Register('M', 104, interp.setTarget("extruder"))
	interp.Register('M', 109, interp.setTarget("extruder"))
	interp.Register('M', 140, interp.setTarget("bed"))
	interp.Register('M', 190, interp.setTarget("bed"))

	// The parser tracks line numbers; M110 has nothing left to do
	interp.Register('M', 110, func(*Command) error { return nil })
	interp.Register('M', 114, func(*Command) error {
		pos := interp.planner.GetCurrentPosition()
		interp.console.Println(fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f E:%.2f", pos.X, pos.Y, pos.Z, pos.E))
		return nil
	})
}

func (interp *Interpreter) registerSettings() {
	m := interp.machine

	interp.Register('M', 500, func(*Command) error { return m.TriggerStore() })
	interp.Register('M', 501, func(*Command) error { return m.TriggerLoad() })
	interp.Register('M', 502, func(*Command) error {
		m.TriggerFactoryReset()
		return nil
	})
	interp.Register('M', 503, func(*Command) error {
		m.PrintSettings()
		return nil
	})

	// G29 S<slot> saves the active mesh, L<slot> loads one
	interp.Register('G', 29, func(cmd *Command) error {
		switch {
		case cmd.HasParameter('S'):
			return m.StoreMeshToSlot(cmd.Int('S', 0))
		case cmd.HasParameter('L'):
			return m.LoadMeshFromSlot(cmd.Int('L', 0))
		}
		return nil
	})

	// M403 E<slot> F<type> sets the filament type of a changer slot
	interp.Register('M', 403, func(cmd *Command) error {
		if !cmd.HasParameter('E') || !cmd.HasParameter('F') {
			return nil
		}
		return m.EnqueueDeviceCommand(mmu2.OpFilamentType, cmd.Int('E', 0), cmd.Int('F', 0))
	})

	// M702 unloads the filament back into the changer
	interp.Register('M', 702, func(*Command) error {
		return m.EnqueueDeviceCommand(mmu2.OpUnload, 0, 0)
	})
}

func (interp *Interpreter) setTarget(heater string) HandlerFunc {
	return func(cmd *Command) error {
		if cmd.HasParameter('S') {
			interp.state.TargetTemp[heater] = cmd.GetParameter('S', 0)
		}
		return nil
	}
}

// doMove executes a linear move (G0/G1)
func (interp *Interpreter) doMove(cmd *Command) error {
	current := interp.planner.GetCurrentPosition()
	target := current

	if cmd.HasParameter('F') {
		interp.state.FeedRate = cmd.GetParameter('F', 0) / 60.0 // mm/min to mm/s
	}

	for i, axis := range []byte{'X', 'Y', 'Z'} {
		if !cmd.HasParameter(axis) {
			continue
		}
		v := cmd.GetParameter(axis, 0)
		if !interp.state.AbsoluteMode {
			v += current.Axis(i)
		}
		target.SetAxis(i, v)
	}

	if cmd.HasParameter('E') {
		if interp.state.ExtrudeMode {
			target.E = current.E + cmd.GetParameter('E', 0)
		} else {
			target.E = cmd.GetParameter('E', current.E)
		}
	}

	dx := target.X - current.X
	dy := target.Y - current.Y
	dz := target.Z - current.Z
	de := target.E - current.E
	distance := math.Sqrt(dx*dx + dy*dy + dz*dz)

	if distance < 0.001 && math.Abs(de) < 0.001 {
		return nil
	}
	if distance < 0.001 {
		distance = math.Abs(de)
	}

	move := &planner.Move{
		Start:    current,
		End:      target,
		Velocity: interp.state.FeedRate,
		Accel:    interp.config.DefaultAccel,
		Distance: distance,
	}
	if err := interp.planner.QueueMove(move); err != nil {
		return err
	}
	interp.state.Position = target
	return nil
}

// doHome executes homing (G28). There are no endstops to seek; the homed
// axes are set to their minimum position.
func (interp *Interpreter) doHome(cmd *Command) error {
	all := !cmd.HasParameter('X') && !cmd.HasParameter('Y') && !cmd.HasParameter('Z')
	pos := interp.planner.GetCurrentPosition()

	for i, axis := range []byte{'X', 'Y', 'Z'} {
		if !all && !cmd.HasParameter(axis) {
			continue
		}
		interp.state.Homed[i] = true
		pos.SetAxis(i, interp.homePosition(axis))
	}

	interp.planner.SetPosition(pos)
	interp.state.Position = pos
	return nil
}

func (interp *Interpreter) homePosition(axis byte) float64 {
	name := string(axis + ('a' - 'A'))
	if ac, ok := interp.config.Axes[name]; ok {
		return ac.MinPosition
	}
	return 0
}

// doSetPosition sets the current position (G92)
func (interp *Interpreter) doSetPosition(cmd *Command) error {
	current := interp.planner.GetCurrentPosition()

	for i, axis := range []byte{'X', 'Y', 'Z', 'E'} {
		if cmd.HasParameter(axis) {
			current.SetAxis(i, cmd.GetParameter(axis, 0))
		}
	}

	interp.planner.SetPosition(current)
	interp.state.Position = current
	return nil
}

// GetState returns the current machine state
func (interp *Interpreter) GetState() *MachineState {
	return interp.state
}
