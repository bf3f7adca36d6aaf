package gcode

import (
	"errors"
	"math"
	"testing"

	"printcore/core"
	"printcore/mmu2"
	"printcore/standalone/config"
	"printcore/standalone/kinematics"
	"printcore/standalone/planner"
)

type fakePlanner struct {
	pos   kinematics.Position
	moves []*planner.Move
}

func (p *fakePlanner) QueueMove(move *planner.Move) error {
	p.moves = append(p.moves, move)
	p.pos = move.End
	return nil
}

func (p *fakePlanner) GetCurrentPosition() kinematics.Position { return p.pos }
func (p *fakePlanner) SetPosition(pos kinematics.Position)     { p.pos = pos }
func (p *fakePlanner) ClearQueue()                             { p.moves = nil }

type deviceCall struct {
	op         mmu2.Opcode
	index, arg int
}

type fakeMachine struct {
	stores, loads, resets, reports int
	storedSlot, loadedSlot         int
	device                         []deviceCall
	storeErr                       error
}

func (m *fakeMachine) TriggerStore() error             { m.stores++; return m.storeErr }
func (m *fakeMachine) TriggerLoad() error              { m.loads++; return nil }
func (m *fakeMachine) TriggerFactoryReset()            { m.resets++ }
func (m *fakeMachine) PrintSettings()                  { m.reports++ }
func (m *fakeMachine) StoreMeshToSlot(slot int) error  { m.storedSlot = slot; return nil }
func (m *fakeMachine) LoadMeshFromSlot(slot int) error { m.loadedSlot = slot; return nil }
func (m *fakeMachine) DeviceReady() bool               { return len(m.device) == 0 }
func (m *fakeMachine) EnqueueDeviceCommand(op mmu2.Opcode, index, arg int) error {
	m.device = append(m.device, deviceCall{op, index, arg})
	return nil
}

func newTestInterpreter(t *testing.T) (*Interpreter, *fakePlanner, *fakeMachine, *[]string) {
	t.Helper()
	var lines []string
	console := core.NewConsole(func(s string) { lines = append(lines, s) })
	p := &fakePlanner{}
	m := &fakeMachine{storedSlot: -1, loadedSlot: -1}
	return NewInterpreter(config.DefaultConfig(), p, m, console), p, m, &lines
}

func run(t *testing.T, interp *Interpreter, lines ...string) {
	t.Helper()
	parser := NewParser()
	for _, line := range lines {
		cmd, err := parser.ParseLine(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if err := interp.Execute(cmd); err != nil {
			t.Fatalf("execute %q: %v", line, err)
		}
	}
}

func TestMoveAbsoluteAndRelative(t *testing.T) {
	interp, p, _, _ := newTestInterpreter(t)

	run(t, interp, "G1 X30 Y40 F1200")
	if len(p.moves) != 1 {
		t.Fatalf("queued %d moves", len(p.moves))
	}
	m := p.moves[0]
	if m.Distance != 50 || m.Velocity != 20 || m.Accel != 500 {
		t.Errorf("move distance %f velocity %f accel %f", m.Distance, m.Velocity, m.Accel)
	}

	run(t, interp, "G91", "G1 X-10")
	if p.pos.X != 20 || p.pos.Y != 40 {
		t.Errorf("relative move ended at %+v", p.pos)
	}

	// No motion, nothing queued
	run(t, interp, "G1 X0")
	if len(p.moves) != 2 {
		t.Errorf("zero move queued")
	}
}

func TestExtrusionModes(t *testing.T) {
	interp, p, _, _ := newTestInterpreter(t)

	run(t, interp, "G1 E5", "G1 E7")
	if p.pos.E != 7 {
		t.Errorf("absolute E = %f", p.pos.E)
	}
	if d := p.moves[1].Distance; math.Abs(d-2) > 1e-9 {
		t.Errorf("E-only move distance = %f", d)
	}

	run(t, interp, "M83", "G1 E1.5")
	if p.pos.E != 8.5 {
		t.Errorf("relative E = %f", p.pos.E)
	}
}

func TestHomeAndSetPosition(t *testing.T) {
	interp, p, _, _ := newTestInterpreter(t)
	p.pos = kinematics.Position{X: 50, Y: 60, Z: 7}

	run(t, interp, "G28 X")
	st := interp.GetState()
	if !st.Homed[0] || st.Homed[1] || p.pos.X != 0 || p.pos.Y != 60 {
		t.Errorf("G28 X: homed %v pos %+v", st.Homed, p.pos)
	}

	run(t, interp, "G28")
	if !st.AllHomed() || p.pos.Z != 0 {
		t.Errorf("G28: homed %v pos %+v", st.Homed, p.pos)
	}

	run(t, interp, "G92 E0 Z0.2")
	if p.pos.Z != 0.2 || p.pos.E != 0 {
		t.Errorf("G92 pos %+v", p.pos)
	}
}

func TestTemperatureTargets(t *testing.T) {
	interp, _, _, _ := newTestInterpreter(t)
	run(t, interp, "M104 S210", "M140 S60")
	st := interp.GetState()
	if st.TargetTemp["extruder"] != 210 || st.TargetTemp["bed"] != 60 {
		t.Errorf("targets %v", st.TargetTemp)
	}
}

func TestReportPosition(t *testing.T) {
	interp, p, _, lines := newTestInterpreter(t)
	p.pos = kinematics.Position{X: 1, Y: 2, Z: 3}
	run(t, interp, "M114")
	if len(*lines) != 1 || (*lines)[0] != "X:1.00 Y:2.00 Z:3.00 E:0.00" {
		t.Errorf("M114 printed %q", *lines)
	}
}

func TestSettingsCodes(t *testing.T) {
	interp, _, m, _ := newTestInterpreter(t)

	run(t, interp, "M500", "M501", "M502", "M503", "G29 S2", "G29 L1")
	if m.stores != 1 || m.loads != 1 || m.resets != 1 || m.reports != 1 {
		t.Errorf("store %d load %d reset %d report %d", m.stores, m.loads, m.resets, m.reports)
	}
	if m.storedSlot != 2 || m.loadedSlot != 1 {
		t.Errorf("mesh slots stored %d loaded %d", m.storedSlot, m.loadedSlot)
	}

	m.storeErr = errors.New("medium gone")
	cmd, _ := NewParser().ParseLine("M500")
	if err := interp.Execute(cmd); !errors.Is(err, m.storeErr) {
		t.Errorf("M500 error = %v", err)
	}
}

func TestDeviceCodes(t *testing.T) {
	interp, _, m, _ := newTestInterpreter(t)

	run(t, interp, "M403 E3 F2", "M403 E1", "M702")
	want := []deviceCall{
		{mmu2.OpFilamentType, 3, 2},
		{mmu2.OpUnload, 0, 0},
	}
	if len(m.device) != len(want) {
		t.Fatalf("device calls %v", m.device)
	}
	for i := range want {
		if m.device[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, m.device[i], want[i])
		}
	}
}

func TestRegisterOverrides(t *testing.T) {
	interp, _, _, _ := newTestInterpreter(t)

	var seen []int
	prev := interp.Handler('M', 104)
	interp.Register('M', 104, func(cmd *Command) error {
		seen = append(seen, cmd.Int('S', 0))
		return prev(cmd)
	})
	interp.Register('T', 1, func(cmd *Command) error {
		seen = append(seen, -1)
		return nil
	})

	run(t, interp, "M104 S200", "T1")
	if len(seen) != 2 || seen[0] != 200 || seen[1] != -1 {
		t.Errorf("handlers saw %v", seen)
	}
	if interp.GetState().TargetTemp["extruder"] != 200 {
		t.Error("wrapped handler not called")
	}
}

func TestUnknownCommand(t *testing.T) {
	interp, _, _, _ := newTestInterpreter(t)

	cmd, _ := NewParser().ParseLine("M999")
	if err := interp.Execute(cmd); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("M999 error = %v", err)
	}

	cmd, _ = NewParser().ParseLine("; only a comment")
	if err := interp.Execute(cmd); err != nil {
		t.Errorf("comment error = %v", err)
	}
}

func TestNoMachine(t *testing.T) {
	interp := NewInterpreter(config.DefaultConfig(), &fakePlanner{}, nil, nil)
	cmd, _ := NewParser().ParseLine("M500")
	if err := interp.Execute(cmd); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("M500 without machine = %v", err)
	}
}
