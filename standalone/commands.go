package standalone

import (
	"fmt"

	"printcore/standalone/config"
	"printcore/standalone/gcode"
)

// RegisterCommands binds the settings codes of the subsystems present in
// the build. Every code here edits live values; M500 persists them.
func (p *Printer) RegisterCommands(interp *gcode.Interpreter) {
	f := p.Config.Features

	interp.Register('M', 92, p.setStepsPerMM)
	interp.Register('M', 201, p.setMaxAcceleration)
	interp.Register('M', 203, p.setMaxFeedrate)
	interp.Register('M', 204, p.setAcceleration)
	interp.Register('M', 205, p.setAdvanced)
	interp.Register('M', 206, p.setHomeOffset)
	interp.Register('M', 301, p.setPID)
	interp.Register('M', 106, p.setFan)
	interp.Register('M', 107, func(cmd *gcode.Command) error {
		fan, err := p.fan(cmd)
		if err != nil {
			return err
		}
		fan.SetSpeed(0)
		return nil
	})
	interp.Register('M', 280, p.setServo)

	p.wrapTarget(interp, 104, KindHotend)
	p.wrapTarget(interp, 109, KindHotend)
	p.wrapTarget(interp, 140, KindBed)
	p.wrapTarget(interp, 190, KindBed)
	p.wrapTarget(interp, 141, KindChamber)

	if p.Config.Hotends > 1 {
		interp.Register('M', 218, p.setHotendOffset)
	}
	if p.Config.HasLeveling() {
		interp.Register('M', 420, p.setLeveling)
	}
	if p.Config.Leveling.Mode == config.LevelingMesh {
		interp.Register('G', 29, p.setMeshPoint)
	}
	if f.Probe {
		interp.Register('M', 851, p.setProbeOffset)
	}
	if f.Probe || p.BLTouch != nil {
		interp.Register('M', 401, func(*gcode.Command) error { return p.deployProbe(true) })
		interp.Register('M', 402, func(*gcode.Command) error { return p.deployProbe(false) })
	}
	if f.LCD {
		interp.Register('M', 145, p.setPreheat)
	}
	if f.FWRetract {
		interp.Register('M', 207, p.setRetract)
		interp.Register('M', 208, p.setRecover)
		interp.Register('M', 209, func(cmd *gcode.Command) error {
			if cmd.HasParameter('S') {
				p.Retract.AutoRetract = cmd.Int('S', 0) != 0
				p.Retract.PostLoad()
			}
			return nil
		})
	}
	if f.Volumetric {
		interp.Register('M', 200, p.setFilament)
	}
	if f.LinAdvance {
		interp.Register('M', 900, func(cmd *gcode.Command) error {
			if cmd.HasParameter('K') {
				p.Tools.AdvanceK = float32(cmd.GetParameter('K', 0))
			}
			return nil
		})
	}
	if f.AdvancedPause {
		interp.Register('M', 603, p.setPauseLengths)
	}
	if f.Trinamic {
		interp.Register('M', 906, p.setTrinamic(func(i int, v float64) { p.Trinamic.Data.Current[i] = uint16(max(v, 0)) }))
		interp.Register('M', 350, p.setTrinamic(func(i int, v float64) { p.Trinamic.Data.Microsteps[i] = uint16(max(v, 0)) }))
		interp.Register('M', 913, p.setTrinamic(func(i int, v float64) { p.Trinamic.Data.HybridThreshold[i] = uint32(max(v, 0)) }))
		interp.Register('M', 914, p.setTrinamic(func(i int, v float64) {
			if i < len(p.Trinamic.Data.StallThreshold) {
				p.Trinamic.Data.StallThreshold[i] = int8(max(-64, min(v, 63)))
			}
		}))
	}
}

// axisValues passes the X Y Z parameters of cmd to set, and E as the axis
// of extruder T (the active tool by default)
func (p *Printer) axisValues(cmd *gcode.Command, set func(axis int, v float64)) error {
	for i, letter := range []byte{'X', 'Y', 'Z'} {
		if cmd.HasParameter(letter) {
			set(i, cmd.GetParameter(letter, 0))
		}
	}
	if !cmd.HasParameter('E') {
		return nil
	}
	e := cmd.Int('T', p.Tools.Active)
	if err := p.Tools.checkExtruder(e); err != nil {
		return err
	}
	set(3+e, cmd.GetParameter('E', 0))
	return nil
}

func (p *Printer) setStepsPerMM(cmd *gcode.Command) error {
	s := &p.Planner.Settings
	err := p.axisValues(cmd, func(i int, v float64) {
		if v > 0 {
			s.StepsPerMM[i] = float32(v)
		}
	})
	p.Planner.PostLoad()
	return err
}

func (p *Printer) setMaxAcceleration(cmd *gcode.Command) error {
	s := &p.Planner.Settings
	err := p.axisValues(cmd, func(i int, v float64) { s.MaxAcceleration[i] = uint32(max(v, 0)) })
	p.Planner.ResetAccelerationRates()
	return err
}

func (p *Printer) setMaxFeedrate(cmd *gcode.Command) error {
	s := &p.Planner.Settings
	return p.axisValues(cmd, func(i int, v float64) { s.MaxFeedrate[i] = float32(max(v, 0)) })
}

func (p *Printer) setAcceleration(cmd *gcode.Command) error {
	l := &p.Planner.Settings.Limits
	if cmd.HasParameter('S') {
		l.Acceleration = float32(cmd.GetParameter('S', 0))
		l.TravelAcceleration = l.Acceleration
	}
	if cmd.HasParameter('P') {
		l.Acceleration = float32(cmd.GetParameter('P', 0))
	}
	if cmd.HasParameter('R') {
		l.RetractAcceleration = float32(cmd.GetParameter('R', 0))
	}
	if cmd.HasParameter('T') {
		l.TravelAcceleration = float32(cmd.GetParameter('T', 0))
	}
	return nil
}

func (p *Printer) setAdvanced(cmd *gcode.Command) error {
	s := &p.Planner.Settings
	if cmd.HasParameter('S') {
		s.Limits.MinFeedrate = float32(cmd.GetParameter('S', 0))
	}
	if cmd.HasParameter('T') {
		s.Limits.MinTravelFeedrate = float32(cmd.GetParameter('T', 0))
	}
	if cmd.HasParameter('B') {
		s.Limits.MinSegmentTime = uint32(max(cmd.GetParameter('B', 0), 0))
	}
	// X sets the XY jerk together
	if cmd.HasParameter('X') {
		s.MaxJerk[0] = float32(cmd.GetParameter('X', 0))
		s.MaxJerk[1] = s.MaxJerk[0]
	}
	if cmd.HasParameter('Y') {
		s.MaxJerk[1] = float32(cmd.GetParameter('Y', 0))
	}
	if cmd.HasParameter('Z') {
		s.MaxJerk[2] = float32(cmd.GetParameter('Z', 0))
	}
	if cmd.HasParameter('E') {
		e := cmd.Int('T', p.Tools.Active)
		if err := p.Tools.checkExtruder(e); err != nil {
			return err
		}
		s.MaxJerk[3+e] = float32(cmd.GetParameter('E', 0))
	}
	return nil
}

func (p *Printer) setHomeOffset(cmd *gcode.Command) error {
	l := &p.Planner.Settings.Limits
	for i, letter := range []byte{'X', 'Y', 'Z'} {
		if cmd.HasParameter(letter) {
			l.HomeOffset[i] = float32(cmd.GetParameter(letter, 0))
		}
	}
	p.Kinematics.UpdateSoftEndstops(l.HomeOffset)
	return nil
}

// setPID handles M301. H selects the heater: 0 and up are hotends, -1 the
// bed, -2 a chamber and -3 a cooler, numbered by T.
func (p *Printer) setPID(cmd *gcode.Command) error {
	if cmd.HasParameter('L') {
		p.Tools.SetLPQLen(cmd.Int('L', DefaultLPQLen))
	}
	if !cmd.HasParameter('P') && !cmd.HasParameter('I') && !cmd.HasParameter('D') && !cmd.HasParameter('C') {
		return nil
	}

	code := cmd.Int('H', 0)
	var h *Heater
	switch code {
	case -1:
		h = p.Heater(KindBed, cmd.Int('T', 0))
	case -2:
		h = p.Heater(KindChamber, cmd.Int('T', 0))
	case -3:
		h = p.Heater(KindCooler, cmd.Int('T', 0))
	default:
		h = p.Heater(KindHotend, code)
	}
	if h == nil {
		return fmt.Errorf("M301: no heater H%d", code)
	}

	pid := h.Data.PID
	h.SetPID(
		float32(cmd.GetParameter('P', float64(pid.Kp))),
		float32(cmd.GetParameter('I', float64(pid.Ki))),
		float32(cmd.GetParameter('D', float64(pid.Kd))),
	)
	if h.Kind == KindHotend && cmd.HasParameter('C') {
		h.Data.PID.Kc = float32(cmd.GetParameter('C', 0))
	}
	return nil
}

func (p *Printer) fan(cmd *gcode.Command) (*Fan, error) {
	idx := cmd.Int('P', 0)
	if idx < 0 || idx >= len(p.Fans) {
		return nil, fmt.Errorf("no fan P%d", idx)
	}
	return p.Fans[idx], nil
}

// setFan handles M106: S sets the speed, L X A the persisted range and
// auto-monitor mask
func (p *Printer) setFan(cmd *gcode.Command) error {
	fan, err := p.fan(cmd)
	if err != nil {
		return err
	}
	if cmd.HasParameter('L') {
		fan.Data.MinSpeed = clampByte(cmd.Int('L', 0))
	}
	if cmd.HasParameter('X') {
		fan.Data.MaxSpeed = clampByte(cmd.Int('X', 255))
	}
	if cmd.HasParameter('A') {
		fan.Data.AutoMonitor = clampByte(cmd.Int('A', 0))
		fan.PostLoad(p.Config.Hotends)
	}
	if cmd.HasParameter('S') || !(cmd.HasParameter('L') || cmd.HasParameter('X') || cmd.HasParameter('A')) {
		fan.SetSpeed(clampByte(cmd.Int('S', 255)))
	}
	return nil
}

func clampByte(v int) uint8 {
	return uint8(max(0, min(v, 255)))
}

func (p *Printer) setServo(cmd *gcode.Command) error {
	idx := cmd.Int('P', 0)
	if idx < 0 || idx >= len(p.Servos) {
		return fmt.Errorf("no servo P%d", idx)
	}
	s := p.Servos[idx]
	if !cmd.HasParameter('S') {
		p.Console.Echo(" Servo %d: %d", idx, s.Angle())
		return nil
	}
	return s.SetAngle(cmd.Int('S', 0))
}

// wrapTarget makes a temperature code drive the real heater before the
// interpreter records the target
func (p *Printer) wrapTarget(interp *gcode.Interpreter, number int, kind string) {
	prev := interp.Handler('M', number)
	interp.Register('M', number, func(cmd *gcode.Command) error {
		if cmd.HasParameter('S') {
			idx := 0
			if kind == KindHotend {
				idx = cmd.Int('T', p.Tools.Active)
			}
			h := p.Heater(kind, idx)
			if h == nil {
				return fmt.Errorf("M%d: no %s %d", number, kind, idx)
			}
			if err := h.SetTarget(cmd.GetParameter('S', 0)); err != nil {
				return err
			}
		}
		if prev != nil {
			return prev(cmd)
		}
		return nil
	})
}

func (p *Printer) setHotendOffset(cmd *gcode.Command) error {
	h := cmd.Int('T', p.Tools.Active)
	for i, letter := range []byte{'X', 'Y', 'Z'} {
		if !cmd.HasParameter(letter) {
			continue
		}
		if err := p.Tools.SetHotendOffset(h, i, float32(cmd.GetParameter(letter, 0))); err != nil {
			return err
		}
	}
	return nil
}

// setLeveling handles M420: S switches leveling, Z sets the fade height
func (p *Printer) setLeveling(cmd *gcode.Command) error {
	lv := p.Leveling
	if cmd.HasParameter('Z') {
		lv.SetFadeHeight(float32(cmd.GetParameter('Z', 0)))
	}
	if cmd.HasParameter('S') {
		on := cmd.Int('S', 0) != 0
		if lv.SetEnabled(on) != on {
			p.Console.Error("Failed to enable Bed Leveling")
		}
	}
	state := "OFF"
	if lv.Enabled {
		state = "ON"
	}
	p.Console.Echo("Bed Leveling %s", state)
	if lv.FadeHeight > 0 {
		p.Console.Echo("Fade Height %.2f", lv.FadeHeight)
	}
	return nil
}

// setMeshPoint handles the G29 S3 I J Z form the settings report prints
func (p *Printer) setMeshPoint(cmd *gcode.Command) error {
	if cmd.Int('S', -1) != 3 {
		return fmt.Errorf("G29: only S3 is supported with mesh leveling")
	}
	return p.Leveling.SetPoint(cmd.Int('I', -1), cmd.Int('J', -1), float32(cmd.GetParameter('Z', 0)))
}

func (p *Printer) setProbeOffset(cmd *gcode.Command) error {
	for i, letter := range []byte{'X', 'Y', 'Z'} {
		if cmd.HasParameter(letter) {
			p.Probe.Offset[i] = float32(cmd.GetParameter(letter, 0))
		}
	}
	return nil
}

// deployProbe drives the BLTouch when fitted, otherwise servo 0 to its
// deploy or stow angle
func (p *Printer) deployProbe(deploy bool) error {
	if p.BLTouch != nil {
		if deploy {
			return p.BLTouch.Deploy()
		}
		return p.BLTouch.Stow()
	}
	if len(p.Servos) == 0 {
		return fmt.Errorf("no probe servo")
	}
	s := p.Servos[0]
	if deploy {
		return s.SetAngle(int(s.Angles[0]))
	}
	return s.SetAngle(int(s.Angles[1]))
}

func (p *Printer) setPreheat(cmd *gcode.Command) error {
	i := cmd.Int('S', 0)
	if i < 0 || i >= len(p.Preheat.HotendTemp) {
		return fmt.Errorf("M145: no preset S%d", i)
	}
	if cmd.HasParameter('H') {
		p.Preheat.HotendTemp[i] = int16(cmd.Int('H', 0))
	}
	if cmd.HasParameter('B') {
		p.Preheat.BedTemp[i] = int16(cmd.Int('B', 0))
	}
	if cmd.HasParameter('C') {
		p.Preheat.ChamberTemp[i] = int16(cmd.Int('C', 0))
	}
	if cmd.HasParameter('F') {
		p.Preheat.FanSpeed[i] = int16(cmd.Int('F', 0))
	}
	return nil
}

// setRetract handles M207; feedrates arrive in mm/min
func (p *Printer) setRetract(cmd *gcode.Command) error {
	r := &p.Retract.Data
	if cmd.HasParameter('S') {
		r.RetractLength = float32(cmd.GetParameter('S', 0))
	}
	if cmd.HasParameter('F') {
		r.RetractFeedrate = float32(cmd.GetParameter('F', 0) / 60)
	}
	if cmd.HasParameter('Z') {
		r.RetractZLift = float32(cmd.GetParameter('Z', 0))
	}
	if cmd.HasParameter('W') {
		r.SwapRetractLength = float32(cmd.GetParameter('W', 0))
	}
	return nil
}

func (p *Printer) setRecover(cmd *gcode.Command) error {
	r := &p.Retract.Data
	if cmd.HasParameter('S') {
		r.RecoverLength = float32(cmd.GetParameter('S', 0))
	}
	if cmd.HasParameter('F') {
		r.RecoverFeedrate = float32(cmd.GetParameter('F', 0) / 60)
	}
	if cmd.HasParameter('W') {
		r.SwapRecoverLength = float32(cmd.GetParameter('W', 0))
	}
	if cmd.HasParameter('R') {
		r.SwapRecoverFeedrate = float32(cmd.GetParameter('R', 0) / 60)
	}
	return nil
}

// setFilament handles M200. D0 turns volumetric extrusion off.
func (p *Printer) setFilament(cmd *gcode.Command) error {
	if !cmd.HasParameter('D') {
		return nil
	}
	if err := p.Tools.SetFilamentSize(cmd.Int('T', p.Tools.Active), float32(cmd.GetParameter('D', 0))); err != nil {
		return err
	}
	p.Retract.SetVolumetric(p.Tools.Volumetric)
	return nil
}

func (p *Printer) setPauseLengths(cmd *gcode.Command) error {
	e := cmd.Int('T', p.Tools.Active)
	if err := p.Tools.checkExtruder(e); err != nil {
		return err
	}
	d := &p.Pause.Data[e]
	if cmd.HasParameter('U') {
		d.UnloadLength = float32(cmd.GetParameter('U', 0))
	}
	if cmd.HasParameter('L') {
		d.LoadLength = float32(cmd.GetParameter('L', 0))
	}
	return nil
}

// setTrinamic applies X Y Z E to one driver table; every extruder shares
// the E entry
func (p *Printer) setTrinamic(set func(axis int, v float64)) gcode.HandlerFunc {
	return func(cmd *gcode.Command) error {
		for i, letter := range []byte{'X', 'Y', 'Z', 'E'} {
			if cmd.HasParameter(letter) {
				set(i, cmd.GetParameter(letter, 0))
			}
		}
		return nil
	}
}
