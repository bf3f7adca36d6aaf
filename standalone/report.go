package standalone

import (
	"fmt"
	"strings"

	"printcore/standalone/config"
)

// PrintSettings writes the live settings as the G-codes that would set
// them (M503)
func (p *Printer) PrintSettings() {
	c := p.Console
	s := &p.Planner.Settings
	e := 3

	c.Echo("  G21    ; Units in (mm)")

	c.Echo("Steps per unit:")
	c.Echo("  M92 X%.3f Y%.3f Z%.3f%s", s.StepsPerMM[0], s.StepsPerMM[1], s.StepsPerMM[2], perExtruder("E", s.StepsPerMM[e:]))

	c.Echo("Maximum feedrates (units/s):")
	c.Echo("  M203 X%.3f Y%.3f Z%.3f%s", s.MaxFeedrate[0], s.MaxFeedrate[1], s.MaxFeedrate[2], perExtruder("E", s.MaxFeedrate[e:]))

	c.Echo("Maximum Acceleration (units/s2):")
	c.Echo("  M201 X%d Y%d Z%d%s", s.MaxAcceleration[0], s.MaxAcceleration[1], s.MaxAcceleration[2], perExtruder("E", s.MaxAcceleration[e:]))

	l := s.Limits
	c.Echo("Acceleration (units/s2): P<print_accel> R<retract_accel> T<travel_accel>")
	c.Echo("  M204 P%.3f R%.3f T%.3f", l.Acceleration, l.RetractAcceleration, l.TravelAcceleration)

	c.Echo("Advanced: S<min_feedrate> T<min_travel_feedrate> B<min_segment_time_us> X<max_xy_jerk> Z<max_z_jerk> E<max_e_jerk>")
	c.Echo("  M205 S%.3f T%.3f B%d X%.3f Z%.3f E%.3f", l.MinFeedrate, l.MinTravelFeedrate, l.MinSegmentTime, s.MaxJerk[0], s.MaxJerk[2], s.MaxJerk[e])

	c.Echo("Home offset:")
	c.Echo("  M206 X%.3f Y%.3f Z%.3f", l.HomeOffset[0], l.HomeOffset[1], l.HomeOffset[2])

	for _, h := range p.Heaters {
		pid := h.Data.PID
		c.Echo("%s PID", h.Name())
		if h.Kind == KindHotend {
			c.Echo("  M301 H%d P%.3f I%.3f D%.3f C%.3f", h.Index, pid.Kp, pid.Ki, pid.Kd, pid.Kc)
		} else {
			c.Echo("  M301 H%d T%d P%.3f I%.3f D%.3f", heaterCode(h.Kind), h.Index, pid.Kp, pid.Ki, pid.Kd)
		}
	}

	if p.Config.Hotends > 1 {
		c.Echo("Hotend offset (mm):")
		for h := 1; h < p.Config.Hotends; h++ {
			c.Echo("  M218 T%d X%.3f Y%.3f Z%.3f", h, p.Tools.HotendOffset(h, 0), p.Tools.HotendOffset(h, 1), p.Tools.HotendOffset(h, 2))
		}
	}

	for _, f := range p.Fans {
		c.Echo("  M106 P%d L%d X%d A%d", f.Index, f.Data.MinSpeed, f.Data.MaxSpeed, f.Data.AutoMonitor)
	}

	en := p.Kinematics.Endstops
	c.Echo("Endstops: S<soft endstops> I<logic> P<pullups>")
	c.Echo("  M120 S%d I%d P%d", boolInt(en.SoftEndstops), en.Logic, en.Pullups)

	for _, sv := range p.Servos {
		c.Echo("  M281 P%d L%d U%d", sv.Index, sv.Angles[0], sv.Angles[1])
	}

	p.printLeveling()

	if p.Config.Features.Probe {
		pr := p.Probe
		c.Echo("Probe Offset X Y Z, speed Fast and Slow [mm/min], Repetitions (mm):")
		c.Echo("  M851 X%.3f Y%.3f Z%.3f F%d S%d R%d", pr.Offset[0], pr.Offset[1], pr.Offset[2], pr.SpeedFast, pr.SpeedSlow, pr.Repetitions)
	}

	if p.BLTouch != nil {
		mode := "OD"
		if p.BLTouch.LastMode {
			mode = "5V"
		}
		c.Echo("BLTouch mode: %s", mode)
	}

	if p.Config.Features.LCD {
		c.Echo("Material heatup parameters:")
		for i := range p.Preheat.HotendTemp {
			c.Echo("  M145 S%d H%d B%d F%d", i, p.Preheat.HotendTemp[i], p.Preheat.BedTemp[i], p.Preheat.FanSpeed[i])
		}
	}

	if p.Config.Features.FWRetract {
		r := p.Retract.Data
		c.Echo("Retract: S<length> F<units/m> W<swap length> Z<lift>")
		c.Echo("  M207 S%.3f F%.3f W%.3f Z%.3f", r.RetractLength, r.RetractFeedrate*60, r.SwapRetractLength, r.RetractZLift)
		c.Echo("Recover: S<length> F<units/m> W<swap length> R<swap units/m>")
		c.Echo("  M208 S%.3f F%.3f W%.3f R%.3f", r.RecoverLength, r.RecoverFeedrate*60, r.SwapRecoverLength, r.SwapRecoverFeedrate*60)
		c.Echo("Auto-Retract: S=0 to disable, 1 to interpret E-only moves as retract/recover")
		c.Echo("  M209 S%d", boolInt(p.Retract.AutoRetract))
	}

	if p.Config.Features.Volumetric {
		if p.Tools.Volumetric {
			c.Echo("Filament settings:")
		} else {
			c.Echo("Filament settings: Disabled")
		}
		for i, d := range p.Tools.FilamentSize {
			c.Echo("  M200 T%d D%.3f", i, d)
		}
	}

	if p.Config.Hotends > 0 {
		c.Echo("PID extrusion rate queue:")
		c.Echo("  M301 L%d", p.Tools.LPQLen)
	}

	if p.Config.Features.LinAdvance {
		c.Echo("Linear Advance:")
		c.Echo("  M900 K%.3f", p.Tools.AdvanceK)
	}

	if p.Config.Features.AdvancedPause {
		c.Echo("Filament load/unload lengths:")
		for i, d := range p.Pause.Data {
			c.Echo("  M603 T%d U%.3f L%.3f", i, d.UnloadLength, d.LoadLength)
		}
	}

	if p.Config.Features.Trinamic {
		t := p.Trinamic.Data
		c.Echo("Stepper driver current:")
		c.Echo("  M906 X%d Y%d Z%d E%d", t.Current[0], t.Current[1], t.Current[2], t.Current[3])
		c.Echo("  M350 X%d Y%d Z%d E%d", t.Microsteps[0], t.Microsteps[1], t.Microsteps[2], t.Microsteps[3])
		c.Echo("  M913 X%d Y%d Z%d E%d", t.HybridThreshold[0], t.HybridThreshold[1], t.HybridThreshold[2], t.HybridThreshold[3])
		c.Echo("  M914 X%d Y%d Z%d", t.StallThreshold[0], t.StallThreshold[1], t.StallThreshold[2])
	}

	st := p.Planner.Stepper
	c.Echo("Stepper driver control:")
	c.Echo("  M569 X%d Y%d Z%d E%d P%d R%d", st.InvertDir&1, st.InvertDir>>1&1, st.InvertDir>>2&1, st.InvertDir>>3&1, st.MinPulseUS, st.MaxStepRate)

	c.Echo("Sound mode: %d", p.Sound.Mode)
}

func (p *Printer) printLeveling() {
	c := p.Console
	lv := p.Leveling
	switch p.Config.Leveling.Mode {
	case config.LevelingMesh:
		c.Echo("Mesh Bed Leveling:")
		c.Echo("  M420 S%d Z%.3f", boolInt(lv.Valid()), lv.FadeHeight)
		if lv.Valid() {
			for iy := 0; iy < int(lv.GridY); iy++ {
				for ix := 0; ix < int(lv.GridX); ix++ {
					c.Echo("  G29 S3 I%d J%d Z%.3f", ix, iy, lv.Point(ix, iy))
				}
			}
		}
	case config.LevelingUBL:
		c.Echo("Unified Bed Leveling:")
		c.Echo("  M420 S%d Z%.3f", boolInt(lv.Enabled), lv.FadeHeight)
		c.Echo("  Active Mesh Slot: %d", lv.Slot)
		if p.EEPROM != nil {
			c.Echo("  EEPROM can hold %d meshes.", p.EEPROM.MeshSlots())
		}
	}
}

// heaterCode maps non-hotend heaters to their M301 H parameter
func heaterCode(kind string) int {
	switch kind {
	case KindBed:
		return -1
	case KindChamber:
		return -2
	case KindCooler:
		return -3
	}
	return 0
}

func perExtruder[T float32 | uint32](letter string, values []T) string {
	if len(values) == 1 {
		return fmt.Sprintf(" %s%v", letter, formatValue(values[0]))
	}
	var b strings.Builder
	for i, v := range values {
		fmt.Fprintf(&b, " T%d %s%v", i, letter, formatValue(v))
	}
	return b.String()
}

func formatValue[T float32 | uint32](v T) string {
	switch x := any(v).(type) {
	case float32:
		return fmt.Sprintf("%.3f", x)
	default:
		return fmt.Sprintf("%d", x)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
