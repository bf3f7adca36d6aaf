package standalone

import (
	"fmt"

	"printcore/standalone/config"
)

// Probe factory values
const (
	probeSpeedFast   = 600 // mm/min
	probeSpeedSlow   = 300
	probeRepetitions = 1
)

// DefaultProbe returns the factory probe offsets
func DefaultProbe() ProbeData {
	return ProbeData{
		Offset:      [3]float32{0, 0, -1},
		SpeedFast:   probeSpeedFast,
		SpeedSlow:   probeSpeedSlow,
		Repetitions: probeRepetitions,
	}
}

// DefaultPreheat returns the PLA, ABS and PETG presets
func DefaultPreheat() PreheatPresets {
	return PreheatPresets{
		HotendTemp:  [3]int16{200, 240, 230},
		BedTemp:     [3]int16{60, 100, 80},
		ChamberTemp: [3]int16{0, 50, 0},
		FanSpeed:    [3]int16{255, 0, 128},
	}
}

// ServoAngles holds the deploy (0) and stow (1) angles
type ServoAngles [2]uint8

// Servo is one RC servo output
type Servo struct {
	Index  int
	Angles ServoAngles
	angle  int
	out    func(angle int) error
}

// NewServo creates servo idx writing through out, which may be nil
func NewServo(idx int, out func(angle int) error) *Servo {
	s := &Servo{Index: idx, out: out, angle: -1}
	s.Reset()
	return s
}

// Reset loads the factory deploy/stow angles
func (s *Servo) Reset() {
	s.Angles = ServoAngles{10, 90}
}

// SetAngle moves the servo
func (s *Servo) SetAngle(angle int) error {
	if angle < 0 || angle > 180 {
		return fmt.Errorf("servo %d: angle %d outside 0-180", s.Index, angle)
	}
	if s.out != nil {
		if err := s.out(angle); err != nil {
			return err
		}
	}
	s.angle = angle
	return nil
}

// Angle returns the last commanded angle, or -1
func (s *Servo) Angle() int {
	return s.angle
}

// Retract is the firmware retraction state
type Retract struct {
	Data        RetractData
	AutoRetract bool

	// Derived by PostLoad
	autoActive bool
	volumetric bool
}

// NewRetract creates the retraction state
func NewRetract() *Retract {
	r := &Retract{}
	r.Reset()
	r.PostLoad()
	return r
}

// Reset loads factory retraction values
func (r *Retract) Reset() {
	r.Data = RetractData{
		RetractLength:       3,
		RetractFeedrate:     45,
		RetractZLift:        0,
		RecoverLength:       0,
		RecoverFeedrate:     8,
		SwapRetractLength:   13,
		SwapRecoverLength:   0,
		SwapRecoverFeedrate: 8,
	}
	r.AutoRetract = false
}

// SetVolumetric records whether E values are volumes, which disables
// autoretract
func (r *Retract) SetVolumetric(v bool) {
	r.volumetric = v
	r.PostLoad()
}

// PostLoad refreshes the autoretract switch
func (r *Retract) PostLoad() {
	r.autoActive = r.AutoRetract && !r.volumetric
}

// AutoRetractActive reports whether E-only moves turn into retracts
func (r *Retract) AutoRetractActive() bool {
	return r.autoActive
}

// Pause holds the advanced pause lengths per extruder
type Pause struct {
	Data []PauseData
}

// NewPause creates the pause table
func NewPause(extruders int) *Pause {
	p := &Pause{Data: make([]PauseData, extruders)}
	p.Reset()
	return p
}

// Reset loads factory unload and load lengths
func (p *Pause) Reset() {
	for e := range p.Data {
		p.Data[e] = PauseData{UnloadLength: 100, LoadLength: 100}
	}
}

// Trinamic holds the stepper driver settings
type Trinamic struct {
	Data TrinamicData
	cfg  *config.Machine
}

// NewTrinamic creates the driver settings from the axis config
func NewTrinamic(cfg *config.Machine) *Trinamic {
	t := &Trinamic{cfg: cfg}
	t.Reset()
	return t
}

// Reset loads factory currents, microsteps and thresholds
func (t *Trinamic) Reset() {
	t.Data = TrinamicData{}
	for i, name := range []string{"x", "y", "z", "e"} {
		axis := t.cfg.Axes[name]
		t.Data.Current[i] = uint16(axis.CurrentMA)
		t.Data.Microsteps[i] = uint16(axis.Microsteps)
		t.Data.HybridThreshold[i] = 100
		t.Data.StealthEnabled[i] = true
	}
	t.Data.HybridThreshold[2] = 3
	t.Data.HybridThreshold[3] = 30
	t.Data.StallThreshold = [3]int8{8, 8, 8}
}
