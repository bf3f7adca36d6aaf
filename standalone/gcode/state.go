package gcode

import "printcore/standalone/kinematics"

// MachineState is the modal state the interpreter tracks between lines
type MachineState struct {
	Position     kinematics.Position
	Homed        [4]bool
	AbsoluteMode bool    // G90/G91
	FeedRate     float64 // mm/s
	ExtrudeMode  bool    // true = relative (M83)
	TargetTemp   map[string]float64
}

func newMachineState(feedRate float64) *MachineState {
	return &MachineState{
		AbsoluteMode: true,
		FeedRate:     feedRate,
		TargetTemp:   make(map[string]float64),
	}
}

// AllHomed reports whether X, Y and Z have been homed
func (s *MachineState) AllHomed() bool {
	return s.Homed[0] && s.Homed[1] && s.Homed[2]
}
