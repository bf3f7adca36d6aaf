package kinematics

import (
	"errors"
	"fmt"

	"printcore/standalone/config"
)

// EndstopData is the persisted endstop block
type EndstopData struct {
	Logic        uint16 // inverted switch inputs, bit per axis
	Pullups      uint16 // enabled pullups, bit per axis
	SoftEndstops bool
	_            [3]byte
	BaseMin      [3]float32 // travel limits before home offset
	BaseMax      [3]float32
}

// Cartesian implements basic Cartesian kinematics (XYZ 1:1 mapping)
type Cartesian struct {
	config   *config.Machine
	Endstops EndstopData
	soft     [3]AxisLimits
}

// NewCartesian creates a new Cartesian kinematics instance
func NewCartesian(cfg *config.Machine) (*Cartesian, error) {
	// Validate required axes
	for _, name := range []string{"x", "y", "z"} {
		if _, ok := cfg.Axes[name]; !ok {
			return nil, fmt.Errorf("%s axis not configured", name)
		}
	}

	k := &Cartesian{config: cfg}
	k.Reset()
	k.UpdateSoftEndstops([3]float32{})
	return k, nil
}

// Reset loads factory endstop settings from the machine config
func (k *Cartesian) Reset() {
	k.Endstops = EndstopData{SoftEndstops: true}
	for i, name := range []string{"x", "y", "z"} {
		axis := k.config.Axes[name]
		k.Endstops.BaseMin[i] = float32(axis.MinPosition)
		k.Endstops.BaseMax[i] = float32(axis.MaxPosition)
		k.Endstops.Pullups |= 1 << i
	}
}

// UpdateSoftEndstops moves the software endstops with the home offset
func (k *Cartesian) UpdateSoftEndstops(homeOffset [3]float32) {
	for i := range k.soft {
		k.soft[i] = AxisLimits{
			Min: float64(k.Endstops.BaseMin[i] + homeOffset[i]),
			Max: float64(k.Endstops.BaseMax[i] + homeOffset[i]),
		}
	}
}

// SoftLimits returns the software endstops of axis i (0=X, 1=Y, 2=Z)
func (k *Cartesian) SoftLimits(i int) AxisLimits {
	return k.soft[i]
}

// CalcPosition converts XYZ coordinates to stepper positions
// For Cartesian, this is a 1:1 mapping
func (k *Cartesian) CalcPosition(pos Position) []float64 {
	// Return positions in order: X, Y, Z, E
	return []float64{pos.X, pos.Y, pos.Z, pos.E}
}

// GetAxisNames returns the axis names for Cartesian kinematics
func (k *Cartesian) GetAxisNames() []string {
	return []string{"x", "y", "z", "e"}
}

// CheckLimits validates that a position is within the software endstops
func (k *Cartesian) CheckLimits(pos Position) error {
	if !k.Endstops.SoftEndstops {
		return nil
	}

	names := [3]string{"X", "Y", "Z"}
	for i, name := range names {
		v := pos.Axis(i)
		if v < k.soft[i].Min || v > k.soft[i].Max {
			return fmt.Errorf("%w: %s %.3f outside [%.3f, %.3f]", ErrOutOfLimits, name, v, k.soft[i].Min, k.soft[i].Max)
		}
	}

	return nil
}

// ErrOutOfLimits is returned for moves beyond the software endstops
var ErrOutOfLimits = errors.New("position out of limits")
