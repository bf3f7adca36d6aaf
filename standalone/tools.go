package standalone

import (
	"fmt"
	"math"
)

// Tool factory values
const (
	DefaultFilamentDiameter = 1.75
	DefaultLPQLen           = 20
	MaxLPQLen               = 50
	DefaultAdvanceK         = 0.22
)

// Tools holds per-extruder state: hotend offsets, filament sizes and the
// extrusion factors derived from them
type Tools struct {
	Data ToolData

	Extruders int
	Hotends   int
	Active    int

	Volumetric   bool
	FilamentSize []float32
	FlowPercent  []int16
	LPQLen       int16
	AdvanceK     float32

	// Derived by PostLoad
	volumetricMultiplier []float32
	eFactor              []float32
}

// NewTools creates the tool table for the given counts
func NewTools(extruders, hotends int) *Tools {
	t := &Tools{
		Extruders:            extruders,
		Hotends:              hotends,
		FilamentSize:         make([]float32, extruders),
		FlowPercent:          make([]int16, extruders),
		volumetricMultiplier: make([]float32, extruders),
		eFactor:              make([]float32, extruders),
	}
	t.Reset()
	t.PostLoad()
	return t
}

// Reset loads factory values. The first hotend carries no offset.
func (t *Tools) Reset() {
	t.Data = ToolData{}
	for e := range t.FilamentSize {
		t.FilamentSize[e] = DefaultFilamentDiameter
		t.FlowPercent[e] = 100
	}
	t.Volumetric = false
	t.LPQLen = DefaultLPQLen
	t.AdvanceK = DefaultAdvanceK
}

// ResetOffsets clears the hotend offsets only
func (t *Tools) ResetOffsets() {
	t.Data = ToolData{}
}

// PostLoad recomputes the volumetric multipliers and e-factors
func (t *Tools) PostLoad() {
	t.CalculateVolumetricMultipliers()
}

// CalculateVolumetricMultipliers derives the cross-section factor of every
// extruder and refreshes its e-factor
func (t *Tools) CalculateVolumetricMultipliers() {
	for e := range t.FilamentSize {
		t.volumetricMultiplier[e] = volumetricMultiplier(t.Volumetric, t.FilamentSize[e])
		t.refreshEFactor(e)
	}
}

func volumetricMultiplier(enabled bool, diameter float32) float32 {
	if !enabled || diameter <= 0 {
		return 1
	}
	r := float64(diameter) / 2
	return float32(1 / (math.Pi * r * r))
}

func (t *Tools) refreshEFactor(e int) {
	t.eFactor[e] = t.volumetricMultiplier[e] * float32(t.FlowPercent[e]) * 0.01
}

// EFactor returns the extrusion scale of extruder e
func (t *Tools) EFactor(e int) float32 {
	return t.eFactor[e]
}

// SetFilamentSize sets the filament diameter of extruder e. A zero diameter
// switches volumetric extrusion off for every extruder.
func (t *Tools) SetFilamentSize(e int, diameter float32) error {
	if err := t.checkExtruder(e); err != nil {
		return err
	}
	t.Volumetric = diameter != 0
	if t.Volumetric {
		t.FilamentSize[e] = diameter
	}
	t.CalculateVolumetricMultipliers()
	return nil
}

// SetFlow sets the flow percentage of extruder e
func (t *Tools) SetFlow(e int, percent int16) error {
	if err := t.checkExtruder(e); err != nil {
		return err
	}
	t.FlowPercent[e] = percent
	t.refreshEFactor(e)
	return nil
}

// SetLPQLen clamps the extrusion-rate queue length
func (t *Tools) SetLPQLen(n int) {
	t.LPQLen = int16(max(0, min(n, MaxLPQLen)))
}

// SetHotendOffset sets the offset of hotend h on axis (0=X, 1=Y, 2=Z)
func (t *Tools) SetHotendOffset(h, axis int, v float32) error {
	if h < 0 || h >= t.Hotends || h >= MaxHotends {
		return fmt.Errorf("invalid hotend %d", h)
	}
	t.Data.HotendOffset[axis][h] = v
	return nil
}

// HotendOffset returns the offset of hotend h on axis
func (t *Tools) HotendOffset(h, axis int) float32 {
	return t.Data.HotendOffset[axis][h]
}

// Select makes extruder e the active tool
func (t *Tools) Select(e int) error {
	if err := t.checkExtruder(e); err != nil {
		return err
	}
	t.Active = e
	return nil
}

func (t *Tools) checkExtruder(e int) error {
	if e < 0 || e >= t.Extruders {
		return fmt.Errorf("invalid extruder %d", e)
	}
	return nil
}
