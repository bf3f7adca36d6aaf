package standalone

import (
	"fmt"

	"printcore/eeprom"
	"printcore/standalone/config"
)

// Leveling holds the bed leveling state. In mesh mode the grid lives in
// the settings record; in UBL mode the record only holds the active flag
// and the storage slot, and the grid lives in a mesh slot.
type Leveling struct {
	Mode         string
	GridX, GridY uint8

	FadeHeight float32
	Enabled    bool
	Slot       int8 // UBL storage slot, -1 when unbound
	ZOffset    float32
	grid       []float32

	// Derived by PostLoad
	invFade float32

	stale func(nx, ny uint8)
}

// NewLeveling creates the leveling state described by cfg
func NewLeveling(cfg config.Leveling) *Leveling {
	l := &Leveling{
		Mode:  cfg.Mode,
		GridX: uint8(cfg.GridX),
		GridY: uint8(cfg.GridY),
		grid:  make([]float32, cfg.GridX*cfg.GridY),
	}
	l.Reset()
	l.PostLoad()
	return l
}

// Reset turns leveling off and invalidates the grid
func (l *Leveling) Reset() {
	l.FadeHeight = 0
	l.Enabled = false
	l.Slot = -1
	l.ZOffset = 0
	l.Clear()
}

// PostLoad derives the fade factor. A zero fade height disables fading.
func (l *Leveling) PostLoad() {
	if l.FadeHeight > 0 {
		l.invFade = 1 / l.FadeHeight
	} else {
		l.invFade = 0
	}
	if l.Mode == config.LevelingMesh && !l.Valid() {
		l.Enabled = false
	}
}

// Values returns the live grid, row-major
func (l *Leveling) Values() []float32 {
	return l.grid
}

// StorageSlot returns the bound UBL slot, or -1
func (l *Leveling) StorageSlot() int {
	return int(l.Slot)
}

// Clear zeroes and invalidates the grid
func (l *Leveling) Clear() {
	clear(l.grid)
	l.Enabled = false
}

// Valid reports whether the grid holds usable data. A cleared grid is all
// zeros.
func (l *Leveling) Valid() bool {
	for _, v := range l.grid {
		if v != 0 {
			return true
		}
	}
	return false
}

// SetPoint stores one measured point
func (l *Leveling) SetPoint(ix, iy int, z float32) error {
	if ix < 0 || iy < 0 || ix >= int(l.GridX) || iy >= int(l.GridY) {
		return fmt.Errorf("mesh point %d,%d outside %dx%d grid", ix, iy, l.GridX, l.GridY)
	}
	l.grid[iy*int(l.GridX)+ix] = z
	return nil
}

// Point returns one grid value
func (l *Leveling) Point(ix, iy int) float32 {
	return l.grid[iy*int(l.GridX)+ix]
}

// SetEnabled switches leveling on; it stays off without a valid grid
func (l *Leveling) SetEnabled(on bool) bool {
	l.Enabled = on && l.Valid()
	return l.Enabled
}

// SetFadeHeight sets the fade height and recomputes the fade factor
func (l *Leveling) SetFadeHeight(h float32) {
	l.FadeHeight = max(h, 0)
	l.PostLoad()
}

// FadeFactor returns how much of the correction applies at height z
func (l *Leveling) FadeFactor(z float32) float32 {
	if l.invFade == 0 {
		return 1
	}
	if z >= l.FadeHeight {
		return 0
	}
	return 1 - z*l.invFade
}

// OnStale sets the handler for a stored grid of other dimensions
func (l *Leveling) OnStale(fn func(nx, ny uint8)) {
	l.stale = fn
}

// Blocks returns the record blocks of the configured mode, in layout order
func (l *Leveling) Blocks() []eeprom.Block {
	fade := eeprom.Fields("fade", &l.FadeHeight).WithReset(l.Reset).WithPostLoad(l.PostLoad)
	switch l.Mode {
	case config.LevelingMesh:
		grid := eeprom.Grid("mesh", l.GridX, l.GridY, l.grid).
			WithReset(l.Clear).
			OnStale(func(nx, ny uint8) {
				l.Clear()
				if l.stale != nil {
					l.stale(nx, ny)
				}
			})
		return []eeprom.Block{fade, eeprom.Fields("mesh offset", &l.ZOffset, &l.Enabled), grid}
	case config.LevelingUBL:
		return []eeprom.Block{fade, eeprom.Fields("ubl", &l.Enabled, &l.Slot)}
	}
	return []eeprom.Block{fade}
}
