package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Machine) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ------------------------------------------------------------
	// SUBSYSTEM COUNTS
	// ------------------------------------------------------------

	counts := []struct {
		name     string
		value    int
		min, max int
	}{
		{"extruders", cfg.Extruders, 1, 6},
		{"hotends", cfg.Hotends, 0, 6},
		{"beds", cfg.Beds, 0, 4},
		{"chambers", cfg.Chambers, 0, 4},
		{"coolers", cfg.Coolers, 0, 1},
		{"fans", cfg.Fans, 0, 6},
		{"servos", cfg.Servos, 0, 4},
	}
	for _, c := range counts {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%s must be between %d and %d, got %d", c.name, c.min, c.max, c.value)
		}
	}
	if cfg.Hotends > cfg.Extruders {
		return fmt.Errorf("hotends (%d) cannot exceed extruders (%d)", cfg.Hotends, cfg.Extruders)
	}

	// ------------------------------------------------------------
	// AXES
	// ------------------------------------------------------------

	for _, name := range []string{"x", "y", "z", "e"} {
		axis, ok := lookupAxis(cfg, name)
		if !ok {
			return fmt.Errorf("%s axis not configured", strings.ToUpper(name))
		}
		if axis.StepsPerMM <= 0 {
			return fmt.Errorf("%s axis: steps_per_mm must be positive", strings.ToUpper(name))
		}
		if axis.MinPosition >= axis.MaxPosition {
			return fmt.Errorf("%s axis: min_position %.3f must be below max_position %.3f",
				strings.ToUpper(name), axis.MinPosition, axis.MaxPosition)
		}
	}

	// ------------------------------------------------------------
	// FEATURES
	// ------------------------------------------------------------

	if cfg.Features.BLTouch && !cfg.Features.Probe {
		return fmt.Errorf("bltouch requires probe")
	}
	if cfg.Features.BLTouch && cfg.Servos == 0 {
		return fmt.Errorf("bltouch requires a servo channel")
	}

	switch strings.ToLower(cfg.Leveling.Mode) {
	case "", LevelingNone:
	case LevelingMesh, LevelingUBL:
		if cfg.Leveling.GridX < 2 || cfg.Leveling.GridX > 15 || cfg.Leveling.GridY < 2 || cfg.Leveling.GridY > 15 {
			return fmt.Errorf("leveling grid must be 2x2 to 15x15, got %dx%d", cfg.Leveling.GridX, cfg.Leveling.GridY)
		}
	default:
		return fmt.Errorf("unknown leveling mode %q", cfg.Leveling.Mode)
	}

	// ------------------------------------------------------------
	// STORAGE
	// ------------------------------------------------------------

	s := cfg.Storage
	if l := len(strings.TrimSpace(s.Version)); l == 0 || l > 5 {
		return fmt.Errorf("storage version %q must have 1 to 5 characters", s.Version)
	}
	if s.Offset < 0 || s.ReservedTrailer < 0 {
		return fmt.Errorf("storage offset and reserved_trailer must not be negative")
	}
	if s.Capacity == 0 || s.Capacity.Bytes() > 16<<20 {
		return fmt.Errorf("storage capacity %s out of range", s.Capacity.HumanReadable())
	}

	switch strings.ToLower(s.Medium) {
	case MediumRAM:
	case MediumFile:
		if s.Path == "" {
			return fmt.Errorf("file medium requires path")
		}
	case MediumFlash:
		if s.PageSize <= 0 || s.Capacity.Bytes()%uint64(s.PageSize) != 0 {
			return fmt.Errorf("flash capacity %s is not a multiple of page_size %d", s.Capacity, s.PageSize)
		}
	case MediumAT24:
		if s.I2CBus == "" {
			return fmt.Errorf("at24 medium requires i2c_bus")
		}
		if s.Capacity.Bytes() > 0x10000 {
			return fmt.Errorf("at24 capacity %s exceeds 64KB", s.Capacity)
		}
		if s.I2CAddress > 0x7F {
			return fmt.Errorf("at24 i2c_address 0x%X is not a 7-bit address", s.I2CAddress)
		}
	default:
		return fmt.Errorf("unknown storage medium %q", s.Medium)
	}

	// ------------------------------------------------------------
	// MMU
	// ------------------------------------------------------------

	if cfg.MMU.Enabled {
		if cfg.MMU.Device == "" {
			return fmt.Errorf("mmu enabled but no device configured")
		}
		if cfg.MMU.Baud <= 0 {
			return fmt.Errorf("mmu baud must be positive")
		}
	}

	return nil
}

// lookupAxis finds an axis regardless of key case
func lookupAxis(cfg *Machine, name string) (AxisConfig, bool) {
	for key, axis := range cfg.Axes {
		if strings.EqualFold(key, name) {
			return axis, true
		}
	}
	return AxisConfig{}, false
}
