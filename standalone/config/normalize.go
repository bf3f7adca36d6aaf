package config

import "strings"

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Machine) {
	if cfg == nil {
		return
	}

	// Lowercase keys and enum values
	axes := make(map[string]AxisConfig, len(cfg.Axes))
	for name, axis := range cfg.Axes {
		axes[strings.ToLower(name)] = axis
	}
	cfg.Axes = axes

	heaters := make(map[string]HeaterConfig, len(cfg.Heaters))
	for name, heater := range cfg.Heaters {
		heaters[strings.ToLower(name)] = heater
	}
	cfg.Heaters = heaters

	cfg.Leveling.Mode = strings.ToLower(cfg.Leveling.Mode)
	if cfg.Leveling.Mode == "" {
		cfg.Leveling.Mode = LevelingNone
	}
	cfg.Storage.Medium = strings.ToLower(cfg.Storage.Medium)
	cfg.Storage.Version = strings.TrimSpace(cfg.Storage.Version)

	// An MMU feeds every extruder through one hotend
	if cfg.MMU.Enabled && cfg.Hotends > 1 {
		cfg.Hotends = 1
	}
}
