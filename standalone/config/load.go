package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// LoadConfig parses a JSON configuration and returns a Machine
func LoadConfig(jsonData []byte) (*Machine, error) {
	var config Machine

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	return &config, nil
}

// LoadYAML parses a YAML configuration and returns a Machine
func LoadYAML(yamlData []byte) (*Machine, error) {
	var config Machine

	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	return &config, nil
}

// Load reads a descriptor file, picking the format from its extension,
// then validates and normalizes it
func Load(path string) (*Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg *Machine
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = LoadYAML(data)
	default:
		cfg, err = LoadConfig(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	Normalize(cfg)

	return cfg, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *Machine) {
	defaults := DefaultConfig()

	if config.Name == "" {
		config.Name = defaults.Name
	}
	if config.Extruders == 0 {
		config.Extruders = 1
	}

	// Default motion parameters
	if config.DefaultVelocity == 0 {
		config.DefaultVelocity = 50.0 // 50 mm/s
	}
	if config.DefaultAccel == 0 {
		config.DefaultAccel = 500.0 // 500 mm/s^2
	}

	// Apply defaults to each axis
	if config.Axes == nil {
		config.Axes = make(map[string]AxisConfig)
	}
	for name, def := range defaults.Axes {
		if _, ok := config.Axes[name]; !ok {
			config.Axes[name] = def
		}
	}
	for name, axis := range config.Axes {
		if axis.MaxVelocity == 0 {
			axis.MaxVelocity = 300.0
		}
		if axis.MaxAccel == 0 {
			axis.MaxAccel = 1000.0
		}
		if axis.MaxJerk == 0 {
			axis.MaxJerk = 10.0
		}
		if axis.HomingVel == 0 {
			axis.HomingVel = 5.0
		}
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 80.0 // Common value
		}
		if axis.Microsteps == 0 {
			axis.Microsteps = 16
		}
		if axis.CurrentMA == 0 {
			axis.CurrentMA = 800
		}
		config.Axes[name] = axis
	}

	// Apply defaults to heaters
	if config.Heaters == nil {
		config.Heaters = make(map[string]HeaterConfig)
	}
	for name, def := range defaults.Heaters {
		if _, ok := config.Heaters[name]; !ok {
			config.Heaters[name] = def
		}
	}
	for name, heater := range config.Heaters {
		if heater.MaxTemp == 0 {
			heater.MaxTemp = 300.0
		}
		if heater.MaxPower == 0 {
			heater.MaxPower = 1.0
		}
		if heater.R25 == 0 {
			heater.R25 = 100000.0
		}
		if heater.Beta == 0 {
			heater.Beta = 3950.0
		}
		config.Heaters[name] = heater
	}

	// Leveling
	if config.Leveling.Mode == "" {
		config.Leveling.Mode = LevelingNone
	}
	if config.Leveling.GridX == 0 {
		config.Leveling.GridX = 3
	}
	if config.Leveling.GridY == 0 {
		config.Leveling.GridY = 3
	}

	// Storage
	s := &config.Storage
	if s.Medium == "" {
		s.Medium = MediumRAM
	}
	if s.Capacity == 0 {
		s.Capacity = 4 * datasize.KB
	}
	if s.Offset == 0 {
		s.Offset = defaults.Storage.Offset
	}
	if s.Version == "" {
		s.Version = defaults.Storage.Version
	}
	if s.ReservedTrailer == 0 {
		s.ReservedTrailer = defaults.Storage.ReservedTrailer
	}
	if s.PageSize == 0 {
		switch strings.ToLower(s.Medium) {
		case MediumFlash:
			s.PageSize = 256
		case MediumAT24:
			s.PageSize = 32
		}
	}
	if s.I2CAddress == 0 && strings.EqualFold(s.Medium, MediumAT24) {
		s.I2CAddress = 0x57
	}

	// MMU
	if config.MMU.Baud == 0 {
		config.MMU.Baud = 115200
	}
	if config.MMU.StartupTimeoutMs == 0 {
		config.MMU.StartupTimeoutMs = 30000
	}
}
