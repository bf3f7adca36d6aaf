// Package config describes a machine build: subsystem counts, optional
// features, the settings medium and the MMU link. The descriptor fixes the
// settings record layout, so changing counts or features needs a new
// storage version.
package config

import "github.com/c2h5oh/datasize"

// Leveling modes
const (
	LevelingNone = "none"
	LevelingMesh = "mesh" // grid stored inside the settings record
	LevelingUBL  = "ubl"  // grid stored in mesh slots
)

// Storage media
const (
	MediumRAM   = "ram"
	MediumFile  = "file"
	MediumFlash = "flash"
	MediumAT24  = "at24"
)

// Machine is the complete build descriptor
type Machine struct {
	Name string `json:"name" yaml:"name"`

	Extruders int `json:"extruders" yaml:"extruders"`
	Hotends   int `json:"hotends" yaml:"hotends"`
	Beds      int `json:"beds" yaml:"beds"`
	Chambers  int `json:"chambers" yaml:"chambers"`
	Coolers   int `json:"coolers" yaml:"coolers"`
	Fans      int `json:"fans" yaml:"fans"`
	Servos    int `json:"servos" yaml:"servos"`

	Axes    map[string]AxisConfig   `json:"axes" yaml:"axes"`       // "x", "y", "z", "e"
	Heaters map[string]HeaterConfig `json:"heaters" yaml:"heaters"` // "hotend", "bed", "chamber", "cooler"

	// Global motion parameters
	DefaultVelocity float64 `json:"default_velocity" yaml:"default_velocity"` // mm/s
	DefaultAccel    float64 `json:"default_accel" yaml:"default_accel"`       // mm/s^2

	Features Features `json:"features" yaml:"features"`
	Leveling Leveling `json:"leveling" yaml:"leveling"`
	Storage  Storage  `json:"storage" yaml:"storage"`
	MMU      MMU      `json:"mmu" yaml:"mmu"`
}

// AxisConfig holds the factory motion values of one axis
type AxisConfig struct {
	StepsPerMM  float64 `json:"steps_per_mm" yaml:"steps_per_mm"`
	MaxVelocity float64 `json:"max_velocity" yaml:"max_velocity"` // mm/s
	MaxAccel    float64 `json:"max_accel" yaml:"max_accel"`       // mm/s^2
	MaxJerk     float64 `json:"max_jerk" yaml:"max_jerk"`         // mm/s
	HomingVel   float64 `json:"homing_vel" yaml:"homing_vel"`     // mm/s
	MinPosition float64 `json:"min_position" yaml:"min_position"` // mm
	MaxPosition float64 `json:"max_position" yaml:"max_position"` // mm
	InvertDir   bool    `json:"invert_dir" yaml:"invert_dir"`
	Microsteps  int     `json:"microsteps" yaml:"microsteps"`
	CurrentMA   int     `json:"current_ma" yaml:"current_ma"` // Trinamic run current
}

// HeaterConfig holds the factory values shared by every heater of a kind
type HeaterConfig struct {
	PID      [3]float64 `json:"pid" yaml:"pid"` // Kp, Ki, Kd
	MinTemp  float64    `json:"min_temp" yaml:"min_temp"`
	MaxTemp  float64    `json:"max_temp" yaml:"max_temp"`
	MaxPower float64    `json:"max_power" yaml:"max_power"` // 0.0-1.0
	Sensor   int        `json:"sensor" yaml:"sensor"`       // thermistor table id
	R25      float64    `json:"r25" yaml:"r25"`
	Beta     float64    `json:"beta" yaml:"beta"`
}

// Features switches optional subsystems in or out of the build
type Features struct {
	Probe         bool `json:"probe" yaml:"probe"`
	BLTouch       bool `json:"bltouch" yaml:"bltouch"`
	LCD           bool `json:"lcd" yaml:"lcd"`
	FWRetract     bool `json:"fwretract" yaml:"fwretract"`
	Volumetric    bool `json:"volumetric" yaml:"volumetric"`
	LinAdvance    bool `json:"lin_advance" yaml:"lin_advance"`
	AdvancedPause bool `json:"advanced_pause" yaml:"advanced_pause"`
	Trinamic      bool `json:"trinamic" yaml:"trinamic"`
}

// Leveling selects the bed leveling system and its grid
type Leveling struct {
	Mode  string `json:"mode" yaml:"mode"`
	GridX int    `json:"grid_x" yaml:"grid_x"`
	GridY int    `json:"grid_y" yaml:"grid_y"`
}

// Storage selects the settings medium and record options
type Storage struct {
	Medium     string            `json:"medium" yaml:"medium"`
	Path       string            `json:"path" yaml:"path"` // file medium
	Capacity   datasize.ByteSize `json:"capacity" yaml:"capacity"`
	PageSize   int               `json:"page_size" yaml:"page_size"`     // flash erase unit, at24 write page
	I2CBus     string            `json:"i2c_bus" yaml:"i2c_bus"`         // at24 medium
	I2CAddress uint16            `json:"i2c_address" yaml:"i2c_address"` // at24 medium

	Offset          int    `json:"offset" yaml:"offset"`
	Version         string `json:"version" yaml:"version"`
	AutoInit        bool   `json:"auto_init" yaml:"auto_init"`
	Quiet           bool   `json:"quiet" yaml:"quiet"` // no store/load chit-chat
	ReservedTrailer int    `json:"reserved_trailer" yaml:"reserved_trailer"`
}

// MMU configures the filament changer link
type MMU struct {
	Enabled          bool   `json:"enabled" yaml:"enabled"`
	Device           string `json:"device" yaml:"device"`
	Baud             int    `json:"baud" yaml:"baud"`
	Mode12V          bool   `json:"mode_12v" yaml:"mode_12v"`
	StartupTimeoutMs int    `json:"startup_timeout_ms" yaml:"startup_timeout_ms"`
	Runout           bool   `json:"runout" yaml:"runout"` // FINDA runout detection
}

// HasLeveling reports a leveling system in the build
func (m *Machine) HasLeveling() bool {
	return m.Leveling.Mode == LevelingMesh || m.Leveling.Mode == LevelingUBL
}

// AxisNames returns the stepper axes in layout order: X Y Z then one E
// per extruder
func (m *Machine) AxisNames() []string {
	names := []string{"x", "y", "z"}
	for i := 0; i < m.Extruders; i++ {
		names = append(names, "e")
	}
	return names
}

// DefaultConfig returns the configuration of a single-extruder Cartesian
// printer with a mesh-leveled bed and RAM-backed settings
func DefaultConfig() *Machine {
	return &Machine{
		Name:      "printcore",
		Extruders: 1,
		Hotends:   1,
		Beds:      1,
		Fans:      2,
		Servos:    1,
		Axes: map[string]AxisConfig{
			"x": {
				StepsPerMM:  80.0,
				MaxVelocity: 300.0,
				MaxAccel:    3000.0,
				MaxJerk:     10.0,
				HomingVel:   50.0,
				MinPosition: 0.0,
				MaxPosition: 220.0,
				Microsteps:  16,
				CurrentMA:   800,
			},
			"y": {
				StepsPerMM:  80.0,
				MaxVelocity: 300.0,
				MaxAccel:    3000.0,
				MaxJerk:     10.0,
				HomingVel:   50.0,
				MinPosition: 0.0,
				MaxPosition: 220.0,
				Microsteps:  16,
				CurrentMA:   800,
			},
			"z": {
				StepsPerMM:  400.0,
				MaxVelocity: 10.0,
				MaxAccel:    100.0,
				MaxJerk:     0.4,
				HomingVel:   5.0,
				MinPosition: 0.0,
				MaxPosition: 250.0,
				Microsteps:  16,
				CurrentMA:   800,
			},
			"e": {
				StepsPerMM:  96.0,
				MaxVelocity: 50.0,
				MaxAccel:    5000.0,
				MaxJerk:     5.0,
				MinPosition: -10000.0,
				MaxPosition: 10000.0,
				Microsteps:  16,
				CurrentMA:   650,
			},
		},
		Heaters: map[string]HeaterConfig{
			"hotend": {
				PID:      [3]float64{22.2, 1.08, 114.0},
				MinTemp:  5.0,
				MaxTemp:  275.0,
				MaxPower: 1.0,
				Sensor:   1,
				R25:      100000.0,
				Beta:     4092.0,
			},
			"bed": {
				PID:      [3]float64{10.0, 0.023, 305.0},
				MinTemp:  5.0,
				MaxTemp:  150.0,
				MaxPower: 1.0,
				Sensor:   1,
				R25:      100000.0,
				Beta:     3950.0,
			},
		},
		DefaultVelocity: 50.0,
		DefaultAccel:    500.0,
		Features: Features{
			Probe:      true,
			BLTouch:    true,
			LCD:        true,
			FWRetract:  true,
			Volumetric: true,
			LinAdvance: true,
		},
		Leveling: Leveling{
			Mode:  LevelingMesh,
			GridX: 3,
			GridY: 3,
		},
		Storage: Storage{
			Medium:          MediumRAM,
			Capacity:        4 * datasize.KB,
			Offset:          100,
			Version:         "PCV01",
			ReservedTrailer: 129,
		},
		MMU: MMU{
			Baud:             115200,
			StartupTimeoutMs: 30000,
		},
	}
}
