package standalone

// Persisted subsystem data. Every struct here is encoded field by field in
// little-endian order, so fields are fixed-size and explicit padding keeps
// the record layout stable.

// PIDData holds the gains of one heater
type PIDData struct {
	Kp       float32
	Ki       float32
	Kd       float32
	Kc       float32 // extrusion-rate term, hotends only
	DriveMin uint8
	DriveMax uint8
	Max      uint8
	_        uint8
}

// SensorData describes the thermistor of one heater
type SensorData struct {
	Type          int16
	ADCLowOffset  int16
	ADCHighOffset int16
	_             int16
	R25           float32
	Beta          float32
	PullupR       float32
	SHC           float32 // Steinhart-Hart C coefficient
}

// HeaterData is the persisted part of a heater
type HeaterData struct {
	MinTemp int16
	MaxTemp int16
	Freq    uint16
	Flags   uint8 // HeaterFlag bits
	_       uint8
	PID     PIDData
	Sensor  SensorData
}

// Heater flag bits
const (
	HeaterUsePID uint8 = 1 << iota
	HeaterInverted
	HeaterHardwarePWM
	HeaterThermalProtection
	HeaterPIDTuned
)

// FanData is the persisted part of a fan
type FanData struct {
	MinSpeed           uint8
	MaxSpeed           uint8
	AutoMonitor        uint8 // bit per hotend, bit 7 = controller fan
	Flags              uint8
	Freq               uint16
	TriggerTemperature int16
}

// ControllerFanBit marks a fan driven by stepper activity
const ControllerFanBit = 7

// ToolData holds hotend offsets, indexed [axis][hotend]
type ToolData struct {
	HotendOffset [3][MaxHotends]float32
}

// MaxHotends bounds the persisted offset table
const MaxHotends = 4

// ProbeData holds the probe offsets and probing speeds
type ProbeData struct {
	Offset      [3]float32
	SpeedFast   uint16 // mm/min
	SpeedSlow   uint16
	Repetitions uint8
	_           [3]uint8
}

// PreheatPresets are the three LCD material presets
type PreheatPresets struct {
	HotendTemp  [3]int16
	BedTemp     [3]int16
	ChamberTemp [3]int16
	FanSpeed    [3]int16
}

// RetractData holds the firmware retraction lengths and feedrates
type RetractData struct {
	RetractLength       float32
	RetractFeedrate     float32 // mm/s
	RetractZLift        float32
	RecoverLength       float32
	RecoverFeedrate     float32
	SwapRetractLength   float32
	SwapRecoverLength   float32
	SwapRecoverFeedrate float32
}

// PauseData holds the advanced pause lengths of one extruder
type PauseData struct {
	UnloadLength float32
	LoadLength   float32
}

// TrinamicData holds the driver settings, one entry per axis (X Y Z E)
type TrinamicData struct {
	Current         [4]uint16 // mA
	Microsteps      [4]uint16
	HybridThreshold [4]uint32 // mm/s
	StealthEnabled  [4]bool
	StallThreshold  [3]int8 // stallguard, XYZ only
	_               uint8
}

// Sound modes
const (
	SoundModeOn uint8 = iota
	SoundModeSilent
	SoundModeMute
)
