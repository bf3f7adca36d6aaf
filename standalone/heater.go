package standalone

import (
	"fmt"
	"math"

	"printcore/standalone/config"
)

// Heater kinds, also the keys of config.Machine.Heaters
const (
	KindHotend  = "hotend"
	KindBed     = "bed"
	KindChamber = "chamber"
	KindCooler  = "cooler"
)

// PIDSampleTime is the temperature loop period in seconds
const PIDSampleTime = 0.1

const kelvinOffset = 273.15

// Fallback factory values for kinds the descriptor does not list
var heaterFallback = map[string]config.HeaterConfig{
	KindChamber: {PID: [3]float64{10, 1, 305}, MinTemp: 5, MaxTemp: 100, MaxPower: 1, Sensor: 1, R25: 100000, Beta: 3950},
	KindCooler:  {PID: [3]float64{10, 1, 305}, MinTemp: -15, MaxTemp: 40, MaxPower: 1, Sensor: 1, R25: 100000, Beta: 3950},
}

// Heater is one temperature-controlled element
type Heater struct {
	Kind  string
	Index int
	Data  HeaterData

	factory config.HeaterConfig

	// Derived by PostLoad
	kiScaled float32
	kdScaled float32
	shA      float64
	shB      float64
	ready    bool

	Target float64
}

// NewHeater creates heater idx of the given kind
func NewHeater(kind string, idx int, cfg *config.Machine) *Heater {
	factory, ok := cfg.Heaters[kind]
	if !ok {
		factory = heaterFallback[kind]
	}
	h := &Heater{Kind: kind, Index: idx, factory: factory}
	h.Reset()
	h.PostLoad()
	return h
}

// Name returns the heater name as used in reports, e.g. "hotend0"
func (h *Heater) Name() string {
	return fmt.Sprintf("%s%d", h.Kind, h.Index)
}

// Reset loads factory values
func (h *Heater) Reset() {
	f := h.factory
	maxPID := uint8(math.Round(f.MaxPower * 255))
	h.Data = HeaterData{
		MinTemp: int16(f.MinTemp),
		MaxTemp: int16(f.MaxTemp),
		Freq:    250,
		Flags:   HeaterUsePID | HeaterThermalProtection,
		PID: PIDData{
			Kp:       float32(f.PID[0]),
			Ki:       float32(f.PID[1]),
			Kd:       float32(f.PID[2]),
			DriveMin: 40,
			DriveMax: 230,
			Max:      maxPID,
		},
		Sensor: SensorData{
			Type:    int16(f.Sensor),
			R25:     float32(f.R25),
			Beta:    float32(f.Beta),
			PullupR: 4700,
		},
	}
	if h.Kind == KindHotend {
		h.Data.PID.Kc = 100
	}
}

// PostLoad recomputes the sampled PID terms and the thermistor model
func (h *Heater) PostLoad() {
	h.kiScaled = h.Data.PID.Ki * PIDSampleTime
	h.kdScaled = h.Data.PID.Kd / PIDSampleTime

	s := h.Data.Sensor
	h.ready = s.R25 > 0 && s.Beta > 0
	if h.ready {
		h.shB = 1 / float64(s.Beta)
		h.shA = 1/(25+kelvinOffset) - h.shB*math.Log(float64(s.R25))
	}
}

// ScaledGains returns Ki and Kd scaled to the sample period
func (h *Heater) ScaledGains() (ki, kd float32) {
	return h.kiScaled, h.kdScaled
}

// Temperature converts a thermistor resistance to degrees Celsius
func (h *Heater) Temperature(ohms float64) (float64, error) {
	if !h.ready || ohms <= 0 {
		return 0, fmt.Errorf("%s: no usable sensor", h.Name())
	}
	lnR := math.Log(ohms)
	inv := h.shA + h.shB*lnR + float64(h.Data.Sensor.SHC)*lnR*lnR*lnR
	return 1/inv - kelvinOffset, nil
}

// SetPID updates the gains and marks the heater tuned
func (h *Heater) SetPID(kp, ki, kd float32) {
	h.Data.PID.Kp, h.Data.PID.Ki, h.Data.PID.Kd = kp, ki, kd
	h.Data.Flags |= HeaterPIDTuned
	h.PostLoad()
}

// SetTarget sets the target temperature, rejecting values outside the
// configured range
func (h *Heater) SetTarget(temp float64) error {
	if temp != 0 && (temp < float64(h.Data.MinTemp) || temp > float64(h.Data.MaxTemp)) {
		return fmt.Errorf("%s: target %.1f outside [%d, %d]", h.Name(), temp, h.Data.MinTemp, h.Data.MaxTemp)
	}
	h.Target = temp
	return nil
}
