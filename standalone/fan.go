package standalone

// Fan factory values
const (
	fanMinPWM             = 0
	fanMaxPWM             = 255
	autoFanTemperature    = 50
	autoFanMinSpeed       = 0
	autoFanSpeed          = 255
	controllerFanMinSpeed = 0
	controllerFanSpeed    = 255
	fanPWMFrequency       = 250
)

// Fan is one PWM fan, optionally switched by hotend temperature or stepper
// activity
type Fan struct {
	Index int
	Data  FanData

	autoHotends []int
	controller  bool
	Speed       uint8
}

// NewFan creates fan idx. autoMonitor is the factory auto-fan bitmask.
func NewFan(idx int, autoMonitor uint8, hotends int) *Fan {
	f := &Fan{Index: idx}
	f.reset(autoMonitor, hotends)
	f.PostLoad(hotends)
	return f
}

func (f *Fan) reset(autoMonitor uint8, hotends int) {
	f.Data = FanData{
		MinSpeed:           fanMinPWM,
		MaxSpeed:           fanMaxPWM,
		AutoMonitor:        autoMonitor,
		Freq:               fanPWMFrequency,
		TriggerTemperature: autoFanTemperature,
	}
	for h := 0; h < hotends; h++ {
		if autoMonitor&(1<<h) != 0 {
			f.Data.MinSpeed = autoFanMinSpeed
			f.Data.MaxSpeed = autoFanSpeed
		}
	}
	if autoMonitor&(1<<ControllerFanBit) != 0 {
		f.Data.MinSpeed = controllerFanMinSpeed
		f.Data.MaxSpeed = controllerFanSpeed
	}
}

// PostLoad decodes the auto-monitor bitmask
func (f *Fan) PostLoad(hotends int) {
	f.autoHotends = f.autoHotends[:0]
	for h := 0; h < hotends && h < ControllerFanBit; h++ {
		if f.Data.AutoMonitor&(1<<h) != 0 {
			f.autoHotends = append(f.autoHotends, h)
		}
	}
	f.controller = f.Data.AutoMonitor&(1<<ControllerFanBit) != 0
}

// IsController reports whether the fan follows stepper activity
func (f *Fan) IsController() bool {
	return f.controller
}

// MonitoredHotends returns the hotends that switch this fan on
func (f *Fan) MonitoredHotends() []int {
	return f.autoHotends
}

// SetSpeed clamps speed to the configured range; zero turns the fan off
func (f *Fan) SetSpeed(speed uint8) {
	switch {
	case speed == 0:
		f.Speed = 0
	case speed < f.Data.MinSpeed:
		f.Speed = f.Data.MinSpeed
	case speed > f.Data.MaxSpeed:
		f.Speed = f.Data.MaxSpeed
	default:
		f.Speed = speed
	}
}

// Update switches an auto fan from the hotend temperatures
func (f *Fan) Update(temps []float64, steppersActive bool) {
	if len(f.autoHotends) == 0 && !f.controller {
		return
	}
	on := f.controller && steppersActive
	for _, h := range f.autoHotends {
		if h < len(temps) && temps[h] >= float64(f.Data.TriggerTemperature) {
			on = true
		}
	}
	if on {
		f.Speed = f.Data.MaxSpeed
	} else {
		f.Speed = f.Data.MinSpeed
	}
}
