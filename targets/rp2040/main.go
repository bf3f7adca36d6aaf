//go:build rp2040

package main

import (
	"machine"
	"time"

	"printcore/core"
	"printcore/standalone"
	"printcore/standalone/config"
)

func main() {
	// Disable a watchdog left running by the previous boot
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	cfg := config.DefaultConfig()
	cfg.Storage.Medium = config.MediumAT24
	cfg.Storage.I2CAddress = 0x50
	cfg.Storage.PageSize = 32
	cfg.MMU.Enabled = true

	usb := machine.Serial
	opts := standalone.Options{
		Clock: hardwareClock{},
		Output: func(line string) {
			usb.Write([]byte(line))
			usb.Write([]byte{'\n'})
		},
	}

	if s, err := newServoOutput(machine.PWM6, servoPin); err == nil {
		opts.Hardware.ServoOut = s.SetAngle
	}
	if out, err := newPWMOutput(machine.PWM0, buzzerPin, 1e9/1000); err == nil {
		opts.Hardware.Buzzer = &buzzer{out: out}
	}
	opts.Hardware.ProbeSensor = newProbeInput(probePin)
	if link, err := newUARTLink(uint32(cfg.MMU.Baud)); err == nil {
		opts.MMU = link
	}

	med, _, err := standalone.OpenMedium(cfg.Storage, at24Bus)
	if err != nil {
		halt(err)
	}
	mgr, err := standalone.NewManagerWithConfig(cfg, opts)
	if err != nil {
		halt(err)
	}
	if err := mgr.Initialize(med); err != nil {
		halt(err)
	}
	mgr.Start()

	for !mgr.Halted() {
		for usb.Buffered() > 0 {
			b, err := usb.ReadByte()
			if err != nil {
				break
			}
			mgr.ProcessByte(b)
		}
		if out := mgr.GetOutput(); len(out) > 0 {
			usb.Write(out)
		}
		mgr.Tick()
		time.Sleep(100 * time.Microsecond)
	}
	blink(500 * time.Millisecond)
}

// halt reports a startup failure on USB and blinks the LED fast
func halt(err error) {
	machine.Serial.Write([]byte(core.PrefixError + err.Error() + "\n"))
	blink(100 * time.Millisecond)
}

func blink(period time.Duration) {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(period)
		led.Low()
		time.Sleep(period)
	}
}
