//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/servo"
)

// Board wiring
const (
	servoPin  = machine.GP28 // slice 6 A
	buzzerPin = machine.GP16 // slice 0 A
	probePin  = machine.GP22
)

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	SetPeriod(period uint64) error
	Top() uint32
	Set(channel uint8, value uint32)
}

// pwmOutput drives one pin from its slice
type pwmOutput struct {
	pwm     pwmPeripheral
	channel uint8
}

func newPWMOutput(pwm pwmPeripheral, pin machine.Pin, period uint64) (*pwmOutput, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
		return nil, err
	}
	ch, err := pwm.Channel(pin)
	if err != nil {
		return nil, err
	}
	return &pwmOutput{pwm: pwm, channel: ch}, nil
}

// servoOutput drives the probe deploy servo
type servoOutput struct {
	servo servo.Servo
}

func newServoOutput(pwm servo.PWM, pin machine.Pin) (*servoOutput, error) {
	s, err := servo.New(pwm, pin)
	if err != nil {
		return nil, err
	}
	return &servoOutput{servo: s}, nil
}

func (s *servoOutput) SetAngle(index, angle int) error {
	if index != 0 {
		return errors.New("one servo wired")
	}
	return s.servo.SetAngle(angle)
}

// buzzer plays a square wave at the requested pitch; 0 is silence
type buzzer struct {
	out *pwmOutput
}

func (b *buzzer) Tone(freqHz uint16) {
	if freqHz == 0 {
		b.out.pwm.Set(b.out.channel, 0)
		return
	}
	if err := b.out.pwm.SetPeriod(1e9 / uint64(freqHz)); err != nil {
		return
	}
	b.out.pwm.Set(b.out.channel, b.out.pwm.Top()/2)
}

// probeInput reads the BLTouch signal, high when triggered
type probeInput struct {
	pin machine.Pin
}

func newProbeInput(pin machine.Pin) *probeInput {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return &probeInput{pin: pin}
}

func (p *probeInput) Triggered() bool {
	return p.pin.Get()
}
