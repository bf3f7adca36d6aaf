package bltouch

import (
	"errors"
	"reflect"
	"testing"

	"printcore/core"
)

// tickClock advances on every read so WaitFor makes progress
type tickClock struct {
	ms uint32
}

func (c *tickClock) Millis() uint32 {
	c.ms += 5
	return c.ms
}

type fakeServo struct {
	angles []int
	err    error
}

func (s *fakeServo) SetAngle(angle int) error {
	if s.err != nil {
		return s.err
	}
	s.angles = append(s.angles, angle)
	return nil
}

// fakeSensor reports readings in order, then repeats the last one
type fakeSensor struct {
	readings []bool
}

func (s *fakeSensor) Triggered() bool {
	if len(s.readings) == 0 {
		return false
	}
	v := s.readings[0]
	if len(s.readings) > 1 {
		s.readings = s.readings[1:]
	}
	return v
}

func newTestProbe(readings ...bool) (*Probe, *fakeServo, *tickClock) {
	clock := &tickClock{}
	servo := &fakeServo{}
	p := New(core.NewScheduler(clock), servo, &fakeSensor{readings: readings})
	return p, servo, clock
}

func TestDeployWaitsForSettle(t *testing.T) {
	p, servo, clock := newTestProbe()

	start := clock.ms
	if err := p.Deploy(); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	if !reflect.DeepEqual(servo.angles, []int{10}) {
		t.Errorf("Expected [10], got %v", servo.angles)
	}
	if clock.ms-start < DeployDelay {
		t.Errorf("Deploy returned after %dms, before the %dms settle delay", clock.ms-start, DeployDelay)
	}
	if p.Busy() {
		t.Error("Probe should not be busy after Deploy returns")
	}
}

func TestDeployClearsAlarmOnce(t *testing.T) {
	p, servo, _ := newTestProbe(true, false)

	if err := p.Deploy(); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	want := []int{10, 160, 90, 10}
	if !reflect.DeepEqual(servo.angles, want) {
		t.Errorf("Expected %v, got %v", want, servo.angles)
	}
}

func TestDeployAlarm(t *testing.T) {
	p, servo, _ := newTestProbe(true)

	err := p.Deploy()
	if !errors.Is(err, ErrAlarm) {
		t.Fatalf("Expected ErrAlarm, got %v", err)
	}
	if len(servo.angles) != 4 {
		t.Errorf("Expected a single retry, got %v", servo.angles)
	}
}

func TestStowAlarm(t *testing.T) {
	p, servo, _ := newTestProbe(true)

	if err := p.Stow(); !errors.Is(err, ErrAlarm) {
		t.Fatalf("Expected ErrAlarm, got %v", err)
	}
	want := []int{90, 160, 90}
	if !reflect.DeepEqual(servo.angles, want) {
		t.Errorf("Expected %v, got %v", want, servo.angles)
	}
}

func TestSendBusy(t *testing.T) {
	p, _, _ := newTestProbe()

	if err := p.Send(CmdSelfTest, CommandDelay); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := p.Send(CmdReset, CommandDelay); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	if p.Last() != CmdSelfTest {
		t.Errorf("Expected last command selftest, got %s", p.Last())
	}
}

func TestModeConv(t *testing.T) {
	tests := []struct {
		v5   bool
		want []int
	}{
		{true, []int{10, 60, 130, 140, 90}},
		{false, []int{10, 60, 130, 150, 90}},
	}

	for _, tt := range tests {
		p, servo, _ := newTestProbe()
		p.LastMode = !tt.v5

		if err := p.ModeConv(tt.v5); err != nil {
			t.Fatalf("ModeConv(%v) failed: %v", tt.v5, err)
		}
		if !reflect.DeepEqual(servo.angles, tt.want) {
			t.Errorf("ModeConv(%v): expected %v, got %v", tt.v5, tt.want, servo.angles)
		}
		if p.LastMode != tt.v5 {
			t.Errorf("ModeConv(%v) should remember the mode", tt.v5)
		}
	}
}

func TestInitSetsVoltage(t *testing.T) {
	p, servo, _ := newTestProbe()
	p.LastMode = true

	if err := p.Init(true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	want := []int{160, 90, 10, 60, 130, 140, 90}
	if !reflect.DeepEqual(servo.angles, want) {
		t.Errorf("Expected %v, got %v", want, servo.angles)
	}
}

func TestServoError(t *testing.T) {
	p, servo, _ := newTestProbe()
	servo.err = errors.New("pwm fault")

	if err := p.Deploy(); err == nil {
		t.Fatal("Expected servo error")
	}
	if p.Busy() {
		t.Error("A failed send must not leave the probe busy")
	}
}
