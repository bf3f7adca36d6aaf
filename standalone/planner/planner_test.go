package planner

import (
	"errors"
	"testing"

	"printcore/core"
	"printcore/standalone/config"
	"printcore/standalone/kinematics"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	cfg := config.DefaultConfig()
	kin, err := kinematics.NewCartesian(cfg)
	if err != nil {
		t.Fatalf("NewCartesian failed: %v", err)
	}
	return NewPlanner(cfg, kin)
}

func TestPlannerDefaults(t *testing.T) {
	p := newTestPlanner(t)

	if p.Axes() != 4 {
		t.Fatalf("Expected 4 axes, got %d", p.Axes())
	}
	if p.Settings.StepsPerMM[2] != 400 {
		t.Errorf("Expected Z 400 steps/mm, got %v", p.Settings.StepsPerMM[2])
	}
	if p.PulseCycle() != 25 {
		t.Errorf("Expected 25us pulse cycle at 40k steps/s, got %d", p.PulseCycle())
	}
	want := uint32(float32(p.Settings.MaxAcceleration[0]) * 80)
	if p.AccelerationRate(0) != want {
		t.Errorf("Expected X rate %d, got %d", want, p.AccelerationRate(0))
	}
	if p.MMPerStep(0) != 1.0/80 {
		t.Errorf("Expected X mm/step %v, got %v", float32(1.0/80), p.MMPerStep(0))
	}
}

func TestRefreshPositioning(t *testing.T) {
	p := newTestPlanner(t)
	p.SetPosition(kinematics.Position{X: 10, Y: 20, Z: 5})

	if p.StepCount(0) != 800 {
		t.Fatalf("Expected 800 X steps, got %d", p.StepCount(0))
	}
	if p.RefreshPositioning() {
		t.Error("Unchanged steps/mm should not change step counts")
	}

	p.Settings.StepsPerMM[0] = 100
	if !p.RefreshPositioning() {
		t.Error("Changed steps/mm should report a change")
	}
	if p.StepCount(0) != 1000 {
		t.Errorf("Expected 1000 X steps, got %d", p.StepCount(0))
	}
	if p.MMPerStep(0) != 0.01 {
		t.Errorf("Expected 0.01 mm/step, got %v", p.MMPerStep(0))
	}
}

func TestQueueAndPoll(t *testing.T) {
	p := newTestPlanner(t)
	clock := &core.ManualClock{}
	sched := core.NewScheduler(clock)
	sched.Register(p)

	move := &Move{
		End:      kinematics.Position{X: 10},
		Velocity: 50,
		Accel:    1000,
		Distance: 10,
	}
	if err := p.QueueMove(move); err != nil {
		t.Fatalf("QueueMove failed: %v", err)
	}
	if move.Duration == 0 {
		t.Fatal("Expected a non-zero move duration")
	}
	if p.IsIdle() {
		t.Fatal("Planner should be busy with a queued move")
	}
	if p.GetCurrentPosition().X != 10 {
		t.Errorf("Planned position should follow the queue, got %v", p.GetCurrentPosition())
	}

	sched.Idle()
	if p.Pending() != 1 {
		t.Errorf("Expected the move to be active, pending %d", p.Pending())
	}

	clock.Advance(move.Duration)
	sched.Idle()
	if !p.IsIdle() {
		t.Error("Planner should be idle after the move duration")
	}
	if p.StepCount(0) != 800 || p.Completed() != 1 {
		t.Errorf("Expected 800 X steps after 1 move, got %d after %d", p.StepCount(0), p.Completed())
	}
}

func TestTrapezoidLimitsVelocity(t *testing.T) {
	p := newTestPlanner(t)
	p.Settings.MaxFeedrate[0] = 20

	move := &Move{End: kinematics.Position{X: 100}, Velocity: 100, Accel: 1000, Distance: 100}
	if err := p.QueueMove(move); err != nil {
		t.Fatalf("QueueMove failed: %v", err)
	}
	if move.Velocity != 20 {
		t.Errorf("Expected velocity clamped to 20, got %v", move.Velocity)
	}
	if move.CruiseTicks == 0 {
		t.Error("A long move should have a cruise phase")
	}

	short := &Move{Start: move.End, End: kinematics.Position{X: 100.1}, Velocity: 20, Accel: 1000, Distance: 0.1}
	p.QueueMove(short)
	if short.CruiseTicks != 0 || short.AccelTicks != short.DecelTicks {
		t.Errorf("A short move should have a triangle profile: %+v", short)
	}
}

func TestQueueRejectsOutOfLimits(t *testing.T) {
	p := newTestPlanner(t)

	err := p.QueueMove(&Move{End: kinematics.Position{X: 500}, Velocity: 10, Distance: 500})
	if !errors.Is(err, kinematics.ErrOutOfLimits) {
		t.Errorf("Expected ErrOutOfLimits, got %v", err)
	}
	if !p.IsIdle() {
		t.Error("Rejected move must not be queued")
	}
}

func TestQueueFull(t *testing.T) {
	p := newTestPlanner(t)
	for i := 0; i < QueueSize; i++ {
		if err := p.QueueMove(&Move{End: kinematics.Position{X: 1}, Velocity: 10, Distance: 1}); err != nil {
			t.Fatalf("QueueMove %d failed: %v", i, err)
		}
	}
	if err := p.QueueMove(&Move{Velocity: 10, Distance: 1}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	p.ClearQueue()
	if !p.IsIdle() {
		t.Error("ClearQueue should leave the planner idle")
	}
}
