package standalone

import (
	"fmt"

	"printcore/bltouch"
	"printcore/core"
	"printcore/eeprom"
	"printcore/medium"
	"printcore/standalone/config"
	"printcore/standalone/kinematics"
	"printcore/standalone/planner"
)

// Hardware groups the optional outputs a printer drives. Nil members are
// simulated.
type Hardware struct {
	Buzzer      Buzzer
	ServoOut    func(servo, angle int) error
	ProbeSensor bltouch.Sensor
}

// Printer owns every persisted subsystem and the settings record that
// holds them
type Printer struct {
	Config  *config.Machine
	Console *core.Console
	Sched   *core.Scheduler

	Kinematics *kinematics.Cartesian
	Planner    *planner.Planner
	Tools      *Tools
	Sound      *Sound
	Heaters    []*Heater // hotends, beds, chambers, coolers
	Fans       []*Fan
	Leveling   *Leveling
	Probe      ProbeData
	Preheat    PreheatPresets
	Servos     []*Servo
	BLTouch    *bltouch.Probe
	Retract    *Retract
	Pause      *Pause
	Trinamic   *Trinamic

	Registry *eeprom.Registry
	EEPROM   *eeprom.Engine
}

// NewPrinter builds the subsystems for cfg and lays out the settings
// record. The record is not attached to a medium yet.
func NewPrinter(cfg *config.Machine, sched *core.Scheduler, console *core.Console, hw Hardware) (*Printer, error) {
	if console == nil {
		console = core.NewConsole(nil)
	}

	kin, err := kinematics.NewCartesian(cfg)
	if err != nil {
		return nil, err
	}

	p := &Printer{
		Config:     cfg,
		Console:    console,
		Sched:      sched,
		Kinematics: kin,
		Planner:    planner.NewPlanner(cfg, kin),
		Tools:      NewTools(cfg.Extruders, cfg.Hotends),
		Sound:      NewSound(sched, hw.Buzzer),
		Leveling:   NewLeveling(cfg.Leveling),
		Probe:      DefaultProbe(),
		Preheat:    DefaultPreheat(),
		Retract:    NewRetract(),
		Pause:      NewPause(cfg.Extruders),
		Trinamic:   NewTrinamic(cfg),
	}

	counts := []struct {
		kind string
		n    int
	}{
		{KindHotend, cfg.Hotends},
		{KindBed, cfg.Beds},
		{KindChamber, cfg.Chambers},
		{KindCooler, cfg.Coolers},
	}
	for _, c := range counts {
		for i := 0; i < c.n; i++ {
			p.Heaters = append(p.Heaters, NewHeater(c.kind, i, cfg))
		}
	}

	for i := 0; i < cfg.Fans; i++ {
		p.Fans = append(p.Fans, NewFan(i, autoMonitorFor(i, cfg.Hotends), cfg.Hotends))
	}

	for i := 0; i < cfg.Servos; i++ {
		idx := i
		var out func(int) error
		if hw.ServoOut != nil {
			out = func(angle int) error { return hw.ServoOut(idx, angle) }
		}
		p.Servos = append(p.Servos, NewServo(i, out))
	}

	if cfg.Features.BLTouch && len(p.Servos) > 0 {
		p.BLTouch = bltouch.New(sched, p.Servos[0], hw.ProbeSensor)
	}

	p.Leveling.OnStale(func(nx, ny uint8) {
		console.Echo("Mesh grid %dx%d does not match %dx%d, ignored", nx, ny, p.Leveling.GridX, p.Leveling.GridY)
	})

	p.Registry = p.buildRegistry()
	return p, nil
}

// autoMonitorFor returns the factory auto-fan mask: fan 1 follows the
// hotends and fan 2 is the controller fan
func autoMonitorFor(fan, hotends int) uint8 {
	switch fan {
	case 1:
		return uint8(1<<hotends) - 1
	case 2:
		return 1 << ControllerFanBit
	}
	return 0
}

// buildRegistry lays out the record. The order is the wire format.
func (p *Printer) buildRegistry() *eeprom.Registry {
	cfg := p.Config
	reg := eeprom.NewRegistry()

	reg.Add(
		eeprom.Fields("mechanics",
			p.Planner.Settings.StepsPerMM,
			p.Planner.Settings.MaxFeedrate,
			p.Planner.Settings.MaxAcceleration,
			p.Planner.Settings.MaxJerk,
			&p.Planner.Settings.Limits,
		).WithReset(p.Planner.Reset).WithPostLoad(p.Planner.ResetAccelerationRates),
		eeprom.Fields("endstops", &p.Kinematics.Endstops).WithReset(p.Kinematics.Reset),
		eeprom.Fields("stepper", &p.Planner.Stepper).WithReset(p.Planner.ResetStepper).WithPostLoad(p.Planner.CalcPulseCycle),
		eeprom.Fields("tools", &p.Tools.Data).WithReset(p.Tools.ResetOffsets),
		eeprom.Fields("sound", &p.Sound.Mode).WithReset(p.Sound.Reset),
	)

	for _, h := range p.Heaters {
		reg.Add(eeprom.Fields(h.Name(), &h.Data).WithReset(h.Reset).WithPostLoad(h.PostLoad))
	}

	for _, f := range p.Fans {
		fan := f
		auto := autoMonitorFor(fan.Index, cfg.Hotends)
		reg.Add(eeprom.Fields(fmt.Sprintf("fan%d", fan.Index), &fan.Data).
			WithReset(func() { fan.reset(auto, cfg.Hotends) }).
			WithPostLoad(func() { fan.PostLoad(cfg.Hotends) }))
	}

	if cfg.HasLeveling() {
		reg.Add(p.Leveling.Blocks()...)
	}

	reg.AddIf(cfg.Features.Probe, eeprom.Fields("probe", &p.Probe).
		WithReset(func() { p.Probe = DefaultProbe() }))
	reg.AddIf(cfg.Features.LCD, eeprom.Fields("preheat", &p.Preheat).
		WithReset(func() { p.Preheat = DefaultPreheat() }))
	reg.AddIf(cfg.Hotends > 0, eeprom.Fields("lpq", &p.Tools.LPQLen).
		WithReset(func() { p.Tools.LPQLen = DefaultLPQLen }))

	for _, s := range p.Servos {
		reg.Add(eeprom.Fields(fmt.Sprintf("servo%d", s.Index), &s.Angles).WithReset(s.Reset))
	}

	if p.BLTouch != nil {
		reg.Add(eeprom.Fields("bltouch", &p.BLTouch.LastMode).WithReset(p.BLTouch.Reset))
	}

	reg.AddIf(cfg.Features.FWRetract, eeprom.Fields("fwretract", &p.Retract.Data, &p.Retract.AutoRetract).
		WithReset(p.Retract.Reset))
	reg.AddIf(cfg.Features.Volumetric, eeprom.Fields("volumetric", &p.Tools.Volumetric, p.Tools.FilamentSize).
		WithReset(p.resetVolumetric))
	reg.AddIf(cfg.Features.LinAdvance, eeprom.Fields("lin advance", &p.Tools.AdvanceK).
		WithReset(func() { p.Tools.AdvanceK = DefaultAdvanceK }))
	reg.AddIf(cfg.Features.AdvancedPause, eeprom.Fields("pause", p.Pause.Data).WithReset(p.Pause.Reset))
	reg.AddIf(cfg.Features.Trinamic, eeprom.Fields("trinamic", &p.Trinamic.Data).WithReset(p.Trinamic.Reset))

	reg.OnPostLoad(p.postProcess)
	return reg
}

func (p *Printer) resetVolumetric() {
	p.Tools.Volumetric = false
	for e := range p.Tools.FilamentSize {
		p.Tools.FilamentSize[e] = DefaultFilamentDiameter
	}
}

// postProcess recomputes the values that span subsystems. It runs after
// every block's own PostLoad.
func (p *Printer) postProcess() {
	p.Tools.PostLoad()
	p.Kinematics.UpdateSoftEndstops(p.Planner.Settings.Limits.HomeOffset)
	p.Retract.SetVolumetric(p.Tools.Volumetric)

	if p.Planner.RefreshPositioning() {
		p.ReportPosition()
	}
}

// ReportPosition prints the planned position and the stepper counts
func (p *Printer) ReportPosition() {
	pos := p.Planner.GetCurrentPosition()
	p.Console.Println(fmt.Sprintf("X:%.2f Y:%.2f Z:%.2f E:%.2f Count X:%d Y:%d Z:%d",
		pos.X, pos.Y, pos.Z, pos.E,
		p.Planner.StepCount(0), p.Planner.StepCount(1), p.Planner.StepCount(2)))
}

// AttachMedium creates the settings engine over m
func (p *Printer) AttachMedium(m medium.Medium) error {
	s := p.Config.Storage
	engine, err := eeprom.New(m, p.Registry, eeprom.Options{
		Version:         s.Version,
		Offset:          s.Offset,
		AutoInit:        s.AutoInit,
		Chitchat:        !s.Quiet,
		ReservedTrailer: s.ReservedTrailer,
	}, p.Console)
	if err != nil {
		return err
	}

	if p.Config.Leveling.Mode == config.LevelingUBL {
		engine.BindMesh(p.Leveling)
	}
	engine.SetFeedback(p.Sound.Feedback)

	p.EEPROM = engine
	return nil
}

// HeatersOf returns the heaters of one kind in index order
func (p *Printer) HeatersOf(kind string) []*Heater {
	var out []*Heater
	for _, h := range p.Heaters {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Heater returns heater idx of kind, or nil
func (p *Printer) Heater(kind string, idx int) *Heater {
	hs := p.HeatersOf(kind)
	if idx < 0 || idx >= len(hs) {
		return nil
	}
	return hs[idx]
}
