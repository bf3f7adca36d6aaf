package planner

import (
	"errors"
	"math"

	"printcore/core"
	"printcore/standalone/config"
	"printcore/standalone/kinematics"
)

// Move represents a single linear move
type Move struct {
	Start    kinematics.Position
	End      kinematics.Position
	Velocity float64 // mm/s
	Accel    float64 // mm/s^2
	Distance float64 // mm

	// Calculated values
	StartVel    float64
	CruiseVel   float64
	EndVel      float64
	AccelTicks  uint32
	CruiseTicks uint32
	DecelTicks  uint32
	Duration    uint32 // ms
}

// Limits is the persisted part of the motion limits
type Limits struct {
	Acceleration        float32 // print moves, mm/s^2
	RetractAcceleration float32
	TravelAcceleration  float32
	MinFeedrate         float32 // mm/s
	MinTravelFeedrate   float32
	MinSegmentTime      uint32 // us
	HomeOffset          [3]float32
}

// Settings holds the per-axis mechanics values. Slices are indexed X, Y, Z
// and then one entry per extruder.
type Settings struct {
	StepsPerMM      []float32
	MaxFeedrate     []float32
	MaxAcceleration []uint32
	MaxJerk         []float32
	Limits          Limits
}

// StepperData is the persisted stepper driver block
type StepperData struct {
	InvertDir   uint16 // bit per axis
	Microsteps  [4]uint16
	MinPulseUS  uint8
	_           uint8
	MaxStepRate uint32 // steps/s
}

// ErrQueueFull is returned when the move queue has no room
var ErrQueueFull = errors.New("move queue full")

// QueueSize is the number of buffered moves
const QueueSize = 32

// Planner handles motion planning and execution
type Planner struct {
	config     *config.Machine
	kinematics kinematics.Kinematics
	axes       int

	Settings Settings
	Stepper  StepperData

	// Derived by PostLoad
	accelStepsPerS2 []uint32
	mmPerStep       []float32
	pulseCycleUS    uint32
	count           []int32 // stepper positions in steps

	// Current state
	currentPos kinematics.Position
	moveQueue  []*Move
	executing  bool
	active     *Move
	started    uint32
	completed  uint64
}

// NewPlanner creates a new motion planner
func NewPlanner(cfg *config.Machine, kin kinematics.Kinematics) *Planner {
	axes := 3 + cfg.Extruders
	p := &Planner{
		config:     cfg,
		kinematics: kin,
		axes:       axes,
		Settings: Settings{
			StepsPerMM:      make([]float32, axes),
			MaxFeedrate:     make([]float32, axes),
			MaxAcceleration: make([]uint32, axes),
			MaxJerk:         make([]float32, axes),
		},
		accelStepsPerS2: make([]uint32, axes),
		mmPerStep:       make([]float32, axes),
		count:           make([]int32, axes),
		moveQueue:       make([]*Move, 0, QueueSize),
	}
	p.Reset()
	p.ResetStepper()
	p.PostLoad()
	return p
}

// Axes returns the number of persisted axes (XYZ plus extruders)
func (p *Planner) Axes() int {
	return p.axes
}

func (p *Planner) axisConfig(i int) config.AxisConfig {
	names := [3]string{"x", "y", "z"}
	if i < 3 {
		return p.config.Axes[names[i]]
	}
	return p.config.Axes["e"]
}

// Reset loads factory mechanics from the machine config
func (p *Planner) Reset() {
	for i := 0; i < p.axes; i++ {
		axis := p.axisConfig(i)
		p.Settings.StepsPerMM[i] = float32(axis.StepsPerMM)
		p.Settings.MaxFeedrate[i] = float32(axis.MaxVelocity)
		p.Settings.MaxAcceleration[i] = uint32(axis.MaxAccel)
		p.Settings.MaxJerk[i] = float32(axis.MaxJerk)
	}
	p.Settings.Limits = Limits{
		Acceleration:        float32(p.config.DefaultAccel),
		RetractAcceleration: float32(p.config.DefaultAccel),
		TravelAcceleration:  float32(p.config.DefaultAccel),
		MinFeedrate:         0,
		MinTravelFeedrate:   0,
		MinSegmentTime:      20000,
	}
}

// ResetStepper loads factory stepper driver settings
func (p *Planner) ResetStepper() {
	p.Stepper = StepperData{MinPulseUS: 2, MaxStepRate: 40000}
	for i := 0; i < 4; i++ {
		axis := p.axisConfig(i)
		if axis.InvertDir {
			p.Stepper.InvertDir |= 1 << i
		}
		p.Stepper.Microsteps[i] = uint16(axis.Microsteps)
	}
}

// PostLoad recomputes every value derived from the persisted settings
func (p *Planner) PostLoad() {
	p.CalcPulseCycle()
	p.ResetAccelerationRates()
	p.RefreshPositioning()
}

// CalcPulseCycle derives the step pulse period from the maximum step rate
func (p *Planner) CalcPulseCycle() {
	rate := p.Stepper.MaxStepRate
	if rate == 0 {
		rate = 1
	}
	cycle := 1000000 / rate
	if floor := 2 * uint32(p.Stepper.MinPulseUS); cycle < floor {
		cycle = floor
	}
	p.pulseCycleUS = cycle
}

// PulseCycle returns the step pulse period in microseconds
func (p *Planner) PulseCycle() uint32 {
	return p.pulseCycleUS
}

// ResetAccelerationRates converts max accelerations to steps/s^2
func (p *Planner) ResetAccelerationRates() {
	for i := 0; i < p.axes; i++ {
		p.accelStepsPerS2[i] = uint32(float32(p.Settings.MaxAcceleration[i]) * p.Settings.StepsPerMM[i])
	}
}

// AccelerationRate returns the max acceleration of axis i in steps/s^2
func (p *Planner) AccelerationRate(i int) uint32 {
	return p.accelStepsPerS2[i]
}

// RefreshPositioning recomputes steps-to-mm reciprocals and carries the
// current position over to the new step counts. It reports whether the
// step counts changed.
func (p *Planner) RefreshPositioning() bool {
	changed := false
	for i := 0; i < p.axes; i++ {
		spm := p.Settings.StepsPerMM[i]
		if spm > 0 {
			p.mmPerStep[i] = 1 / spm
		} else {
			p.mmPerStep[i] = 0
		}

		steps := int32(math.Round(p.currentPos.Axis(min(i, 3)) * float64(spm)))
		if steps != p.count[i] {
			p.count[i] = steps
			changed = true
		}
	}
	return changed
}

// MMPerStep returns the reciprocal of steps/mm for axis i
func (p *Planner) MMPerStep(i int) float32 {
	return p.mmPerStep[i]
}

// StepCount returns the stepper position of axis i
func (p *Planner) StepCount(i int) int32 {
	return p.count[i]
}

// QueueMove adds a move to the queue. Execution starts on the next Poll.
func (p *Planner) QueueMove(move *Move) error {
	// Check limits
	err := p.kinematics.CheckLimits(move.End)
	if err != nil {
		return err
	}
	if len(p.moveQueue) >= QueueSize {
		return ErrQueueFull
	}

	if move.Accel <= 0 {
		move.Accel = float64(p.Settings.Limits.Acceleration)
	}

	// Calculate trapezoidal profile
	p.calculateTrapezoid(move)

	p.moveQueue = append(p.moveQueue, move)
	p.currentPos = move.End

	return nil
}

// calculateTrapezoid calculates the trapezoidal velocity profile for a move
func (p *Planner) calculateTrapezoid(move *Move) {
	if move.Distance <= 0 || move.Velocity <= 0 || move.Accel <= 0 {
		move.Duration = 0
		return
	}

	// Limit velocity to axis maximums
	maxVel := move.Velocity
	for i := 0; i < 3; i++ {
		d := math.Abs(move.End.Axis(i) - move.Start.Axis(i))
		if d == 0 {
			continue
		}
		limit := float64(p.Settings.MaxFeedrate[i])
		if limit > 0 && maxVel*d/move.Distance > limit {
			maxVel = limit * move.Distance / d
		}
	}
	if minVel := float64(p.Settings.Limits.MinFeedrate); maxVel < minVel {
		maxVel = minVel
	}

	move.Velocity = maxVel

	// Simplified trapezoidal profile (no lookahead)
	accelDist := (maxVel * maxVel) / (2.0 * move.Accel)

	if accelDist*2.0 >= move.Distance {
		// Triangle profile (can't reach full speed)
		accelDist = move.Distance / 2.0
		move.CruiseVel = math.Sqrt(move.Accel * accelDist)
		move.StartVel = 0
		move.EndVel = 0

		accelTime := move.CruiseVel / move.Accel
		move.AccelTicks = secondsToTicks(accelTime)
		move.CruiseTicks = 0
		move.DecelTicks = move.AccelTicks
	} else {
		cruiseDist := move.Distance - 2.0*accelDist
		move.CruiseVel = maxVel
		move.StartVel = 0
		move.EndVel = 0

		accelTime := maxVel / move.Accel
		cruiseTime := cruiseDist / maxVel

		move.AccelTicks = secondsToTicks(accelTime)
		move.CruiseTicks = secondsToTicks(cruiseTime)
		move.DecelTicks = move.AccelTicks
	}
	move.Duration = move.AccelTicks + move.CruiseTicks + move.DecelTicks
}

// Poll advances move execution. It completes the active move once its
// duration has elapsed and starts the next one.
func (p *Planner) Poll(now uint32) {
	if p.executing {
		if !core.Elapsed(now, p.started, p.active.Duration) {
			return
		}
		p.finish(p.active)
	}
	p.executeNextMove(now)
}

// executeNextMove starts executing the next move in the queue
func (p *Planner) executeNextMove(now uint32) {
	if len(p.moveQueue) == 0 {
		p.executing = false
		p.active = nil
		return
	}

	move := p.moveQueue[0]
	p.moveQueue = p.moveQueue[1:]

	p.executing = true
	p.active = move
	p.started = now
}

func (p *Planner) finish(move *Move) {
	positions := p.kinematics.CalcPosition(move.End)
	for i := 0; i < p.axes; i++ {
		p.count[i] = int32(math.Round(positions[min(i, len(positions)-1)] * float64(p.Settings.StepsPerMM[i])))
	}
	p.executing = false
	p.active = nil
	p.completed++
}

// Completed returns the number of finished moves
func (p *Planner) Completed() uint64 {
	return p.completed
}

// GetCurrentPosition returns the planned position, the end of the last
// queued move
func (p *Planner) GetCurrentPosition() kinematics.Position {
	return p.currentPos
}

// SetPosition sets the current position without moving
func (p *Planner) SetPosition(pos kinematics.Position) {
	p.currentPos = pos

	positions := p.kinematics.CalcPosition(pos)
	for i := 0; i < p.axes; i++ {
		p.count[i] = int32(math.Round(positions[min(i, len(positions)-1)] * float64(p.Settings.StepsPerMM[i])))
	}
}

// ClearQueue drops queued moves and stops the active one
func (p *Planner) ClearQueue() {
	p.moveQueue = p.moveQueue[:0]
	p.executing = false
	p.active = nil
}

// IsIdle returns true if no moves are queued or executing
func (p *Planner) IsIdle() bool {
	return !p.executing && len(p.moveQueue) == 0
}

// Pending returns the number of queued moves, including the active one
func (p *Planner) Pending() int {
	n := len(p.moveQueue)
	if p.executing {
		n++
	}
	return n
}

func secondsToTicks(seconds float64) uint32 {
	return uint32(math.Ceil(seconds * 1000))
}
