package standalone

import (
	"errors"
	"fmt"
	"math"

	"printcore/core"
	"printcore/medium"
	"printcore/mmu2"
	"printcore/standalone/config"
	"printcore/standalone/gcode"
	"printcore/standalone/kinematics"
	"printcore/standalone/planner"
)

var (
	// ErrNotInitialized is returned before a settings medium is attached
	ErrNotInitialized = errors.New("manager not initialized")

	// ErrHalted is returned for input after an emergency stop
	ErrHalted = errors.New("printer halted")
)

// Nozzle park point relative to the soft limits
const (
	parkMarginXY = 10.0
	parkLiftZ    = 20.0
)

// Options holds the platform pieces a manager runs on
type Options struct {
	// Clock drives the scheduler; nil uses the system clock
	Clock core.Clock

	// Output receives console lines; nil buffers them for GetOutput
	Output core.DebugWriter

	Hardware Hardware

	// MMU is the filament changer link; nil runs without a changer
	MMU mmu2.Link
}

// Manager coordinates all standalone mode components
type Manager struct {
	config      *config.Machine
	sched       *core.Scheduler
	console     *core.Console
	printer     *Printer
	parser      *gcode.Parser
	interpreter *gcode.Interpreter
	mmu         *mmu2.Session

	// Serial interface
	inputBuffer  []byte
	outputBuffer []byte

	// Status
	initialized bool
	running     bool
	halted      bool

	// Saved by a changer stall
	parked      bool
	resumeAt    kinematics.Position
	savedTarget float64
}

// NewManager creates a manager from a JSON machine descriptor
func NewManager(configData []byte, opts Options) (*Manager, error) {
	cfg, err := config.LoadConfig(configData)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)

	return NewManagerWithConfig(cfg, opts)
}

// NewManagerWithConfig creates a manager with an existing config
func NewManagerWithConfig(cfg *config.Machine, opts Options) (*Manager, error) {
	mgr := &Manager{
		config:       cfg,
		parser:       gcode.NewParser(),
		inputBuffer:  make([]byte, 0, 256),
		outputBuffer: make([]byte, 0, 256),
	}

	clock := opts.Clock
	if clock == nil {
		clock = core.NewSystemClock()
	}
	out := opts.Output
	if out == nil {
		out = func(line string) { mgr.SendResponse(line + "\n") }
	}
	mgr.sched = core.NewScheduler(clock)
	mgr.console = core.NewConsole(out)

	p, err := NewPrinter(cfg, mgr.sched, mgr.console, opts.Hardware)
	if err != nil {
		return nil, err
	}
	mgr.printer = p
	mgr.sched.Register(p.Planner)

	mgr.interpreter = gcode.NewInterpreter(cfg, p.Planner, mgr, mgr.console)
	p.RegisterCommands(mgr.interpreter)

	if opts.MMU != nil && cfg.MMU.Enabled {
		mgr.mmu = mmu2.New(opts.MMU, mgr, mmu2.Config{
			Mode12V:        cfg.MMU.Mode12V,
			StartupTimeout: uint32(cfg.MMU.StartupTimeoutMs),
			Runout:         cfg.MMU.Runout,
		}, mgr.console)
		mgr.sched.Register(mgr.mmu)
	}
	mgr.registerTools()

	return mgr, nil
}

// Initialize attaches the settings medium
func (m *Manager) Initialize(med medium.Medium) error {
	if m.initialized {
		return errors.New("already initialized")
	}
	if err := m.printer.AttachMedium(med); err != nil {
		return err
	}
	m.initialized = true
	return nil
}

// registerTools binds T<n>. With a filament changer the code selects a
// changer slot, otherwise an extruder.
func (m *Manager) registerTools() {
	n := m.config.Extruders
	if m.mmu != nil {
		n = max(n, mmu2.Slots)
	}
	for i := 0; i < n; i++ {
		tool := i
		m.interpreter.Register('T', tool, func(*gcode.Command) error {
			if m.mmu != nil {
				return m.awaitDevice(m.mmu.ToolChange(tool))
			}
			return m.printer.Tools.Select(tool)
		})
	}

	// M701 T<n> feeds a changer slot all the way to the nozzle
	m.interpreter.Register('M', 701, func(cmd *gcode.Command) error {
		if m.mmu == nil {
			return mmu2.ErrNotEnabled
		}
		return m.awaitDevice(m.mmu.LoadToNozzle(cmd.Int('T', 0)))
	})
}

// awaitDevice runs the scheduler until the changer worked off its queue,
// so no later line moves the head or touches a heater before the change
// is done. A stall keeps waiting until the peer answers again.
func (m *Manager) awaitDevice(queued error) error {
	if queued != nil {
		return queued
	}
	m.sched.WaitFor(m.DeviceReady, 0)
	if m.halted {
		return ErrHalted
	}
	return nil
}

// ProcessLine processes a line of G-code
func (m *Manager) ProcessLine(line string) error {
	if !m.initialized {
		return ErrNotInitialized
	}
	if m.halted {
		return ErrHalted
	}

	cmd, err := m.parser.ParseLine(line)
	if err != nil {
		return err
	}
	return m.interpreter.Execute(cmd)
}

// ProcessByte processes a single byte of input (for serial streaming).
// Every complete line is acknowledged with "ok", after any error report.
func (m *Manager) ProcessByte(b byte) error {
	if b != '\n' && b != '\r' {
		m.inputBuffer = append(m.inputBuffer, b)
		return nil
	}

	line := string(m.inputBuffer)
	m.inputBuffer = m.inputBuffer[:0]
	for len(line) > 0 && line[len(line)-1] == ' ' {
		line = line[:len(line)-1]
	}
	if len(line) == 0 {
		return nil
	}

	err := m.ProcessLine(line)
	switch {
	case err == nil:
	case errors.Is(err, gcode.ErrUnknownCommand):
		m.console.Echo("Unknown command: %q", line)
	case errors.Is(err, gcode.ErrChecksum), errors.Is(err, gcode.ErrLineNumber):
		m.console.Error("%v", err)
		m.console.Println(fmt.Sprintf("Resend: %d", m.parser.LastLine()+1))
	default:
		m.console.Error("%v", err)
	}
	m.SendResponse("ok\n")
	return err
}

// SendResponse queues a response to be sent to the host
func (m *Manager) SendResponse(response string) {
	m.outputBuffer = append(m.outputBuffer, response...)
}

// GetOutput returns any pending output and clears the buffer
func (m *Manager) GetOutput() []byte {
	if len(m.outputBuffer) == 0 {
		return nil
	}

	output := make([]byte, len(m.outputBuffer))
	copy(output, m.outputBuffer)
	m.outputBuffer = m.outputBuffer[:0]
	return output
}

// Start loads the stored settings and starts the filament changer
// handshake. A load error is returned after factory defaults took over;
// the manager runs either way.
func (m *Manager) Start() error {
	if !m.initialized {
		return ErrNotInitialized
	}

	err := m.printer.EEPROM.Load()
	if m.mmu != nil {
		m.mmu.Start(m.sched.Now())
	}
	m.running = true
	m.console.Echo("printcore ready")
	return err
}

// Stop halts all operation
func (m *Manager) Stop() {
	m.running = false
	m.printer.Planner.ClearQueue()
	if m.mmu != nil {
		m.mmu.Stop()
	}
}

// IsRunning returns whether the manager is running
func (m *Manager) IsRunning() bool {
	return m.running
}

// GetState returns the current machine state
func (m *Manager) GetState() *gcode.MachineState {
	return m.interpreter.GetState()
}

// Printer returns the persisted subsystems
func (m *Manager) Printer() *Printer {
	return m.printer
}

// Console returns the host console
func (m *Manager) Console() *core.Console {
	return m.console
}

// Scheduler returns the cooperative loop
func (m *Manager) Scheduler() *core.Scheduler {
	return m.sched
}

// MMU returns the filament changer session, or nil
func (m *Manager) MMU() *mmu2.Session {
	return m.mmu
}

// Tick runs one scheduler pass
func (m *Manager) Tick() {
	m.sched.Idle()
}

// WaitDevice ticks until the filament changer finished its queue or
// timeout ms passed; zero waits without limit
func (m *Manager) WaitDevice(timeout uint32) bool {
	return m.sched.WaitFor(m.DeviceReady, timeout)
}

// EmergencyStop drops all motion, switches every heater off and disables
// the filament changer. Further input is refused.
func (m *Manager) EmergencyStop(reason string) {
	m.Stop()
	for _, h := range m.printer.Heaters {
		h.Target = 0
	}
	m.halted = true
	m.console.Error("%s", reason)
	m.console.Error("Printer halted. kill() called!")
	m.console.DumpHistory()
}

// Halted reports whether EmergencyStop ran
func (m *Manager) Halted() bool {
	return m.halted
}

// TriggerStore writes the live settings (M500)
func (m *Manager) TriggerStore() error {
	if m.printer.EEPROM == nil {
		return ErrNotInitialized
	}
	return m.printer.EEPROM.Store()
}

// TriggerLoad drains the motion queue and reloads the stored settings
// (M501). Factory defaults replace a record that does not load.
func (m *Manager) TriggerLoad() error {
	if m.printer.EEPROM == nil {
		return ErrNotInitialized
	}
	m.sched.WaitFor(m.printer.Planner.IsIdle, 0)
	return m.printer.EEPROM.Load()
}

// TriggerFactoryReset restores factory settings without storing them (M502)
func (m *Manager) TriggerFactoryReset() {
	if m.printer.EEPROM == nil {
		m.console.Error("%v", ErrNotInitialized)
		return
	}
	m.printer.EEPROM.Reset()
}

// PrintSettings reports the live settings (M503)
func (m *Manager) PrintSettings() {
	m.printer.PrintSettings()
}

// StoreMeshToSlot saves the active mesh and binds it to slot (G29 S)
func (m *Manager) StoreMeshToSlot(slot int) error {
	if m.printer.EEPROM == nil {
		return ErrNotInitialized
	}
	if err := m.printer.EEPROM.StoreMesh(slot); err != nil {
		return err
	}
	m.printer.Leveling.Slot = int8(slot)
	return nil
}

// LoadMeshFromSlot makes the mesh in slot the active one (G29 L)
func (m *Manager) LoadMeshFromSlot(slot int) error {
	if m.printer.EEPROM == nil {
		return ErrNotInitialized
	}
	if err := m.printer.EEPROM.LoadMesh(slot, nil); err != nil {
		return err
	}
	m.printer.Leveling.Slot = int8(slot)
	return nil
}

// EnqueueDeviceCommand queues a filament changer operation and waits for
// the changer to finish it
func (m *Manager) EnqueueDeviceCommand(op mmu2.Opcode, index, arg int) error {
	if m.mmu == nil {
		return mmu2.ErrNotEnabled
	}
	switch op {
	case mmu2.OpToolChange:
		return m.awaitDevice(m.mmu.ToolChange(index))
	case mmu2.OpLoad:
		return m.awaitDevice(m.mmu.LoadFilament(index))
	case mmu2.OpUnload:
		return m.awaitDevice(m.mmu.Unload())
	case mmu2.OpEject:
		return m.awaitDevice(m.mmu.Eject(index, arg != 0))
	case mmu2.OpFilamentType:
		return m.awaitDevice(m.mmu.SetFilamentType(index, arg))
	}
	if index < 0 || index > math.MaxUint8 || arg < 0 || arg > math.MaxUint8 {
		return fmt.Errorf("%w: %v %d %d", mmu2.ErrInvalidCommand, op, index, arg)
	}
	return m.awaitDevice(m.mmu.Enqueue(mmu2.Command{Op: op, Index: uint8(index), Arg: uint8(arg)}))
}

// DeviceReady reports whether the filament changer has nothing in flight.
// A missing or disabled changer is always ready.
func (m *Manager) DeviceReady() bool {
	return m.mmu == nil || !m.mmu.Enabled() || m.mmu.Ready()
}

// Stall parks the head and lets the hotend cool while the changer does
// not answer
func (m *Manager) Stall(park, coolDown bool) {
	p := m.printer
	p.Sound.Play(StallTones)

	if coolDown {
		if h := p.Heater(KindHotend, 0); h != nil {
			m.savedTarget = h.Target
			h.Target = 0
		}
	}

	if !park || !m.interpreter.GetState().AllHomed() {
		return
	}

	pos := p.Planner.GetCurrentPosition()
	m.resumeAt = pos
	m.parked = true

	lifted := pos
	lifted.Z = math.Min(pos.Z+parkLiftZ, p.Kinematics.SoftLimits(2).Max)
	parked := lifted
	parked.X = p.Kinematics.SoftLimits(0).Min + parkMarginXY
	parked.Y = p.Kinematics.SoftLimits(1).Max - parkMarginXY

	m.travel(lifted)
	m.travel(parked)
}

// Resume restores the hotend target and the saved position, XY first
func (m *Manager) Resume(park, coolDown bool) {
	p := m.printer

	if coolDown && m.savedTarget > 0 {
		if h := p.Heater(KindHotend, 0); h != nil {
			m.console.Echo("MMU OK. Resuming temperature...")
			if err := h.SetTarget(m.savedTarget); err != nil {
				m.console.Error("%v", err)
			}
		}
		m.savedTarget = 0
	}

	p.Sound.Play(ResumeTones)
	if !park || !m.parked {
		return
	}
	m.parked = false
	m.console.Echo("MMU OK. Resuming position...")

	xy := p.Planner.GetCurrentPosition()
	xy.X, xy.Y = m.resumeAt.X, m.resumeAt.Y
	m.travel(xy)
	m.travel(m.resumeAt)
}

// Kill halts the printer on an unrecoverable changer fault
func (m *Manager) Kill(reason string) {
	m.EmergencyStop(reason)
}

// FilamentRunout asks the host to pause the print
func (m *Manager) FilamentRunout() {
	m.console.Println("//action:out_of_filament")
	m.printer.Sound.Play(FailureTones)
}

// travel queues a move at the default speed, reporting failures
func (m *Manager) travel(to kinematics.Position) {
	from := m.printer.Planner.GetCurrentPosition()
	dx, dy, dz := to.X-from.X, to.Y-from.Y, to.Z-from.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if dist == 0 {
		return
	}
	err := m.printer.Planner.QueueMove(&planner.Move{
		Start:    from,
		End:      to,
		Velocity: m.config.DefaultVelocity,
		Accel:    m.config.DefaultAccel,
		Distance: dist,
	})
	if err != nil {
		m.console.Error("park move: %v", err)
	}
}
