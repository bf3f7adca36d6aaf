package eeprom

import (
	"errors"
	"strings"
	"testing"

	"printcore/core"
	"printcore/medium"
)

// settings is a small live state shaped like the printer's: plain values,
// a struct, a grid and a block after the grid
type settings struct {
	steps   [4]float32
	feed    [4]float32
	accel   uint32
	pid     pidGains
	grid    []float32
	trailer int16

	posts int
	stale [2]uint8
}

type pidGains struct {
	Kp, Ki, Kd float32
	Enabled    bool
	_          [3]byte
}

func newSettings(nx, ny uint8) *settings {
	s := &settings{grid: make([]float32, int(nx)*int(ny))}
	s.defaults()
	return s
}

func (s *settings) defaults() {
	s.steps = [4]float32{80, 80, 400, 93}
	s.feed = [4]float32{300, 300, 5, 25}
	s.accel = 3000
	s.pid = pidGains{Kp: 22.2, Ki: 1.08, Kd: 114, Enabled: true}
	for i := range s.grid {
		s.grid[i] = 0
	}
	s.trailer = 7
}

func (s *settings) registry(nx, ny uint8) *Registry {
	reg := NewRegistry()
	reg.Add(Fields("mechanics", &s.steps, &s.feed, &s.accel).WithReset(s.defaults))
	reg.Add(Fields("pid", &s.pid))
	reg.Add(Grid("mesh", nx, ny, s.grid).OnStale(func(x, y uint8) { s.stale = [2]uint8{x, y} }))
	reg.Add(Fields("trailer", &s.trailer).WithPostLoad(func() { s.posts++ }))
	return reg
}

func (s *settings) mutate() {
	s.steps = [4]float32{100, 100, 1600, 415}
	s.feed[2] = 12
	s.accel = 1250
	s.pid.Kp = 19.5
	s.pid.Enabled = false
	for i := range s.grid {
		s.grid[i] = float32(i) * 0.025
	}
	s.trailer = -321
}

func (s *settings) equal(o *settings) bool {
	if s.steps != o.steps || s.feed != o.feed || s.accel != o.accel || s.pid != o.pid || s.trailer != o.trailer {
		return false
	}
	if len(s.grid) != len(o.grid) {
		return false
	}
	for i := range s.grid {
		if s.grid[i] != o.grid[i] {
			return false
		}
	}
	return true
}

// probeMedium counts accesses and can fail writes touching a range
type probeMedium struct {
	medium.Medium
	reads, writes int
	writeOffsets  []int64
	failFrom      int64
	failTo        int64
}

func (p *probeMedium) ReadAt(b []byte, off int64) (int, error) {
	p.reads++
	return p.Medium.ReadAt(b, off)
}

func (p *probeMedium) WriteAt(b []byte, off int64) (int, error) {
	p.writes++
	p.writeOffsets = append(p.writeOffsets, off)
	if p.failTo > p.failFrom && off < p.failTo && off+int64(len(b)) > p.failFrom {
		return 0, errors.New("write verify failed")
	}
	return p.Medium.WriteAt(b, off)
}

type capture struct {
	lines []string
}

func (c *capture) console() *core.Console {
	return core.NewConsole(func(line string) { c.lines = append(c.lines, line) })
}

func (c *capture) contains(s string) bool {
	for _, line := range c.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

func newEngine(t *testing.T, m medium.Medium, s *settings, opts Options, out *capture) *Engine {
	t.Helper()
	e, err := New(m, s.registry(3, 3), opts, out.console())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func TestDataSize(t *testing.T) {
	s := newSettings(3, 3)
	e := newEngine(t, medium.NewRAM(4096), s, DefaultOptions(), &capture{})

	// header 8 + mechanics 36 + pid 16 + mesh 2+36 + trailer 2
	if e.DataSize() != 100 {
		t.Errorf("Expected DataSize 100, got %d", e.DataSize())
	}

	if _, err := New(medium.NewRAM(150), s.registry(3, 3), DefaultOptions(), nil); err == nil {
		t.Error("Expected error when the record does not fit the medium")
	}
}

func TestRoundTrip(t *testing.T) {
	ram := medium.NewRAM(4096)
	out := &capture{}

	live := newSettings(3, 3)
	live.mutate()
	e := newEngine(t, ram, live, DefaultOptions(), out)

	if err := e.Store(); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !out.contains("Settings Stored (100 bytes; crc") {
		t.Errorf("Missing store report, got %v", out.lines)
	}

	loaded := newSettings(3, 3)
	e2 := newEngine(t, ram, loaded, DefaultOptions(), out)
	if err := e2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !loaded.equal(live) {
		t.Errorf("Loaded state differs from stored state:\n got  %+v\n want %+v", loaded, live)
	}
	if loaded.posts != 1 {
		t.Errorf("Expected post-load to run once, ran %d times", loaded.posts)
	}
	if !out.contains("PCV01 stored settings retrieved (100 bytes; crc") {
		t.Errorf("Missing load report, got %v", out.lines)
	}
}

func TestChecksumSensitivity(t *testing.T) {
	opts := DefaultOptions()
	live := newSettings(3, 3)
	live.mutate()

	ram := medium.NewRAM(4096)
	if err := newEngine(t, ram, live, opts, &capture{}).Store(); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	image := append([]byte(nil), ram.Bytes()...)

	defaults := newSettings(3, 3)

	for i := 0; i < 100; i++ {
		if i == 5 {
			continue // tag terminator is not compared
		}

		corrupted := append([]byte(nil), image...)
		corrupted[opts.Offset+i] ^= 0xFF

		loaded := newSettings(3, 3)
		loaded.mutate()
		e := newEngine(t, medium.NewRAMFrom(corrupted), loaded, opts, &capture{})

		err := e.Load()
		if err == nil {
			t.Errorf("byte %d: expected load to fail", i)
			continue
		}
		gridDims := i == headerSize+36+16 || i == headerSize+36+16+1
		if i >= headerSize && !gridDims && !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("byte %d: expected ErrChecksumMismatch, got %v", i, err)
		}
		if !loaded.equal(defaults) {
			t.Errorf("byte %d: live state not reset to defaults", i)
		}
	}
}

func TestVersionGate(t *testing.T) {
	tests := []struct {
		name     string
		firmware string
		message  string
	}{
		{"revision bump", "PCV02", "EEPROM version mismatch (EEPROM=PCV01 Firmware=PCV02)"},
		{"other product", "XYZ01", "EEPROM version mismatch (EEPROM=?? Firmware=XYZ01)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ram := medium.NewRAM(4096)
			live := newSettings(3, 3)
			live.mutate()
			newEngine(t, ram, live, DefaultOptions(), &capture{}).Store()

			opts := DefaultOptions()
			opts.Version = tt.firmware
			out := &capture{}
			loaded := newSettings(3, 3)
			loaded.mutate()
			e := newEngine(t, ram, loaded, opts, out)

			if err := e.Load(); !errors.Is(err, ErrVersionMismatch) {
				t.Fatalf("Expected ErrVersionMismatch, got %v", err)
			}
			if !out.contains(tt.message) {
				t.Errorf("Expected %q, got %v", tt.message, out.lines)
			}
			if !out.contains("Factory Settings Loaded") {
				t.Error("Expected factory reset")
			}
			if !loaded.equal(newSettings(3, 3)) {
				t.Error("Live state not reset to defaults")
			}
		})
	}
}

func TestValidateWithoutMutate(t *testing.T) {
	ram := medium.NewRAM(4096)
	stored := newSettings(3, 3)
	stored.mutate()
	newEngine(t, ram, stored, DefaultOptions(), &capture{}).Store()

	live := newSettings(3, 3)
	live.grid[4] = 1.5
	before := newSettings(3, 3)
	before.grid[4] = 1.5

	e := newEngine(t, ram, live, DefaultOptions(), &capture{})
	var feedback []bool
	e.SetFeedback(func(ok bool) { feedback = append(feedback, ok) })

	if err := e.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !live.equal(before) {
		t.Error("Validate changed live state")
	}
	if live.posts != 0 {
		t.Error("Validate ran post-load work")
	}
	if len(feedback) != 1 || !feedback[0] {
		t.Errorf("Expected one success feedback, got %v", feedback)
	}
}

func TestStaleGridSkipped(t *testing.T) {
	ram := medium.NewRAM(4096)

	// Same byte count, different shape
	old := newSettings(4, 3)
	old.mutate()
	oldEngine, err := New(ram, old.registry(4, 3), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := oldEngine.Store(); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	live := newSettings(3, 4)
	e, err := New(ram, live.registry(3, 4), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := e.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if live.stale != [2]uint8{4, 3} {
		t.Errorf("Expected stale callback with 4x3, got %v", live.stale)
	}
	for i, v := range live.grid {
		if v != 0 {
			t.Errorf("grid[%d] = %v, stale values must not be applied", i, v)
		}
	}
	if live.trailer != -321 {
		t.Errorf("Block after the grid read %d, want -321", live.trailer)
	}
}

func TestStaleGridStreamPosition(t *testing.T) {
	ram := medium.NewRAM(256)

	w := NewWriter(ram, 10)
	w.Value(uint8(2))
	w.Value(uint8(2))
	w.Value([4]float32{1, 2, 3, 4})
	w.Value(int16(1234))
	if w.Err() != nil {
		t.Fatalf("Write failed: %v", w.Err())
	}

	values := make([]float32, 9)
	grid := Grid("mesh", 3, 3, values)

	r := NewReader(ram, 10, false)
	grid.Restore(r)
	var next int16
	r.Value(&next)

	if r.Err() != nil {
		t.Fatalf("Read failed: %v", r.Err())
	}
	if next != 1234 {
		t.Errorf("Expected next value 1234, got %d", next)
	}
	if r.Pos() != 10+2+16+2 {
		t.Errorf("Expected position %d, got %d", 10+2+16+2, r.Pos())
	}
	if r.CRC() != w.CRC() {
		t.Errorf("Reader CRC %04X != writer CRC %04X", r.CRC(), w.CRC())
	}
}

func TestStoreWriteFailure(t *testing.T) {
	opts := DefaultOptions()
	probe := &probeMedium{Medium: medium.NewRAM(4096)}

	live := newSettings(3, 3)
	live.mutate()
	e := newEngine(t, probe, live, opts, &capture{})

	// Fail the pid block only
	probe.failFrom = int64(opts.Offset + headerSize + 36)
	probe.failTo = probe.failFrom + 16

	err := e.Store()
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatalf("Expected ErrWriteFailure, got %v", err)
	}

	ram := probe.Medium.(*medium.RAM)
	if tag := string(ram.Bytes()[opts.Offset : opts.Offset+5]); tag != "ERROR" {
		t.Errorf("Header must keep the invalid marker, got %q", tag)
	}

	// Blocks after the failure are still written
	trailer := ram.Bytes()[opts.Offset+98 : opts.Offset+100]
	if trailer[0] != 0xBF || trailer[1] != 0xFE {
		t.Errorf("Trailer block not written, got % X", trailer)
	}

	loaded := newSettings(3, 3)
	if err := newEngine(t, ram, loaded, opts, &capture{}).Load(); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Expected ErrVersionMismatch after failed store, got %v", err)
	}
}

// shortBlock claims more bytes than it writes
type shortBlock struct{}

func (shortBlock) Name() string   { return "short" }
func (shortBlock) Size() int      { return 4 }
func (shortBlock) Save(w *Writer) { w.Value(uint16(1)) }
func (shortBlock) Restore(r *Reader) {
	var v uint16
	r.Value(&v)
}

func TestStoreSchemaSize(t *testing.T) {
	ram := medium.NewRAM(1024)
	reg := NewRegistry()
	reg.Add(shortBlock{})

	out := &capture{}
	e, err := New(ram, reg, DefaultOptions(), out.console())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := e.Store(); !errors.Is(err, ErrSchemaSize) {
		t.Fatalf("Expected ErrSchemaSize, got %v", err)
	}
	if !out.contains("EEPROM datasize error.") {
		t.Error("Expected datasize message")
	}
	if string(ram.Bytes()[100:105]) != "ERROR" {
		t.Error("Header must not be validated on size mismatch")
	}
}

func TestWriteOnceSkipsMarker(t *testing.T) {
	opts := DefaultOptions()

	flash, _ := medium.NewFlash(1024, 256)
	tests := []struct {
		name  string
		m     medium.Medium
		first int64
	}{
		{"ram", medium.NewRAM(1024), int64(opts.Offset)},
		{"flash", flash, int64(opts.Offset + headerSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := &probeMedium{Medium: tt.m}
			e := newEngine(t, probe, newSettings(3, 3), opts, &capture{})
			if err := e.Store(); err != nil {
				t.Fatalf("Store failed: %v", err)
			}
			if probe.writeOffsets[0] != tt.first {
				t.Errorf("First write at %d, want %d", probe.writeOffsets[0], tt.first)
			}
			if err := e.Validate(); err != nil {
				t.Errorf("Validate after store failed: %v", err)
			}
		})
	}
}

func TestFlashRecordSurvivesSync(t *testing.T) {
	flash, _ := medium.NewFlash(1024, 256)
	live := newSettings(3, 3)
	live.mutate()
	newEngine(t, flash, live, DefaultOptions(), &capture{}).Store()

	reopened, _ := medium.NewFlashFrom(flash.Image(), 256)
	loaded := newSettings(3, 3)
	if err := newEngine(t, reopened, loaded, DefaultOptions(), &capture{}).Load(); err != nil {
		t.Fatalf("Load from programmed pages failed: %v", err)
	}
	if !loaded.equal(live) {
		t.Error("Record lost across flash reopen")
	}
}

func TestLoadAutoInit(t *testing.T) {
	ram := medium.NewRAM(4096)
	opts := DefaultOptions()
	opts.AutoInit = true

	out := &capture{}
	live := newSettings(3, 3)
	live.mutate()
	e := newEngine(t, ram, live, opts, out)

	if err := e.Load(); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("Expected ErrVersionMismatch on blank medium, got %v", err)
	}
	if !out.contains("EEPROM version mismatch (EEPROM=?? Firmware=PCV01)") {
		t.Errorf("Expected blank tag shown as ??, got %v", out.lines)
	}
	if !out.contains("EEPROM Initialized") {
		t.Error("Expected defaults to be stored")
	}
	if live.posts != 1 {
		t.Errorf("Expected post-load from reset, ran %d times", live.posts)
	}

	if err := e.Load(); err != nil {
		t.Errorf("Load after auto-init failed: %v", err)
	}
	if !live.equal(newSettings(3, 3)) {
		t.Error("Expected stored defaults to load back")
	}
}

func TestLoadWithoutAutoInitLeavesMedium(t *testing.T) {
	probe := &probeMedium{Medium: medium.NewRAM(4096)}
	e := newEngine(t, probe, newSettings(3, 3), DefaultOptions(), &capture{})

	if err := e.Load(); err == nil {
		t.Fatal("Expected load of blank medium to fail")
	}
	if probe.writes != 0 {
		t.Errorf("Expected no writes without AutoInit, got %d", probe.writes)
	}
}

func TestResetWithoutMedium(t *testing.T) {
	out := &capture{}
	live := newSettings(3, 3)
	live.mutate()
	probe := &probeMedium{Medium: medium.NewRAM(1024)}
	e := newEngine(t, probe, live, DefaultOptions(), out)

	e.Reset()

	if !live.equal(newSettings(3, 3)) {
		t.Error("Reset did not restore defaults")
	}
	if probe.reads != 0 || probe.writes != 0 {
		t.Errorf("Reset touched the medium: %d reads, %d writes", probe.reads, probe.writes)
	}
	if !out.contains("Factory Settings Loaded") {
		t.Error("Missing reset message")
	}
	if live.posts != 1 {
		t.Errorf("Expected post-load once, got %d", live.posts)
	}
}
