package core

import "fmt"

// DebugWriter is a function type for writing one output line
type DebugWriter func(string)

// Line prefixes understood by hosts talking to the firmware
const (
	PrefixEcho  = "echo:"
	PrefixError = "Error:"
	PrefixDebug = "DEBUG:"
)

const (
	HistorySize = 32 // Keep last 32 lines for post-mortem
)

// Console is the firmware's output channel. Lines go to the platform
// writer and into a small ring kept for dumps after a fault.
type Console struct {
	out          DebugWriter
	debugEnabled bool

	history     [HistorySize]string
	historyHead int
}

// NewConsole creates a console writing through out. A nil writer discards
// output but still records history.
func NewConsole(out DebugWriter) *Console {
	if out == nil {
		out = func(string) {}
	}
	return &Console{out: out}
}

// SetDebugWriter redirects output to a platform-specific writer
func (c *Console) SetDebugWriter(out DebugWriter) {
	if out == nil {
		out = func(string) {}
	}
	c.out = out
}

// SetDebugEnabled enables or disables debug output
func (c *Console) SetDebugEnabled(enabled bool) {
	c.debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func (c *Console) IsDebugEnabled() bool {
	return c.debugEnabled
}

// Println writes a line as is
func (c *Console) Println(line string) {
	c.history[c.historyHead] = line
	c.historyHead = (c.historyHead + 1) % HistorySize
	c.out(line)
}

// Echo writes an informational line
func (c *Console) Echo(format string, args ...any) {
	c.Println(PrefixEcho + fmt.Sprintf(format, args...))
}

// Error writes an error line
func (c *Console) Error(format string, args ...any) {
	c.Println(PrefixError + fmt.Sprintf(format, args...))
}

// Debug writes a line only while debug output is enabled
func (c *Console) Debug(format string, args ...any) {
	if c.debugEnabled {
		c.Println(PrefixDebug + fmt.Sprintf(format, args...))
	}
}

// History returns the recorded lines, oldest first
func (c *Console) History() []string {
	lines := make([]string, 0, HistorySize)
	for i := 0; i < HistorySize; i++ {
		line := c.history[(c.historyHead+i)%HistorySize]
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// DumpHistory replays the recorded lines (call on kill or error)
func (c *Console) DumpHistory() {
	lines := c.History()
	c.out("[HISTORY] === Console Dump ===")
	for _, line := range lines {
		c.out("[HISTORY] " + line)
	}
	c.out("[HISTORY] === End Dump ===")
}
