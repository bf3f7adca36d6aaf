package core

import "time"

// Clock supplies the millisecond tick that drives every polled state machine.
// The value wraps around after about 49 days; compare ticks by subtraction.
type Clock interface {
	Millis() uint32
}

// SystemClock counts milliseconds since it was created
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at zero
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Millis returns milliseconds since boot
func (c *SystemClock) Millis() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock only moves when told to (for testing and simulation)
type ManualClock struct {
	ms uint32
}

// Millis returns the current tick
func (c *ManualClock) Millis() uint32 {
	return c.ms
}

// Set sets the current tick
func (c *ManualClock) Set(ms uint32) {
	c.ms = ms
}

// Advance moves the clock forward by ms
func (c *ManualClock) Advance(ms uint32) {
	c.ms += ms
}

// Elapsed reports whether at least interval ms separate since and now
func Elapsed(now, since, interval uint32) bool {
	return now-since >= interval
}

// Expired reports whether interval ms have passed since *last and, if so,
// moves *last to now so the next call waits a full interval again
func Expired(last *uint32, now, interval uint32) bool {
	if !Elapsed(now, *last, interval) {
		return false
	}
	*last = now
	return true
}
