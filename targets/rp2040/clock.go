//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 timer peripheral, a free running 64-bit microsecond counter
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24
	timerTIMERAWL = timerBase + 0x28
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareClock implements core.Clock on the microsecond timer
type hardwareClock struct{}

// Millis returns milliseconds since reset
func (hardwareClock) Millis() uint32 {
	return uint32(uptime() / 1000)
}

// uptime reads the full counter. High is read on both sides of low to
// catch a carry between the two reads.
func uptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}
