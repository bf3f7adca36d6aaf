//go:build rp2040

package main

import (
	"io"
	"machine"

	"tinygo.org/x/drivers"
)

// uartLink connects the filament changer on UART1. Receive only hands
// over bytes the UART already buffered.
type uartLink struct {
	uart *machine.UART
}

func newUARTLink(baud uint32) (*uartLink, error) {
	err := machine.UART1.Configure(machine.UARTConfig{
		BaudRate: baud,
		TX:       machine.GP8,
		RX:       machine.GP9,
	})
	if err != nil {
		return nil, err
	}
	return &uartLink{uart: machine.UART1}, nil
}

func (l *uartLink) Receive(p []byte) int {
	n := 0
	for n < len(p) && l.uart.Buffered() > 0 {
		b, err := l.uart.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}
	return n
}

func (l *uartLink) Write(p []byte) (int, error) {
	return l.uart.Write(p)
}

// at24Bus hands the settings EEPROM the first I2C controller
func at24Bus(string) (drivers.I2C, io.Closer, error) {
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GP4,
		SCL:       machine.GP5,
	})
	if err != nil {
		return nil, nil, err
	}
	return machine.I2C0, nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
