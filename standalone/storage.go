package standalone

import (
	"fmt"
	"io"

	"tinygo.org/x/drivers"

	"printcore/medium"
	"printcore/standalone/config"
)

// BusOpener opens a named I2C bus for the AT24 medium. The closer releases
// the bus.
type BusOpener func(name string) (drivers.I2C, io.Closer, error)

// OpenMedium opens the settings medium described by s. The returned closer
// is never nil.
func OpenMedium(s config.Storage, openBus BusOpener) (medium.Medium, io.Closer, error) {
	capacity := int(s.Capacity.Bytes())

	switch s.Medium {
	case config.MediumRAM:
		return medium.NewRAM(capacity), nopCloser{}, nil

	case config.MediumFlash:
		m, err := medium.NewFlash(capacity, s.PageSize)
		if err != nil {
			return nil, nil, err
		}
		return m, nopCloser{}, nil

	case config.MediumFile:
		m, err := medium.OpenFile(s.Path, capacity)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil

	case config.MediumAT24:
		if openBus == nil {
			return nil, nil, fmt.Errorf("at24 medium needs an i2c bus opener")
		}
		bus, closer, err := openBus(s.I2CBus)
		if err != nil {
			return nil, nil, fmt.Errorf("open i2c bus %s: %w", s.I2CBus, err)
		}
		m, err := medium.NewAT24(bus, medium.AT24Config{
			Address:  s.I2CAddress,
			PageSize: uint16(s.PageSize),
			Capacity: capacity,
		})
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		return m, closer, nil
	}

	return nil, nil, fmt.Errorf("unknown storage medium %q", s.Medium)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
