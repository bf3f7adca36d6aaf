package eeprom

import "errors"

var (
	// ErrSchemaSize is returned when the bytes streamed differ from DataSize
	ErrSchemaSize = errors.New("eeprom: datasize error")

	// ErrVersionMismatch is returned when the stored tag is not the firmware tag
	ErrVersionMismatch = errors.New("eeprom: version mismatch")

	// ErrChecksumMismatch is returned when the stored and computed CRC differ
	ErrChecksumMismatch = errors.New("eeprom: crc mismatch")

	// ErrWriteFailure wraps medium write and sync errors
	ErrWriteFailure = errors.New("eeprom: write failed")

	// ErrReadFailure wraps medium read errors
	ErrReadFailure = errors.New("eeprom: read failed")

	// ErrInvalidSlot is returned for mesh slots outside the slot region
	ErrInvalidSlot = errors.New("eeprom: invalid mesh slot")
)
