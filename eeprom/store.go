package eeprom

import (
	"errors"
	"fmt"
)

// Store writes the live settings. The tag is first replaced by an invalid
// marker (not on write-once media), then every block is written in order.
// The real tag and checksum go in last, and only when every write succeeded
// and the record has the expected size. A failed block does not stop the
// blocks after it; all failures are returned joined.
func (e *Engine) Store() error {
	w := NewWriter(e.m, e.opts.Offset)
	if e.m.WriteOnce() {
		w.Skip(len(invalidMarker))
	} else {
		w.Bytes(invalidMarker[:])
	}
	w.Skip(2)

	w.ResetCRC()
	e.reg.save(w)

	err := w.Err()
	size := w.Pos() - e.opts.Offset
	crc := w.CRC()

	switch {
	case err != nil:
		e.console.Error("Error writing to EEPROM!")
	case size != e.DataSize():
		e.console.Error("EEPROM datasize error.")
		err = fmt.Errorf("%w: wrote %d bytes, schema has %d", ErrSchemaSize, size, e.DataSize())
	default:
		header := NewWriter(e.m, e.opts.Offset)
		header.Bytes(e.tag[:])
		header.Value(crc)
		err = header.Err()
		if err == nil {
			e.echo("Settings Stored (%d bytes; crc %d)", size, crc)
		}
	}

	if e.mesh != nil {
		if slot := e.mesh.StorageSlot(); slot >= 0 {
			err = errors.Join(err, e.storeMesh(slot))
		}
	}

	if serr := e.m.Sync(); serr != nil {
		err = errors.Join(err, fmt.Errorf("%w: sync: %w", ErrWriteFailure, serr))
	}

	e.feedback(err == nil)
	return err
}
