package eeprom

import (
	"fmt"
)

// Validate reads the stored record exactly as Load would, without changing
// any live setting or running post-load work. It reports the result through
// the feedback indicator.
func (e *Engine) Validate() error {
	err := e.load(true)
	e.feedback(err == nil)
	return err
}

// Load validates the stored record and, if it is sound, reads it into the
// live settings. On failure every block gets factory defaults instead, and
// with AutoInit those defaults are stored right away. The load error is
// returned either way.
func (e *Engine) Load() error {
	if err := e.Validate(); err != nil {
		e.Reset()
		if e.opts.AutoInit {
			if serr := e.Store(); serr != nil {
				e.console.Error("EEPROM initialization failed: %v", serr)
			} else {
				e.console.Echo("EEPROM Initialized")
			}
		}
		return err
	}

	if err := e.load(false); err != nil {
		// The medium changed under us; never keep a partial record
		e.Reset()
		return err
	}
	return nil
}

func (e *Engine) load(validating bool) error {
	r := NewReader(e.m, e.opts.Offset, validating)

	var tag [6]byte
	var stored uint16
	r.Always(&tag)
	r.Always(&stored)
	if err := r.Err(); err != nil {
		e.console.Error("Error reading from EEPROM!")
		return err
	}

	if string(tag[:5]) != string(e.tag[:5]) {
		shown := e.storedTag(tag)
		e.echo("EEPROM version mismatch (EEPROM=%s Firmware=%s)", shown, e.opts.Version)
		return fmt.Errorf("%w: EEPROM=%s Firmware=%s", ErrVersionMismatch, shown, e.opts.Version)
	}

	r.ResetCRC()
	e.reg.restore(r)

	size := r.Pos() - e.opts.Offset
	crc := r.CRC()

	switch {
	case r.Err() != nil:
		e.console.Error("Error reading from EEPROM!")
		return r.Err()
	case size != e.DataSize():
		e.console.Error("EEPROM datasize error.")
		e.echo("Index: %d Size: %d", size, e.DataSize())
		return fmt.Errorf("%w: read %d bytes, schema has %d", ErrSchemaSize, size, e.DataSize())
	case crc != stored:
		e.console.Error("EEPROM CRC mismatch - (stored) %d != %d (calculated)!", stored, crc)
		return fmt.Errorf("%w: stored %d, calculated %d", ErrChecksumMismatch, stored, crc)
	}

	if validating {
		return nil
	}

	e.echo("%s stored settings retrieved (%d bytes; crc %d)", e.opts.Version, size, crc)
	e.reg.postProcess()

	if e.mesh != nil {
		if slot := e.mesh.StorageSlot(); slot >= 0 {
			if err := e.LoadMesh(slot, nil); err != nil {
				e.mesh.Clear()
				e.console.Error("Mesh %d not loaded: %v", slot, err)
				e.echo("Mesh system reset")
			} else {
				e.echo("Mesh %d loaded from storage.", slot)
			}
		} else {
			e.mesh.Clear()
			e.echo("Mesh system reset")
		}
	}
	return nil
}
