package eeprom

import (
	"encoding/binary"
	"fmt"
	"math"

	"printcore/protocol"
)

// meshSize returns the slot size: the grid values plus their CRC
func (e *Engine) meshSize() int {
	if e.mesh == nil {
		return 0
	}
	return 4*len(e.mesh.Values()) + 2
}

// meshesStart is the first address past the record, rounded to 8 bytes
// with some slack for a grown record
func (e *Engine) meshesStart() int {
	return (e.opts.Offset + e.DataSize() + 32) &^ 7
}

func (e *Engine) meshesEnd() int {
	return e.m.Capacity() - e.opts.ReservedTrailer
}

// maxMeshSlots bounds the slot count by the signed byte the record binds a
// slot with
const maxMeshSlots = math.MaxInt8 + 1

// MeshSlots returns the number of mesh slots that fit between the record
// and the reserved trailer, at most maxMeshSlots
func (e *Engine) MeshSlots() int {
	size := e.meshSize()
	if size == 0 {
		return 0
	}
	free := e.meshesEnd() - e.meshesStart()
	if free < size {
		return 0
	}
	return min(free/size, maxMeshSlots)
}

// MeshSlotOffset returns the medium address of slot. Slot 0 is the highest.
func (e *Engine) MeshSlotOffset(slot int) int {
	return e.meshesEnd() - (slot+1)*e.meshSize()
}

func (e *Engine) checkSlot(slot int) error {
	n := e.MeshSlots()
	if slot >= 0 && slot < n {
		return nil
	}
	e.console.Println("?Invalid slot.")
	e.console.Println(fmt.Sprintf("%d mesh slots available.", n))
	return fmt.Errorf("%w: %d (%d available)", ErrInvalidSlot, slot, n)
}

// StoreMesh writes the live mesh to slot and commits the medium
func (e *Engine) StoreMesh(slot int) error {
	if err := e.storeMesh(slot); err != nil {
		return err
	}
	if err := e.m.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %w", ErrWriteFailure, err)
	}
	return nil
}

func (e *Engine) storeMesh(slot int) error {
	if err := e.checkSlot(slot); err != nil {
		if e.opts.Chitchat {
			e.console.Println(fmt.Sprintf("E2END=%d meshes_end=%d slot=%d", e.m.Capacity()-1, e.meshesEnd(), slot))
		}
		return err
	}

	buf, err := binary.Append(make([]byte, 0, e.meshSize()), binary.LittleEndian, e.mesh.Values())
	if err != nil {
		return fmt.Errorf("%w: encode mesh: %w", ErrWriteFailure, err)
	}
	buf = binary.LittleEndian.AppendUint16(buf, protocol.CRC16(buf))

	if _, err := e.m.WriteAt(buf, int64(e.MeshSlotOffset(slot))); err != nil {
		e.console.Println("?Unable to save mesh data.")
		return fmt.Errorf("%w: mesh slot %d: %w", ErrWriteFailure, slot, err)
	}
	e.echo("Mesh saved in slot %d", slot)
	return nil
}

// LoadMesh reads slot into into, or into the live mesh when into is nil.
// The destination is left unchanged unless the slot checksum matches.
func (e *Engine) LoadMesh(slot int, into []float32) error {
	if err := e.checkSlot(slot); err != nil {
		return err
	}

	points := len(e.mesh.Values())
	if into == nil {
		into = e.mesh.Values()
	}
	if len(into) != points {
		return fmt.Errorf("%w: mesh destination holds %d points, slot has %d", ErrReadFailure, len(into), points)
	}

	buf := make([]byte, e.meshSize())
	if _, err := e.m.ReadAt(buf, int64(e.MeshSlotOffset(slot))); err != nil {
		e.console.Println("?Unable to load mesh data.")
		return fmt.Errorf("%w: mesh slot %d: %w", ErrReadFailure, slot, err)
	}

	data := buf[:4*points]
	stored := binary.LittleEndian.Uint16(buf[4*points:])
	if crc := protocol.CRC16(data); crc != stored {
		e.console.Println("?Unable to load mesh data.")
		return fmt.Errorf("%w: mesh slot %d: stored %d, calculated %d", ErrChecksumMismatch, slot, stored, crc)
	}

	if _, err := binary.Decode(data, binary.LittleEndian, into); err != nil {
		return fmt.Errorf("%w: decode mesh: %w", ErrReadFailure, err)
	}
	e.echo("Mesh loaded from slot %d", slot)
	return nil
}
