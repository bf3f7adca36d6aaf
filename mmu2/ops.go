package mmu2

import "fmt"

// ToolChange selects slot index and feeds it into the extruder. Nothing is
// queued when the slot is already loaded.
func (s *Session) ToolChange(index int) error {
	if err := s.checkSlot(index); err != nil {
		return err
	}
	if index == s.tool {
		return nil
	}
	return s.sequence(
		Command{Op: OpToolChange, Index: uint8(index)},
		Command{Op: OpContinue},
	)
}

// LoadToNozzle feeds slot index even if it is already the loaded tool.
// The host pushes the filament on to the nozzle once OpContinue completes.
func (s *Session) LoadToNozzle(index int) error {
	if err := s.checkSlot(index); err != nil {
		return err
	}
	return s.sequence(
		Command{Op: OpToolChange, Index: uint8(index)},
		Command{Op: OpContinue},
	)
}

// LoadFilament loads slot index into the MMU itself
func (s *Session) LoadFilament(index int) error {
	if err := s.checkSlot(index); err != nil {
		return err
	}
	return s.sequence(Command{Op: OpLoad, Index: uint8(index)})
}

// Unload pulls the loaded filament back into the MMU
func (s *Session) Unload() error {
	return s.sequence(Command{Op: OpUnload})
}

// Eject pushes slot index out of the MMU. With recover the unit is
// re-armed after the operator removed the filament.
func (s *Session) Eject(index int, recover bool) error {
	if err := s.checkSlot(index); err != nil {
		return err
	}
	if recover {
		return s.sequence(Command{Op: OpEject, Index: uint8(index)}, Command{Op: OpRecover})
	}
	return s.sequence(Command{Op: OpEject, Index: uint8(index)})
}

// SetFilamentType tells the MMU the material type of slot index
func (s *Session) SetFilamentType(index, filamentType int) error {
	if err := s.checkSlot(index); err != nil {
		return err
	}
	if filamentType < 0 || filamentType > 255 {
		return fmt.Errorf("%w: filament type %d", ErrInvalidCommand, filamentType)
	}
	return s.sequence(Command{Op: OpFilamentType, Index: uint8(index), Arg: uint8(filamentType)})
}

func (s *Session) checkSlot(index int) error {
	if index < 0 || index >= Slots {
		return fmt.Errorf("%w: slot %d", ErrInvalidCommand, index)
	}
	return nil
}

// sequence queues cmds as a unit or not at all
func (s *Session) sequence(cmds ...Command) error {
	if !s.enabled {
		return ErrNotEnabled
	}
	if len(s.queue)+len(cmds) > QueueSize {
		return ErrQueueFull
	}
	s.runoutArmed = false
	for _, c := range cmds {
		if err := s.Enqueue(c); err != nil {
			return err
		}
	}
	return nil
}
