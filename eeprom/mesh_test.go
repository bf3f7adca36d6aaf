package eeprom

import (
	"errors"
	"testing"

	"printcore/medium"
)

type testMesh struct {
	values  []float32
	slot    int
	cleared int
}

func newTestMesh() *testMesh {
	return &testMesh{values: make([]float32, 9), slot: -1}
}

func (m *testMesh) Values() []float32 { return m.values }
func (m *testMesh) StorageSlot() int  { return m.slot }

func (m *testMesh) Clear() {
	for i := range m.values {
		m.values[i] = 0
	}
	m.cleared++
}

func newMeshEngine(t *testing.T, m medium.Medium, out *capture) (*Engine, *testMesh) {
	t.Helper()
	e := newEngine(t, m, newSettings(3, 3), DefaultOptions(), out)
	mesh := newTestMesh()
	e.BindMesh(mesh)
	return e, mesh
}

func TestMeshSlotLayout(t *testing.T) {
	e, _ := newMeshEngine(t, medium.NewRAM(4096), &capture{})

	// start (100+100+32)&^7 = 232, end 4096-129 = 3967, size 9*4+2 = 38
	if got := e.MeshSlots(); got != 98 {
		t.Errorf("Expected 98 slots, got %d", got)
	}
	if got := e.MeshSlotOffset(0); got != 3929 {
		t.Errorf("Slot 0 at %d, want 3929", got)
	}
	if got := e.MeshSlotOffset(97); got < 232 {
		t.Errorf("Last slot at %d overlaps the record", got)
	}

	unbound := newEngine(t, medium.NewRAM(4096), newSettings(3, 3), DefaultOptions(), &capture{})
	if unbound.MeshSlots() != 0 {
		t.Error("Expected no slots without a mesh")
	}

	large, _ := newMeshEngine(t, medium.NewRAM(16384), &capture{})
	if got := large.MeshSlots(); got != 128 {
		t.Errorf("Expected slots capped at 128, got %d", got)
	}

	small, _ := newMeshEngine(t, medium.NewRAM(300), &capture{})
	if small.MeshSlots() != 0 {
		t.Errorf("Expected no slots when the trailer overlaps the record, got %d", small.MeshSlots())
	}
}

func TestMeshSlotBounds(t *testing.T) {
	probe := &probeMedium{Medium: medium.NewRAM(4096)}
	out := &capture{}
	e, _ := newMeshEngine(t, probe, out)

	for _, slot := range []int{-1, e.MeshSlots(), 120} {
		if err := e.StoreMesh(slot); !errors.Is(err, ErrInvalidSlot) {
			t.Errorf("StoreMesh(%d): expected ErrInvalidSlot, got %v", slot, err)
		}
		if err := e.LoadMesh(slot, nil); !errors.Is(err, ErrInvalidSlot) {
			t.Errorf("LoadMesh(%d): expected ErrInvalidSlot, got %v", slot, err)
		}
	}

	if probe.reads != 0 || probe.writes != 0 {
		t.Errorf("Rejected slots touched the medium: %d reads, %d writes", probe.reads, probe.writes)
	}
	if !out.contains("?Invalid slot.") || !out.contains("98 mesh slots available.") {
		t.Errorf("Missing rejection messages, got %v", out.lines)
	}
}

func TestMeshStoreLoad(t *testing.T) {
	ram := medium.NewRAM(4096)
	e, mesh := newMeshEngine(t, ram, &capture{})

	for i := range mesh.values {
		mesh.values[i] = float32(i)*0.1 - 0.3
	}
	if err := e.StoreMesh(5); err != nil {
		t.Fatalf("StoreMesh failed: %v", err)
	}

	into := make([]float32, 9)
	if err := e.LoadMesh(5, into); err != nil {
		t.Fatalf("LoadMesh failed: %v", err)
	}
	for i := range into {
		if into[i] != mesh.values[i] {
			t.Errorf("point %d: got %v, want %v", i, into[i], mesh.values[i])
		}
	}

	// Other slots are independent
	if err := e.LoadMesh(4, into); err == nil {
		t.Error("Expected erased slot 4 to fail its checksum")
	}
}

func TestMeshChecksumLeavesDestination(t *testing.T) {
	ram := medium.NewRAM(4096)
	e, mesh := newMeshEngine(t, ram, &capture{})

	mesh.values[0] = 0.5
	e.StoreMesh(0)
	ram.Bytes()[e.MeshSlotOffset(0)+3] ^= 0x01

	into := []float32{9, 9, 9, 9, 9, 9, 9, 9, 9}
	if err := e.LoadMesh(0, into); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Expected ErrChecksumMismatch, got %v", err)
	}
	for i, v := range into {
		if v != 9 {
			t.Errorf("point %d changed to %v", i, v)
		}
	}
}

func TestMeshFollowsRecord(t *testing.T) {
	ram := medium.NewRAM(4096)
	out := &capture{}
	e, mesh := newMeshEngine(t, ram, out)

	mesh.slot = 2
	mesh.values[8] = -0.125
	if err := e.Store(); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !out.contains("Mesh saved in slot 2") {
		t.Error("Expected the bound slot to be stored with the record")
	}

	mesh.values[8] = 0
	if err := e.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if mesh.values[8] != -0.125 {
		t.Errorf("Expected bound slot to load with the record, got %v", mesh.values[8])
	}

	mesh.slot = -1
	mesh.values[8] = 3
	if err := e.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if mesh.cleared != 1 || mesh.values[8] != 0 {
		t.Error("Expected an unbound mesh to be cleared on load")
	}
}
