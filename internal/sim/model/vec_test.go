package model

import "testing"

func TestDistSqAndManhattan(t *testing.T) {
	a := Vec3i{X: 1, Y: 0, Z: 2}
	b := Vec3i{X: 4, Y: 0, Z: -2}
	if got := DistSq(a, b); got != 25 {
		t.Fatalf("DistSq: got %d want 25", got)
	}
	if got := Manhattan(a, b); got != 7 {
		t.Fatalf("Manhattan: got %d want 7", got)
	}
}

func TestAgentAvailableStackSpace(t *testing.T) {
	a := &Agent{ID: "A1", CarryLimit: 75}
	if got := a.AvailableStackSpace("WOOD", 25); got != 25 {
		t.Fatalf("empty hands: got %d want 25", got)
	}
	a.Carried = &Stack{ID: "S1", Item: "WOOD", Count: 10, StackLimit: 25, Place: PlaceCarried}
	if got := a.AvailableStackSpace("WOOD", 25); got != 15 {
		t.Fatalf("same item: got %d want 15", got)
	}
	if got := a.AvailableStackSpace("STONE", 25); got != 0 {
		t.Fatalf("other item: got %d want 0", got)
	}
}

func TestAgentCurrentMassIgnoresCarried(t *testing.T) {
	a := &Agent{
		GearMass:  2,
		MassLimit: 35,
		Carried:   &Stack{Item: "STEEL", Count: 10, UnitMass: 0.5},
		Inventory: []*Stack{{ID: "S2", Item: "WOOD", Count: 20, UnitMass: 0.5}},
	}
	if got := a.CurrentMass(); got != 12 {
		t.Fatalf("mass: got %v want 12", got)
	}
	if got := a.FreeMass(); got != 23 {
		t.Fatalf("free: got %v want 23", got)
	}
	a.RemoveFromInventory("S2")
	if len(a.Inventory) != 0 {
		t.Fatalf("expected empty inventory")
	}
}
