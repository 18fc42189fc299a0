package overflow

import (
	"errors"
	"testing"

	"voxelhaul.ai/internal/sim/model"
)

type stubEnv struct {
	stacks   map[model.StackID]*model.Stack
	noSpace  map[model.StackID]bool
	dropped  []model.StackID
	killed   []model.StackID
	stuckOut bool
}

func (e *stubEnv) Stack(id model.StackID) *model.Stack { return e.stacks[id] }

func (e *stubEnv) TransferToCarry(a *model.Agent, s *model.Stack, count int) (int, *model.Stack) {
	if e.stuckOut {
		return 0, nil
	}
	n := count
	if n > s.Count {
		n = s.Count
	}
	if n == s.Count {
		a.RemoveFromInventory(s.ID)
		s.Place = model.PlaceCarried
		a.Carried = s
		return n, s
	}
	s.Count -= n
	c := &model.Stack{ID: s.ID + "_c", Item: s.Item, Count: n, Place: model.PlaceCarried}
	e.stacks[c.ID] = c
	a.Carried = c
	return n, c
}

func (e *stubEnv) DropNear(a *model.Agent, s *model.Stack) (*model.Stack, bool) {
	if e.noSpace[s.ID] {
		return nil, false
	}
	a.RemoveFromInventory(s.ID)
	s.Place = model.PlaceGround
	s.Pos = a.Pos
	e.dropped = append(e.dropped, s.ID)
	return s, true
}

func (e *stubEnv) Destroy(s *model.Stack, _ string) {
	s.Destroyed = true
	e.killed = append(e.killed, s.ID)
}

func stowed(id model.StackID, item string, n int) *model.Stack {
	return &model.Stack{ID: id, Item: item, Count: n, UnitMass: 1, Place: model.PlaceInventory, Holder: "A1"}
}

func TestFlushAllDropsEverythingAndDestroysUndroppable(t *testing.T) {
	s1 := stowed("S1", "WOOD", 10)
	s2 := stowed("S2", "STEEL", 4)
	env := &stubEnv{
		stacks:  map[model.StackID]*model.Stack{"S1": s1, "S2": s2},
		noSpace: map[model.StackID]bool{"S2": true},
	}
	a := &model.Agent{ID: "A1", Pos: model.Vec3i{X: 3}, Inventory: []*model.Stack{s1, s2}}
	held := HeldFrom([]model.StackID{"S1", "S2"})

	var audits []string
	m := Manager{Env: env, Audit: func(action string, _ *model.Agent, s *model.Stack, _ string) {
		audits = append(audits, action+":"+string(s.ID))
	}}
	m.FlushAll(a, &held)

	if !held.Empty() {
		t.Fatalf("held-set not empty: %v", held.IDs())
	}
	if len(env.dropped) != 1 || env.dropped[0] != "S1" || s1.Pos != a.Pos {
		t.Fatalf("S1 not dropped at agent: %+v", s1)
	}
	if len(env.killed) != 1 || env.killed[0] != "S2" {
		t.Fatalf("S2 should be destroyed: %v", env.killed)
	}
	if len(audits) != 2 {
		t.Fatalf("audits: %v", audits)
	}
}

func TestFlushAllForbidsDropsOfHostile(t *testing.T) {
	s1 := stowed("S1", "WOOD", 10)
	env := &stubEnv{stacks: map[model.StackID]*model.Stack{"S1": s1}}
	a := &model.Agent{ID: "A1", Hostile: true, Inventory: []*model.Stack{s1}}
	held := HeldFrom([]model.StackID{"S1"})
	Manager{Env: env}.FlushAll(a, &held)
	if !s1.Forbidden {
		t.Fatalf("hostile drop should be forbidden")
	}
}

func TestTransferOneToCarryPartialKeepsHeld(t *testing.T) {
	s1 := stowed("S1", "WOOD", 40)
	env := &stubEnv{stacks: map[model.StackID]*model.Stack{"S1": s1}}
	a := &model.Agent{ID: "A1", CarryLimit: 25, Inventory: []*model.Stack{s1}}
	held := HeldFrom([]model.StackID{"S1"})

	c, err := Manager{Env: env}.TransferOneToCarry(a, &held)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if c == nil || c.Count != 25 || s1.Count != 15 {
		t.Fatalf("unexpected split: carried=%+v rest=%d", c, s1.Count)
	}
	if !held.Contains("S1") {
		t.Fatalf("partially moved stack must stay held")
	}
}

func TestTransferOneToCarryFullRemovesHeld(t *testing.T) {
	s1 := stowed("S1", "WOOD", 10)
	env := &stubEnv{stacks: map[model.StackID]*model.Stack{"S1": s1}}
	a := &model.Agent{ID: "A1", CarryLimit: 25, Inventory: []*model.Stack{s1}}
	held := HeldFrom([]model.StackID{"S1"})

	if _, err := (Manager{Env: env}).TransferOneToCarry(a, &held); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !held.Empty() {
		t.Fatalf("held should be empty")
	}
}

func TestTransferOneToCarryZeroMovedIsInvariant(t *testing.T) {
	s1 := stowed("S1", "WOOD", 10)
	env := &stubEnv{stacks: map[model.StackID]*model.Stack{"S1": s1}, stuckOut: true}
	a := &model.Agent{ID: "A1", CarryLimit: 25, Inventory: []*model.Stack{s1}}
	held := HeldFrom([]model.StackID{"S1"})

	_, err := Manager{Env: env}.TransferOneToCarry(a, &held)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
}
