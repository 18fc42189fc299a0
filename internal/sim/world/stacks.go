package world

import (
	"fmt"
	"slices"

	"voxelhaul.ai/internal/sim/model"
)

const defaultStackLimit = 75

func (w *World) newStackID() model.StackID {
	return model.StackID(fmt.Sprintf("S%d", w.nextStackNum.Add(1)))
}

// Stack returns the live stack with id, nil once it is destroyed or merged.
func (w *World) Stack(id model.StackID) *model.Stack { return w.stacks[id] }

// Stacks returns every live stack; order is unspecified.
func (w *World) Stacks() []*model.Stack {
	out := make([]*model.Stack, 0, len(w.stacks))
	for _, s := range w.stacks {
		out = append(out, s)
	}
	return out
}

// SpawnStack puts count units of item on the ground at pos, merging into a
// stack of the same item already there.
func (w *World) SpawnStack(item string, count int, pos model.Vec3i) (*model.Stack, error) {
	def, ok := w.catalogs.Item(item)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}
	if count <= 0 {
		return nil, fmt.Errorf("spawn %s: bad count %d", item, count)
	}
	if !w.passable(pos) {
		return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	if g := w.groundAt(pos); g != nil {
		if g.Item != item {
			return nil, fmt.Errorf("%w: %s holds %s", ErrCellOccupied, pos, g.Item)
		}
		g.Count += count
		w.auditStack("WORLD", "STACK_SPAWN", g, count, "MERGED")
		return g, nil
	}
	limit := def.StackLimit
	if limit <= 0 {
		limit = defaultStackLimit
	}
	s := &model.Stack{
		ID:         w.newStackID(),
		Item:       item,
		Pos:        pos,
		Count:      count,
		UnitMass:   def.Mass,
		StackLimit: limit,
		Place:      model.PlaceGround,
	}
	w.stacks[s.ID] = s
	w.index(s)
	w.auditStack("WORLD", "STACK_SPAWN", s, count, "")
	return s, nil
}

// SetForbidden flags a stack as off limits for non-hostile agents.
func (w *World) SetForbidden(id model.StackID, forbidden bool) bool {
	s := w.stacks[id]
	if s == nil {
		return false
	}
	s.Forbidden = forbidden
	return true
}

func (w *World) index(s *model.Stack) {
	w.stacksAt[s.Pos] = append(w.stacksAt[s.Pos], s.ID)
}

func (w *World) unindex(s *model.Stack) {
	ids := slices.DeleteFunc(w.stacksAt[s.Pos], func(id model.StackID) bool { return id == s.ID })
	if len(ids) == 0 {
		delete(w.stacksAt, s.Pos)
	} else {
		w.stacksAt[s.Pos] = ids
	}
}

func (w *World) stackAt(pos model.Vec3i, place model.Place) *model.Stack {
	for _, id := range w.stacksAt[pos] {
		if s := w.stacks[id]; s != nil && s.Place == place && !s.Gone() {
			return s
		}
	}
	return nil
}

func (w *World) groundAt(pos model.Vec3i) *model.Stack { return w.stackAt(pos, model.PlaceGround) }

// detach takes n units out of wherever s is. Taking everything detaches s
// itself; otherwise a new stack with a fresh id is split off.
func (w *World) detach(s *model.Stack, n int) *model.Stack {
	if n >= s.Count {
		switch s.Place {
		case model.PlaceGround, model.PlaceBench:
			w.unindex(s)
		case model.PlaceCarried:
			if a := w.agents[s.Holder]; a != nil && a.Carried == s {
				a.Carried = nil
			}
		case model.PlaceInventory:
			if a := w.agents[s.Holder]; a != nil {
				a.RemoveFromInventory(s.ID)
			}
		}
		s.Holder = ""
		return s
	}
	s.Count -= n
	d := *s
	d.ID = w.newStackID()
	d.Count = n
	d.Holder = ""
	w.stacks[d.ID] = &d
	return &d
}

// absorb merges a detached stack into another of the same item.
func (w *World) absorb(into, d *model.Stack) *model.Stack {
	if into == d {
		return into
	}
	into.Count += d.Count
	d.Count = 0
	d.Destroyed = true
	delete(w.stacks, d.ID)
	w.res.Forget(d.ID)
	return into
}

func (w *World) putOnCell(cell model.Vec3i, d *model.Stack, place model.Place) *model.Stack {
	if existing := w.stackAt(cell, place); existing != nil && existing.Item == d.Item {
		return w.absorb(existing, d)
	}
	d.Place = place
	d.Pos = cell
	d.Holder = ""
	w.index(d)
	return d
}

func (w *World) putInCarry(a *model.Agent, d *model.Stack) *model.Stack {
	if c := a.Carried; c != nil && !c.Gone() {
		return w.absorb(c, d)
	}
	d.Place = model.PlaceCarried
	d.Holder = a.ID
	d.Pos = a.Pos
	d.Forbidden = false
	a.Carried = d
	return d
}

func (w *World) putInInventory(a *model.Agent, d *model.Stack) *model.Stack {
	for _, s := range a.Inventory {
		if s.Item == d.Item && !s.Gone() {
			return w.absorb(s, d)
		}
	}
	d.Place = model.PlaceInventory
	d.Holder = a.ID
	d.Pos = a.Pos
	d.Forbidden = false
	a.Inventory = append(a.Inventory, d)
	return d
}

// Destroy removes s from the world entirely.
func (w *World) Destroy(s *model.Stack, reason string) {
	if s == nil || s.Destroyed {
		return
	}
	holder := s.Holder
	d := w.detach(s, s.Count)
	w.auditStack(holder, "STACK_DESTROY", d, d.Count, reason)
	d.Destroyed = true
	delete(w.stacks, d.ID)
	w.res.Forget(d.ID)
}

func (w *World) roomFor(cell model.Vec3i, s *model.Stack, place model.Place) int {
	if !w.passable(cell) {
		return 0
	}
	limit := s.StackLimit
	if limit <= 0 {
		limit = defaultStackLimit
	}
	existing := w.stackAt(cell, place)
	if existing == nil {
		if place == model.PlaceGround && w.stackAt(cell, model.PlaceBench) != nil {
			return 0
		}
		if place == model.PlaceBench && w.groundAt(cell) != nil {
			return 0
		}
		return limit
	}
	if existing.Item != s.Item || existing.ID == s.ID {
		return 0
	}
	if n := limit - existing.Count; n > 0 {
		return n
	}
	return 0
}
