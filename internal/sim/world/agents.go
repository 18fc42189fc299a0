package world

import (
	"fmt"
	"sort"

	"voxelhaul.ai/internal/sim/haul/capacity"
	"voxelhaul.ai/internal/sim/model"
)

// AddAgent places a hauler with the tuned default limits.
func (w *World) AddAgent(id string, pos model.Vec3i, hostile bool) (*model.Agent, error) {
	if id == "" {
		return nil, fmt.Errorf("agent: empty id")
	}
	if _, ok := w.agents[id]; ok {
		return nil, fmt.Errorf("%w: agent %s", ErrDuplicateID, id)
	}
	if !w.passable(pos) {
		return nil, fmt.Errorf("agent %s: %w: %s", id, ErrOutOfBounds, pos)
	}
	a := &model.Agent{
		ID:         id,
		Pos:        pos,
		CarryLimit: w.tuning.Agent.CarryLimit,
		MassLimit:  w.tuning.Agent.MassLimit,
		GearMass:   w.tuning.Agent.GearMass,
		Hostile:    hostile,
	}
	w.agents[id] = a
	return a, nil
}

func (w *World) Agent(id string) *model.Agent { return w.agents[id] }

func (w *World) AgentIDs() []string {
	ids := make([]string, 0, len(w.agents))
	for id := range w.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TakeToCarry moves up to count units of a ground stack into the carry slot.
func (w *World) TakeToCarry(a *model.Agent, s *model.Stack, count int) (int, *model.Stack) {
	if !s.Spawned() {
		return 0, nil
	}
	n := min(count, s.Count, a.AvailableStackSpace(s.Item, s.StackLimit))
	if n <= 0 {
		return 0, nil
	}
	return n, w.putInCarry(a, w.detach(s, n))
}

// Stow moves up to count units of a ground stack into inventory, bounded by
// free mass.
func (w *World) Stow(a *model.Agent, s *model.Stack, count int) (int, *model.Stack) {
	if !s.Spawned() {
		return 0, nil
	}
	n := min(count, s.Count, capacity.StowableByMass(s, a.FreeMass()))
	if n <= 0 {
		return 0, nil
	}
	return n, w.putInInventory(a, w.detach(s, n))
}

// TransferToCarry moves up to count units of an inventory stack into the
// carry slot.
func (w *World) TransferToCarry(a *model.Agent, s *model.Stack, count int) (int, *model.Stack) {
	if s.Gone() || s.Place != model.PlaceInventory || s.Holder != a.ID {
		return 0, nil
	}
	n := min(count, s.Count, a.AvailableStackSpace(s.Item, s.StackLimit))
	if n <= 0 {
		return 0, nil
	}
	return n, w.putInCarry(a, w.detach(s, n))
}

// PlaceCarried puts as much of the carried stack on cell as fits.
func (w *World) PlaceCarried(a *model.Agent, cell model.Vec3i) (int, *model.Stack) {
	c := a.Carried
	if c.Gone() || !touching(a.Pos, cell) {
		return 0, nil
	}
	n := min(c.Count, w.roomFor(cell, c, model.PlaceGround))
	if n <= 0 {
		return 0, nil
	}
	return n, w.putOnCell(cell, w.detach(c, n), model.PlaceGround)
}

// DropNear puts a held or carried stack on the nearest free cell around the
// agent, searching out to the tuned drop radius.
func (w *World) DropNear(a *model.Agent, s *model.Stack) (*model.Stack, bool) {
	if s.Gone() || s.Holder != a.ID {
		return nil, false
	}
	cell, ok := w.freeCellNear(a.Pos, s, w.tuning.Haul.DropSearchRadius)
	if !ok {
		return nil, false
	}
	return w.putOnCell(cell, w.detach(s, s.Count), model.PlaceGround), true
}

// freeCellNear returns the closest cell within radius that takes all of s.
// Ties break on x then z.
func (w *World) freeCellNear(center model.Vec3i, s *model.Stack, radius int) (model.Vec3i, bool) {
	var best model.Vec3i
	bestD, found := 0, false
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			c := model.Vec3i{X: center.X + dx, Y: center.Y, Z: center.Z + dz}
			if w.roomFor(c, s, model.PlaceGround) < s.Count {
				continue
			}
			d := model.DistSq(center, c)
			if !found || d < bestD || (d == bestD && (c.X < best.X || (c.X == best.X && c.Z < best.Z))) {
				best, bestD, found = c, d, true
			}
		}
	}
	return best, found
}

// dropCarried empties the carry slot of an agent whose task ended.
func (w *World) dropCarried(a *model.Agent) {
	c := a.Carried
	if c.Gone() {
		a.Carried = nil
		return
	}
	if dropped, ok := w.DropNear(a, c); ok {
		if a.Hostile {
			dropped.Forbidden = true
		}
		w.auditStack(a.ID, "DROP", dropped, dropped.Count, "TASK_END")
		return
	}
	w.Destroy(c, "DROP_NO_SPACE")
}
