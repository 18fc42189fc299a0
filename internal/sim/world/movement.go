package world

import (
	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/model"
)

// Fixed neighbor order keeps paths deterministic.
var dirs4 = []model.Vec3i{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

func (w *World) inBounds(p model.Vec3i) bool {
	return p.Y == 0 && p.X >= 0 && p.Z >= 0 && p.X < w.cfg.Width && p.Z < w.cfg.Depth
}

func (w *World) passable(p model.Vec3i) bool { return w.inBounds(p) && !w.blocked[p] }

// Block marks a cell impassable.
func (w *World) Block(p model.Vec3i) error {
	if !w.inBounds(p) {
		return ErrOutOfBounds
	}
	if len(w.stacksAt[p]) > 0 || w.zoneAt[p] != "" {
		return ErrCellOccupied
	}
	w.blocked[p] = true
	return nil
}

func touching(a, b model.Vec3i) bool {
	dx, dz := a.X-b.X, a.Z-b.Z
	return a.Y == b.Y && dx >= -1 && dx <= 1 && dz >= -1 && dz <= 1
}

// pathStep runs a breadth-first search from start and returns the first step
// towards the nearest cell satisfying goal. start itself may be the goal.
func (w *World) pathStep(start model.Vec3i, goal func(model.Vec3i) bool) (model.Vec3i, bool) {
	if goal(start) {
		return start, true
	}
	first := map[model.Vec3i]model.Vec3i{start: start}
	queue := []model.Vec3i{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range dirs4 {
			np := model.Vec3i{X: p.X + d.X, Y: p.Y, Z: p.Z + d.Z}
			if _, seen := first[np]; seen || !w.passable(np) {
				continue
			}
			if p == start {
				first[np] = np
			} else {
				first[np] = first[p]
			}
			if goal(np) {
				return first[np], true
			}
			queue = append(queue, np)
		}
	}
	return model.Vec3i{}, false
}

// reachableFrom floods every passable cell connected to start.
func (w *World) reachableFrom(start model.Vec3i) map[model.Vec3i]bool {
	seen := map[model.Vec3i]bool{start: true}
	queue := []model.Vec3i{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range dirs4 {
			np := model.Vec3i{X: p.X + d.X, Y: p.Y, Z: p.Z + d.Z}
			if seen[np] || !w.passable(np) {
				continue
			}
			seen[np] = true
			queue = append(queue, np)
		}
	}
	return seen
}

// Reachable reports whether a can get next to pos.
func (w *World) Reachable(a *model.Agent, pos model.Vec3i) bool {
	_, ok := w.pathStep(a.Pos, func(p model.Vec3i) bool { return touching(p, pos) })
	return ok
}

// MoveTo advances a by at most one cell. Arrival is reported on the call
// after the last step.
func (w *World) MoveTo(a *model.Agent, dest model.Vec3i, mode runtime.PathMode) runtime.MoveStatus {
	arrived := func(p model.Vec3i) bool {
		if mode == runtime.PathOnCell {
			return p == dest
		}
		return touching(p, dest)
	}
	if arrived(a.Pos) {
		return runtime.MoveArrived
	}
	next, ok := w.pathStep(a.Pos, arrived)
	if !ok {
		return runtime.MoveFailed
	}
	w.moveAgent(a, next)
	return runtime.MoveInProgress
}

func (w *World) moveAgent(a *model.Agent, p model.Vec3i) {
	a.Pos = p
	if a.Carried != nil {
		a.Carried.Pos = p
	}
	for _, s := range a.Inventory {
		s.Pos = p
	}
}
