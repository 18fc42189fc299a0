package world

import "voxelhaul.ai/internal/sim/model"

// IsForbidden: hostile agents ignore the forbidden flag.
func (w *World) IsForbidden(s *model.Stack, a *model.Agent) bool {
	return s != nil && s.Forbidden && (a == nil || !a.Hostile)
}

// haulable is a ground stack the agent may move that is not already stored.
func (w *World) haulable(s *model.Stack, a *model.Agent) bool {
	if !s.Spawned() || w.IsForbidden(s, a) || w.InValidStorage(s) {
		return false
	}
	def, ok := w.catalogs.Item(s.Item)
	return ok && def.Haulable
}

// ClosestHaulable scans for the nearest eligible stack within radius of from.
// Ties break on stack id.
func (w *World) ClosestHaulable(a *model.Agent, from model.Vec3i, dest model.Vec3i, radius float64, accept func(*model.Stack) bool) *model.Stack {
	var best *model.Stack
	bestD := 0
	var reach map[model.Vec3i]bool
	limit := radius * radius
	for _, s := range w.stacks {
		if !w.haulable(s, a) || !w.StorageAccepts(dest, s) {
			continue
		}
		d := model.DistSq(from, s.Pos)
		if float64(d) > limit {
			continue
		}
		if best != nil && (d > bestD || (d == bestD && s.ID > best.ID)) {
			continue
		}
		if accept != nil && !accept(s) {
			continue
		}
		if reach == nil {
			reach = w.reachableFrom(a.Pos)
		}
		if !reach[s.Pos] {
			continue
		}
		best, bestD = s, d
	}
	return best
}

