package world

import (
	"fmt"
	"sort"

	"voxelhaul.ai/internal/sim/model"
)

// Zone is a set of storage cells with an item filter. An empty filter
// accepts every item.
type Zone struct {
	ID       string
	Priority int
	Accepts  []string
	Cells    []model.Vec3i
}

func (z *Zone) accepts(item string) bool {
	if len(z.Accepts) == 0 {
		return true
	}
	for _, it := range z.Accepts {
		if it == item {
			return true
		}
	}
	return false
}

func (w *World) AddZone(z Zone) error {
	if z.ID == "" {
		return fmt.Errorf("zone: empty id")
	}
	if _, ok := w.zones[z.ID]; ok {
		return fmt.Errorf("%w: zone %s", ErrDuplicateID, z.ID)
	}
	for _, it := range z.Accepts {
		if _, ok := w.catalogs.Item(it); !ok {
			return fmt.Errorf("zone %s: %w: %s", z.ID, ErrUnknownItem, it)
		}
	}
	for _, c := range z.Cells {
		if !w.passable(c) {
			return fmt.Errorf("zone %s: %w: %s", z.ID, ErrOutOfBounds, c)
		}
		if other := w.zoneAt[c]; other != "" {
			return fmt.Errorf("zone %s: %w: %s already in %s", z.ID, ErrCellOccupied, c, other)
		}
	}
	zz := z
	zz.Cells = append([]model.Vec3i(nil), z.Cells...)
	w.zones[z.ID] = &zz
	for _, c := range zz.Cells {
		w.zoneAt[c] = zz.ID
	}
	return nil
}

func (w *World) zoneOf(cell model.Vec3i) *Zone {
	if id := w.zoneAt[cell]; id != "" {
		return w.zones[id]
	}
	return nil
}

func (w *World) StorageAccepts(cell model.Vec3i, s *model.Stack) bool {
	z := w.zoneOf(cell)
	return z != nil && s != nil && z.accepts(s.Item)
}

func (w *World) IsValidStorageFor(cell model.Vec3i, s *model.Stack) bool {
	return w.StorageAccepts(cell, s) && w.roomFor(cell, s, model.PlaceGround) > 0
}

// InValidStorage reports whether a ground stack already sits in a zone that
// takes it.
func (w *World) InValidStorage(s *model.Stack) bool {
	return s.Spawned() && w.StorageAccepts(s.Pos, s)
}

// FindBestStorageCell picks a reachable cell with room for s that nobody else
// has claimed: highest zone priority first, then nearest to the agent.
func (w *World) FindBestStorageCell(s *model.Stack, a *model.Agent) (model.Vec3i, bool) {
	if s == nil || a == nil {
		return model.Vec3i{}, false
	}
	zones := make([]*Zone, 0, len(w.zones))
	for _, z := range w.zones {
		if z.accepts(s.Item) {
			zones = append(zones, z)
		}
	}
	sort.Slice(zones, func(i, j int) bool {
		if zones[i].Priority != zones[j].Priority {
			return zones[i].Priority > zones[j].Priority
		}
		return zones[i].ID < zones[j].ID
	})
	reach := w.reachableFrom(a.Pos)
	for _, z := range zones {
		var best model.Vec3i
		bestD, found := 0, false
		for _, c := range z.Cells {
			if !reach[c] || w.roomFor(c, s, model.PlaceGround) <= 0 || !w.res.CanReserveCell(c, a.ID) {
				continue
			}
			d := model.DistSq(a.Pos, c)
			if !found || d < bestD {
				best, bestD, found = c, d, true
			}
		}
		if found {
			return best, true
		}
	}
	return model.Vec3i{}, false
}
