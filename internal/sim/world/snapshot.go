package world

import (
	"fmt"
	"sort"
	"strconv"

	"voxelhaul.ai/internal/persistence/snapshot"
	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/haul/bundle"
	"voxelhaul.ai/internal/sim/haul/overflow"
	"voxelhaul.ai/internal/sim/haul/queue"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
	"voxelhaul.ai/internal/sim/tuning"
)

var placeNames = map[model.Place]string{
	model.PlaceGround:    "GROUND",
	model.PlaceCarried:   "CARRIED",
	model.PlaceInventory: "INVENTORY",
	model.PlaceBench:     "BENCH",
}

func parsePlace(s string) (model.Place, bool) {
	for p, n := range placeNames {
		if n == s {
			return p, true
		}
	}
	return 0, false
}

// ExportSnapshot captures the whole world, running tasks and reservations
// included. Reservations are exported only when the store can list them.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header:   snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: w.tick.Load()},
		TickRate: w.cfg.TickRateHz,
		Width:    w.cfg.Width,
		Depth:    w.cfg.Depth,
		Counters: snapshot.CountersV1{NextStack: w.nextStackNum.Load()},
	}

	ids := make([]string, 0, len(w.stacks))
	for id := range w.stacks {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := w.stacks[model.StackID(id)]
		snap.Stacks = append(snap.Stacks, snapshot.StackV1{
			ID:         id,
			Item:       s.Item,
			Pos:        s.Pos.ToArray(),
			Count:      s.Count,
			UnitMass:   s.UnitMass,
			StackLimit: s.StackLimit,
			Place:      placeNames[s.Place],
			Holder:     s.Holder,
			Forbidden:  s.Forbidden,
		})
	}

	for _, id := range w.AgentIDs() {
		a := w.agents[id]
		av := snapshot.AgentV1{
			ID:           a.ID,
			Pos:          a.Pos.ToArray(),
			CarryLimit:   a.CarryLimit,
			MassLimit:    a.MassLimit,
			GearMass:     a.GearMass,
			Hostile:      a.Hostile,
			ThingsHauled: a.ThingsHauled,
		}
		if a.Carried != nil {
			av.Carried = string(a.Carried.ID)
		}
		for _, s := range a.Inventory {
			av.Inventory = append(av.Inventory, string(s.ID))
		}
		snap.Agents = append(snap.Agents, av)
		if t := w.jobs[id]; t != nil {
			snap.Tasks = append(snap.Tasks, TaskState(t))
		}
	}

	zoneIDs := make([]string, 0, len(w.zones))
	for id := range w.zones {
		zoneIDs = append(zoneIDs, id)
	}
	sort.Strings(zoneIDs)
	for _, id := range zoneIDs {
		z := w.zones[id]
		zv := snapshot.ZoneV1{ID: z.ID, Priority: z.Priority, Accepts: append([]string(nil), z.Accepts...)}
		for _, c := range z.Cells {
			zv.Cells = append(zv.Cells, c.ToArray())
		}
		snap.Zones = append(snap.Zones, zv)
	}

	for p := range w.blocked {
		snap.Blocked = append(snap.Blocked, p.ToArray())
	}
	sort.Slice(snap.Blocked, func(i, j int) bool {
		a, b := snap.Blocked[i], snap.Blocked[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[2] < b[2]
	})

	benchIDs := make([]string, 0, len(w.benches))
	for id := range w.benches {
		benchIDs = append(benchIDs, id)
	}
	sort.Strings(benchIDs)
	for _, id := range benchIDs {
		b := w.benches[id]
		snap.Workbenches = append(snap.Workbenches, snapshot.WorkbenchV1{
			ID:              b.ID,
			Station:         b.Station,
			Pos:             b.Pos.ToArray(),
			InteractionCell: b.InteractionCell.ToArray(),
			Usable:          b.Usable,
		})
	}

	if l, ok := w.res.Svc.(reservation.Lister); ok {
		for _, r := range l.All() {
			snap.Reservations = append(snap.Reservations, snapshot.ReservationV1{
				Target:       r.Target,
				Claimant:     r.Claimant,
				Count:        r.Count,
				MaxClaimants: r.MaxClaimants,
			})
		}
	}
	return snap
}

// TaskState flattens a task into its persisted form.
func TaskState(t *runtime.Task) snapshot.TaskStateV1 {
	qt, qc := t.Queue.Parallel()
	st, sc := t.Schedule.Parallel()
	held := make([]string, 0, t.Held.Len())
	for _, id := range t.Held.IDs() {
		held = append(held, string(id))
	}
	var placed []string
	for _, id := range t.Placed {
		placed = append(placed, string(id))
	}
	return snapshot.TaskStateV1{
		ID:                 t.ID,
		Kind:               string(t.Kind),
		AgentID:            t.AgentID,
		State:              t.State.String(),
		Started:            t.Started,
		Outcome:            string(t.Outcome),
		Reason:             t.Reason,
		Target:             string(t.Target),
		Count:              t.Count,
		Dest:               t.Dest.ToArray(),
		HasDest:            t.HasDest,
		Opportunistic:      t.Opportunistic,
		ForbiddenInitially: t.ForbiddenInitially,
		QueueTargets:       stackIDStrings(qt),
		QueueCounts:        qc,
		ScheduleStacks:     stackIDStrings(st),
		ScheduleCounts:     sc,
		Held:               held,
		WorkbenchID:        t.WorkbenchID,
		RecipeID:           t.RecipeID,
		Placed:             placed,
		WorkLeft:           t.WorkLeft,
		StartedTick:        t.StartedTick,
		EndedTick:          t.EndedTick,
	}
}

// TaskFromState rebuilds a task. Unequal parallel lists are rejected.
func TaskFromState(v snapshot.TaskStateV1) (*runtime.Task, error) {
	if err := v.Check(); err != nil {
		return nil, err
	}
	state, ok := runtime.ParseState(v.State)
	if !ok {
		return nil, fmt.Errorf("task %s: unknown state %q", v.ID, v.State)
	}
	kind := tasks.Kind(v.Kind)
	if kind != tasks.KindHaulToCell && kind != tasks.KindDoBill {
		return nil, fmt.Errorf("task %s: unknown kind %q", v.ID, v.Kind)
	}
	t := &runtime.Task{
		ID:                 v.ID,
		Kind:               kind,
		AgentID:            v.AgentID,
		State:              state,
		Started:            v.Started,
		Outcome:            tasks.Outcome(v.Outcome),
		Reason:             v.Reason,
		Target:             model.StackID(v.Target),
		Count:              v.Count,
		Dest:               model.VecFromArray(v.Dest),
		HasDest:            v.HasDest,
		Opportunistic:      v.Opportunistic,
		ForbiddenInitially: v.ForbiddenInitially,
		Queue:              queue.FromParallel(stackIDs(v.QueueTargets), v.QueueCounts),
		Schedule:           bundle.ScheduleFromParallel(stackIDs(v.ScheduleStacks), v.ScheduleCounts),
		Held:               overflow.HeldFrom(stackIDs(v.Held)),
		WorkbenchID:        v.WorkbenchID,
		RecipeID:           v.RecipeID,
		Placed:             stackIDs(v.Placed),
		WorkLeft:           v.WorkLeft,
		StartedTick:        v.StartedTick,
		EndedTick:          v.EndedTick,
	}
	return t, nil
}

// NewFromSnapshot restores a world. svc must be empty; the snapshot's
// reservations are replayed into it.
func NewFromSnapshot(snap snapshot.SnapshotV1, cats *catalogs.Catalogs, tun tuning.Tuning, svc reservation.Service) (*World, error) {
	w, err := New(WorldConfig{ID: snap.Header.WorldID, TickRateHz: snap.TickRate, Width: snap.Width, Depth: snap.Depth}, cats, tun, svc)
	if err != nil {
		return nil, err
	}
	w.tick.Store(snap.Header.Tick)
	w.nextStackNum.Store(snap.Counters.NextStack)

	for _, p := range snap.Blocked {
		w.blocked[model.VecFromArray(p)] = true
	}
	for _, b := range snap.Workbenches {
		w.benches[b.ID] = &model.Workbench{
			ID:              b.ID,
			Station:         b.Station,
			Pos:             model.VecFromArray(b.Pos),
			InteractionCell: model.VecFromArray(b.InteractionCell),
			Usable:          b.Usable,
		}
	}
	for _, z := range snap.Zones {
		zone := Zone{ID: z.ID, Priority: z.Priority, Accepts: z.Accepts}
		for _, c := range z.Cells {
			zone.Cells = append(zone.Cells, model.VecFromArray(c))
		}
		if err := w.AddZone(zone); err != nil {
			return nil, err
		}
	}
	for _, sv := range snap.Stacks {
		place, ok := parsePlace(sv.Place)
		if !ok {
			return nil, fmt.Errorf("stack %s: unknown place %q", sv.ID, sv.Place)
		}
		s := &model.Stack{
			ID:         model.StackID(sv.ID),
			Item:       sv.Item,
			Pos:        model.VecFromArray(sv.Pos),
			Count:      sv.Count,
			UnitMass:   sv.UnitMass,
			StackLimit: sv.StackLimit,
			Place:      place,
			Holder:     sv.Holder,
			Forbidden:  sv.Forbidden,
		}
		w.stacks[s.ID] = s
		if place == model.PlaceGround || place == model.PlaceBench {
			w.index(s)
		}
	}
	for _, av := range snap.Agents {
		a := &model.Agent{
			ID:           av.ID,
			Pos:          model.VecFromArray(av.Pos),
			CarryLimit:   av.CarryLimit,
			MassLimit:    av.MassLimit,
			GearMass:     av.GearMass,
			Hostile:      av.Hostile,
			ThingsHauled: av.ThingsHauled,
		}
		if av.Carried != "" {
			a.Carried = w.stacks[model.StackID(av.Carried)]
			if a.Carried == nil {
				return nil, fmt.Errorf("agent %s: carried stack %s missing", av.ID, av.Carried)
			}
		}
		for _, id := range av.Inventory {
			s := w.stacks[model.StackID(id)]
			if s == nil {
				return nil, fmt.Errorf("agent %s: inventory stack %s missing", av.ID, id)
			}
			a.Inventory = append(a.Inventory, s)
		}
		w.agents[a.ID] = a
	}
	for _, tv := range snap.Tasks {
		t, err := TaskFromState(tv)
		if err != nil {
			return nil, err
		}
		if w.agents[t.AgentID] == nil {
			return nil, fmt.Errorf("task %s: %w: %s", t.ID, ErrUnknownAgent, t.AgentID)
		}
		w.jobs[t.AgentID] = t
	}
	for _, r := range snap.Reservations {
		if !w.res.Svc.TryReserve(r.Target, w.quantityOf(r.Target), r.Claimant, r.MaxClaimants, r.Count) {
			return nil, fmt.Errorf("restore reservation %s by %s rejected", r.Target, r.Claimant)
		}
	}
	return w, nil
}

func (w *World) quantityOf(target string) int {
	kind, id, ok := reservation.ParseTarget(target)
	if !ok {
		return 0
	}
	if kind == "stack" {
		if s := w.stacks[model.StackID(id)]; s != nil {
			return s.Count
		}
		return 0
	}
	if _, ok := parseCell(id); ok {
		return 1
	}
	return 0
}

func stackIDs(in []string) []model.StackID {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.StackID, len(in))
	for i, s := range in {
		out[i] = model.StackID(s)
	}
	return out
}

func stackIDStrings(in []model.StackID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = string(id)
	}
	return out
}

// parseCell reads an "x,y,z" cell key.
func parseCell(s string) (model.Vec3i, bool) {
	var v [3]int
	start, n := 0, 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ',' {
			continue
		}
		if n >= 3 {
			return model.Vec3i{}, false
		}
		x, err := strconv.Atoi(s[start:i])
		if err != nil {
			return model.Vec3i{}, false
		}
		v[n] = x
		n++
		start = i + 1
	}
	return model.VecFromArray(v), n == 3
}
