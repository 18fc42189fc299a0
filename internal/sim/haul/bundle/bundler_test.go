package bundle

import (
	"testing"

	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/model"
)

type stubFinder struct {
	stacks []*model.Stack
}

func (f stubFinder) ClosestHaulable(_ *model.Agent, from model.Vec3i, _ model.Vec3i, radius float64, accept func(*model.Stack) bool) *model.Stack {
	var best *model.Stack
	bestD := 0
	for _, s := range f.stacks {
		if !s.Spawned() || !accept(s) {
			continue
		}
		d := model.DistSq(from, s.Pos)
		if float64(d) > radius*radius {
			continue
		}
		if best == nil || d < bestD {
			best, bestD = s, d
		}
	}
	return best
}

func newBundler(tbl *reservation.Table, stacks ...*model.Stack) *Bundler {
	return &Bundler{
		Res:          reservation.NewClient(tbl),
		Find:         stubFinder{stacks: stacks},
		MaxClaimants: 5,
		Radius:       8,
	}
}

func TestExtendPartialOnLastAndDiscardsOverflow(t *testing.T) {
	from := &model.Stack{ID: "P", Item: "STEEL", Count: 5, Pos: model.Vec3i{}, UnitMass: 1}
	c1 := &model.Stack{ID: "C1", Item: "STEEL", Count: 5, Pos: model.Vec3i{X: 1}, UnitMass: 1}
	c2 := &model.Stack{ID: "C2", Item: "STEEL", Count: 5, Pos: model.Vec3i{X: 2}, UnitMass: 1}
	c3 := &model.Stack{ID: "C3", Item: "STEEL", Count: 5, Pos: model.Vec3i{X: 3}, UnitMass: 1}
	tbl := reservation.NewTable()
	b := newBundler(tbl, from, c1, c2, c3)
	a := &model.Agent{ID: "A1", CarryLimit: 75}

	discard := Discard{}
	sched, budget := b.Extend(a, from, model.Vec3i{X: 20}, Budget{CarryItem: "STEEL", CarryRemaining: 8}, discard)

	if got := sched.Total(); got != 8 {
		t.Fatalf("scheduled total: got %d want 8", got)
	}
	entries := sched.Entries()
	if len(entries) != 2 || entries[0] != (Entry{Stack: "C1", Count: 5}) || entries[1] != (Entry{Stack: "C2", Count: 3}) {
		t.Fatalf("unexpected schedule: %+v", entries)
	}
	if !discard.Has("C3") {
		t.Fatalf("C3 should be discarded")
	}
	for _, e := range entries {
		if discard.Has(e.Stack) {
			t.Fatalf("%s both scheduled and discarded", e.Stack)
		}
	}
	if budget.CarryRemaining != 0 {
		t.Fatalf("carry budget: got %d", budget.CarryRemaining)
	}
	if got := tbl.Reservations(reservation.StackTarget("C2")); len(got) != 1 || got[0].Count != 3 {
		t.Fatalf("C2 reservation: %+v", got)
	}
}

func TestPlanPrefersSameTypeThenAnyType(t *testing.T) {
	primary := &model.Stack{ID: "P", Item: "WOOD", Count: 10, Pos: model.Vec3i{}, UnitMass: 1}
	stone := &model.Stack{ID: "ST", Item: "STONE", Count: 3, Pos: model.Vec3i{X: 1}, UnitMass: 1}
	wood := &model.Stack{ID: "W2", Item: "WOOD", Count: 4, Pos: model.Vec3i{X: 5}, UnitMass: 1}
	tbl := reservation.NewTable()
	b := newBundler(tbl, primary, stone, wood)
	a := &model.Agent{ID: "A1", CarryLimit: 20, MassLimit: 10}

	res := b.Plan(a, primary, model.Vec3i{X: 30}, 0)
	if !res.OK || res.PrimaryCount != 10 {
		t.Fatalf("primary: %+v", res)
	}
	entries := res.Schedule.Entries()
	if len(entries) != 2 || entries[0].Stack != "W2" || entries[1].Stack != "ST" {
		t.Fatalf("expected same type first: %+v", entries)
	}
	if entries[0].Count != 4 || entries[1].Count != 3 {
		t.Fatalf("counts: %+v", entries)
	}
	if res.Budget.Mass != 3 {
		t.Fatalf("stone goes to inventory, mass=%v", res.Budget.Mass)
	}
}

func TestPlanCapsPrimaryByJobCount(t *testing.T) {
	primary := &model.Stack{ID: "P", Item: "WOOD", Count: 50, UnitMass: 1}
	tbl := reservation.NewTable()
	b := newBundler(tbl, primary)
	a := &model.Agent{ID: "A1", CarryLimit: 75, MassLimit: 35}

	res := b.Plan(a, primary, model.Vec3i{X: 10}, 12)
	if !res.OK || res.PrimaryCount != 12 {
		t.Fatalf("unexpected: %+v", res)
	}
}

func TestPlanRejectedPrimaryFails(t *testing.T) {
	primary := &model.Stack{ID: "P", Item: "WOOD", Count: 10, UnitMass: 1}
	tbl := reservation.NewTable()
	c := reservation.NewClient(tbl)
	c.TryReserve(primary, "OTHER", 1, 2)
	b := newBundler(tbl, primary)
	b.MaxClaimants = 1
	a := &model.Agent{ID: "A1", CarryLimit: 75}

	if res := b.Plan(a, primary, model.Vec3i{X: 10}, 0); res.OK {
		t.Fatalf("expected rejection with claimant bound reached: %+v", res)
	}
}

func TestContendedCandidateIsDiscarded(t *testing.T) {
	primary := &model.Stack{ID: "P", Item: "WOOD", Count: 5, UnitMass: 1}
	taken := &model.Stack{ID: "T", Item: "WOOD", Count: 5, Pos: model.Vec3i{X: 1}, UnitMass: 1}
	tbl := reservation.NewTable()
	reservation.NewClient(tbl).TryReserveExclusive(taken, "OTHER")
	b := newBundler(tbl, primary, taken)
	a := &model.Agent{ID: "A1", CarryLimit: 75}

	res := b.Plan(a, primary, model.Vec3i{X: 10}, 0)
	if res.Schedule.Len() != 0 || !res.Discarded.Has("T") {
		t.Fatalf("unexpected: %+v", res)
	}
}
