// Package bundle extends a committed haul with extra stacks found near the
// path: greedy, nearest-first, same item type before any type, no
// backtracking.
package bundle

import (
	"voxelhaul.ai/internal/sim/haul/capacity"
	"voxelhaul.ai/internal/sim/model"
)

// Reserver is the reservation surface the bundler uses.
type Reserver interface {
	NonReservedQuantity(s *model.Stack, claimant string) int
	TryReserve(s *model.Stack, claimant string, maxClaimants int, count int) bool
}

// Finder returns the closest eligible stack to from: spawned, reachable,
// not forbidden to the agent, not already in valid storage, accepted by the
// storage at dest, and passing accept. nil when none.
type Finder interface {
	ClosestHaulable(a *model.Agent, from model.Vec3i, dest model.Vec3i, radius float64, accept func(*model.Stack) bool) *model.Stack
}

// Budget is the agent's residual capacity during a pass.
type Budget struct {
	CarryItem      string // item already claimed for the primary slot, "" if free
	CarryRemaining int
	Mass           float64
	MassLimit      float64
}

// BudgetFor snapshots the agent's current capacity for item.
func BudgetFor(a *model.Agent, s *model.Stack) Budget {
	b := Budget{
		CarryRemaining: a.AvailableStackSpace(s.Item, s.StackLimit),
		Mass:           a.CurrentMass(),
		MassLimit:      a.MassLimit,
	}
	if c := a.Carried; c != nil && !c.Gone() {
		b.CarryItem = c.Item
		b.CarryRemaining = a.AvailableStackSpace(c.Item, c.StackLimit)
	}
	return b
}

// Bundler holds the fixed parameters of a pass.
type Bundler struct {
	Res          Reserver
	Find         Finder
	MaxClaimants int
	Radius       float64
	CanCarry     func(a *model.Agent, item string) bool
}

// Result of a full planning pass.
type Result struct {
	OK           bool
	PrimaryCount int
	Schedule     Schedule
	Discarded    Discard
	Budget       Budget
}

// Plan reserves the primary target (capped by jobCount when positive) and
// then extends the haul from it. OK is false only when the primary had
// something to reserve and the claim was rejected.
func (b *Bundler) Plan(a *model.Agent, primary *model.Stack, dest model.Vec3i, jobCount int) Result {
	res := Result{OK: true, Discarded: Discard{}}
	if primary.Gone() {
		res.OK = false
		return res
	}
	budget := BudgetFor(a, primary)

	want, carry, mass := b.amount(a, primary, budget)
	if jobCount > 0 && want > jobCount {
		carry = minInt(carry, jobCount)
		mass = float64(jobCount-carry) * primary.RoundedUnitMass()
		want = jobCount
	}
	last := primary
	if want > 0 {
		if !b.Res.TryReserve(primary, a.ID, b.MaxClaimants, want) {
			res.OK = false
			return res
		}
		budget = budget.take(primary.Item, carry, mass)
		res.PrimaryCount = want
	} else {
		res.Discarded.Add(primary.ID)
	}

	res.Schedule, budget = b.extend(a, last, primary.ID, dest, budget, res.Discarded)
	res.Budget = budget
	return res
}

// Extend scans outward from an already reserved stack with the given budget.
// discard must be a fresh set for this pass.
func (b *Bundler) Extend(a *model.Agent, from *model.Stack, dest model.Vec3i, budget Budget, discard Discard) (Schedule, Budget) {
	return b.extend(a, from, from.ID, dest, budget, discard)
}

func (b *Bundler) extend(a *model.Agent, last *model.Stack, primary model.StackID, dest model.Vec3i, budget Budget, discard Discard) (Schedule, Budget) {
	var sched Schedule
	// With no budget left every further candidate lands in discard; the
	// scan is bounded by the finder's radius.
	for {
		cand := b.next(a, last, primary, dest, &sched, discard)
		if cand == nil {
			break
		}
		want, carry, mass := b.amount(a, cand, budget)
		if want <= 0 || !b.Res.TryReserve(cand, a.ID, b.MaxClaimants, want) {
			discard.Add(cand.ID)
			continue
		}
		budget = budget.take(cand.Item, carry, mass)
		sched.Push(cand.ID, want)
		last = cand
	}
	return sched, budget
}

// next looks for the same item type first, then any type.
func (b *Bundler) next(a *model.Agent, last *model.Stack, primary model.StackID, dest model.Vec3i, sched *Schedule, discard Discard) *model.Stack {
	fresh := func(t *model.Stack) bool {
		return t.ID != primary && t.ID != last.ID && !sched.Contains(t.ID) && !discard.Has(t.ID)
	}
	if s := b.Find.ClosestHaulable(a, last.Pos, dest, b.Radius, func(t *model.Stack) bool {
		return fresh(t) && t.CanStackWith(last)
	}); s != nil {
		return s
	}
	return b.Find.ClosestHaulable(a, last.Pos, dest, b.Radius, fresh)
}

// amount splits what can be reserved from s between carry and inventory.
func (b *Bundler) amount(a *model.Agent, s *model.Stack, budget Budget) (want int, carry int, mass float64) {
	free := b.Res.NonReservedQuantity(s, a.ID)
	if free <= 0 {
		return 0, 0, 0
	}
	canCarry := b.CanCarry
	if canCarry == nil {
		canCarry = func(a *model.Agent, item string) bool { return a.CanCarry(item) }
	}
	if (budget.CarryItem == "" && canCarry(a, s.Item)) || budget.CarryItem == s.Item {
		carry = minInt(free, budget.CarryRemaining)
		if carry < 0 {
			carry = 0
		}
	}
	want = carry
	if want < free && budget.Mass < budget.MassLimit {
		n := minInt(free-want, capacity.StowableByMass(s, budget.MassLimit-budget.Mass))
		if n > 0 {
			m := float64(n) * s.RoundedUnitMass()
			if budget.Mass+m <= budget.MassLimit+1e-9 {
				want += n
				mass = m
			}
		}
	}
	return want, carry, mass
}

func (b Budget) take(item string, carry int, mass float64) Budget {
	if carry > 0 {
		if b.CarryItem == "" {
			b.CarryItem = item
		}
		b.CarryRemaining -= carry
	}
	b.Mass += mass
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
