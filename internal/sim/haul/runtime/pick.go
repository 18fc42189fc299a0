package runtime

import (
	"errors"
	"fmt"

	"voxelhaul.ai/internal/sim/haul/capacity"
	"voxelhaul.ai/internal/sim/haul/overflow"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
)

// carryError reports whether the agent can no longer take any of s.
func carryError(s *model.Stack, a *model.Agent) bool {
	if !s.Spawned() {
		return true
	}
	return capacity.Carryable(s, a)+capacity.Stowable(s, a) <= 0
}

// errTakeFailed ends the task when the world refuses a carry the capacity
// model allowed.
var errTakeFailed = errors.New("take to carry failed")

type pickResult struct {
	picked  int
	carried *model.Stack
	short   bool // fewer units were free than the job count
}

// pick takes the task's count of the current target, carry slot first and
// the rest into inventory. Picked stacks are re-reserved exclusively; the
// claim on a partially taken source is dropped.
func (c *stepCtx) pick(failIfUnavailable bool) (pickResult, error) {
	t, a, env, res := c.t, c.a, c.d.Env, c.d.Res
	target := env.Stack(t.Target)
	if target.Gone() || carryError(target, a) {
		return pickResult{carried: a.Carried}, nil
	}

	want := res.NonReservedQuantity(target, a.ID)
	if t.Count > 0 && t.Count < want {
		want = t.Count
	}
	if failIfUnavailable && want != t.Count {
		return pickResult{short: true}, nil
	}
	initial := target.Count
	carry, stow := capacity.Split(target, a, want)
	if carry+stow <= 0 {
		return pickResult{}, &overflow.InvariantError{Op: "pick", Detail: fmt.Sprintf("no capacity for %s (%d %s), want %d", target.ID, target.Count, target.Item, want)}
	}

	var out pickResult
	if carry > 0 {
		moved, carried := env.TakeToCarry(a, target, carry)
		if moved <= 0 || carried == nil {
			return pickResult{}, fmt.Errorf("%s: %d of %s (%d %s): %w", a.ID, carry, target.ID, target.Count, target.Item, errTakeFailed)
		}
		res.Release(carried, a.ID)
		res.TryReserveExclusive(carried, a.ID)
		out.picked += moved
		out.carried = carried
		c.audit("PICK", carried, moved, "")
	}
	if stow > 0 && !target.Gone() && target.Spawned() {
		moved, stowed := env.Stow(a, target, stow)
		if moved > 0 && stowed != nil {
			res.Release(stowed, a.ID)
			res.TryReserveExclusive(stowed, a.ID)
			t.Held.Add(stowed.ID)
			out.picked += moved
			c.audit("STOW", stowed, moved, "")
		}
	}
	if out.picked != initial && !target.Destroyed {
		res.Release(target, a.ID)
	}
	if out.carried == nil {
		out.carried = a.Carried
	}
	if out.picked > 0 {
		a.ThingsHauled++
	}
	return out, nil
}

// targetOf is the retarget effect that points the task at what is carried.
func targetOf(s *model.Stack) retarget {
	if s == nil {
		return retarget{}
	}
	return retarget{id: s.ID, count: s.Count}
}

// unloadHeld moves the next held stack into the empty carry slot.
func (c *stepCtx) unloadHeld() (*model.Stack, error) {
	carried, err := c.overflow().TransferOneToCarry(c.a, &c.t.Held)
	if err != nil {
		return nil, err
	}
	if carried == nil {
		id, _ := c.t.Held.First()
		return nil, &overflow.InvariantError{Op: "unload", Detail: fmt.Sprintf("no carry space for held %s on %s", id, c.a.ID)}
	}
	c.d.Res.Release(carried, c.a.ID)
	c.d.Res.TryReserveExclusive(carried, c.a.ID)
	c.audit("UNSTOW", carried, carried.Count, "")
	return carried, nil
}

func carrying(a *model.Agent) *model.Stack {
	if a.Carried == nil || a.Carried.Gone() {
		return nil
	}
	return a.Carried
}

var (
	failNothingCarried = finish(tasks.OutcomeIncompletable, tasks.ReasonInvalidTarget)
	failNoStorage      = finish(tasks.OutcomeIncompletable, tasks.ReasonStorageUnavailable)
)
