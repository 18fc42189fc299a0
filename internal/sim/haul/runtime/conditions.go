package runtime

import (
	"voxelhaul.ai/internal/sim/tasks"
)

// Verdict of an end condition. A zero Verdict means keep going.
type Verdict struct {
	Outcome tasks.Outcome
	Reason  string
}

func (v Verdict) Continue() bool { return !v.Outcome.Terminal() }

func fail(reason string) Verdict {
	return Verdict{Outcome: tasks.OutcomeIncompletable, Reason: reason}
}

// EndCondition is a predicate over task and world state, checked in order
// before every step. Conditions never mutate anything.
type EndCondition struct {
	Name  string
	Check func(c *stepCtx) Verdict
}

func (d *Driver) conditions(kind tasks.Kind) []EndCondition {
	conds := []EndCondition{
		{Name: "held_in_inventory", Check: heldStillInInventory},
	}
	if kind == tasks.KindDoBill {
		conds = append(conds,
			EndCondition{Name: "workbench_usable", Check: workbenchUsable},
			EndCondition{Name: "placed_ingredients", Check: placedIngredientsIntact},
		)
	}
	return conds
}

func heldStillInInventory(c *stepCtx) Verdict {
	for _, id := range c.t.Held.IDs() {
		if !c.a.InventoryContains(id) {
			return fail(tasks.ReasonHeldLost)
		}
	}
	return Verdict{}
}

func workbenchUsable(c *stepCtx) Verdict {
	w := c.d.Env.Workbench(c.t.WorkbenchID)
	if w.Gone() || !w.Usable {
		return fail(tasks.ReasonWorkbenchGone)
	}
	return Verdict{}
}

func placedIngredientsIntact(c *stepCtx) Verdict {
	for _, id := range c.t.Placed {
		if c.d.Env.Stack(id).Gone() {
			return fail(tasks.ReasonInvalidTarget)
		}
	}
	return Verdict{}
}
