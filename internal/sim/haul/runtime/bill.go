package runtime

import (
	"fmt"
	"log"
	"slices"

	"voxelhaul.ai/internal/sim/haul/capacity"
	"voxelhaul.ai/internal/sim/haul/overflow"
	"voxelhaul.ai/internal/sim/haul/queue"
	"voxelhaul.ai/internal/sim/tasks"
)

func billReserveTarget(c *stepCtx) (transition, error) {
	t := c.t
	if t.Queue.Empty() {
		return goTo(StateGotoWorkbench), nil
	}
	t.Queue.SortByDistance(c.a.Pos, c.d.locate)
	e, _ := t.Queue.ExtractNearest()
	s := c.d.Env.Stack(e.Target)
	if !c.d.Res.TryReserve(s, c.a.ID, 1, e.Count) {
		return finish(tasks.OutcomeIncompletable, tasks.ReasonReservationFailed), nil
	}
	return goTo(StateTravel, retarget{id: e.Target, count: e.Count}), nil
}

func billTravel(c *stepCtx) (transition, error) {
	target := c.d.Env.Stack(c.t.Target)
	if !target.Spawned() || c.d.Env.IsForbidden(target, c.a) {
		return finish(tasks.OutcomeIncompletable, tasks.ReasonInvalidTarget), nil
	}
	switch c.d.Env.MoveTo(c.a, target.Pos, PathTouch) {
	case MoveArrived:
		return goTo(StatePick), nil
	case MoveFailed:
		return finish(tasks.OutcomeIncompletable, tasks.ReasonUnreachable), nil
	default:
		return wait(StateTravel), nil
	}
}

// billPick must take exactly the queued count; a short stack ends the bill.
// Whatever did not fit goes back on the queue for a later trip.
func billPick(c *stepCtx) (transition, error) {
	t := c.t
	source, want := t.Target, t.Count
	r, err := c.pick(true)
	if err != nil {
		return transition{}, err
	}
	if r.short {
		return finish(tasks.OutcomeIncompletable, tasks.ReasonUnavailableCount), nil
	}
	if rest := want - r.picked; rest > 0 && r.picked > 0 {
		t.Queue.Push(source, rest)
	}
	return goTo(StateCollectNext, targetOf(carrying(c.a))), nil
}

// billCollectNext picks up further queued ingredients while capacity lasts.
func billCollectNext(c *stepCtx) (transition, error) {
	t, a, env := c.t, c.a, c.d.Env
	t.Queue.SortByDistance(a.Pos, c.d.locate)
	sel, ok := t.Queue.Select(func(e queue.Entry) int {
		s := env.Stack(e.Target)
		if !s.Spawned() || env.IsForbidden(s, a) {
			return 0
		}
		return capacity.Haulable(s, a, c.d.Res)
	})
	if !ok || !t.Queue.Consume(sel) {
		return goTo(StateGotoWorkbench), nil
	}
	return goTo(StateTravel, retarget{id: sel.Entry.Target, count: sel.Take}), nil
}

func billGotoWorkbench(c *stepCtx) (transition, error) {
	w := c.d.Env.Workbench(c.t.WorkbenchID)
	if carrying(c.a) == nil && c.t.Held.Empty() {
		return goTo(StateRepeatFromQueue), nil
	}
	switch c.d.Env.MoveTo(c.a, w.InteractionCell, PathOnCell) {
	case MoveArrived:
		return goTo(StateFindPlaceCell), nil
	case MoveFailed:
		return finish(tasks.OutcomeIncompletable, tasks.ReasonUnreachable), nil
	default:
		return wait(StateGotoWorkbench), nil
	}
}

func billFindPlaceCell(c *stepCtx) (transition, error) {
	carried := carrying(c.a)
	if carried == nil {
		return goTo(StateDropNextHeld), nil
	}
	cell, ok := c.d.Env.IngredientPlaceCell(c.d.Env.Workbench(c.t.WorkbenchID), carried)
	if !ok {
		return failNoStorage, nil
	}
	return goTo(StatePlaceIngredient, setDest{pos: cell}, targetOf(carried)), nil
}

func billPlaceIngredient(c *stepCtx) (transition, error) {
	t, a := c.t, c.a
	carried := carrying(a)
	if carried == nil {
		return goTo(StateDropNextHeld), nil
	}
	placed, at := c.d.Env.PlaceIngredient(a, c.d.Env.Workbench(t.WorkbenchID), t.Dest)
	if placed <= 0 || at == nil {
		return transition{}, &overflow.InvariantError{Op: "place_ingredient", Detail: fmt.Sprintf("%s could not place %s (%d %s) at %s", a.ID, carried.ID, carried.Count, carried.Item, t.Dest)}
	}
	if !slices.Contains(t.Placed, at.ID) {
		t.Placed = append(t.Placed, at.ID)
	}
	c.d.Res.Release(at, a.ID)
	c.audit("PLACE_INGREDIENT", at, placed, "")
	if carrying(a) != nil {
		return goTo(StateFindPlaceCell), nil
	}
	return goTo(StateDropNextHeld, retarget{}), nil
}

func billDropNextHeld(c *stepCtx) (transition, error) {
	if c.t.Held.Empty() {
		return goTo(StateRepeatFromQueue), nil
	}
	carried, err := c.unloadHeld()
	if err != nil {
		return transition{}, err
	}
	return goTo(StateFindPlaceCell, targetOf(carried)), nil
}

func billRepeatFromQueue(c *stepCtx) (transition, error) {
	if !c.t.Queue.Empty() {
		return goTo(StateReserveTarget), nil
	}
	return goTo(StateDoWork), nil
}

func billDoWork(c *stepCtx) (transition, error) {
	w := c.d.Env.Workbench(c.t.WorkbenchID)
	switch c.d.Env.MoveTo(c.a, w.InteractionCell, PathOnCell) {
	case MoveFailed:
		return finish(tasks.OutcomeIncompletable, tasks.ReasonUnreachable), nil
	case MoveInProgress:
		return wait(StateDoWork), nil
	}
	if c.t.WorkLeft > 0 {
		c.t.WorkLeft--
		return wait(StateDoWork), nil
	}
	return goTo(StateFinishRecipe), nil
}

func billFinishRecipe(c *stepCtx) (transition, error) {
	t := c.t
	if err := c.d.Env.FinishRecipe(c.a, c.d.Env.Workbench(t.WorkbenchID), t.RecipeID, t.Placed); err != nil {
		log.Printf("haul: bill %s recipe %s at %s: %v", t.ID, t.RecipeID, t.WorkbenchID, err)
		return finish(tasks.OutcomeIncompletable, tasks.ReasonInvalidTarget), nil
	}
	c.audit("CRAFT", nil, 0, t.RecipeID)
	t.Placed = nil
	return finish(tasks.OutcomeComplete, tasks.ReasonNone), nil
}
