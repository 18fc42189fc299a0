package runtime

import (
	"log"

	"voxelhaul.ai/internal/sim/haul/bundle"
	"voxelhaul.ai/internal/sim/haul/capacity"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
)

// nextScheduled pops schedule entries until one is still worth hauling to
// the task's cell. Claims on skipped entries are released.
func (c *stepCtx) nextScheduled() (bundle.Entry, bool) {
	for c.t.Schedule.Len() > 0 {
		e, _ := c.t.Schedule.Pop()
		s := c.d.Env.Stack(e.Stack)
		if !s.Gone() && !carryError(s, c.a) && c.d.Env.StorageAccepts(c.t.Dest, s) {
			return e, true
		}
		if s != nil {
			c.d.Res.Release(s, c.a.ID)
		}
	}
	return bundle.Entry{}, false
}

// skipTarget drops the current target and moves on: next scheduled stack,
// else deliver what is carried, else unload held, else give up.
func skipTarget(c *stepCtx, reason string) transition {
	release := releaseStack{id: c.t.Target}
	if e, ok := c.nextScheduled(); ok {
		return goTo(StateReserveTarget, release, retarget{id: e.Stack, count: e.Count})
	}
	if carried := carrying(c.a); carried != nil {
		return goTo(StateCarry, release, targetOf(carried))
	}
	if !c.t.Held.Empty() {
		return goTo(StateDrainSchedule, release)
	}
	return transition{next: StateTerminated, effects: []effect{release, endTask{outcome: tasks.OutcomeIncompletable, reason: reason}}}
}

func haulReserveTarget(c *stepCtx) (transition, error) {
	t, a := c.t, c.a
	target := c.d.Env.Stack(t.Target)
	if target.Gone() || carryError(target, a) {
		return skipTarget(c, tasks.ReasonInvalidTarget), nil
	}
	want := capacity.Haulable(target, a, c.d.Res)
	if t.Count > 0 && t.Count < want {
		want = t.Count
	}
	if want > 0 && c.d.Res.TryReserve(target, a.ID, c.d.Params.MaxClaimants, want) {
		return goTo(StateTravel, retarget{id: target.ID, count: want}), nil
	}
	log.Printf("haul: %s failed to reserve %d of %s (%d %s) at %s", a.ID, want, target.ID, target.Count, target.Item, target.Pos)
	return skipTarget(c, tasks.ReasonReservationFailed), nil
}

func haulTravel(c *stepCtx) (transition, error) {
	t, a := c.t, c.a
	target := c.d.Env.Stack(t.Target)
	if target.Gone() || carryError(target, a) || !c.d.Env.StorageAccepts(t.Dest, target) {
		return skipTarget(c, tasks.ReasonInvalidTarget), nil
	}
	if !t.ForbiddenInitially && c.d.Env.IsForbidden(target, a) {
		return skipTarget(c, tasks.ReasonInvalidTarget), nil
	}
	switch c.d.Env.MoveTo(a, target.Pos, PathTouch) {
	case MoveArrived:
		return goTo(StatePick), nil
	case MoveFailed:
		return skipTarget(c, tasks.ReasonUnreachable), nil
	default:
		return wait(StateTravel), nil
	}
}

func haulPick(c *stepCtx) (transition, error) {
	if _, err := c.pick(false); err != nil {
		return transition{}, err
	}
	if carried := carrying(c.a); carried != nil {
		return goTo(StateDrainSchedule, targetOf(carried)), nil
	}
	return goTo(StateDrainSchedule, retarget{}), nil
}

// haulDrainSchedule runs before leaving for the cell: keep collecting while
// the schedule has entries, then make sure something is in the carry slot.
func haulDrainSchedule(c *stepCtx) (transition, error) {
	if e, ok := c.nextScheduled(); ok {
		return goTo(StateReserveTarget, retarget{id: e.Stack, count: e.Count}), nil
	}
	if carried := carrying(c.a); carried != nil {
		return goTo(StateCarry, targetOf(carried)), nil
	}
	if c.t.Held.Empty() {
		return failNothingCarried, nil
	}
	carried, err := c.unloadHeld()
	if err != nil {
		return transition{}, err
	}
	return goTo(StateCarry, targetOf(carried)), nil
}

// rerouteCarried finds another cell for the carried stack and swaps the cell
// claim. Returns false when no storage accepts it.
func (c *stepCtx) rerouteCarried(carried *model.Stack) (model.Vec3i, bool) {
	cell, ok := c.d.Env.FindBestStorageCell(carried, c.a)
	if !ok || !c.d.Res.CanReserveCell(cell, c.a.ID) || !c.d.Res.TryReserveCell(cell, c.a.ID) {
		return model.Vec3i{}, false
	}
	if c.t.HasDest && c.t.Dest != cell {
		c.d.Res.ReleaseCell(c.t.Dest, c.a.ID)
	}
	return cell, true
}

func haulCarry(c *stepCtx) (transition, error) {
	t, a := c.t, c.a
	carried := carrying(a)
	if carried == nil {
		if !t.Held.Empty() {
			return goTo(StateDrainSchedule), nil
		}
		return failNothingCarried, nil
	}
	if !c.d.Env.IsValidStorageFor(t.Dest, carried) {
		cell, ok := c.rerouteCarried(carried)
		if !ok {
			return failNoStorage, nil
		}
		return goTo(StateCarry, setDest{pos: cell}, targetOf(carried)), nil
	}
	switch c.d.Env.MoveTo(a, t.Dest, PathOnCell) {
	case MoveArrived:
		return goTo(StatePlace, targetOf(carried)), nil
	case MoveFailed:
		return finish(tasks.OutcomeIncompletable, tasks.ReasonUnreachable), nil
	default:
		return wait(StateCarry), nil
	}
}

// haulPlace drops the carried stack into the cell, then feeds the next held
// stack through the carry slot until the held-set is empty.
func haulPlace(c *stepCtx) (transition, error) {
	t, a := c.t, c.a
	if carried := carrying(a); carried != nil {
		if !c.d.Env.IsValidStorageFor(t.Dest, carried) {
			cell, ok := c.rerouteCarried(carried)
			if !ok {
				return failNoStorage, nil
			}
			return goTo(StateCarry, setDest{pos: cell}), nil
		}
		placed, at := c.d.Env.PlaceCarried(a, t.Dest)
		if placed > 0 {
			c.d.Res.Release(at, a.ID)
			c.audit("PLACE", at, placed, "")
		}
		if rest := carrying(a); rest != nil {
			cell, ok := c.rerouteCarried(rest)
			if !ok {
				return failNoStorage, nil
			}
			return goTo(StateCarry, setDest{pos: cell}, targetOf(rest)), nil
		}
	}
	if t.Held.Empty() {
		return goTo(StateRepeatFromQueue, retarget{}), nil
	}

	carried, err := c.unloadHeld()
	if err != nil {
		return transition{}, err
	}
	if c.d.Env.IsValidStorageFor(t.Dest, carried) {
		return goTo(StatePlace, targetOf(carried)), nil
	}
	cell, ok := c.rerouteCarried(carried)
	if !ok {
		return failNoStorage, nil
	}
	return goTo(StateCarry, setDest{pos: cell}, targetOf(carried)), nil
}

// haulRepeatFromQueue continues with further queued targets, if any.
func haulRepeatFromQueue(c *stepCtx) (transition, error) {
	t := c.t
	if t.Queue.Empty() {
		return finish(tasks.OutcomeComplete, tasks.ReasonNone), nil
	}
	t.Queue.SortByDistance(c.a.Pos, c.d.locate)
	e, _ := t.Queue.ExtractNearest()
	return goTo(StateReserveTarget, retarget{id: e.Target, count: e.Count}), nil
}

func (d *Driver) locate(id model.StackID) (model.Vec3i, bool) {
	s := d.Env.Stack(id)
	if s.Gone() {
		return model.Vec3i{}, false
	}
	return s.Pos, true
}
