// Package runtime drives HAUL_TO_CELL and DO_BILL tasks as an explicit state
// machine. Each state is a step function returning a transition: the next
// state, side effects to apply, and whether to suspend until the next tick.
package runtime

import (
	"errors"
	"log"

	"voxelhaul.ai/internal/sim/haul/bundle"
	"voxelhaul.ai/internal/sim/haul/capacity"
	"voxelhaul.ai/internal/sim/haul/overflow"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
)

type transition struct {
	next    State
	effects []effect
	suspend bool
}

func goTo(s State, effects ...effect) transition { return transition{next: s, effects: effects} }

func wait(s State) transition { return transition{next: s, suspend: true} }

func finish(outcome tasks.Outcome, reason string) transition {
	return transition{next: StateTerminated, effects: []effect{endTask{outcome: outcome, reason: reason}}}
}

type effect interface {
	apply(c *stepCtx)
}

type retarget struct {
	id    model.StackID
	count int
}

func (e retarget) apply(c *stepCtx) {
	c.t.Target = e.id
	c.t.Count = e.count
}

type releaseStack struct{ id model.StackID }

func (e releaseStack) apply(c *stepCtx) {
	if s := c.d.Env.Stack(e.id); s != nil {
		c.d.Res.Release(s, c.a.ID)
	}
}

type setDest struct{ pos model.Vec3i }

func (e setDest) apply(c *stepCtx) {
	c.t.Dest = e.pos
	c.t.HasDest = true
}

type endTask struct {
	outcome tasks.Outcome
	reason  string
}

func (e endTask) apply(c *stepCtx) { c.d.end(c, e.outcome, e.reason) }

type stepFunc func(c *stepCtx) (transition, error)

type stepCtx struct {
	d   *Driver
	t   *Task
	a   *model.Agent
	now uint64
}

// Driver runs tasks against one world. It holds no per-task state.
type Driver struct {
	Env    Env
	Res    reservation.Client
	Params Params
	Audit  AuditFunc

	bundler *bundle.Bundler
	haul    map[State]stepFunc
	bill    map[State]stepFunc
}

func NewDriver(env Env, res reservation.Client, params Params, audit AuditFunc) *Driver {
	d := &Driver{
		Env:    env,
		Res:    res,
		Params: params.withDefaults(),
		Audit:  audit,
	}
	d.bundler = &bundle.Bundler{
		Res:          res,
		Find:         env,
		MaxClaimants: d.Params.MaxClaimants,
		Radius:       d.Params.BundleRadius,
	}
	d.haul = map[State]stepFunc{
		StateReserveTarget:   haulReserveTarget,
		StateTravel:          haulTravel,
		StatePick:            haulPick,
		StateDrainSchedule:   haulDrainSchedule,
		StateCarry:           haulCarry,
		StatePlace:           haulPlace,
		StateRepeatFromQueue: haulRepeatFromQueue,
	}
	d.bill = map[State]stepFunc{
		StateReserveTarget:   billReserveTarget,
		StateTravel:          billTravel,
		StatePick:            billPick,
		StateCollectNext:     billCollectNext,
		StateGotoWorkbench:   billGotoWorkbench,
		StateFindPlaceCell:   billFindPlaceCell,
		StatePlaceIngredient: billPlaceIngredient,
		StateDropNextHeld:    billDropNextHeld,
		StateRepeatFromQueue: billRepeatFromQueue,
		StateDoWork:          billDoWork,
		StateFinishRecipe:    billFinishRecipe,
	}
	return d
}

func (c *stepCtx) overflow() overflow.Manager {
	return overflow.Manager{Env: c.d.Env, Audit: func(action string, a *model.Agent, s *model.Stack, reason string) {
		c.d.emit(AuditEvent{Tick: c.now, TaskID: c.t.ID, AgentID: a.ID, Action: action, StackID: string(s.ID), Item: s.Item, Count: s.Count, Pos: s.Pos.ToArray(), Reason: reason})
	}}
}

func (d *Driver) ctx(t *Task, now uint64) *stepCtx {
	return &stepCtx{d: d, t: t, a: d.Env.Agent(t.AgentID), now: now}
}

// Start performs the pre-step reservations. It returns false when the task
// could not start; the task is then terminated.
func (d *Driver) Start(t *Task, now uint64) bool {
	if t.Started {
		return !t.Done()
	}
	c := d.ctx(t, now)
	if c.a == nil {
		t.Outcome, t.Reason, t.State = tasks.OutcomeErrored, tasks.ReasonInvalidTarget, StateTerminated
		return false
	}
	t.Started = true
	t.StartedTick = now
	if !t.Held.Empty() {
		log.Printf("haul: task %s starting with %d held stacks for %s; flushing", t.ID, t.Held.Len(), c.a.ID)
		c.overflow().FlushAll(c.a, &t.Held)
	}
	var ok bool
	switch t.Kind {
	case tasks.KindHaulToCell:
		ok = d.startHaul(c)
	case tasks.KindDoBill:
		ok = d.startBill(c)
	default:
		d.end(c, tasks.OutcomeErrored, tasks.ReasonInvalidTarget)
		return false
	}
	if !ok {
		d.end(c, tasks.OutcomeIncompletable, tasks.ReasonReservationFailed)
		return false
	}
	d.emit(AuditEvent{Tick: now, TaskID: t.ID, AgentID: c.a.ID, Action: "TASK_START", StackID: string(t.Target), Count: t.Count, Pos: c.a.Pos.ToArray()})
	return true
}

func (d *Driver) startHaul(c *stepCtx) bool {
	t, a := c.t, c.a
	d.Res.ReleaseAll(a.ID)
	if !t.HasDest || !d.Res.TryReserveCell(t.Dest, a.ID) {
		return false
	}
	target := d.Env.Stack(t.Target)
	if target.Gone() {
		return false
	}
	t.ForbiddenInitially = d.Env.IsForbidden(target, a)
	if t.Opportunistic {
		t.Schedule.Reset()
		res := d.bundler.Plan(a, target, t.Dest, t.Count)
		if !res.OK {
			return false
		}
		t.Schedule = res.Schedule
		if res.PrimaryCount > 0 {
			t.Count = res.PrimaryCount
		}
		return true
	}
	n := capacity.Haulable(target, a, d.Res)
	if t.Count > 0 && t.Count < n {
		n = t.Count
	}
	if n <= 0 || !d.Res.TryReserve(target, a.ID, d.Params.MaxClaimants, n) {
		return false
	}
	t.Count = n
	return true
}

func (d *Driver) startBill(c *stepCtx) bool {
	t, a := c.t, c.a
	d.Res.ReleaseAll(a.ID)
	w := d.Env.Workbench(t.WorkbenchID)
	if w.Gone() || !w.Usable {
		return false
	}
	if !d.Res.TryReserveCell(w.Pos, a.ID) {
		return false
	}
	for _, e := range t.Queue.Entries() {
		if !d.Res.TryReserve(d.Env.Stack(e.Target), a.ID, 1, e.Count) {
			return false
		}
	}
	t.WorkLeft = d.Env.RecipeWorkTicks(t.RecipeID)
	return true
}

// Tick runs instant steps until the task suspends on movement or work, ends,
// or the per-tick step bound is reached.
func (d *Driver) Tick(t *Task, now uint64) tasks.Outcome {
	if t.Done() {
		return t.Outcome
	}
	if !t.Started && !d.Start(t, now) {
		return t.Outcome
	}
	c := d.ctx(t, now)
	if c.a == nil {
		d.end(c, tasks.OutcomeErrored, tasks.ReasonInvalidTarget)
		return t.Outcome
	}
	table := d.haul
	if t.Kind == tasks.KindDoBill {
		table = d.bill
	}
	conds := d.conditions(t.Kind)

	for i := 0; i < d.Params.StepsPerTick && !t.Done(); i++ {
		if v := checkConditions(c, conds); !v.Continue() {
			d.end(c, v.Outcome, v.Reason)
			break
		}
		step, ok := table[t.State]
		if !ok {
			log.Printf("haul: task %s has no step for state %s", t.ID, t.State)
			d.end(c, tasks.OutcomeErrored, tasks.ReasonInvariant)
			break
		}
		tr, err := step(c)
		if err != nil {
			d.fault(c, err)
			break
		}
		t.State = tr.next
		for _, e := range tr.effects {
			e.apply(c)
		}
		if tr.suspend {
			break
		}
	}
	return t.Outcome
}

func checkConditions(c *stepCtx, conds []EndCondition) Verdict {
	for _, cond := range conds {
		if v := cond.Check(c); !v.Continue() {
			return v
		}
	}
	return Verdict{}
}

func (d *Driver) fault(c *stepCtx, err error) {
	var inv *overflow.InvariantError
	if errors.As(err, &inv) {
		log.Printf("haul: task %s (%s) for %s in %s: %v", c.t.ID, c.t.Kind, c.t.AgentID, c.t.State, err)
		d.end(c, tasks.OutcomeErrored, tasks.ReasonInvariant)
		return
	}
	log.Printf("haul: task %s failed in %s: %v", c.t.ID, c.t.State, err)
	d.end(c, tasks.OutcomeIncompletable, tasks.ReasonInvalidTarget)
}

// Abort ends a running task on operator request. Cleanup runs as for any
// other exit.
func (d *Driver) Abort(t *Task, now uint64, reason string) {
	if t.Done() {
		return
	}
	if reason == "" {
		reason = tasks.ReasonCancelled
	}
	d.end(d.ctx(t, now), tasks.OutcomeAborted, reason)
}

// end is the single exit path: overflow flush, then release of every
// reservation the agent holds.
func (d *Driver) end(c *stepCtx, outcome tasks.Outcome, reason string) {
	t := c.t
	if t.Done() {
		return
	}
	t.Outcome = outcome
	t.Reason = reason
	t.State = StateTerminated
	t.EndedTick = c.now
	t.Schedule.Reset()
	if c.a != nil {
		c.overflow().FlushAll(c.a, &t.Held)
		d.Res.ReleaseAll(c.a.ID)
	}
	ev := AuditEvent{Tick: c.now, TaskID: t.ID, AgentID: t.AgentID, Action: "TASK_END", StackID: string(t.Target), Reason: string(outcome)}
	if reason != "" {
		ev.Reason += ":" + reason
	}
	if c.a != nil {
		ev.Pos = c.a.Pos.ToArray()
	}
	d.emit(ev)
}

func (d *Driver) emit(e AuditEvent) {
	if d.Audit != nil {
		d.Audit(e)
	}
}

func (c *stepCtx) audit(action string, s *model.Stack, count int, reason string) {
	e := AuditEvent{Tick: c.now, TaskID: c.t.ID, AgentID: c.a.ID, Action: action, Count: count, Pos: c.a.Pos.ToArray(), Reason: reason}
	if s != nil {
		e.StackID, e.Item = string(s.ID), s.Item
	}
	c.d.emit(e)
}
