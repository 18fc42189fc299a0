package world

import (
	"fmt"
	"log"

	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/tasks"
)

// TaskResult is the record of one finished task.
type TaskResult struct {
	TaskID       string        `json:"task_id"`
	Kind         tasks.Kind    `json:"kind"`
	AgentID      string        `json:"agent_id"`
	Outcome      tasks.Outcome `json:"outcome"`
	Reason       string        `json:"reason,omitempty"`
	StartedTick  uint64        `json:"started_tick"`
	EndedTick    uint64        `json:"ended_tick"`
	ThingsHauled int           `json:"things_hauled"`
}

// AssignTask gives t to its agent. An agent runs one task at a time.
func (w *World) AssignTask(t *runtime.Task) error {
	if t == nil {
		return fmt.Errorf("assign: nil task")
	}
	if w.agents[t.AgentID] == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, t.AgentID)
	}
	if cur := w.jobs[t.AgentID]; cur != nil && !cur.Done() {
		return fmt.Errorf("%w: %s runs %s", ErrAgentBusy, t.AgentID, cur.ID)
	}
	switch t.Kind {
	case tasks.KindHaulToCell:
	case tasks.KindDoBill:
		if w.benches[t.WorkbenchID] == nil {
			return fmt.Errorf("assign %s: unknown workbench %s", t.ID, t.WorkbenchID)
		}
		if _, ok := w.catalogs.Recipes.ByID[t.RecipeID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRecipe, t.RecipeID)
		}
	default:
		return fmt.Errorf("assign %s: unknown kind %q", t.ID, t.Kind)
	}
	w.jobs[t.AgentID] = t
	return nil
}

// AbortTask ends the agent's running task, if any.
func (w *World) AbortTask(agentID, reason string) bool {
	t := w.jobs[agentID]
	if t == nil || t.Done() {
		return false
	}
	w.driver.Abort(t, w.tick.Load(), reason)
	return true
}

// ActiveTask returns the agent's task, nil when idle.
func (w *World) ActiveTask(agentID string) *runtime.Task { return w.jobs[agentID] }

// Results returns every finished task in completion order.
func (w *World) Results() []TaskResult { return append([]TaskResult(nil), w.results...) }

// Idle reports whether no agent has a running task.
func (w *World) Idle() bool { return len(w.jobs) == 0 }

func (w *World) step(assigns []AssignRequest, aborts []AbortRequest) {
	nowTick := w.tick.Load()
	entry := TickLogEntry{Tick: nowTick}

	for _, req := range assigns {
		err := w.AssignTask(req.Task)
		if err == nil {
			entry.Assigned = append(entry.Assigned, req.Task.ID)
		}
		if req.Resp != nil {
			req.Resp <- err
		}
	}
	for _, req := range aborts {
		w.AbortTask(req.AgentID, req.Reason)
	}

	// Agents act in id order so runs are reproducible.
	for _, id := range w.AgentIDs() {
		t := w.jobs[id]
		if t == nil {
			continue
		}
		if !t.Done() {
			w.driver.Tick(t, nowTick)
		}
		if t.Done() {
			entry.Ended = append(entry.Ended, w.finish(t))
		}
	}

	if w.tickLogger != nil && (len(entry.Assigned) > 0 || len(entry.Ended) > 0) {
		if err := w.tickLogger.WriteTick(entry); err != nil {
			log.Printf("world %s: tick log: %v", w.cfg.ID, err)
		}
	}
	w.tick.Add(1)
}

func (w *World) finish(t *runtime.Task) TaskResult {
	a := w.agents[t.AgentID]
	delete(w.jobs, t.AgentID)
	r := TaskResult{
		TaskID:      t.ID,
		Kind:        t.Kind,
		AgentID:     t.AgentID,
		Outcome:     t.Outcome,
		Reason:      t.Reason,
		StartedTick: t.StartedTick,
		EndedTick:   t.EndedTick,
	}
	if a != nil {
		w.dropCarried(a)
		r.ThingsHauled = a.ThingsHauled
	}
	w.results = append(w.results, r)
	if w.resultSink != nil {
		w.resultSink(r)
	}
	return r
}
