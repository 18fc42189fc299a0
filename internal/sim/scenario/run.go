package scenario

import (
	"context"
	"fmt"

	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/tasks"
	"voxelhaul.ai/internal/sim/world"
)

type Report struct {
	Name    string             `json:"name"`
	Ticks   uint64             `json:"ticks"`
	Results []world.TaskResult `json:"results"`
	Pending int                `json:"pending"`
}

// Counts tallies results by outcome.
func (r Report) Counts() map[tasks.Outcome]int {
	out := map[tasks.Outcome]int{}
	for _, res := range r.Results {
		out[res.Outcome]++
	}
	return out
}

// Run feeds each agent its tasks in order, one at a time, and steps the
// world until every task ended or maxTicks passed.
func Run(ctx context.Context, name string, w *world.World, ts []*runtime.Task, maxTicks int) (Report, error) {
	backlog := map[string][]*runtime.Task{}
	for _, t := range ts {
		backlog[t.AgentID] = append(backlog[t.AgentID], t)
	}
	start := w.CurrentTick()
	for tick := 0; tick < maxTicks; tick++ {
		if err := ctx.Err(); err != nil {
			return report(name, w, start, backlog), err
		}
		for _, id := range w.AgentIDs() {
			if w.ActiveTask(id) != nil || len(backlog[id]) == 0 {
				continue
			}
			next := backlog[id][0]
			backlog[id] = backlog[id][1:]
			if err := w.AssignTask(next); err != nil {
				return report(name, w, start, backlog), fmt.Errorf("%s: %w", name, err)
			}
		}
		if w.Idle() && pending(backlog) == 0 {
			break
		}
		w.StepOnce()
	}
	return report(name, w, start, backlog), nil
}

func pending(backlog map[string][]*runtime.Task) int {
	n := 0
	for _, ts := range backlog {
		n += len(ts)
	}
	return n
}

func report(name string, w *world.World, start uint64, backlog map[string][]*runtime.Task) Report {
	p := pending(backlog)
	for _, id := range w.AgentIDs() {
		if w.ActiveTask(id) != nil {
			p++
		}
	}
	return Report{Name: name, Ticks: w.CurrentTick() - start, Results: w.Results(), Pending: p}
}
