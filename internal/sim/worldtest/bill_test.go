package worldtest

import (
	"testing"

	"voxelhaul.ai/internal/sim/scenario"
	"voxelhaul.ai/internal/sim/tasks"
)

func kitchen() scenario.Scenario {
	return scenario.Scenario{
		Name:  "kitchen",
		Width: 10,
		Depth: 10,
		Stacks: []scenario.Stack{
			{Ref: "r1", Item: "RICE", Count: 6, At: [2]int{2, 2}},
			{Ref: "r2", Item: "RICE", Count: 4, At: [2]int{3, 6}},
		},
		Agents:      []scenario.Agent{{ID: "C1", At: [2]int{0, 0}}},
		Workbenches: []scenario.Workbench{{ID: "stove", Station: "STOVE", At: [2]int{5, 5}, Interaction: [2]int{5, 4}}},
		Tasks: []scenario.Task{{
			Kind:      tasks.KindDoBill,
			Agent:     "C1",
			Workbench: "stove",
			Recipe:    "cook_simple_meal",
			Ingredients: []scenario.Ingredient{
				{Stack: "r1", Count: 6},
				{Stack: "r2", Count: 4},
			},
		}},
	}
}

func TestBillCooksMeal(t *testing.T) {
	h := NewHarness(t, kitchen())
	h.AssignAll()
	h.RunUntilIdle(200)

	r := h.Result(h.Tasks[0].ID)
	if r.Outcome != tasks.OutcomeComplete {
		t.Fatalf("outcome %s (%s)", r.Outcome, r.Reason)
	}
	if got := h.Total("RICE"); got != 0 {
		t.Fatalf("rice left: %d", got)
	}
	if got := h.Total("MEAL"); got != 1 {
		t.Fatalf("meals: %d", got)
	}
	if h.CountAudits("PLACE_INGREDIENT") == 0 || h.CountAudits("CRAFT") != 1 {
		t.Fatalf("missing place/craft audits: %+v", h.Audits)
	}
	// Work ticks run after the last ingredient is down.
	if r.EndedTick-r.StartedTick < 20 {
		t.Fatalf("finished in %d ticks, recipe needs 20", r.EndedTick-r.StartedTick)
	}
	h.AssertNoReservations()
}

func TestBillShortStackEnds(t *testing.T) {
	h := NewHarness(t, kitchen())
	h.AssignAll()
	h.Step(1)

	// Someone else ate half of the nearest rice before the cook got there.
	r1 := h.W.Stack(h.Tasks[0].Target)
	if r1 == nil || r1.Count != 6 {
		t.Fatalf("expected the 6-rice stack as first target, got %+v", r1)
	}
	r1.Count /= 2
	h.RunUntilIdle(50)

	r := h.Result(h.Tasks[0].ID)
	if r.Outcome != tasks.OutcomeIncompletable || r.Reason != tasks.ReasonUnavailableCount {
		t.Fatalf("outcome %s (%s)", r.Outcome, r.Reason)
	}
	h.AssertNoReservations()
}

func TestBillStopsWhenWorkbenchUnusable(t *testing.T) {
	h := NewHarness(t, kitchen())
	h.AssignAll()
	h.Step(3)
	if !h.W.SetWorkbenchUsable("stove", false) {
		t.Fatalf("stove missing")
	}
	h.RunUntilIdle(20)

	r := h.Result(h.Tasks[0].ID)
	if r.Outcome != tasks.OutcomeIncompletable || r.Reason != tasks.ReasonWorkbenchGone {
		t.Fatalf("outcome %s (%s)", r.Outcome, r.Reason)
	}
	if got := h.Total("RICE"); got != 10 {
		t.Fatalf("rice lost: %d", got)
	}
	h.AssertNoReservations()
}

func TestBillRejectsBusyWorkbench(t *testing.T) {
	sc := kitchen()
	sc.Agents = append(sc.Agents, scenario.Agent{ID: "C2", At: [2]int{9, 9}})
	sc.Stacks = append(sc.Stacks, scenario.Stack{Ref: "r3", Item: "RICE", Count: 10, At: [2]int{8, 8}})
	sc.Tasks = append(sc.Tasks, scenario.Task{
		Kind:        tasks.KindDoBill,
		Agent:       "C2",
		Workbench:   "stove",
		Recipe:      "cook_simple_meal",
		Ingredients: []scenario.Ingredient{{Stack: "r3", Count: 10}},
	})
	h := NewHarness(t, sc)
	h.AssignAll()
	h.RunUntilIdle(200)

	if r := h.Result(h.Tasks[0].ID); r.Outcome != tasks.OutcomeComplete {
		t.Fatalf("C1 outcome %s (%s)", r.Outcome, r.Reason)
	}
	if r := h.Result(h.Tasks[1].ID); r.Outcome != tasks.OutcomeIncompletable || r.Reason != tasks.ReasonReservationFailed {
		t.Fatalf("C2 outcome %s (%s)", r.Outcome, r.Reason)
	}
	h.AssertNoReservations()
}
