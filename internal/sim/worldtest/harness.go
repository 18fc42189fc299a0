package worldtest

import (
	"path/filepath"
	"testing"

	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/scenario"
	"voxelhaul.ai/internal/sim/tuning"
	"voxelhaul.ai/internal/sim/world"
)

// Harness drives a world built from a scenario through exported APIs only.
type Harness struct {
	T     *testing.T
	Cats  *catalogs.Catalogs
	W     *world.World
	Res   *reservation.Table
	Tasks []*runtime.Task

	Audits []world.AuditEntry
}

type auditSink struct{ h *Harness }

func (s auditSink) WriteAudit(e world.AuditEntry) error {
	s.h.Audits = append(s.h.Audits, e)
	return nil
}

// RepoPath resolves a path relative to the repository root.
func RepoPath(parts ...string) string {
	return filepath.Join(append([]string{"..", "..", ".."}, parts...)...)
}

func LoadCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(RepoPath("configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func NewHarness(t *testing.T, sc scenario.Scenario) *Harness {
	t.Helper()
	return NewHarnessWithTuning(t, sc, tuning.Default())
}

func NewHarnessWithTuning(t *testing.T, sc scenario.Scenario, tun tuning.Tuning) *Harness {
	t.Helper()
	cats := LoadCatalogs(t)
	table := reservation.NewTable()
	w, ts, err := sc.Build(cats, tun, table)
	if err != nil {
		t.Fatalf("build scenario: %v", err)
	}
	h := &Harness{T: t, Cats: cats, W: w, Res: table, Tasks: ts}
	w.SetAuditLogger(auditSink{h: h})
	return h
}

// AssignAll hands every scenario task to its agent.
func (h *Harness) AssignAll() {
	h.T.Helper()
	for _, t := range h.Tasks {
		if err := h.W.AssignTask(t); err != nil {
			h.T.Fatalf("assign %s: %v", t.ID, err)
		}
	}
}

func (h *Harness) Step(n int) {
	for i := 0; i < n; i++ {
		h.W.StepOnce()
	}
}

// RunUntilIdle steps until no task is active, failing after max ticks.
func (h *Harness) RunUntilIdle(max int) {
	h.T.Helper()
	for i := 0; i < max; i++ {
		if h.W.Idle() {
			return
		}
		h.W.StepOnce()
	}
	h.T.Fatalf("world not idle after %d ticks", max)
}

func (h *Harness) Result(taskID string) world.TaskResult {
	h.T.Helper()
	for _, r := range h.W.Results() {
		if r.TaskID == taskID {
			return r
		}
	}
	h.T.Fatalf("no result for task %s", taskID)
	return world.TaskResult{}
}

// GroundAt returns the ground stack at (x, z), nil if none.
func (h *Harness) GroundAt(x, z int) *model.Stack {
	for _, s := range h.W.Stacks() {
		if s.Place == model.PlaceGround && s.Pos == (model.Vec3i{X: x, Z: z}) {
			return s
		}
	}
	return nil
}

// Total sums the units of item anywhere in the world.
func (h *Harness) Total(item string) int {
	n := 0
	for _, s := range h.W.Stacks() {
		if s.Item == item && !s.Gone() {
			n += s.Count
		}
	}
	return n
}

func (h *Harness) AssertNoReservations() {
	h.T.Helper()
	if all := h.Res.All(); len(all) != 0 {
		h.T.Fatalf("reservations leaked: %+v", all)
	}
}

func (h *Harness) CountAudits(action string) int {
	n := 0
	for _, e := range h.Audits {
		if e.Action == action {
			n++
		}
	}
	return n
}
