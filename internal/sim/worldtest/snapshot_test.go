package worldtest

import (
	"path/filepath"
	"testing"

	"voxelhaul.ai/internal/persistence/snapshot"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/scenario"
	"voxelhaul.ai/internal/sim/tasks"
	"voxelhaul.ai/internal/sim/tuning"
	"voxelhaul.ai/internal/sim/world"
)

func TestSnapshotMidHaulResumes(t *testing.T) {
	sc := yard()
	sc.Stacks = []scenario.Stack{
		{Ref: "w1", Item: "WOOD", Count: 30, At: [2]int{3, 0}},
		{Ref: "s1", Item: "STEEL", Count: 10, At: [2]int{4, 1}},
	}
	sc.Tasks = []scenario.Task{{Kind: tasks.KindHaulToCell, Agent: "A1", Stack: "w1", Dest: &[2]int{8, 0}, Opportunistic: boolp(true)}}
	h := NewHarness(t, sc)
	h.AssignAll()

	a := h.W.Agent("A1")
	for i := 0; i < 30 && len(a.Inventory) == 0; i++ {
		h.Step(1)
	}
	if len(a.Inventory) == 0 || a.Carried == nil {
		t.Fatalf("agent not loaded: %+v", a)
	}

	snap := h.W.ExportSnapshot()
	if len(snap.Tasks) != 1 || len(snap.Reservations) == 0 {
		t.Fatalf("snapshot missing task or reservations: tasks=%d res=%d", len(snap.Tasks), len(snap.Reservations))
	}
	v, err := snapshot.NewTaskValidator(RepoPath("schemas", "taskstate.schema.json"))
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	if err := v.Validate(snap.Tasks[0]); err != nil {
		t.Fatalf("task state invalid: %v", err)
	}

	path := filepath.Join(t.TempDir(), "yard.snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	hdr, err := snapshot.ReadHeader(path)
	if err != nil || hdr.Tick != snap.Header.Tick {
		t.Fatalf("header %+v err=%v", hdr, err)
	}
	back, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	table := reservation.NewTable()
	w2, err := world.NewFromSnapshot(back, h.Cats, tuning.Default(), table)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got, want := len(table.All()), len(snap.Reservations); got != want {
		t.Fatalf("restored %d reservations, want %d", got, want)
	}
	h.W, h.Res, h.Audits = w2, table, nil
	w2.SetAuditLogger(auditSink{h: h})
	h.RunUntilIdle(100)

	r := h.Result(snap.Tasks[0].ID)
	if r.Outcome != tasks.OutcomeComplete {
		t.Fatalf("resumed outcome %s (%s)", r.Outcome, r.Reason)
	}
	if s := h.GroundAt(8, 0); s == nil || s.Item != "WOOD" || s.Count != 30 {
		t.Fatalf("wood: %+v", s)
	}
	if s := h.GroundAt(8, 1); s == nil || s.Item != "STEEL" || s.Count != 10 {
		t.Fatalf("steel: %+v", s)
	}
	h.AssertNoReservations()
}

func TestSnapshotRejectsBrokenTaskState(t *testing.T) {
	h := NewHarness(t, yard())
	snap := h.W.ExportSnapshot()
	snap.Tasks = append(snap.Tasks, snapshot.TaskStateV1{
		ID:           "T_bad",
		Kind:         string(tasks.KindDoBill),
		AgentID:      "A1",
		State:        "DO_WORK",
		QueueTargets: []string{"S1", "S2"},
		QueueCounts:  []int{1},
	})
	if err := snapshot.WriteSnapshot(filepath.Join(t.TempDir(), "bad.snap.zst"), snap); err == nil {
		t.Fatalf("expected mismatched queue lists to be rejected")
	}
}
