package world

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
	"voxelhaul.ai/internal/sim/tuning"
)

func testWorld(t *testing.T, width, depth int) *World {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := New(WorldConfig{ID: "test", TickRateHz: 200, Width: width, Depth: depth}, cats, tuning.Default(), nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func TestRunLoopProcessesAssignments(t *testing.T) {
	w := testWorld(t, 8, 2)
	if err := w.AddZone(Zone{ID: "z", Cells: []model.Vec3i{{X: 7}}}); err != nil {
		t.Fatalf("zone: %v", err)
	}
	s, err := w.SpawnStack("STEEL", 5, model.Vec3i{X: 3})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := w.AddAgent("A1", model.Vec3i{}, false); err != nil {
		t.Fatalf("agent: %v", err)
	}
	done := make(chan TaskResult, 1)
	w.SetResultSink(func(r TaskResult) { done <- r })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	resp := make(chan error, 1)
	w.Assign() <- AssignRequest{Task: runtime.NewHaulTask("A1", s.ID, 0, model.Vec3i{X: 7}, false), Resp: resp}
	if err := <-resp; err != nil {
		t.Fatalf("assign: %v", err)
	}
	select {
	case r := <-done:
		if r.Outcome != tasks.OutcomeComplete || r.ThingsHauled != 1 {
			t.Fatalf("result: %+v", r)
		}
	case <-ctx.Done():
		t.Fatalf("task did not finish")
	}
	w.Stop()
	if err := <-errc; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestSpawnMergesAndRejectsMixedCell(t *testing.T) {
	w := testWorld(t, 4, 4)
	a, err := w.SpawnStack("WOOD", 10, model.Vec3i{X: 1, Z: 1})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	b, err := w.SpawnStack("WOOD", 5, model.Vec3i{X: 1, Z: 1})
	if err != nil || b != a || a.Count != 15 {
		t.Fatalf("merge: %+v err=%v", b, err)
	}
	if _, err := w.SpawnStack("STEEL", 1, model.Vec3i{X: 1, Z: 1}); err == nil {
		t.Fatalf("mixed cell accepted")
	}
	if _, err := w.SpawnStack("UNOBTAINIUM", 1, model.Vec3i{}); err == nil {
		t.Fatalf("unknown item accepted")
	}
}

func TestFindBestStorageCellPrefersPriorityThenDistance(t *testing.T) {
	w := testWorld(t, 10, 10)
	if err := w.AddZone(Zone{ID: "near", Priority: 1, Cells: []model.Vec3i{{X: 1}, {X: 2}}}); err != nil {
		t.Fatalf("zone: %v", err)
	}
	if err := w.AddZone(Zone{ID: "far", Priority: 3, Accepts: []string{"STEEL"}, Cells: []model.Vec3i{{X: 9, Z: 9}, {X: 8, Z: 9}}}); err != nil {
		t.Fatalf("zone: %v", err)
	}
	a, _ := w.AddAgent("A1", model.Vec3i{}, false)
	steel, _ := w.SpawnStack("STEEL", 5, model.Vec3i{X: 5, Z: 5})
	wood, _ := w.SpawnStack("WOOD", 5, model.Vec3i{X: 5, Z: 6})

	if c, ok := w.FindBestStorageCell(steel, a); !ok || c != (model.Vec3i{X: 8, Z: 9}) {
		t.Fatalf("steel cell %s ok=%v", c, ok)
	}
	if c, ok := w.FindBestStorageCell(wood, a); !ok || c != (model.Vec3i{X: 1}) {
		t.Fatalf("wood cell %s ok=%v", c, ok)
	}
	// A claimed cell is skipped.
	if !w.res.TryReserveCell(model.Vec3i{X: 1}, "B") {
		t.Fatalf("claim")
	}
	if c, ok := w.FindBestStorageCell(wood, a); !ok || c != (model.Vec3i{X: 2}) {
		t.Fatalf("wood cell after claim %s ok=%v", c, ok)
	}
}

func TestMoveToStopsNextToTarget(t *testing.T) {
	w := testWorld(t, 6, 6)
	for z := 0; z < 5; z++ {
		if err := w.Block(model.Vec3i{X: 2, Z: z}); err != nil {
			t.Fatalf("block: %v", err)
		}
	}
	a, _ := w.AddAgent("A1", model.Vec3i{}, false)
	target := model.Vec3i{X: 4}
	steps := 0
	for ; steps < 30; steps++ {
		st := w.MoveTo(a, target, runtime.PathTouch)
		if st == runtime.MoveArrived {
			break
		}
		if st == runtime.MoveFailed {
			t.Fatalf("no path")
		}
	}
	if !touching(a.Pos, target) {
		t.Fatalf("stopped at %s", a.Pos)
	}
	// Around the wall: 7 to (2,5), one across, 4 back up to (3,1).
	if steps != 12 {
		t.Fatalf("took %d steps, want 12", steps)
	}

	w.blocked[model.Vec3i{X: 2, Z: 5}] = true
	b, _ := w.AddAgent("B1", model.Vec3i{Z: 3}, false)
	if st := w.MoveTo(b, target, runtime.PathTouch); st != runtime.MoveFailed {
		t.Fatalf("walled-off agent got %v", st)
	}
}

func TestDropNearAvoidsOtherItems(t *testing.T) {
	w := testWorld(t, 3, 3)
	a, _ := w.AddAgent("A1", model.Vec3i{X: 1, Z: 1}, true)
	if _, err := w.SpawnStack("WOOD", 3, model.Vec3i{X: 1, Z: 1}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	src, _ := w.SpawnStack("STEEL", 4, model.Vec3i{X: 0, Z: 0})
	if n, c := w.TakeToCarry(a, src, 4); n != 4 || c == nil {
		t.Fatalf("take: %d %v", n, c)
	}
	w.dropCarried(a)
	if a.Carried != nil {
		t.Fatalf("still carrying")
	}
	// Four cells tie at distance 1; the lowest x wins.
	g := w.groundAt(model.Vec3i{X: 0, Z: 1})
	if g == nil || g.Item != "STEEL" || g.Count != 4 || !g.Forbidden {
		t.Fatalf("drop landed wrong: %+v", g)
	}
}

func TestDeadStacksDropTheirClaims(t *testing.T) {
	w := testWorld(t, 6, 2)
	a, err := w.AddAgent("A1", model.Vec3i{X: 1}, false)
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	first, _ := w.SpawnStack("WOOD", 4, model.Vec3i{X: 2})
	second, _ := w.SpawnStack("WOOD", 3, model.Vec3i{X: 0})
	doomed, _ := w.SpawnStack("STEEL", 2, model.Vec3i{X: 4})
	if !w.res.TryReserve(second, "B", 2, 2) || !w.res.TryReserve(doomed, "B", 1, reservation.Exclusive) {
		t.Fatalf("claims rejected")
	}

	w.Destroy(doomed, "TEST")
	if got := w.res.Svc.Reservations(reservation.StackTarget(doomed.ID)); len(got) != 0 {
		t.Fatalf("destroyed stack still claimed: %+v", got)
	}

	if n, carried := w.TakeToCarry(a, first, first.Count); n != 4 || carried != first {
		t.Fatalf("first take: %d %+v", n, carried)
	}
	if n, carried := w.TakeToCarry(a, second, second.Count); n != 3 || carried != first || first.Count != 7 {
		t.Fatalf("second take: %d %+v", n, carried)
	}
	if !second.Destroyed {
		t.Fatalf("absorbed stack still live")
	}
	if got := w.res.Svc.(*reservation.Table).All(); len(got) != 0 {
		t.Fatalf("claims on dead stacks: %+v", got)
	}
}
