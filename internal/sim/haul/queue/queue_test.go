package queue

import (
	"testing"

	"voxelhaul.ai/internal/sim/model"
)

func locator(pos map[model.StackID]model.Vec3i) Locator {
	return func(id model.StackID) (model.Vec3i, bool) {
		p, ok := pos[id]
		return p, ok
	}
}

func TestSortByDistanceKeepsCountsPaired(t *testing.T) {
	pos := map[model.StackID]model.Vec3i{
		"FAR":  {X: 9},
		"NEAR": {X: 1},
		"MID":  {X: 4},
		"MID2": {X: -4},
	}
	q := New(
		Entry{Target: "FAR", Count: 9},
		Entry{Target: "MID", Count: 4},
		Entry{Target: "NEAR", Count: 1},
		Entry{Target: "MID2", Count: 44},
	)
	want := map[model.StackID]int{"FAR": 9, "MID": 4, "NEAR": 1, "MID2": 44}
	q.SortByDistance(model.Vec3i{}, locator(pos))

	got := q.Entries()
	order := []model.StackID{"NEAR", "MID", "MID2", "FAR"}
	for i, e := range got {
		if e.Target != order[i] {
			t.Fatalf("pos %d: got %s want %s", i, e.Target, order[i])
		}
		if want[e.Target] != e.Count {
			t.Fatalf("count for %s: got %d want %d", e.Target, e.Count, want[e.Target])
		}
	}
	for i := 1; i < len(got); i++ {
		if model.DistSq(model.Vec3i{}, pos[got[i-1].Target]) > model.DistSq(model.Vec3i{}, pos[got[i].Target]) {
			t.Fatalf("not sorted at %d", i)
		}
	}
}

func TestSortPutsVanishedLast(t *testing.T) {
	q := New(Entry{Target: "GONE", Count: 2}, Entry{Target: "A", Count: 3})
	q.SortByDistance(model.Vec3i{}, locator(map[model.StackID]model.Vec3i{"A": {X: 50}}))
	if e, _ := q.ExtractNearest(); e.Target != "A" || e.Count != 3 {
		t.Fatalf("unexpected head: %+v", e)
	}
	if e, _ := q.ExtractNearest(); e.Target != "GONE" {
		t.Fatalf("unexpected tail: %+v", e)
	}
	if _, ok := q.ExtractNearest(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestSelectThenConsume(t *testing.T) {
	q := New(Entry{Target: "A", Count: 5}, Entry{Target: "B", Count: 7})
	sel, ok := q.Select(func(e Entry) int {
		if e.Target == "A" {
			return 0
		}
		return 3
	})
	if !ok || sel.Entry.Target != "B" || sel.Take != 3 {
		t.Fatalf("unexpected selection: %+v ok=%v", sel, ok)
	}
	if q.Len() != 2 {
		t.Fatalf("select must not mutate")
	}
	if !q.Consume(sel) {
		t.Fatalf("consume failed")
	}
	if got := q.Entries()[1].Count; got != 4 {
		t.Fatalf("B count: got %d want 4", got)
	}

	sel, _ = q.Select(func(e Entry) int { return 100 })
	if sel.Take != 5 {
		t.Fatalf("take must be capped by count, got %d", sel.Take)
	}
	q.Consume(sel)
	if q.Len() != 1 || q.Entries()[0].Target != "B" {
		t.Fatalf("A should be removed at zero: %+v", q.Entries())
	}
	if q.Consume(sel) {
		t.Fatalf("stale selection must be rejected")
	}
}

func TestParallelRoundTrip(t *testing.T) {
	q := New(Entry{Target: "A", Count: 5}, Entry{Target: "B", Count: 7})
	targets, counts := q.Parallel()
	back := FromParallel(targets, counts)
	if back.Len() != 2 || back.Entries()[1] != (Entry{Target: "B", Count: 7}) {
		t.Fatalf("unexpected queue: %+v", back.Entries())
	}
}
