package queue

import (
	"math"
	"slices"

	"voxelhaul.ai/internal/sim/model"
)

// Entry is one pending ingredient pickup.
type Entry struct {
	Target model.StackID
	Count  int
}

// Locator resolves a target's current position. ok=false for vanished targets.
type Locator func(id model.StackID) (model.Vec3i, bool)

// TargetQueue is the ordered list of (target, count) pairs of a multi-target
// task. Targets and counts live in one element so reordering cannot split them.
type TargetQueue struct {
	entries []Entry
}

func New(entries ...Entry) *TargetQueue {
	q := &TargetQueue{}
	for _, e := range entries {
		q.Push(e.Target, e.Count)
	}
	return q
}

// FromParallel rebuilds a queue from the persisted parallel lists.
func FromParallel(targets []model.StackID, counts []int) *TargetQueue {
	q := &TargetQueue{}
	for i, id := range targets {
		if i >= len(counts) {
			break
		}
		q.Push(id, counts[i])
	}
	return q
}

func (q *TargetQueue) Push(id model.StackID, count int) {
	if id == "" || count <= 0 {
		return
	}
	q.entries = append(q.entries, Entry{Target: id, Count: count})
}

func (q *TargetQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.entries)
}

func (q *TargetQueue) Empty() bool { return q.Len() == 0 }

// Entries returns a copy in queue order.
func (q *TargetQueue) Entries() []Entry {
	if q == nil {
		return nil
	}
	return append([]Entry(nil), q.entries...)
}

// Parallel splits the queue into the persisted (targets, counts) lists.
func (q *TargetQueue) Parallel() ([]model.StackID, []int) {
	targets := make([]model.StackID, 0, q.Len())
	counts := make([]int, 0, q.Len())
	for _, e := range q.Entries() {
		targets = append(targets, e.Target)
		counts = append(counts, e.Count)
	}
	return targets, counts
}

// SortByDistance stable-sorts ascending by squared distance from origin.
// Vanished targets sort last.
func (q *TargetQueue) SortByDistance(origin model.Vec3i, locate Locator) {
	if q.Len() < 2 || locate == nil {
		return
	}
	dist := make(map[model.StackID]int, len(q.entries))
	for _, e := range q.entries {
		if pos, ok := locate(e.Target); ok {
			dist[e.Target] = model.DistSq(origin, pos)
		} else {
			dist[e.Target] = math.MaxInt
		}
	}
	slices.SortStableFunc(q.entries, func(a, b Entry) int {
		da, db := dist[a.Target], dist[b.Target]
		switch {
		case da < db:
			return -1
		case da > db:
			return 1
		default:
			return 0
		}
	})
}

// ExtractNearest removes and returns the head entry.
func (q *TargetQueue) ExtractNearest() (Entry, bool) {
	if q.Len() == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries = slices.Delete(q.entries, 0, 1)
	return e, true
}

// Selection is the result of a pure scan over a queue snapshot.
type Selection struct {
	Index int
	Entry Entry
	Take  int
}

// Select scans a snapshot and returns the first entry for which usable
// reports a positive amount; take is capped by the entry's count. The queue
// is not modified.
func (q *TargetQueue) Select(usable func(e Entry) int) (Selection, bool) {
	for i, e := range q.Entries() {
		n := usable(e)
		if n <= 0 {
			continue
		}
		if n > e.Count {
			n = e.Count
		}
		return Selection{Index: i, Entry: e, Take: n}, true
	}
	return Selection{}, false
}

// Consume applies a selection: decrements the entry and removes it at zero.
// It returns false if the queue changed since the selection was made.
func (q *TargetQueue) Consume(sel Selection) bool {
	if sel.Index < 0 || sel.Index >= q.Len() || q.entries[sel.Index].Target != sel.Entry.Target {
		return false
	}
	q.entries[sel.Index].Count -= sel.Take
	if q.entries[sel.Index].Count <= 0 {
		q.entries = slices.Delete(q.entries, sel.Index, sel.Index+1)
	}
	return true
}

// Remove drops every entry for id.
func (q *TargetQueue) Remove(id model.StackID) {
	if q == nil {
		return
	}
	q.entries = slices.DeleteFunc(q.entries, func(e Entry) bool { return e.Target == id })
}
