package bundle

import "voxelhaul.ai/internal/sim/model"

// Entry is one secondary pickup reserved by the bundler.
type Entry struct {
	Stack model.StackID
	Count int
}

// Schedule is consumed strictly FIFO.
type Schedule struct {
	entries []Entry
}

func ScheduleFromParallel(stacks []model.StackID, counts []int) Schedule {
	var s Schedule
	for i, id := range stacks {
		if i >= len(counts) {
			break
		}
		s.Push(id, counts[i])
	}
	return s
}

func (s *Schedule) Push(id model.StackID, count int) {
	s.entries = append(s.entries, Entry{Stack: id, Count: count})
}

func (s *Schedule) Pop() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	e := s.entries[0]
	s.entries[0] = Entry{}
	s.entries = s.entries[1:]
	return e, true
}

func (s *Schedule) Len() int { return len(s.entries) }

func (s *Schedule) Contains(id model.StackID) bool {
	for _, e := range s.entries {
		if e.Stack == id {
			return true
		}
	}
	return false
}

func (s *Schedule) Entries() []Entry { return append([]Entry(nil), s.entries...) }

// Total sums the scheduled counts.
func (s *Schedule) Total() int {
	n := 0
	for _, e := range s.entries {
		n += e.Count
	}
	return n
}

// Parallel splits into the persisted (stacks, counts) lists.
func (s *Schedule) Parallel() ([]model.StackID, []int) {
	stacks := make([]model.StackID, 0, len(s.entries))
	counts := make([]int, 0, len(s.entries))
	for _, e := range s.entries {
		stacks = append(stacks, e.Stack)
		counts = append(counts, e.Count)
	}
	return stacks, counts
}

func (s *Schedule) Reset() { s.entries = nil }

// Discard is the per-pass rejection set. A fresh one is created for every
// bundling pass and never persisted.
type Discard map[model.StackID]struct{}

func (d Discard) Add(id model.StackID) { d[id] = struct{}{} }

func (d Discard) Has(id model.StackID) bool {
	_, ok := d[id]
	return ok
}
