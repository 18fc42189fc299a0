package reservation

import (
	"sort"
	"sync"
)

// Table is the in-process Service. One mutex guards all targets so a claim
// and its capacity check are a single critical section.
type Table struct {
	mu      sync.Mutex
	byTgt   map[string][]Reservation
	byOwner map[string]map[string]struct{}
}

func NewTable() *Table {
	return &Table{
		byTgt:   map[string][]Reservation{},
		byOwner: map[string]map[string]struct{}{},
	}
}

func (t *Table) TryReserve(target string, quantity int, claimant string, maxClaimants int, count int) bool {
	if target == "" || claimant == "" {
		return false
	}
	if count <= 0 && count != Exclusive {
		return false
	}
	if maxClaimants <= 0 {
		maxClaimants = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.byTgt[target]
	others := 0
	claimants := 0
	own := -1
	for i, r := range list {
		if r.Claimant == claimant {
			own = i
			continue
		}
		claimants++
		if r.IsExclusive() {
			return false
		}
		others += r.Count
	}
	if own < 0 && claimants >= maxClaimants {
		return false
	}
	if count == Exclusive {
		if claimants > 0 {
			return false
		}
	} else if others+count > quantity {
		return false
	}

	r := Reservation{Target: target, Claimant: claimant, Count: count, MaxClaimants: maxClaimants}
	if own >= 0 {
		list[own] = r
	} else {
		t.byTgt[target] = append(list, r)
	}
	owned := t.byOwner[claimant]
	if owned == nil {
		owned = map[string]struct{}{}
		t.byOwner[claimant] = owned
	}
	owned[target] = struct{}{}
	return true
}

func (t *Table) Release(target string, claimant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked(target, claimant)
}

func (t *Table) ReleaseAll(claimant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for target := range t.byOwner[claimant] {
		t.releaseLocked(target, claimant)
	}
	delete(t.byOwner, claimant)
}

func (t *Table) releaseLocked(target string, claimant string) {
	list := t.byTgt[target]
	for i := 0; i < len(list); i++ {
		if list[i].Claimant != claimant {
			continue
		}
		copy(list[i:], list[i+1:])
		list = list[:len(list)-1]
		break
	}
	if len(list) == 0 {
		delete(t.byTgt, target)
	} else {
		t.byTgt[target] = list
	}
	if owned := t.byOwner[claimant]; owned != nil {
		delete(owned, target)
		if len(owned) == 0 {
			delete(t.byOwner, claimant)
		}
	}
}

func (t *Table) Reservations(target string) []Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.byTgt[target]
	if len(list) == 0 {
		return nil
	}
	return append([]Reservation(nil), list...)
}

// All returns every reservation ordered by target then claimant.
func (t *Table) All() []Reservation {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Reservation
	for _, list := range t.byTgt {
		out = append(out, list...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Claimant < out[j].Claimant
	})
	return out
}

// ClaimedBy lists the targets claimant holds, sorted.
func (t *Table) ClaimedBy(claimant string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.byOwner[claimant]))
	for target := range t.byOwner[claimant] {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// Prune drops every reservation on a target that no longer exists.
func (t *Table) Prune(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.byTgt[target] {
		if owned := t.byOwner[r.Claimant]; owned != nil {
			delete(owned, target)
			if len(owned) == 0 {
				delete(t.byOwner, r.Claimant)
			}
		}
	}
	delete(t.byTgt, target)
}
