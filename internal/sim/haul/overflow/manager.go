// Package overflow owns the stacks a task has stowed in an agent's
// inventory: moving them back into the carry slot one at a time and
// flushing whatever is left when the task ends.
package overflow

import (
	"errors"
	"fmt"
	"log"

	"voxelhaul.ai/internal/sim/model"
)

// ErrInvariant marks accounting bugs. These abort the task; they are never
// retried.
var ErrInvariant = errors.New("haul invariant violated")

type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvariant.Error(), e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Env is the world surface the manager needs.
type Env interface {
	Stack(id model.StackID) *model.Stack
	// TransferToCarry moves up to count units of an inventory stack into the
	// agent's carry slot and returns the moved amount and the carried stack.
	TransferToCarry(a *model.Agent, s *model.Stack, count int) (int, *model.Stack)
	// DropNear places s on the nearest valid empty spot around the agent.
	DropNear(a *model.Agent, s *model.Stack) (*model.Stack, bool)
	Destroy(s *model.Stack, reason string)
}

// AuditFunc records domain events (drops, destructions).
type AuditFunc func(action string, a *model.Agent, s *model.Stack, reason string)

type Manager struct {
	Env   Env
	Audit AuditFunc
}

// TransferOneToCarry moves the first held stack into the carry slot, as much
// as fits. The stack leaves the held-set only when it moved entirely.
func (m Manager) TransferOneToCarry(a *model.Agent, held *HeldSet) (*model.Stack, error) {
	id, ok := held.First()
	if !ok {
		return nil, nil
	}
	s := m.Env.Stack(id)
	if s.Gone() || !a.InventoryContains(id) {
		held.Remove(id)
		return nil, &InvariantError{Op: "transfer", Detail: fmt.Sprintf("held stack %s not in inventory of %s", id, a.ID)}
	}
	space := a.AvailableStackSpace(s.Item, s.StackLimit)
	if space <= 0 {
		return nil, nil
	}
	initial := s.Count
	moved, carried := m.Env.TransferToCarry(a, s, space)
	if moved <= 0 || carried == nil {
		return nil, &InvariantError{Op: "transfer", Detail: fmt.Sprintf("moved %d of %s (%d %s) with space %d", moved, id, initial, s.Item, space)}
	}
	if moved >= initial {
		held.Remove(id)
	}
	return carried, nil
}

// FlushAll drops every held stack at the agent's position. A stack that
// cannot be dropped anywhere is destroyed and logged. The held-set is empty
// afterwards.
func (m Manager) FlushAll(a *model.Agent, held *HeldSet) {
	for _, id := range held.IDs() {
		s := m.Env.Stack(id)
		if s.Gone() || !a.InventoryContains(id) {
			continue
		}
		dropped, ok := m.Env.DropNear(a, s)
		if !ok {
			log.Printf("haul: incomplete haul for %s: nowhere to drop %s (%d %s) near %s; destroying", a.ID, s.ID, s.Count, s.Item, a.Pos)
			m.Env.Destroy(s, "FLUSH_NO_SPACE")
			m.audit("DESTROY", a, s, "FLUSH_NO_SPACE")
			continue
		}
		if dropped != nil && a.Hostile {
			dropped.Forbidden = true
		}
		m.audit("DROP", a, dropped, "FLUSH")
	}
	held.Clear()
}

func (m Manager) audit(action string, a *model.Agent, s *model.Stack, reason string) {
	if m.Audit != nil && s != nil {
		m.Audit(action, a, s, reason)
	}
}
