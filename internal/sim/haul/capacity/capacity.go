// Package capacity decides how much of a stack an agent can take: first into
// the primary (carry) slot, then the remainder into mass-limited inventory,
// net of what other claimants have reserved.
package capacity

import (
	"math"

	"voxelhaul.ai/internal/sim/model"
)

// Availability is the reservation view the model needs.
type Availability interface {
	NonReservedQuantity(s *model.Stack, claimant string) int
}

// Carryable is how much of s fits in the agent's primary slot.
func Carryable(s *model.Stack, a *model.Agent) int {
	if s.Gone() || a == nil || !a.CanCarry(s.Item) {
		return 0
	}
	return minInt(s.Count, a.AvailableStackSpace(s.Item, s.StackLimit))
}

// Stowable is how much of what remains after carrying fits in inventory by
// mass.
func Stowable(s *model.Stack, a *model.Agent) int {
	if s.Gone() || a == nil {
		return 0
	}
	remaining := s.Count - maxInt(Carryable(s, a), 0)
	if remaining <= 0 {
		return 0
	}
	return minInt(remaining, StowableByMass(s, a.FreeMass()))
}

// StowableByMass is floor(free/unitMass), 0 when the unit mass rounds to a
// non-positive value or nothing is free.
func StowableByMass(s *model.Stack, free float64) int {
	mass := s.RoundedUnitMass()
	if mass <= 0 || free <= 0 {
		return 0
	}
	n := math.Floor(free / mass)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Haulable is carry plus stow, capped by what others have not reserved.
func Haulable(s *model.Stack, a *model.Agent, av Availability) int {
	if s.Gone() || a == nil {
		return 0
	}
	n := maxInt(Carryable(s, a), 0) + maxInt(Stowable(s, a), 0)
	if av == nil {
		return n
	}
	return minInt(n, av.NonReservedQuantity(s, a.ID))
}

// Split divides want units of s between carry and inventory, carry first.
func Split(s *model.Stack, a *model.Agent, want int) (carry, stow int) {
	if want <= 0 {
		return 0, 0
	}
	carry = minInt(Carryable(s, a), want)
	if carry < 0 {
		carry = 0
	}
	rest := want - carry
	if rest > 0 {
		stow = minInt(StowableByMass(s, a.FreeMass()), minInt(rest, s.Count-carry))
		if stow < 0 {
			stow = 0
		}
	}
	return carry, stow
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
