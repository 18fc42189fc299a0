package model

import "math"

type StackID string

type Place int

const (
	PlaceGround Place = iota
	PlaceCarried
	PlaceInventory
	PlaceBench
)

func (p Place) String() string {
	switch p {
	case PlaceGround:
		return "GROUND"
	case PlaceCarried:
		return "CARRIED"
	case PlaceInventory:
		return "INVENTORY"
	case PlaceBench:
		return "BENCH"
	default:
		return "UNKNOWN"
	}
}

// Stack is a quantity of one item type. Stacks are shared, mutable world
// state: callers must re-read Count/Place/Destroyed at every point of use.
type Stack struct {
	ID         StackID
	Item       string
	Pos        Vec3i
	Count      int
	UnitMass   float64
	StackLimit int

	Place  Place
	Holder string // agent id for CARRIED/INVENTORY

	Forbidden bool
	Destroyed bool
}

func (s *Stack) Spawned() bool {
	return s != nil && !s.Destroyed && s.Place == PlaceGround && s.Count > 0
}

func (s *Stack) Gone() bool {
	return s == nil || s.Destroyed || s.Count <= 0
}

// CanStackWith reports whether both stacks hold the same item type.
func (s *Stack) CanStackWith(o *Stack) bool {
	if s == nil || o == nil {
		return false
	}
	return s.Item == o.Item
}

func (s *Stack) Mass() float64 {
	if s == nil || s.Count <= 0 {
		return 0
	}
	return float64(s.Count) * s.UnitMass
}

// RoundedUnitMass rounds to 1/1000 so float noise in catalogs never yields a
// tiny positive mass that would allow huge stow counts.
func (s *Stack) RoundedUnitMass() float64 {
	if s == nil {
		return 0
	}
	return math.Round(s.UnitMass*1000) / 1000
}
