package model

// Agent is a hauler. Carried is the primary (hand) slot, Inventory holds
// stacks stowed in the mass-limited secondary capacity.
type Agent struct {
	ID  string
	Pos Vec3i

	CarryLimit int
	MassLimit  float64
	GearMass   float64

	Carried   *Stack
	Inventory []*Stack

	Hostile bool

	ThingsHauled int
}

// CanCarry reports whether the primary slot accepts the item at all.
func (a *Agent) CanCarry(item string) bool {
	if a == nil || a.CarryLimit <= 0 {
		return false
	}
	return a.Carried == nil || a.Carried.Gone() || a.Carried.Item == item
}

// AvailableStackSpace is how many more units of item fit in the primary slot.
func (a *Agent) AvailableStackSpace(item string, stackLimit int) int {
	if !a.CanCarry(item) {
		return 0
	}
	limit := a.CarryLimit
	if stackLimit > 0 && stackLimit < limit {
		limit = stackLimit
	}
	if a.Carried != nil && !a.Carried.Gone() {
		limit -= a.Carried.Count
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// CurrentMass counts gear and inventory; the carried stack is not part of it.
func (a *Agent) CurrentMass() float64 {
	if a == nil {
		return 0
	}
	m := a.GearMass
	for _, s := range a.Inventory {
		m += s.Mass()
	}
	return m
}

func (a *Agent) FreeMass() float64 {
	free := a.MassLimit - a.CurrentMass()
	if free < 0 {
		return 0
	}
	return free
}

func (a *Agent) InventoryContains(id StackID) bool {
	for _, s := range a.Inventory {
		if s.ID == id && !s.Gone() {
			return true
		}
	}
	return false
}

func (a *Agent) RemoveFromInventory(id StackID) {
	for i, s := range a.Inventory {
		if s.ID != id {
			continue
		}
		copy(a.Inventory[i:], a.Inventory[i+1:])
		a.Inventory[len(a.Inventory)-1] = nil
		a.Inventory = a.Inventory[:len(a.Inventory)-1]
		return
	}
}
