package reservation

// Exclusive as a reservation count claims the whole stack.
const Exclusive = -1

// Reservation is one claimant's hold on a target (stack or cell).
type Reservation struct {
	Target       string
	Claimant     string
	Count        int
	MaxClaimants int
}

func (r Reservation) IsExclusive() bool { return r.Count == Exclusive }

// Service is the shared reservation store. Implementations must make
// TryReserve and Release atomic across claimants; the haul core never locks
// the store itself.
//
// quantity is the target's current size as seen by the caller. Stores do not
// own world state, so the caller passes it on every claim.
type Service interface {
	TryReserve(target string, quantity int, claimant string, maxClaimants int, count int) bool
	Release(target string, claimant string)
	ReleaseAll(claimant string)
	Reservations(target string) []Reservation
	// Prune drops every claim on a target that no longer exists.
	Prune(target string)
}

// ReservedCountByOthers sums the other claimants' counts on target. exclusive
// is true when any other claimant holds the whole target.
func ReservedCountByOthers(svc Service, target string, claimant string) (count int, exclusive bool) {
	for _, r := range svc.Reservations(target) {
		if r.Claimant == claimant {
			continue
		}
		if r.IsExclusive() {
			return 0, true
		}
		count += r.Count
	}
	return count, false
}

// ReservedBy reports whether claimant holds a reservation on target.
func ReservedBy(svc Service, target string, claimant string) bool {
	for _, r := range svc.Reservations(target) {
		if r.Claimant == claimant {
			return true
		}
	}
	return false
}

// Lister is implemented by stores that can enumerate every reservation, for
// snapshots.
type Lister interface {
	All() []Reservation
}
