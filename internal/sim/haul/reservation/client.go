package reservation

import (
	"log"
	"strings"

	"voxelhaul.ai/internal/sim/model"
)

// CellTarget is the reservation key of a map cell.
func CellTarget(pos model.Vec3i) string { return "cell@" + pos.String() }

// StackTarget is the reservation key of a stack.
func StackTarget(id model.StackID) string { return "stack@" + string(id) }

// Client adapts a Service to stacks and cells. It caches nothing: every call
// re-reads the store since other agents change it between ticks.
type Client struct {
	Svc Service
}

func NewClient(svc Service) Client { return Client{Svc: svc} }

// NonReservedQuantity is the part of s not held by other claimants.
func (c Client) NonReservedQuantity(s *model.Stack, claimant string) int {
	if s == nil || s.Destroyed {
		return 0
	}
	reserved, exclusive := ReservedCountByOthers(c.Svc, StackTarget(s.ID), claimant)
	if exclusive {
		return 0
	}
	free := s.Count - reserved
	if free < 0 {
		log.Printf("reservation: reserved count %d exceeds stack %s (%d %s)", reserved, s.ID, s.Count, s.Item)
		return 0
	}
	return free
}

func (c Client) TryReserve(s *model.Stack, claimant string, maxClaimants int, count int) bool {
	if s == nil || s.Gone() {
		return false
	}
	return c.Svc.TryReserve(StackTarget(s.ID), s.Count, claimant, maxClaimants, count)
}

// TryReserveExclusive claims the whole stack for a single claimant.
func (c Client) TryReserveExclusive(s *model.Stack, claimant string) bool {
	if s == nil || s.Gone() {
		return false
	}
	return c.Svc.TryReserve(StackTarget(s.ID), s.Count, claimant, 1, Exclusive)
}

// Release is idempotent and ignores stacks that no longer exist.
func (c Client) Release(s *model.Stack, claimant string) {
	if s == nil || s.Destroyed {
		return
	}
	c.Svc.Release(StackTarget(s.ID), claimant)
}

// Forget drops every claim on a stack that was destroyed or absorbed.
func (c Client) Forget(id model.StackID) {
	c.Svc.Prune(StackTarget(id))
}

func (c Client) ReservedBy(s *model.Stack, claimant string) bool {
	if s == nil {
		return false
	}
	return ReservedBy(c.Svc, StackTarget(s.ID), claimant)
}

func (c Client) CanReserveCell(pos model.Vec3i, claimant string) bool {
	for _, r := range c.Svc.Reservations(CellTarget(pos)) {
		if r.Claimant != claimant {
			return false
		}
	}
	return true
}

func (c Client) TryReserveCell(pos model.Vec3i, claimant string) bool {
	return c.Svc.TryReserve(CellTarget(pos), 1, claimant, 1, Exclusive)
}

func (c Client) ReleaseCell(pos model.Vec3i, claimant string) {
	c.Svc.Release(CellTarget(pos), claimant)
}

func (c Client) ReleaseAll(claimant string) {
	c.Svc.ReleaseAll(claimant)
}

// ParseTarget splits a reservation key into its kind ("stack", "cell") and
// the id or coordinates.
func ParseTarget(target string) (kind, id string, ok bool) {
	kind, id, ok = strings.Cut(target, "@")
	if !ok || kind == "" || id == "" {
		return "", "", false
	}
	return kind, id, true
}
