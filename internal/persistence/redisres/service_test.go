package redisres

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"voxelhaul.ai/internal/sim/haul/reservation"
)

func testService(t *testing.T) *Service {
	t.Helper()
	addr := os.Getenv("VOXELHAUL_REDIS_ADDR")
	if addr == "" {
		t.Skip("VOXELHAUL_REDIS_ADDR not set")
	}
	s, err := Dial(context.Background(), Options{Addr: addr, Prefix: "test-" + uuid.NewString()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisClaimRules(t *testing.T) {
	s := testService(t)

	if !s.TryReserve("stack@S1", 10, "A1", 2, 6) {
		t.Fatalf("first claim rejected")
	}
	if s.TryReserve("stack@S1", 10, "A2", 2, 5) {
		t.Fatalf("over-quantity claim accepted")
	}
	if !s.TryReserve("stack@S1", 10, "A2", 2, 4) {
		t.Fatalf("fitting claim rejected")
	}
	if s.TryReserve("stack@S1", 10, "A3", 2, reservation.Exclusive) {
		t.Fatalf("third claimant accepted past max claimants")
	}
	// Re-claiming replaces the claimant's own count.
	if !s.TryReserve("stack@S1", 10, "A1", 2, 3) {
		t.Fatalf("own re-claim rejected")
	}
	got := s.Reservations("stack@S1")
	if len(got) != 2 || got[0].Claimant != "A1" || got[0].Count != 3 || got[1].Count != 4 {
		t.Fatalf("reservations: %+v", got)
	}

	if !s.TryReserve("cell@8,0,0", 1, "A1", 1, reservation.Exclusive) {
		t.Fatalf("cell claim rejected")
	}
	if s.TryReserve("cell@8,0,0", 1, "A2", 1, reservation.Exclusive) {
		t.Fatalf("second cell claim accepted")
	}

	s.Release("stack@S1", "A2")
	if all := s.All(); len(all) != 2 {
		t.Fatalf("after release: %+v", all)
	}
	s.ReleaseAll("A1")
	if all := s.All(); len(all) != 0 {
		t.Fatalf("after release all: %+v", all)
	}
}

func TestRedisConcurrentClaimsNeverOverbook(t *testing.T) {
	s := testService(t)
	const quantity = 10

	var granted atomic.Int64
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		claimant := "A" + string(rune('0'+i))
		g.Go(func() error {
			if s.TryReserve("stack@S9", quantity, claimant, 8, 3) {
				granted.Add(3)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if granted.Load() > quantity {
		t.Fatalf("granted %d units of %d", granted.Load(), quantity)
	}
	total := 0
	for _, r := range s.Reservations("stack@S9") {
		total += r.Count
	}
	if int64(total) != granted.Load() {
		t.Fatalf("stored %d, granted %d", total, granted.Load())
	}
}

func TestRedisPruneDropsEveryClaimOnTarget(t *testing.T) {
	s := testService(t)

	if !s.TryReserve("stack@S1", 10, "A1", 2, 4) || !s.TryReserve("stack@S1", 10, "A2", 2, 4) {
		t.Fatalf("claims rejected")
	}
	if !s.TryReserve("stack@S2", 5, "A1", 1, reservation.Exclusive) {
		t.Fatalf("second target rejected")
	}
	s.Prune("stack@S1")
	all := s.All()
	if len(all) != 1 || all[0].Target != "stack@S2" {
		t.Fatalf("after prune: %+v", all)
	}
	// The pruned target must not linger in the claimant's owner set.
	s.ReleaseAll("A1")
	s.ReleaseAll("A2")
	if all := s.All(); len(all) != 0 {
		t.Fatalf("after release all: %+v", all)
	}
}
