// Package redisres is a reservation.Service shared by several processes
// through Redis. Claims and releases run as Lua scripts so the capacity check
// and the write are one atomic step on the server.
package redisres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"voxelhaul.ai/internal/sim/haul/reservation"
)

var (
	_ reservation.Service = (*Service)(nil)
	_ reservation.Lister  = (*Service)(nil)
)

// Keys (all under one hash tag so a cluster keeps them in one slot):
//
//	{prefix}:t:<target>    hash claimant -> "count|maxClaimants"
//	{prefix}:o:<claimant>  set of targets the claimant holds
//	{prefix}:targets       set of targets with at least one claim
var tryReserveScript = redis.NewScript(`
local entries = redis.call('HGETALL', KEYS[1])
local others, claimants, own = 0, 0, false
for i = 1, #entries, 2 do
  local cnt = tonumber(string.match(entries[i + 1], '^(-?%d+)'))
  if entries[i] == ARGV[1] then
    own = true
  else
    claimants = claimants + 1
    if cnt == -1 then return 0 end
    others = others + cnt
  end
end
local quantity, maxc, count = tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
if (not own) and claimants >= maxc then return 0 end
if count == -1 then
  if claimants > 0 then return 0 end
elseif others + count > quantity then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[4] .. '|' .. ARGV[3])
redis.call('SADD', KEYS[2], ARGV[5])
redis.call('SADD', KEYS[3], ARGV[5])
return 1
`)

var releaseScript = redis.NewScript(`
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('SREM', KEYS[2], ARGV[2])
if redis.call('HLEN', KEYS[1]) == 0 then
  redis.call('SREM', KEYS[3], ARGV[2])
end
return 1
`)

// KEYS: owner set, targets set, then one target hash per ARGV[2..].
// Callers read the owner set first so every key the script touches is
// declared up front.
var releaseAllScript = redis.NewScript(`
for i = 2, #ARGV do
  local key = KEYS[i + 1]
  redis.call('HDEL', key, ARGV[1])
  if redis.call('HLEN', key) == 0 then
    redis.call('SREM', KEYS[2], ARGV[i])
  end
  redis.call('SREM', KEYS[1], ARGV[i])
end
return #ARGV - 1
`)

// KEYS: target hash, targets set, then the owner set of every claimant.
var pruneScript = redis.NewScript(`
for i = 3, #KEYS do
  redis.call('SREM', KEYS[i], ARGV[1])
end
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
return #KEYS - 2
`)

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
}

// Service calls Redis synchronously. The reservation interface has no error
// return: a failed claim call counts as a rejection, a failed release is
// logged.
type Service struct {
	rdb     redis.UniversalClient
	ns      string
	timeout time.Duration
}

func New(rdb redis.UniversalClient, prefix string, timeout time.Duration) *Service {
	if prefix == "" {
		prefix = "voxelhaul"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{rdb: rdb, ns: "{" + prefix + "}", timeout: timeout}
}

// Dial connects and pings before returning.
func Dial(ctx context.Context, opt Options) (*Service, error) {
	if opt.Addr == "" {
		return nil, errors.New("redisres: empty addr")
	}
	rdb := redis.NewClient(&redis.Options{Addr: opt.Addr, Password: opt.Password, DB: opt.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redisres: ping %s: %w", opt.Addr, err)
	}
	return New(rdb, opt.Prefix, opt.Timeout), nil
}

func (s *Service) Close() error { return s.rdb.Close() }

func (s *Service) targetKey(target string) string  { return s.ns + ":t:" + target }
func (s *Service) ownerKey(claimant string) string { return s.ns + ":o:" + claimant }
func (s *Service) targetsKey() string              { return s.ns + ":targets" }

func (s *Service) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Service) TryReserve(target string, quantity int, claimant string, maxClaimants int, count int) bool {
	if target == "" || claimant == "" {
		return false
	}
	if count <= 0 && count != reservation.Exclusive {
		return false
	}
	if maxClaimants <= 0 {
		maxClaimants = 1
	}
	ctx, cancel := s.ctx()
	defer cancel()
	ok, err := tryReserveScript.Run(ctx, s.rdb,
		[]string{s.targetKey(target), s.ownerKey(claimant), s.targetsKey()},
		claimant, quantity, maxClaimants, count, target,
	).Int()
	if err != nil {
		log.Printf("reservation: redis claim %s by %s: %v", target, claimant, err)
		return false
	}
	return ok == 1
}

func (s *Service) Release(target string, claimant string) {
	ctx, cancel := s.ctx()
	defer cancel()
	err := releaseScript.Run(ctx, s.rdb,
		[]string{s.targetKey(target), s.ownerKey(claimant), s.targetsKey()},
		claimant, target,
	).Err()
	if err != nil {
		log.Printf("reservation: redis release %s by %s: %v", target, claimant, err)
	}
}

func (s *Service) ReleaseAll(claimant string) {
	ctx, cancel := s.ctx()
	defer cancel()
	targets, err := s.rdb.SMembers(ctx, s.ownerKey(claimant)).Result()
	if err != nil {
		log.Printf("reservation: redis release all for %s: %v", claimant, err)
		return
	}
	if len(targets) == 0 {
		return
	}
	keys := []string{s.ownerKey(claimant), s.targetsKey()}
	args := []any{claimant}
	for _, t := range targets {
		keys = append(keys, s.targetKey(t))
		args = append(args, t)
	}
	if err := releaseAllScript.Run(ctx, s.rdb, keys, args...).Err(); err != nil {
		log.Printf("reservation: redis release all for %s: %v", claimant, err)
	}
}

// Prune drops every claim on a target that no longer exists.
func (s *Service) Prune(target string) {
	ctx, cancel := s.ctx()
	defer cancel()
	claimants, err := s.rdb.HKeys(ctx, s.targetKey(target)).Result()
	if err != nil {
		log.Printf("reservation: redis prune %s: %v", target, err)
		return
	}
	if len(claimants) == 0 {
		return
	}
	keys := []string{s.targetKey(target), s.targetsKey()}
	for _, c := range claimants {
		keys = append(keys, s.ownerKey(c))
	}
	if err := pruneScript.Run(ctx, s.rdb, keys, target).Err(); err != nil {
		log.Printf("reservation: redis prune %s: %v", target, err)
	}
}

func (s *Service) Reservations(target string) []reservation.Reservation {
	ctx, cancel := s.ctx()
	defer cancel()
	m, err := s.rdb.HGetAll(ctx, s.targetKey(target)).Result()
	if err != nil {
		log.Printf("reservation: redis read %s: %v", target, err)
		return nil
	}
	return decode(target, m)
}

// All lists every reservation, sorted by target then claimant.
func (s *Service) All() []reservation.Reservation {
	ctx, cancel := s.ctx()
	defer cancel()
	targets, err := s.rdb.SMembers(ctx, s.targetsKey()).Result()
	if err != nil {
		log.Printf("reservation: redis list: %v", err)
		return nil
	}
	sort.Strings(targets)
	cmds := make([]*redis.MapStringStringCmd, len(targets))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, t := range targets {
			cmds[i] = p.HGetAll(ctx, s.targetKey(t))
		}
		return nil
	})
	if err != nil {
		log.Printf("reservation: redis list: %v", err)
		return nil
	}
	var out []reservation.Reservation
	for i, t := range targets {
		out = append(out, decode(t, cmds[i].Val())...)
	}
	return out
}

func decode(target string, m map[string]string) []reservation.Reservation {
	out := make([]reservation.Reservation, 0, len(m))
	for claimant, v := range m {
		countStr, maxStr, _ := strings.Cut(v, "|")
		count, err1 := strconv.Atoi(countStr)
		maxc, err2 := strconv.Atoi(maxStr)
		if err1 != nil || err2 != nil {
			log.Printf("reservation: bad redis entry %s/%s=%q", target, claimant, v)
			continue
		}
		out = append(out, reservation.Reservation{Target: target, Claimant: claimant, Count: count, MaxClaimants: maxc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Claimant < out[j].Claimant })
	return out
}
