package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tuning"
)

var (
	ErrUnknownItem       = errors.New("unknown item")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrUnknownRecipe     = errors.New("unknown recipe")
	ErrAgentBusy         = errors.New("agent already has a task")
	ErrOutOfBounds       = errors.New("position out of bounds")
	ErrCellOccupied      = errors.New("cell occupied")
	ErrDuplicateID       = errors.New("duplicate id")
	ErrMissingIngredient = errors.New("missing ingredient")
)

var _ runtime.Env = (*World)(nil)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Width      int
	Depth      int
}

// World is a single-threaded grid of stacks, storage zones, workbenches and
// hauling agents. All state must be accessed only from the world loop
// goroutine, or from a caller that owns the world outright (tests, CLIs).
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	tuning   tuning.Tuning

	tick atomic.Uint64

	agents   map[string]*model.Agent
	stacks   map[model.StackID]*model.Stack
	stacksAt map[model.Vec3i][]model.StackID
	zones    map[string]*Zone
	zoneAt   map[model.Vec3i]string
	blocked  map[model.Vec3i]bool
	benches  map[string]*model.Workbench

	res     reservation.Client
	driver  *runtime.Driver
	jobs    map[string]*runtime.Task
	results []TaskResult

	assign chan AssignRequest
	abort  chan AbortRequest
	stop   chan struct{}

	nextStackNum atomic.Uint64

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger
	resultSink  func(TaskResult)
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64       `json:"tick"`
	Assigned []string     `json:"assigned,omitempty"`
	Ended    []TaskResult `json:"ended,omitempty"`
}

type AuditEntry struct {
	Tick    uint64 `json:"tick"`
	TaskID  string `json:"task_id,omitempty"`
	Actor   string `json:"actor"`
	Action  string `json:"action"` // e.g. "PICK", "STOW", "PLACE", "DROP"
	StackID string `json:"stack_id,omitempty"`
	Item    string `json:"item,omitempty"`
	Count   int    `json:"count,omitempty"`
	Pos     [3]int `json:"pos"`
	Reason  string `json:"reason,omitempty"`
}

type AssignRequest struct {
	Task *runtime.Task
	Resp chan error
}

type AbortRequest struct {
	AgentID string
	Reason  string
}

// New builds an empty world. svc may be nil for an in-process reservation
// table; a shared service lets several worlds contend for the same stacks.
func New(cfg WorldConfig, cats *catalogs.Catalogs, tun tuning.Tuning, svc reservation.Service) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world %s: nil catalogs", cfg.ID)
	}
	if cfg.Width <= 0 || cfg.Depth <= 0 {
		return nil, fmt.Errorf("world %s: bad size %dx%d", cfg.ID, cfg.Width, cfg.Depth)
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = tun.TickRateHz
	}
	if err := tun.Validate(); err != nil {
		return nil, err
	}
	if svc == nil {
		svc = reservation.NewTable()
	}
	w := &World{
		cfg:      cfg,
		catalogs: cats,
		tuning:   tun,
		agents:   map[string]*model.Agent{},
		stacks:   map[model.StackID]*model.Stack{},
		stacksAt: map[model.Vec3i][]model.StackID{},
		zones:    map[string]*Zone{},
		zoneAt:   map[model.Vec3i]string{},
		blocked:  map[model.Vec3i]bool{},
		benches:  map[string]*model.Workbench{},
		res:      reservation.NewClient(svc),
		jobs:     map[string]*runtime.Task{},
		assign:   make(chan AssignRequest, 64),
		abort:    make(chan AbortRequest, 64),
		stop:     make(chan struct{}),
	}
	w.driver = runtime.NewDriver(w, w.res, runtime.Params{
		MaxClaimants: tun.Haul.MaxHaulContesters,
		BundleRadius: tun.Haul.BundleSearchRadius,
		StepsPerTick: tun.StepsPerTick,
	}, w.onAudit)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)       { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)     { w.auditLogger = l }
func (w *World) SetResultSink(f func(TaskResult)) { w.resultSink = f }
func (w *World) Assign() chan<- AssignRequest     { return w.assign }
func (w *World) Abort() chan<- AbortRequest       { return w.abort }
func (w *World) Reservations() reservation.Client { return w.res }
func (w *World) Config() WorldConfig              { return w.cfg }
func (w *World) Tuning() tuning.Tuning            { return w.tuning }
func (w *World) CurrentTick() uint64              { return w.tick.Load() }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingAssign []AssignRequest
	var pendingAbort []AbortRequest

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.assign:
			pendingAssign = append(pendingAssign, req)
		case req := <-w.abort:
			pendingAbort = append(pendingAbort, req)
		case <-ticker.C:
			w.step(pendingAssign, pendingAbort)
			pendingAssign = pendingAssign[:0]
			pendingAbort = pendingAbort[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances one tick without the loop; for owners of the world.
func (w *World) StepOnce() { w.step(nil, nil) }

func (w *World) onAudit(e runtime.AuditEvent) {
	w.audit(AuditEntry{
		Tick:    w.tick.Load(),
		TaskID:  e.TaskID,
		Actor:   e.AgentID,
		Action:  e.Action,
		StackID: e.StackID,
		Item:    e.Item,
		Count:   e.Count,
		Pos:     e.Pos,
		Reason:  e.Reason,
	})
}

func (w *World) audit(entry AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	if err := w.auditLogger.WriteAudit(entry); err != nil {
		log.Printf("world %s: audit log: %v", w.cfg.ID, err)
	}
}

func (w *World) auditStack(actor, action string, s *model.Stack, count int, reason string) {
	if s == nil {
		return
	}
	w.audit(AuditEntry{
		Tick:    w.tick.Load(),
		Actor:   actor,
		Action:  action,
		StackID: string(s.ID),
		Item:    s.Item,
		Count:   count,
		Pos:     s.Pos.ToArray(),
		Reason:  reason,
	})
}
