package runtime

import (
	"github.com/google/uuid"

	"voxelhaul.ai/internal/sim/haul/bundle"
	"voxelhaul.ai/internal/sim/haul/overflow"
	"voxelhaul.ai/internal/sim/haul/queue"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
)

// Task is the full, persistable state of one agent's haul or bill job.
type Task struct {
	ID      string
	Kind    tasks.Kind
	AgentID string

	State   State
	Started bool
	Outcome tasks.Outcome
	Reason  string

	// Primary target currently acted on and the count reserved for it.
	Target model.StackID
	Count  int

	// HAUL_TO_CELL: storage cell. DO_BILL: ingredient place cell.
	Dest    model.Vec3i
	HasDest bool

	Opportunistic      bool
	ForbiddenInitially bool

	Queue    *queue.TargetQueue
	Schedule bundle.Schedule
	Held     overflow.HeldSet

	// DO_BILL.
	WorkbenchID string
	RecipeID    string
	Placed      []model.StackID
	WorkLeft    int

	StartedTick uint64
	EndedTick   uint64
}

func newTaskID() string { return "T_" + uuid.NewString() }

// NewHaulTask hauls target to dest. count <= 0 means "as much as fits".
func NewHaulTask(agentID string, target model.StackID, count int, dest model.Vec3i, opportunistic bool) *Task {
	return &Task{
		ID:            newTaskID(),
		Kind:          tasks.KindHaulToCell,
		AgentID:       agentID,
		State:         StateReserveTarget,
		Target:        target,
		Count:         count,
		Dest:          dest,
		HasDest:       true,
		Opportunistic: opportunistic,
		Queue:         queue.New(),
	}
}

// NewBillTask collects the queued ingredients to a workbench and runs recipeID.
func NewBillTask(agentID string, workbenchID string, recipeID string, ingredients ...queue.Entry) *Task {
	return &Task{
		ID:          newTaskID(),
		Kind:        tasks.KindDoBill,
		AgentID:     agentID,
		State:       StateReserveTarget,
		WorkbenchID: workbenchID,
		RecipeID:    recipeID,
		Queue:       queue.New(ingredients...),
	}
}

func (t *Task) Done() bool { return t.Outcome.Terminal() }

// Err is nil while running and on COMPLETE.
func (t *Task) Err() error { return tasks.OutcomeError(t.Outcome, t.Reason) }
