package runtime

import (
	"voxelhaul.ai/internal/sim/haul/bundle"
	"voxelhaul.ai/internal/sim/haul/overflow"
	"voxelhaul.ai/internal/sim/model"
)

type PathMode int

const (
	// PathTouch arrives next to or on the destination.
	PathTouch PathMode = iota
	// PathOnCell arrives on the destination cell.
	PathOnCell
)

type MoveStatus int

const (
	MoveInProgress MoveStatus = iota
	MoveArrived
	MoveFailed
)

// Env is everything the state machine needs from the world. Movement is an
// opaque suspend point: MoveTo advances at most one step per call and reports
// arrival or failure on a later tick.
type Env interface {
	overflow.Env
	bundle.Finder

	Agent(id string) *model.Agent
	MoveTo(a *model.Agent, dest model.Vec3i, mode PathMode) MoveStatus
	IsForbidden(s *model.Stack, a *model.Agent) bool

	// TakeToCarry moves count units of a ground stack into the carry slot.
	TakeToCarry(a *model.Agent, s *model.Stack, count int) (int, *model.Stack)
	// Stow splits count units of a ground stack into the agent's inventory.
	Stow(a *model.Agent, s *model.Stack, count int) (int, *model.Stack)
	// PlaceCarried deposits as much of the carried stack on cell as the cell
	// takes. The remainder stays carried.
	PlaceCarried(a *model.Agent, cell model.Vec3i) (int, *model.Stack)

	// StorageAccepts is the zone filter at cell; IsValidStorageFor also
	// requires room for s on the cell itself.
	StorageAccepts(cell model.Vec3i, s *model.Stack) bool
	IsValidStorageFor(cell model.Vec3i, s *model.Stack) bool
	FindBestStorageCell(s *model.Stack, a *model.Agent) (model.Vec3i, bool)

	Workbench(id string) *model.Workbench
	IngredientPlaceCell(w *model.Workbench, s *model.Stack) (model.Vec3i, bool)
	// PlaceIngredient puts the carried stack at a bench cell where haulers
	// no longer see it.
	PlaceIngredient(a *model.Agent, w *model.Workbench, cell model.Vec3i) (int, *model.Stack)
	RecipeWorkTicks(recipeID string) int
	FinishRecipe(a *model.Agent, w *model.Workbench, recipeID string, ingredients []model.StackID) error
}

// Params are the fixed knobs of a driver.
type Params struct {
	MaxClaimants int
	BundleRadius float64
	StepsPerTick int
}

func (p Params) withDefaults() Params {
	if p.MaxClaimants <= 0 {
		p.MaxClaimants = 5
	}
	if p.BundleRadius <= 0 {
		p.BundleRadius = 8
	}
	if p.StepsPerTick <= 0 {
		p.StepsPerTick = 16
	}
	return p
}

// AuditEvent is one domain record emitted while a task runs.
type AuditEvent struct {
	Tick    uint64 `json:"tick"`
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id"`
	Action  string `json:"action"`
	StackID string `json:"stack_id,omitempty"`
	Item    string `json:"item,omitempty"`
	Count   int    `json:"count,omitempty"`
	Pos     [3]int `json:"pos"`
	Reason  string `json:"reason,omitempty"`
}

type AuditFunc func(e AuditEvent)
