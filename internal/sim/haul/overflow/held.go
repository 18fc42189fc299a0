package overflow

import (
	"slices"

	"voxelhaul.ai/internal/sim/model"
)

// HeldSet is the task-owned list of stacks sitting in the agent's inventory.
// Members are removed in the same step that moves them out.
type HeldSet struct {
	ids []model.StackID
}

func HeldFrom(ids []model.StackID) HeldSet {
	return HeldSet{ids: append([]model.StackID(nil), ids...)}
}

func (h *HeldSet) Add(id model.StackID) {
	if id == "" || h.Contains(id) {
		return
	}
	h.ids = append(h.ids, id)
}

func (h *HeldSet) Remove(id model.StackID) {
	h.ids = slices.DeleteFunc(h.ids, func(x model.StackID) bool { return x == id })
}

func (h *HeldSet) Contains(id model.StackID) bool { return slices.Contains(h.ids, id) }

func (h *HeldSet) Len() int { return len(h.ids) }

func (h *HeldSet) Empty() bool { return len(h.ids) == 0 }

func (h *HeldSet) First() (model.StackID, bool) {
	if len(h.ids) == 0 {
		return "", false
	}
	return h.ids[0], true
}

func (h *HeldSet) IDs() []model.StackID { return append([]model.StackID(nil), h.ids...) }

func (h *HeldSet) Clear() { h.ids = nil }
