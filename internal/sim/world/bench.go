package world

import (
	"fmt"

	"voxelhaul.ai/internal/sim/model"
)

// AddWorkbench blocks the bench cell; the interaction cell must stay open.
func (w *World) AddWorkbench(b model.Workbench) (*model.Workbench, error) {
	if b.ID == "" {
		return nil, fmt.Errorf("workbench: empty id")
	}
	if _, ok := w.benches[b.ID]; ok {
		return nil, fmt.Errorf("%w: workbench %s", ErrDuplicateID, b.ID)
	}
	if !touching(b.Pos, b.InteractionCell) || b.Pos == b.InteractionCell {
		return nil, fmt.Errorf("workbench %s: interaction cell %s not next to %s", b.ID, b.InteractionCell, b.Pos)
	}
	if err := w.Block(b.Pos); err != nil {
		return nil, fmt.Errorf("workbench %s: %w", b.ID, err)
	}
	if !w.passable(b.InteractionCell) {
		delete(w.blocked, b.Pos)
		return nil, fmt.Errorf("workbench %s: %w: interaction cell %s", b.ID, ErrCellOccupied, b.InteractionCell)
	}
	bb := b
	bb.Usable = true
	w.benches[b.ID] = &bb
	return &bb, nil
}

func (w *World) Workbench(id string) *model.Workbench { return w.benches[id] }

// SetWorkbenchUsable toggles a bench; a DO_BILL task on it ends at its next
// step when the bench goes unusable.
func (w *World) SetWorkbenchUsable(id string, usable bool) bool {
	b := w.benches[id]
	if b == nil {
		return false
	}
	b.Usable = usable
	return true
}

// benchCells are the cells around a bench where ingredients go, in a fixed
// order.
func (w *World) benchCells(b *model.Workbench) []model.Vec3i {
	out := make([]model.Vec3i, 0, 8)
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			c := model.Vec3i{X: b.Pos.X + dx, Y: b.Pos.Y, Z: b.Pos.Z + dz}
			if c == b.Pos || c == b.InteractionCell || !w.passable(c) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// IngredientPlaceCell prefers a bench cell already holding the same item.
func (w *World) IngredientPlaceCell(b *model.Workbench, s *model.Stack) (model.Vec3i, bool) {
	if b.Gone() || s == nil {
		return model.Vec3i{}, false
	}
	var empty model.Vec3i
	haveEmpty := false
	for _, c := range w.benchCells(b) {
		if w.roomFor(c, s, model.PlaceBench) <= 0 {
			continue
		}
		if w.stackAt(c, model.PlaceBench) != nil {
			return c, true
		}
		if !haveEmpty {
			empty, haveEmpty = c, true
		}
	}
	return empty, haveEmpty
}

// PlaceIngredient puts the carried stack on a bench cell where haulers no
// longer see it.
func (w *World) PlaceIngredient(a *model.Agent, b *model.Workbench, cell model.Vec3i) (int, *model.Stack) {
	c := a.Carried
	if c.Gone() || b.Gone() {
		return 0, nil
	}
	n := min(c.Count, w.roomFor(cell, c, model.PlaceBench))
	if n <= 0 {
		return 0, nil
	}
	return n, w.putOnCell(cell, w.detach(c, n), model.PlaceBench)
}

func (w *World) RecipeWorkTicks(recipeID string) int {
	return w.catalogs.Recipes.ByID[recipeID].TimeTicks
}

// FinishRecipe consumes the recipe inputs from the placed ingredient stacks,
// returns leftovers to the ground and spawns the outputs by the bench.
func (w *World) FinishRecipe(a *model.Agent, b *model.Workbench, recipeID string, ingredients []model.StackID) error {
	r, ok := w.catalogs.Recipes.ByID[recipeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecipe, recipeID)
	}
	if r.Station != "" && b.Station != r.Station {
		return fmt.Errorf("recipe %s needs station %s, bench %s is %s", recipeID, r.Station, b.ID, b.Station)
	}
	stacks := make([]*model.Stack, 0, len(ingredients))
	have := map[string]int{}
	for _, id := range ingredients {
		s := w.stacks[id]
		if s.Gone() || s.Place != model.PlaceBench {
			continue
		}
		stacks = append(stacks, s)
		have[s.Item] += s.Count
	}
	for _, in := range r.Inputs {
		if have[in.Item] < in.Count {
			return fmt.Errorf("%w: recipe %s needs %d %s, have %d", ErrMissingIngredient, recipeID, in.Count, in.Item, have[in.Item])
		}
	}

	for _, in := range r.Inputs {
		need := in.Count
		for _, s := range stacks {
			if need == 0 {
				break
			}
			if s.Item != in.Item || s.Gone() {
				continue
			}
			n := min(need, s.Count)
			need -= n
			w.auditStack(a.ID, "CONSUME", s, n, recipeID)
			if n == s.Count {
				w.detach(s, n)
				s.Destroyed = true
				delete(w.stacks, s.ID)
			} else {
				s.Count -= n
			}
		}
	}
	for _, s := range stacks {
		if s.Gone() {
			continue
		}
		w.unindex(s)
		s.Place = model.PlaceGround
		w.index(s)
	}
	for _, out := range r.Outputs {
		if err := w.spawnNear(out.Item, out.Count, b.InteractionCell); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) spawnNear(item string, count int, center model.Vec3i) error {
	def, ok := w.catalogs.Item(item)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, item)
	}
	probe := &model.Stack{Item: item, Count: count, StackLimit: def.StackLimit}
	cell, ok := w.freeCellNear(center, probe, max(w.tuning.Haul.DropSearchRadius, 2))
	if !ok {
		return fmt.Errorf("no room for %d %s near %s", count, item, center)
	}
	_, err := w.SpawnStack(item, count, cell)
	return err
}
