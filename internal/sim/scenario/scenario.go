// Package scenario loads YAML descriptions of a haul world: map, storage,
// stacks, agents, workbenches and the tasks to run.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/haul/queue"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/haul/runtime"
	"voxelhaul.ai/internal/sim/model"
	"voxelhaul.ai/internal/sim/tasks"
	"voxelhaul.ai/internal/sim/tuning"
	"voxelhaul.ai/internal/sim/world"
)

type Scenario struct {
	Name     string `yaml:"name"`
	Width    int    `yaml:"width"`
	Depth    int    `yaml:"depth"`
	MaxTicks int    `yaml:"max_ticks"`

	Blocked     [][2]int    `yaml:"blocked"`
	Zones       []Zone      `yaml:"zones"`
	Stacks      []Stack     `yaml:"stacks"`
	Agents      []Agent     `yaml:"agents"`
	Workbenches []Workbench `yaml:"workbenches"`
	Tasks       []Task      `yaml:"tasks"`
}

type Zone struct {
	ID       string   `yaml:"id"`
	Priority int      `yaml:"priority"`
	Accepts  []string `yaml:"accepts"`
	// Rect is [x0, z0, x1, z1], inclusive.
	Rect  [4]int   `yaml:"rect"`
	Cells [][2]int `yaml:"cells"`
}

type Stack struct {
	Ref       string `yaml:"ref"`
	Item      string `yaml:"item"`
	Count     int    `yaml:"count"`
	At        [2]int `yaml:"at"`
	Forbidden bool   `yaml:"forbidden"`
}

type Agent struct {
	ID         string  `yaml:"id"`
	At         [2]int  `yaml:"at"`
	Hostile    bool    `yaml:"hostile"`
	CarryLimit int     `yaml:"carry_limit"`
	MassLimit  float64 `yaml:"mass_limit"`
	GearMass   float64 `yaml:"gear_mass"`
}

type Workbench struct {
	ID          string `yaml:"id"`
	Station     string `yaml:"station"`
	At          [2]int `yaml:"at"`
	Interaction [2]int `yaml:"interaction"`
}

type Ingredient struct {
	Stack string `yaml:"stack"`
	Count int    `yaml:"count"`
}

// Task refers to stacks by their scenario ref.
type Task struct {
	Kind          tasks.Kind   `yaml:"kind"`
	Agent         string       `yaml:"agent"`
	Stack         string       `yaml:"stack"`
	Count         int          `yaml:"count"`
	Dest          *[2]int      `yaml:"dest"`
	Opportunistic *bool        `yaml:"opportunistic"`
	Workbench     string       `yaml:"workbench"`
	Recipe        string       `yaml:"recipe"`
	Ingredients   []Ingredient `yaml:"ingredients"`
}

func Load(path string) (Scenario, error) {
	var sc Scenario
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

func cell(p [2]int) model.Vec3i { return model.Vec3i{X: p[0], Z: p[1]} }

// Build creates the world and the tasks, unassigned, in file order.
func (sc Scenario) Build(cats *catalogs.Catalogs, tun tuning.Tuning, svc reservation.Service) (*world.World, []*runtime.Task, error) {
	w, err := world.New(world.WorldConfig{ID: sc.Name, TickRateHz: tun.TickRateHz, Width: sc.Width, Depth: sc.Depth}, cats, tun, svc)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range sc.Blocked {
		if err := w.Block(cell(p)); err != nil {
			return nil, nil, fmt.Errorf("blocked %v: %w", p, err)
		}
	}
	for _, b := range sc.Workbenches {
		if _, err := w.AddWorkbench(model.Workbench{ID: b.ID, Station: b.Station, Pos: cell(b.At), InteractionCell: cell(b.Interaction)}); err != nil {
			return nil, nil, err
		}
	}
	for _, z := range sc.Zones {
		zone := world.Zone{ID: z.ID, Priority: z.Priority, Accepts: z.Accepts}
		if z.Rect != [4]int{} || len(z.Cells) == 0 {
			for x := z.Rect[0]; x <= z.Rect[2]; x++ {
				for zz := z.Rect[1]; zz <= z.Rect[3]; zz++ {
					zone.Cells = append(zone.Cells, model.Vec3i{X: x, Z: zz})
				}
			}
		}
		for _, c := range z.Cells {
			zone.Cells = append(zone.Cells, cell(c))
		}
		if err := w.AddZone(zone); err != nil {
			return nil, nil, err
		}
	}
	refs := map[string]model.StackID{}
	for _, s := range sc.Stacks {
		st, err := w.SpawnStack(s.Item, s.Count, cell(s.At))
		if err != nil {
			return nil, nil, fmt.Errorf("stack %s: %w", s.Ref, err)
		}
		if s.Forbidden {
			w.SetForbidden(st.ID, true)
		}
		if s.Ref != "" {
			refs[s.Ref] = st.ID
		}
	}
	for _, a := range sc.Agents {
		ag, err := w.AddAgent(a.ID, cell(a.At), a.Hostile)
		if err != nil {
			return nil, nil, err
		}
		if a.CarryLimit > 0 {
			ag.CarryLimit = a.CarryLimit
		}
		if a.MassLimit > 0 {
			ag.MassLimit = a.MassLimit
		}
		if a.GearMass > 0 {
			ag.GearMass = a.GearMass
		}
	}

	lookup := func(ref string) (model.StackID, error) {
		id, ok := refs[ref]
		if !ok {
			return "", fmt.Errorf("unknown stack ref %q", ref)
		}
		return id, nil
	}
	var out []*runtime.Task
	for i, tk := range sc.Tasks {
		switch tk.Kind {
		case tasks.KindHaulToCell, "":
			id, err := lookup(tk.Stack)
			if err != nil {
				return nil, nil, fmt.Errorf("task %d: %w", i, err)
			}
			opp := tun.Haul.OpportunisticByDefault
			if tk.Opportunistic != nil {
				opp = *tk.Opportunistic
			}
			dest, ok := model.Vec3i{}, tk.Dest != nil
			if ok {
				dest = cell(*tk.Dest)
			} else if a := w.Agent(tk.Agent); a != nil {
				dest, ok = w.FindBestStorageCell(w.Stack(id), a)
			}
			if !ok {
				return nil, nil, fmt.Errorf("task %d: no storage cell for %s", i, tk.Stack)
			}
			out = append(out, runtime.NewHaulTask(tk.Agent, id, tk.Count, dest, opp))
		case tasks.KindDoBill:
			var entries []queue.Entry
			for _, in := range tk.Ingredients {
				id, err := lookup(in.Stack)
				if err != nil {
					return nil, nil, fmt.Errorf("task %d: %w", i, err)
				}
				entries = append(entries, queue.Entry{Target: id, Count: in.Count})
			}
			out = append(out, runtime.NewBillTask(tk.Agent, tk.Workbench, tk.Recipe, entries...))
		default:
			return nil, nil, fmt.Errorf("task %d: unknown kind %q", i, tk.Kind)
		}
	}
	return w, out, nil
}
