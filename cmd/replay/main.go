package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "voxelhaul.ai/internal/persistence/log"
	"voxelhaul.ai/internal/persistence/snapshot"
	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/tuning"
	"voxelhaul.ai/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		schemaPath = flag.String("schema", "./schemas/taskstate.schema.json", "task state JSON schema")
		ticksDir   = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst; resume the snapshot and compare task outcomes (optional)")
		configDir  = flag.String("configs", "./configs", "config directory")
		maxTicks   = flag.Int("max_ticks", 5000, "tick limit when resuming")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d size=%dx%d stacks=%d agents=%d zones=%d workbenches=%d tasks=%d reservations=%d\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Width, snap.Depth,
		len(snap.Stacks), len(snap.Agents), len(snap.Zones), len(snap.Workbenches), len(snap.Tasks), len(snap.Reservations))

	v, err := snapshot.NewTaskValidator(*schemaPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "schema:", err)
		os.Exit(1)
	}
	bad := 0
	for _, t := range snap.Tasks {
		if err := v.Validate(t); err != nil {
			fmt.Fprintln(os.Stderr, "invalid task state:", err)
			bad++
			continue
		}
		fmt.Printf("task %s kind=%s agent=%s state=%s target=%s count=%d held=%d queue=%d schedule=%d\n",
			t.ID, t.Kind, t.AgentID, t.State, t.Target, t.Count, len(t.Held), len(t.QueueTargets), len(t.ScheduleStacks))
	}
	if bad > 0 {
		os.Exit(1)
	}

	if *ticksDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	w, err := world.NewFromSnapshot(snap, cats, tune, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "restore:", err)
		os.Exit(1)
	}

	want, err := loggedOutcomes(*ticksDir, snap.Header.Tick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}
	for i := 0; i < *maxTicks && !w.Idle(); i++ {
		w.StepOnce()
	}
	if !w.Idle() {
		fmt.Fprintf(os.Stderr, "world not idle after %d ticks\n", *maxTicks)
		os.Exit(1)
	}

	got := map[string]world.TaskResult{}
	for _, r := range w.Results() {
		got[r.TaskID] = r
	}
	ids := make([]string, 0, len(want))
	for id := range want {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	mismatches := 0
	for _, id := range ids {
		exp := want[id]
		r, ok := got[id]
		if !ok {
			// Logged tasks assigned after the snapshot are not part of it.
			continue
		}
		if r.Outcome != exp.Outcome || r.Reason != exp.Reason || r.EndedTick != exp.EndedTick {
			fmt.Fprintf(os.Stderr, "task %s: logged %s/%s@%d, replayed %s/%s@%d\n",
				id, exp.Outcome, exp.Reason, exp.EndedTick, r.Outcome, r.Reason, r.EndedTick)
			mismatches++
		}
	}
	if mismatches > 0 {
		os.Exit(1)
	}
	fmt.Printf("replay ok: %d tasks resumed from tick %d\n", len(got), snap.Header.Tick)
}

// loggedOutcomes collects task results logged at or after fromTick.
func loggedOutcomes(dir string, fromTick uint64) (map[string]world.TaskResult, error) {
	paths, err := persistlog.Files(dir, "ticks")
	if err != nil {
		return nil, err
	}
	out := map[string]world.TaskResult{}
	for _, p := range paths {
		err := persistlog.ReadJSONL(p, func(e world.TickLogEntry) error {
			if e.Tick < fromTick {
				return nil
			}
			for _, r := range e.Ended {
				out[r.TaskID] = r
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
