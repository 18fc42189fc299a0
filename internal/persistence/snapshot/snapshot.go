package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	TickRate int `json:"tick_rate_hz"`
	Width    int `json:"width"`
	Depth    int `json:"depth"`

	Stacks       []StackV1       `json:"stacks"`
	Agents       []AgentV1       `json:"agents"`
	Zones        []ZoneV1        `json:"zones"`
	Blocked      [][3]int        `json:"blocked,omitempty"`
	Workbenches  []WorkbenchV1   `json:"workbenches,omitempty"`
	Tasks        []TaskStateV1   `json:"tasks,omitempty"`
	Reservations []ReservationV1 `json:"reservations,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextStack uint64 `json:"next_stack"`
}

type StackV1 struct {
	ID         string  `json:"id"`
	Item       string  `json:"item"`
	Pos        [3]int  `json:"pos"`
	Count      int     `json:"count"`
	UnitMass   float64 `json:"unit_mass"`
	StackLimit int     `json:"stack_limit"`
	Place      string  `json:"place"`
	Holder     string  `json:"holder,omitempty"`
	Forbidden  bool    `json:"forbidden,omitempty"`
}

type AgentV1 struct {
	ID           string   `json:"id"`
	Pos          [3]int   `json:"pos"`
	CarryLimit   int      `json:"carry_limit"`
	MassLimit    float64  `json:"mass_limit"`
	GearMass     float64  `json:"gear_mass"`
	Hostile      bool     `json:"hostile,omitempty"`
	ThingsHauled int      `json:"things_hauled"`
	Carried      string   `json:"carried,omitempty"`
	Inventory    []string `json:"inventory,omitempty"`
}

type ZoneV1 struct {
	ID       string   `json:"id"`
	Priority int      `json:"priority"`
	Accepts  []string `json:"accepts,omitempty"`
	Cells    [][3]int `json:"cells"`
}

type WorkbenchV1 struct {
	ID              string `json:"id"`
	Station         string `json:"station"`
	Pos             [3]int `json:"pos"`
	InteractionCell [3]int `json:"interaction_cell"`
	Usable          bool   `json:"usable"`
}

// TaskStateV1 is a running task. Queue and schedule are stored as parallel
// target/count lists of equal length.
type TaskStateV1 struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	AgentID string `json:"agent_id"`
	State   string `json:"state"`
	Started bool   `json:"started"`
	Outcome string `json:"outcome,omitempty"`
	Reason  string `json:"reason,omitempty"`

	Target  string `json:"target,omitempty"`
	Count   int    `json:"count"`
	Dest    [3]int `json:"dest"`
	HasDest bool   `json:"has_dest"`

	Opportunistic      bool `json:"opportunistic"`
	ForbiddenInitially bool `json:"forbidden_initially"`

	QueueTargets   []string `json:"queue_targets"`
	QueueCounts    []int    `json:"queue_counts"`
	ScheduleStacks []string `json:"schedule_stacks"`
	ScheduleCounts []int    `json:"schedule_counts"`
	Held           []string `json:"held"`

	WorkbenchID string   `json:"workbench_id,omitempty"`
	RecipeID    string   `json:"recipe_id,omitempty"`
	Placed      []string `json:"placed,omitempty"`
	WorkLeft    int      `json:"work_left,omitempty"`

	StartedTick uint64 `json:"started_tick"`
	EndedTick   uint64 `json:"ended_tick,omitempty"`
}

// Check rejects a task state whose parallel lists disagree in length.
func (t TaskStateV1) Check() error {
	if len(t.QueueTargets) != len(t.QueueCounts) {
		return fmt.Errorf("task %s: queue has %d targets and %d counts", t.ID, len(t.QueueTargets), len(t.QueueCounts))
	}
	if len(t.ScheduleStacks) != len(t.ScheduleCounts) {
		return fmt.Errorf("task %s: schedule has %d stacks and %d counts", t.ID, len(t.ScheduleStacks), len(t.ScheduleCounts))
	}
	return nil
}

type ReservationV1 struct {
	Target       string `json:"target"`
	Claimant     string `json:"claimant"`
	Count        int    `json:"count"`
	MaxClaimants int    `json:"max_claimants"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	for _, t := range snap.Tasks {
		if err := t.Check(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is for tools that only want the tick; gob repeats it.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d, want %d", snap.Header.Version, Version)
	}
	for _, t := range snap.Tasks {
		if err := t.Check(); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
