package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelhaul.ai/internal/persistence/snapshot"
	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/tuning"
	"voxelhaul.ai/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable index of task outcomes and haul
// audits. Writes are queued to one goroutine and batched into transactions;
// the JSONL logs stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
)

type req struct {
	kind  reqKind
	world string

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick         uint64
	Path         string
	Stacks       int
	Agents       int
	Tasks        int
	Reservations int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS task_results (
			world TEXT NOT NULL,
			task_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT,
			started_tick INTEGER NOT NULL,
			ended_tick INTEGER NOT NULL,
			things_hauled INTEGER NOT NULL,
			PRIMARY KEY (world, task_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_outcome ON task_results(outcome, reason);`,
		`CREATE INDEX IF NOT EXISTS idx_results_agent ON task_results(agent_id, ended_tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			world TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			task_id TEXT,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			stack_id TEXT,
			item TEXT,
			count INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (world, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_task ON audits(task_id, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_stack ON audits(stack_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			world TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			stacks INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			tasks INTEGER NOT NULL,
			reservations INTEGER NOT NULL,
			PRIMARY KEY (world, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
		if n := s.dropped.Load(); n > 0 {
			log.Printf("indexdb: %d writes dropped while the indexer was behind", n)
		}
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		s.dropped.Add(1)
	}
}

// ForWorld returns the tick and audit sinks for one world sharing this index.
func (s *SQLiteIndex) ForWorld(worldID string) WorldIndex {
	return WorldIndex{s: s, world: worldID}
}

// WorldIndex tags every row with its world id.
type WorldIndex struct {
	s     *SQLiteIndex
	world string
}

func (w WorldIndex) WriteTick(entry world.TickLogEntry) error {
	if len(entry.Ended) > 0 {
		w.s.enqueue(req{kind: reqTick, world: w.world, tick: entry})
	}
	return nil
}

func (w WorldIndex) WriteAudit(entry world.AuditEntry) error {
	w.s.enqueue(req{kind: reqAudit, world: w.world, audit: entry})
	return nil
}

func (w WorldIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	w.s.enqueue(req{kind: reqSnapshot, world: w.world, snapshot: snapshotRow{
		Tick:         snap.Header.Tick,
		Path:         path,
		Stacks:       len(snap.Stacks),
		Agents:       len(snap.Agents),
		Tasks:        len(snap.Tasks),
		Reservations: len(snap.Reservations),
	}})
}

// UpsertCatalogs stores the catalogs and tuning a run used, keyed by digest.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
		rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "items_palette", digest: cats.Items.PaletteDigest, json: b})
	}
	if b, err := os.ReadFile(filepath.Join(configDir, "recipes.json")); err == nil {
		rows = append(rows, kv{name: "recipes", digest: cats.Recipes.Digest, json: b})
	}
	if b, err := json.Marshal(tune); err == nil {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertResult, _ := s.db.Prepare(`INSERT OR REPLACE INTO task_results(world,task_id,kind,agent_id,outcome,reason,started_tick,ended_tick,things_hauled) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(world,tick,seq,task_id,actor,action,stack_id,item,count,x,y,z,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(world,tick,path,stacks,agents,tasks,reservations) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertResult, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)
	// Audit rows are numbered per world and tick in arrival order.
	lastTick := map[string]uint64{}
	nextSeq := map[string]int{}

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			log.Printf("indexdb: commit: %v", err)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		log.Printf("indexdb: %v", err)
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			if insertResult == nil {
				break
			}
			for _, res := range r.tick.Ended {
				if _, err := tx.Stmt(insertResult).Exec(
					r.world,
					res.TaskID,
					string(res.Kind),
					res.AgentID,
					string(res.Outcome),
					res.Reason,
					int64(res.StartedTick),
					int64(res.EndedTick),
					res.ThingsHauled,
				); err != nil {
					rollback(fmt.Errorf("result %s: %w", res.TaskID, err))
					break
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if t, ok := lastTick[r.world]; !ok || t != a.Tick {
				lastTick[r.world] = a.Tick
				nextSeq[r.world] = 0
			}
			seq := nextSeq[r.world]
			nextSeq[r.world]++
			if insertAudit == nil {
				break
			}
			raw, _ := json.Marshal(a)
			if _, err := tx.Stmt(insertAudit).Exec(
				r.world,
				int64(a.Tick),
				seq,
				a.TaskID,
				a.Actor,
				a.Action,
				a.StackID,
				a.Item,
				a.Count,
				a.Pos[0], a.Pos[1], a.Pos[2],
				a.Reason,
				string(raw),
			); err != nil {
				rollback(fmt.Errorf("audit %d/%d: %w", a.Tick, seq, err))
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot == nil {
				break
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(
				r.world,
				int64(sn.Tick),
				sn.Path,
				sn.Stacks,
				sn.Agents,
				sn.Tasks,
				sn.Reservations,
			); err != nil {
				rollback(fmt.Errorf("snapshot %s: %w", sn.Path, err))
				continue
			}
			opCount++
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
