package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// Reader runs the admin queries against an index file.
type Reader struct {
	db *sql.DB
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA query_only=ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

type OutcomeCount struct {
	World   string `json:"world"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Tasks   int    `json:"tasks"`
}

// OutcomeCounts groups finished tasks by world, outcome and reason code.
func (r *Reader) OutcomeCounts(ctx context.Context) ([]OutcomeCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT world, outcome, COALESCE(reason,''), COUNT(*)
		FROM task_results GROUP BY world, outcome, reason ORDER BY world, outcome, reason`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.World, &c.Outcome, &c.Reason, &c.Tasks); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type TaskRow struct {
	World        string `json:"world"`
	TaskID       string `json:"task_id"`
	Kind         string `json:"kind"`
	AgentID      string `json:"agent_id"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason,omitempty"`
	StartedTick  int64  `json:"started_tick"`
	EndedTick    int64  `json:"ended_tick"`
	ThingsHauled int    `json:"things_hauled"`
}

// RecentFailures lists the latest tasks that did not complete, newest first.
func (r *Reader) RecentFailures(ctx context.Context, limit int) ([]TaskRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT world, task_id, kind, agent_id, outcome, COALESCE(reason,''), started_tick, ended_tick, things_hauled
		FROM task_results WHERE outcome <> 'COMPLETE' ORDER BY ended_tick DESC, task_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.World, &t.TaskID, &t.Kind, &t.AgentID, &t.Outcome, &t.Reason, &t.StartedTick, &t.EndedTick, &t.ThingsHauled); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type AuditRow struct {
	Tick    int64  `json:"tick"`
	Seq     int    `json:"seq"`
	Actor   string `json:"actor"`
	Action  string `json:"action"`
	StackID string `json:"stack_id,omitempty"`
	Item    string `json:"item,omitempty"`
	Count   int    `json:"count"`
	Pos     [3]int `json:"pos"`
	Reason  string `json:"reason,omitempty"`
}

// TaskAudits returns the audit trail of one task in order.
func (r *Reader) TaskAudits(ctx context.Context, taskID string) ([]AuditRow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tick, seq, actor, action, COALESCE(stack_id,''), COALESCE(item,''), count, x, y, z, COALESCE(reason,'')
		FROM audits WHERE task_id = ? ORDER BY tick, seq`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var a AuditRow
		if err := rows.Scan(&a.Tick, &a.Seq, &a.Actor, &a.Action, &a.StackID, &a.Item, &a.Count, &a.Pos[0], &a.Pos[1], &a.Pos[2], &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
