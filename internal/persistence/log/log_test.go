package log

import (
	"testing"
	"time"

	"voxelhaul.ai/internal/sim/world"
)

func TestAuditLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	want := []world.AuditEntry{
		{Tick: 1, TaskID: "T_1", Actor: "A1", Action: "PICK", StackID: "S1", Item: "WOOD", Count: 30, Pos: [3]int{3, 0, 0}},
		{Tick: 7, TaskID: "T_1", Actor: "A1", Action: "PLACE", StackID: "S1", Item: "WOOD", Count: 30, Pos: [3]int{8, 0, 0}},
	}
	for _, e := range want {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if l.Lines() != 2 {
		t.Fatalf("lines = %d", l.Lines())
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got []world.AuditEntry
	if err := ReadAudit(dir, func(e world.AuditEntry) error {
		got = append(got, e)
		return nil
	}); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"tick": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"tick": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "ticks")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v", files)
	}
	n := 0
	for _, f := range files {
		if err := ReadJSONL(f, func(map[string]int) error { n++; return nil }); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if n != 2 {
		t.Fatalf("read %d lines, want 2", n)
	}
}
