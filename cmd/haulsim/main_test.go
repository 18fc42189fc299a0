package main

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"voxelhaul.ai/internal/sim/world"
)

var (
	errFirst  = errors.New("first sink down")
	errSecond = errors.New("second sink down")
)

type failingSink struct {
	err   error
	ticks int
	lines int
}

func (s *failingSink) WriteTick(world.TickLogEntry) error {
	s.ticks++
	return s.err
}

func (s *failingSink) WriteAudit(world.AuditEntry) error {
	s.lines++
	return s.err
}

func TestMultiLoggersReportBothFailures(t *testing.T) {
	a := &failingSink{err: errFirst}
	b := &failingSink{err: errSecond}

	err := multiTickLogger{a: a, b: b}.WriteTick(world.TickLogEntry{Tick: 1})
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Fatalf("tick err = %v", err)
	}
	err = multiAuditLogger{a: a, b: b}.WriteAudit(world.AuditEntry{Tick: 1})
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Fatalf("audit err = %v", err)
	}
	if a.ticks != 1 || b.ticks != 1 || a.lines != 1 || b.lines != 1 {
		t.Fatalf("a sink was skipped: a=%+v b=%+v", a, b)
	}
}

func TestMultiLoggersTolerateMissingSink(t *testing.T) {
	ok := &failingSink{}
	if err := (multiTickLogger{a: ok}).WriteTick(world.TickLogEntry{}); err != nil {
		t.Fatalf("tick err = %v", err)
	}
	bad := &failingSink{err: errSecond}
	if err := (multiAuditLogger{b: bad}).WriteAudit(world.AuditEntry{}); !errors.Is(err, errSecond) {
		t.Fatalf("audit err = %v", err)
	}
}

func TestScenarioPathsSortsAndSkipsBlanks(t *testing.T) {
	dir := t.TempDir()
	got, err := scenarioPaths(" b.yaml, ,a.yaml," + filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if want := []string{"a.yaml", "b.yaml"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
}
