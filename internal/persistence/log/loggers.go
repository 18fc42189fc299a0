package log

import (
	"path/filepath"

	"voxelhaul.ai/internal/sim/world"
)

// TickLogger records ticks on which tasks were assigned or ended.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger records every pick, stow, place, drop and task boundary.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
func (l *AuditLogger) Lines() int64                        { return l.w.Lines() }

// ReadAudit replays every audit entry under worldDir in file order.
func ReadAudit(worldDir string, fn func(world.AuditEntry) error) error {
	dir := filepath.Join(worldDir, "audit")
	paths, err := Files(dir, "audit")
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := ReadJSONL(p, fn); err != nil {
			return err
		}
	}
	return nil
}
