package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"voxelhaul.ai/internal/persistence/indexdb"
	persistlog "voxelhaul.ai/internal/persistence/log"
	"voxelhaul.ai/internal/persistence/redisres"
	"voxelhaul.ai/internal/persistence/snapshot"
	"voxelhaul.ai/internal/sim/catalogs"
	"voxelhaul.ai/internal/sim/haul/reservation"
	"voxelhaul.ai/internal/sim/scenario"
	"voxelhaul.ai/internal/sim/tuning"
	"voxelhaul.ai/internal/sim/world"
)

type runConfig struct {
	DataDir     string
	MaxTicks    int
	RedisAddr   string
	RedisPrefix string
}

func main() { os.Exit(run()) }

// run returns the process exit code so deferred closes run before exit.
func run() int {
	var (
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		scenarios   = flag.String("scenarios", "./configs/scenarios/*.yaml", "scenario files: glob or comma separated list")
		parallel    = flag.Int("parallel", 4, "scenarios run at the same time")
		maxTicks    = flag.Int("max_ticks", 0, "tick limit per scenario (default: tuning max_ticks_per_run)")
		redisAddr   = flag.String("redis", "", "redis addr for a shared reservation store (optional)")
		redisPrefix = flag.String("redis_prefix", "voxelhaul", "redis key prefix")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[haulsim] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Printf("load catalogs: %v", err)
		return 1
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Printf("load tuning: %v", err)
		return 1
	}

	paths, err := scenarioPaths(*scenarios)
	if err != nil {
		logger.Printf("scenarios: %v", err)
		return 1
	}
	if len(paths) == 0 {
		logger.Printf("no scenario files match %q", *scenarios)
		return 1
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "haul.sqlite"))
		if err != nil {
			logger.Printf("open index: %v", err)
			return 1
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
	}

	rc := runConfig{
		DataDir:     *dataDir,
		MaxTicks:    *maxTicks,
		RedisAddr:   strings.TrimSpace(*redisAddr),
		RedisPrefix: *redisPrefix,
	}
	if rc.MaxTicks <= 0 {
		rc.MaxTicks = tune.MaxTicksPerRun
	}

	ctx, cancel := signalContext()
	defer cancel()

	reports := make([]scenario.Report, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for i, p := range paths {
		g.Go(func() error {
			r, err := runOne(gctx, rc, p, cats, tune, idx, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Printf("run: %v", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := false
	for _, r := range reports {
		counts := r.Counts()
		logger.Printf("%s: ticks=%d complete=%d incompletable=%d aborted=%d errored=%d pending=%d",
			r.Name, r.Ticks, counts["COMPLETE"], counts["INCOMPLETABLE"], counts["ABORTED"], counts["ERRORED"], r.Pending)
		if counts["ERRORED"] > 0 || r.Pending > 0 {
			failed = true
		}
		_ = enc.Encode(r)
	}
	if failed {
		return 1
	}
	return 0
}

func runOne(ctx context.Context, rc runConfig, path string, cats *catalogs.Catalogs, tune tuning.Tuning, idx *indexdb.SQLiteIndex, logger *log.Logger) (scenario.Report, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return scenario.Report{}, err
	}
	var svc reservation.Service
	if rc.RedisAddr != "" {
		rs, err := redisres.Dial(ctx, redisres.Options{Addr: rc.RedisAddr, Prefix: rc.RedisPrefix + ":" + sc.Name})
		if err != nil {
			return scenario.Report{}, err
		}
		defer rs.Close()
		svc = rs
	}
	w, ts, err := sc.Build(cats, tune, svc)
	if err != nil {
		return scenario.Report{}, err
	}

	worldDir := filepath.Join(rc.DataDir, "worlds", sc.Name)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return scenario.Report{}, err
	}
	tickLog := persistlog.NewTickLogger(worldDir)
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()

	var wi world.TickLogger
	var wa world.AuditLogger
	if idx != nil {
		fw := idx.ForWorld(sc.Name)
		wi, wa = fw, fw
	}
	w.SetTickLogger(multiTickLogger{a: tickLog, b: wi})
	w.SetAuditLogger(multiAuditLogger{a: auditLog, b: wa})

	maxTicks := rc.MaxTicks
	if sc.MaxTicks > 0 {
		maxTicks = sc.MaxTicks
	}
	logger.Printf("%s: %d tasks, %d ticks max", sc.Name, len(ts), maxTicks)
	r, runErr := scenario.Run(ctx, sc.Name, w, ts, maxTicks)

	snap := w.ExportSnapshot()
	snapPath := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(snapPath, snap); err != nil {
		logger.Printf("%s: snapshot write: %v", sc.Name, err)
	} else if idx != nil {
		idx.ForWorld(sc.Name).RecordSnapshot(snapPath, snap)
	}
	logger.Printf("%s: %d audit lines", sc.Name, auditLog.Lines())
	return r, runErr
}

func scenarioPaths(arg string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.ContainsAny(part, "*?[") {
			m, err := filepath.Glob(part)
			if err != nil {
				return nil, err
			}
			out = append(out, m...)
			continue
		}
		out = append(out, part)
	}
	sort.Strings(out)
	return out, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteTick(entry)
	}
	if m.b != nil {
		errB = m.b.WriteTick(entry)
	}
	return errors.Join(errA, errB)
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		errB = m.b.WriteAudit(entry)
	}
	return errors.Join(errA, errB)
}
