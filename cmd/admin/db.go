package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelhaul.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/haul.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	taskID := fs.String("task", "", "task id (audits)")
	_ = fs.Parse(args)

	q := "outcomes"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "haul.sqlite")
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()
	ctx := context.Background()

	switch q {
	case "outcomes":
		rows, err := r.OutcomeCounts(ctx)
		exitOn(err)
		printJSON(rows)
	case "failures":
		rows, err := r.RecentFailures(ctx, *limit)
		exitOn(err)
		printJSON(rows)
	case "audits":
		if strings.TrimSpace(*taskID) == "" {
			fmt.Fprintln(os.Stderr, "missing -task")
			os.Exit(2)
		}
		rows, err := r.TaskAudits(ctx, *taskID)
		exitOn(err)
		printJSON(rows)
	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (outcomes|failures|audits)\n", q)
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}
