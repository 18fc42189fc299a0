package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"voxelhaul.ai/internal/persistence/redisres"
	"voxelhaul.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "snapshots":
			snapshotsCmd(os.Args[2:])
			return
		case "reservations":
			reservationsCmd(os.Args[2:])
			return
		case "release":
			releaseCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "worlds"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

func snapshotsCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	paths, err := filepath.Glob(filepath.Join(*dataDir, "worlds", *worldID, "snapshots", "*.snap.zst"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "glob:", err)
		os.Exit(1)
	}
	type row struct {
		Path string          `json:"path"`
		Head snapshot.Header `json:"header"`
	}
	var rows []row
	for _, p := range paths {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			continue
		}
		rows = append(rows, row{Path: p, Head: h})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Head.Tick < rows[j].Head.Tick })
	printJSON(rows)
}

// reservationsCmd dumps claims from a snapshot file or a live redis store.
func reservationsCmd(args []string) {
	fs := flag.NewFlagSet("reservations", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "snapshot path")
	redisAddr := fs.String("redis", "", "redis addr")
	prefix := fs.String("redis_prefix", "voxelhaul", "redis key prefix (haulsim uses <prefix>:<scenario>)")
	_ = fs.Parse(args)

	switch {
	case *snapPath != "":
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		printJSON(snap.Reservations)
	case *redisAddr != "":
		s, err := redisres.Dial(context.Background(), redisres.Options{Addr: *redisAddr, Prefix: *prefix})
		if err != nil {
			fmt.Fprintln(os.Stderr, "redis:", err)
			os.Exit(1)
		}
		defer s.Close()
		printJSON(s.All())
	default:
		fmt.Fprintln(os.Stderr, "missing -snapshot or -redis")
		os.Exit(2)
	}
}

// releaseCmd clears every claim an agent holds in a redis store, for agents
// that died without running their task cleanup.
func releaseCmd(args []string) {
	fs := flag.NewFlagSet("release", flag.ExitOnError)
	redisAddr := fs.String("redis", "", "redis addr")
	prefix := fs.String("redis_prefix", "voxelhaul", "redis key prefix")
	agentID := fs.String("agent", "", "claimant agent id")
	_ = fs.Parse(args)

	if *redisAddr == "" || *agentID == "" {
		fmt.Fprintln(os.Stderr, "missing -redis or -agent")
		os.Exit(2)
	}
	s, err := redisres.Dial(context.Background(), redisres.Options{Addr: *redisAddr, Prefix: *prefix})
	if err != nil {
		fmt.Fprintln(os.Stderr, "redis:", err)
		os.Exit(1)
	}
	defer s.Close()
	before := len(s.All())
	s.ReleaseAll(*agentID)
	fmt.Printf("released claims of %s: %d -> %d reservations\n", *agentID, before, len(s.All()))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "encode:", err)
		os.Exit(1)
	}
}
