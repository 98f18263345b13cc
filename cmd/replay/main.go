package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/persistence/snapshot"
)

func main() {
	var (
		dir      = flag.String("dir", "", "replay directory containing *.snap.zst and *.jsonl.zst")
		attempt  = flag.String("attempt", "", "attempt name (e.g. 00000003-Passe); empty verifies every attempt in -dir")
		list     = flag.Bool("list", false, "list attempts and exit")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if strings.TrimSpace(*dir) == "" {
		fmt.Fprintln(os.Stderr, "missing -dir")
		os.Exit(2)
	}

	names := []string{strings.TrimSuffix(*attempt, replay.SnapshotSuffix)}
	if *attempt == "" {
		var err error
		names, err = replay.ListAttempts(*dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list attempts:", err)
			os.Exit(1)
		}
		if len(names) == 0 {
			fmt.Fprintln(os.Stderr, "no attempts found in", *dir)
			os.Exit(1)
		}
	}

	if *list {
		for _, name := range names {
			snap, err := snapshot.ReadSnapshot(filepath.Join(*dir, name+replay.SnapshotSuffix))
			if err != nil {
				fmt.Fprintln(os.Stderr, "read snapshot:", err)
				os.Exit(1)
			}
			h := snap.Header
			fmt.Printf("%s playlist=%q scenario=%q index=%d gen=%d tick=%d map=%s bodies=%d\n",
				name, h.Playlist, h.Scenario, h.ScenarioIndex, h.Generation, h.Tick, snap.Map.Name, len(snap.Entities)+1)
		}
		return
	}

	failed := 0
	for _, name := range names {
		res, err := replay.Verify(*dir, name, *fromTick, *toTick)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: replay: %v\n", name, err)
			failed++
			continue
		}
		fmt.Printf("%s replay ok: scenario=%q checked=%d ticks (from snapshot tick=%d, last=%d)\n",
			name, res.Scenario, res.Checked, res.From, res.LastTick)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
