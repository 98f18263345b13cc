package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"futdrill.ai/internal/persistence/rankdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/rank/rank.sqlite)")
	playlistName := fs.String("playlist", "", "playlist filter (required for top and stats)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "top"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "rank", "rank.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	needPlaylist := func() {
		if strings.TrimSpace(*playlistName) == "" {
			fmt.Fprintf(os.Stderr, "%s: missing -playlist\n", q)
			os.Exit(2)
		}
	}

	switch q {
	case "top":
		needPlaylist()
		rows, err := rankdb.TopResults(ctx, db, *playlistName, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for i, r := range rows {
			fmt.Printf("%2d. %8.3fs  kicks=%-3d  %s\n", i+1, r.TotalElapsed, r.TotalKicks, r.RecordedAt)
		}
	case "attempts":
		rows, err := rankdb.RecentAttempts(ctx, db, *playlistName, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "stats":
		needPlaylist()
		rows, err := rankdb.ScenarioStats(ctx, db, *playlistName)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}
	case "catalogs":
		rows, err := db.QueryContext(ctx, `SELECT name, digest, updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var name, digest, updated string
			if err := rows.Scan(&name, &digest, &updated); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			fmt.Printf("%-10s %s %s\n", name, digest, updated)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want top|attempts|stats|catalogs)")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
