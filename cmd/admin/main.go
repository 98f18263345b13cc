package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"futdrill.ai/internal/persistence/archive"
	"futdrill.ai/internal/persistence/replay"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "runs":
			runsCmd(os.Args[2:])
			return
		case "watch":
			watchCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin db|runs|state|watch [flags]")
	os.Exit(2)
}

func runsCmd(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	playlistName := fs.String("playlist", "basics", "playlist name")
	_ = fs.Parse(args)

	root := filepath.Join(*dataDir, "archives", replay.SanitizeName(*playlistName))
	runs, err := archive.ListRuns(root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list runs:", err)
		os.Exit(1)
	}
	for _, r := range runs {
		printJSON(r)
	}
}
