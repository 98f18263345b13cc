package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/scenario"
)

type RunMeta struct {
	Run          int      `json:"run"`
	Playlist     string   `json:"playlist"`
	TotalElapsed float64  `json:"total_elapsed"`
	TotalKicks   int      `json:"total_kicks"`
	Attempts     []string `json:"attempts"`
	CreatedAt    string   `json:"created_at"`
}

// RunArchive keeps the replays of every finished playlist run. It remembers
// the last completed attempt per scenario and, when the playlist finishes,
// copies those attempts from replayDir into root/run_<NNN>/.
type RunArchive struct {
	replayDir string
	root      string
	log       *log.Logger
	now       func() time.Time

	// OnArchived is called with each new run directory.
	OnArchived func(dir string)

	mu        sync.Mutex
	completed map[int]string
}

func NewRunArchive(replayDir, root string, logger *log.Logger) *RunArchive {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &RunArchive{
		replayDir: replayDir,
		root:      root,
		log:       logger,
		now:       time.Now,
		completed: map[int]string{},
	}
}

func (a *RunArchive) AttemptFinished(at playlist.Attempt) {
	if at.Outcome != scenario.Completed.String() {
		return
	}
	a.mu.Lock()
	a.completed[at.Index] = replay.Stem(at.Generation, at.Scenario)
	a.mu.Unlock()
}

func (a *RunArchive) PlaylistCompleted(r playlist.Result) {
	a.mu.Lock()
	stems := make([]string, 0, len(a.completed))
	idx := make([]int, 0, len(a.completed))
	for i := range a.completed {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		stems = append(stems, a.completed[i])
	}
	a.completed = map[int]string{}
	a.mu.Unlock()

	dir, err := a.Archive(r, stems)
	if err != nil {
		a.log.Printf("archive run: %v", err)
		return
	}
	a.log.Printf("archived %d attempts to %s", len(stems), dir)
	if a.OnArchived != nil {
		a.OnArchived(dir)
	}
}

// Archive copies the snapshot and tick log of each stem into a fresh run
// directory and writes meta.json next to them.
func (a *RunArchive) Archive(r playlist.Result, stems []string) (string, error) {
	run, err := nextRun(a.root)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(a.root, fmt.Sprintf("run_%03d", run))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, stem := range stems {
		for _, suffix := range []string{replay.SnapshotSuffix, replay.TicksSuffix} {
			if err := copyFile(filepath.Join(a.replayDir, stem+suffix), filepath.Join(dir, stem+suffix)); err != nil {
				return "", fmt.Errorf("%s: %w", stem, err)
			}
		}
	}

	meta := RunMeta{
		Run:          run,
		Playlist:     r.PlaylistName,
		TotalElapsed: r.TotalElapsed,
		TotalKicks:   r.TotalKicks,
		Attempts:     stems,
		CreatedAt:    a.now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

// ListRuns returns the archived runs under root, oldest first.
func ListRuns(root string) ([]RunMeta, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []RunMeta
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "run_") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(root, e.Name(), "meta.json"))
		if err != nil {
			continue
		}
		var m RunMeta
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Run < out[j].Run })
	return out, nil
}

func nextRun(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	last := 0
	for _, e := range entries {
		var n int
		if _, err := fmt.Sscanf(e.Name(), "run_%d", &n); err == nil && n > last {
			last = n
		}
	}
	return last + 1, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
