package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/scenario"
	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/tuning"
	"futdrill.ai/internal/sim/world"
)

type collect struct{ results []playlist.Result }

func (c *collect) PlaylistCompleted(r playlist.Result) { c.results = append(c.results, r) }

// checkpointDrill completes on its first tick: the ball spawns inside the
// checkpoint.
func checkpointDrill(name string) *scenario.Scenario {
	center := geom.V(300, 150)
	seg := func(x1, y1, x2, y2 float64) geom.Segment {
		return geom.NewSegment(geom.V(x1, y1), geom.V(x2, y2), center, 0.5, true)
	}
	return &scenario.Scenario{
		Name: name,
		Map: &world.Map{
			Name:      "box",
			Segments:  []geom.Segment{seg(0, 0, 600, 0), seg(600, 0, 600, 300), seg(600, 300, 0, 300), seg(0, 300, 0, 0)},
			Spawns:    []world.SpawnPoint{{Team: world.TeamRed, Pos: geom.V(100, 150)}},
			BallSpawn: center,
		},
		Setup:       world.Setup{Players: []world.Spawn{{ID: "p1", Team: world.TeamRed}}},
		Checkpoints: []scenario.Checkpoint{{Pos: center, Radius: 50}},
	}
}

func TestFinishedRunIsArchivedAndReplays(t *testing.T) {
	dir := t.TempDir()
	replayDir := filepath.Join(dir, "replays")
	root := filepath.Join(dir, "archives")

	rw := replay.NewWriter(replayDir)
	arch := NewRunArchive(replayDir, root, nil)
	arch.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	res := &collect{}

	wall := time.Unix(0, 0)
	tu := tuning.Defaults()
	tu.SuccessDelayMs = 100
	sess, err := playlist.New(playlist.Config{
		Playlist: &playlist.Playlist{Name: "arch", Scenarios: []*scenario.Scenario{checkpointDrill("um"), checkpointDrill("dois")}},
		Tuning:   tu,
		Results:  playlist.Sinks{arch, res},
		Attempts: playlist.Sinks{arch},
		Recorder: rw,
		Now:      func() time.Time { return wall },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sess.StartScenario(0); err != nil {
		t.Fatalf("StartScenario: %v", err)
	}
	for i := 0; i < 60 && len(res.results) == 0; i++ {
		wall = wall.Add(time.Second / 60)
		sess.Frame(1.0 / 60)
	}
	if len(res.results) != 1 {
		t.Fatalf("playlist did not finish")
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	runs, err := ListRuns(root)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs=%d", len(runs))
	}
	run := runs[0]
	if run.Run != 1 || run.Playlist != "arch" || len(run.Attempts) != 2 || run.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("meta: %+v", run)
	}
	if run.TotalElapsed != res.results[0].TotalElapsed {
		t.Fatalf("elapsed: %v vs %v", run.TotalElapsed, res.results[0].TotalElapsed)
	}

	runDir := filepath.Join(root, "run_001")
	for _, stem := range run.Attempts {
		v, err := replay.Verify(runDir, stem, 0, 0)
		if err != nil {
			t.Fatalf("verify %s: %v", stem, err)
		}
		if v.Checked == 0 {
			t.Fatalf("verify %s checked nothing", stem)
		}
	}
}

func TestArchiveNumbersRunsAndFailsOnMissingReplay(t *testing.T) {
	dir := t.TempDir()
	replayDir := filepath.Join(dir, "replays")
	root := filepath.Join(dir, "archives")
	if err := os.MkdirAll(replayDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	stem := replay.Stem(3, "Passe")
	for _, suffix := range []string{replay.SnapshotSuffix, replay.TicksSuffix} {
		if err := os.WriteFile(filepath.Join(replayDir, stem+suffix), []byte("dummy"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	a := NewRunArchive(replayDir, root, nil)
	r := playlist.Result{PlaylistName: "p", TotalElapsed: 4.5, TotalKicks: 2}
	for want := 1; want <= 2; want++ {
		out, err := a.Archive(r, []string{stem})
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
		if filepath.Base(out) != []string{"", "run_001", "run_002"}[want] {
			t.Fatalf("run dir=%s", out)
		}
		got, err := os.ReadFile(filepath.Join(out, stem+replay.TicksSuffix))
		if err != nil || string(got) != "dummy" {
			t.Fatalf("copied file: %q %v", got, err)
		}
	}

	if _, err := a.Archive(r, []string{replay.Stem(9, "missing")}); err == nil {
		t.Fatalf("expected error for a missing replay")
	}
	runs, err := ListRuns(root)
	if err != nil || len(runs) != 2 {
		t.Fatalf("ListRuns: %d %v", len(runs), err)
	}
}

func TestListRunsMissingRoot(t *testing.T) {
	runs, err := ListRuns(filepath.Join(t.TempDir(), "nope"))
	if err != nil || runs != nil {
		t.Fatalf("ListRuns: %v %v", runs, err)
	}
}
