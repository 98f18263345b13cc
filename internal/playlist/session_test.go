package playlist

import (
	"errors"
	"math"
	"testing"
	"time"

	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/scenario"
	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/tuning"
	"futdrill.ai/internal/sim/world"
)

type fakeWall struct{ t time.Time }

func (f *fakeWall) Now() time.Time { return f.t }

type sinks struct {
	results  []Result
	attempts []Attempt
}

func (s *sinks) PlaylistCompleted(r Result) { s.results = append(s.results, r) }
func (s *sinks) AttemptFinished(a Attempt)  { s.attempts = append(s.attempts, a) }

func testMap() *world.Map {
	center := geom.V(300, 150)
	seg := func(x1, y1, x2, y2 float64) geom.Segment {
		return geom.NewSegment(geom.V(x1, y1), geom.V(x2, y2), center, 0.5, true)
	}
	return &world.Map{
		Name: "box",
		Segments: []geom.Segment{
			seg(0, 0, 600, 0), seg(600, 0, 600, 300), seg(600, 300, 0, 300), seg(0, 300, 0, 0),
		},
		Spawns:    []world.SpawnPoint{{Team: world.TeamRed, Pos: geom.V(100, 150)}},
		BallSpawn: center,
	}
}

func withPlayer(sc *scenario.Scenario) *scenario.Scenario {
	sc.Map = testMap()
	sc.Setup = world.Setup{Players: []world.Spawn{{ID: "p1", Team: world.TeamRed}}}
	return sc
}

// instant completes on its first tick: the ball spawns inside the checkpoint.
func instant(name string) *scenario.Scenario {
	return withPlayer(&scenario.Scenario{
		Name:        name,
		Checkpoints: []scenario.Checkpoint{{Pos: geom.V(300, 150), Radius: 50}},
	})
}

// timesOut fails after half a second; there is no goal on the map.
func timesOut(name string) *scenario.Scenario {
	return withPlayer(&scenario.Scenario{
		Name:      name,
		TimeLimit: 0.5,
		Goal:      &scenario.Goal{Team: world.TeamRed},
	})
}

// endless survives for a long time.
func endless(name string) *scenario.Scenario {
	return withPlayer(&scenario.Scenario{
		Name:      name,
		TimeLimit: 1000,
		NoGoal:    &scenario.NoGoal{Team: world.TeamRed},
	})
}

func fastTuning() tuning.Tuning {
	tu := tuning.Defaults()
	tu.SuccessDelayMs = 100
	tu.FailDelayMs = 200
	return tu
}

func newSession(t *testing.T, sk *sinks, wall *fakeWall, scs ...*scenario.Scenario) *Session {
	t.Helper()
	s, err := New(Config{
		Playlist: &Playlist{Name: "drills", Scenarios: scs},
		Tuning:   fastTuning(),
		Results:  sk,
		Attempts: sk,
		Now:      wall.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.StartScenario(0); err != nil {
		t.Fatalf("StartScenario: %v", err)
	}
	return s
}

func drive(s *Session, wall *fakeWall, frames int) {
	for i := 0; i < frames; i++ {
		wall.t = wall.t.Add(time.Second / 60)
		s.Frame(1.0 / 60)
	}
}

func sumElapsed(as []Attempt) float64 {
	var total float64
	for _, a := range as {
		total += a.Elapsed
	}
	return total
}

func TestSessionAdvancesAndFinishes(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	s := newSession(t, sk, wall, instant("a"), instant("b"))

	drive(s, wall, 1)
	if !s.State().Completed[0] || !s.TransitionPending() {
		t.Fatalf("first scenario should be completed and waiting: %+v", s.State())
	}
	if len(sk.attempts) != 0 || s.State().TotalElapsed != 0 {
		t.Fatalf("elapsed folded before leaving the scenario")
	}
	drive(s, wall, 60)

	if len(sk.results) != 1 {
		t.Fatalf("results: %+v", sk.results)
	}
	st := s.State()
	if !st.Finished || st.CurrentIndex != 1 || s.Generation() != 2 {
		t.Fatalf("state: %+v gen=%d", st, s.Generation())
	}
	if len(sk.attempts) != 2 || sk.attempts[0].Outcome != "completed" || sk.attempts[1].Scenario != "b" {
		t.Fatalf("attempts: %+v", sk.attempts)
	}
	for _, a := range sk.attempts {
		if a.Elapsed < 0.1 {
			t.Fatalf("success delay not counted: %+v", a)
		}
	}
	if got, want := sk.results[0].TotalElapsed, sumElapsed(sk.attempts); got != want {
		t.Fatalf("total elapsed: got=%v want=%v", got, want)
	}

	drive(s, wall, 120)
	if len(sk.results) != 1 || len(sk.attempts) != 2 {
		t.Fatalf("finish reported again")
	}
}

func TestFailedScenarioRetriesSameIndex(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	s := newSession(t, sk, wall, timesOut("t"))

	drive(s, wall, 3*60)
	if len(sk.attempts) < 3 {
		t.Fatalf("expected several retries, got %d", len(sk.attempts))
	}
	for i, a := range sk.attempts {
		if a.Outcome != "failed" || a.Reason != scenario.ReasonTimeout || a.Index != 0 {
			t.Fatalf("attempt %d: %+v", i, a)
		}
		if a.Elapsed < 0.5+0.2 || a.Elapsed > 0.5+0.2+0.1 {
			t.Fatalf("attempt %d elapsed %v outside timeout+delay", i, a.Elapsed)
		}
		if a.Generation != uint64(i+1) {
			t.Fatalf("attempt %d generation %d", i, a.Generation)
		}
	}
	if got, want := s.State().TotalElapsed, sumElapsed(sk.attempts); got != want {
		t.Fatalf("total elapsed: got=%v want=%v", got, want)
	}
	if s.State().Completed[0] || len(sk.results) != 0 {
		t.Fatalf("failed scenario marked completed")
	}
}

func TestNavigationFoldsAndCancelsPendingRetry(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	s := newSession(t, sk, wall, timesOut("t"), endless("e"))

	drive(s, wall, 35)
	if !s.TransitionPending() {
		t.Fatalf("retry should be pending")
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if s.TransitionPending() {
		t.Fatalf("navigation must cancel the pending retry")
	}
	drive(s, wall, 120)
	if idx := s.State().CurrentIndex; idx != 1 || s.Generation() != 2 {
		t.Fatalf("stale retry fired: idx=%d gen=%d", idx, s.Generation())
	}
	if len(sk.attempts) != 1 || math.Abs(sk.attempts[0].Elapsed-35.0/60) > 1e-12 {
		t.Fatalf("attempts: %+v", sk.attempts)
	}

	if err := s.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	if s.State().CurrentIndex != 0 || len(sk.attempts) != 2 || sk.attempts[1].Outcome != OutcomeAbandoned {
		t.Fatalf("previous: %+v attempts=%+v", s.State(), sk.attempts)
	}
	if got, want := s.State().TotalElapsed, sumElapsed(sk.attempts); got != want {
		t.Fatalf("total elapsed: got=%v want=%v", got, want)
	}
}

func TestStartScenarioOutOfRangeIsNoop(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	s := newSession(t, sk, wall, endless("e"))
	w := s.World()
	for _, i := range []int{-1, 1, 99} {
		if err := s.StartScenario(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("index %d: got %v", i, err)
		}
	}
	if s.World() != w || s.Generation() != 1 || len(sk.attempts) != 0 {
		t.Fatalf("failed start changed the session")
	}
}

func TestStartScenarioBuildFailureKeepsAttempt(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	bad := endless("dup")
	bad.Setup.Players = append(bad.Setup.Players, world.Spawn{ID: "p1", Team: world.TeamRed})
	s := newSession(t, sk, wall, endless("e"), bad)
	drive(s, wall, 10)
	w := s.World()
	if err := s.StartScenario(1); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if s.World() != w || s.Generation() != 1 || s.State().CurrentIndex != 0 || len(sk.attempts) != 0 {
		t.Fatalf("failed start changed the session")
	}
	before := w.Tick()
	drive(s, wall, 10)
	if s.World().Tick() <= before {
		t.Fatalf("running attempt stopped at tick %d", before)
	}
}

func TestRestartResetsTotalsButNotClock(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	s := newSession(t, sk, wall, instant("a"), timesOut("t"))
	drive(s, wall, 90)
	before := s.Clock().Tick()
	if s.State().TotalElapsed == 0 || !s.State().Completed[0] {
		t.Fatalf("expected progress before restart: %+v", s.State())
	}
	if err := s.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	st := s.State()
	if st.TotalElapsed != 0 || st.TotalKicks != 0 || st.Completed[0] || st.CurrentIndex != 0 || st.Finished {
		t.Fatalf("restart state: %+v", st)
	}
	if s.Clock().Tick() != before {
		t.Fatalf("clock rewound")
	}
	if s.World().Tick() != before {
		t.Fatalf("world should start at the current tick")
	}
}

func TestDisableAutoProgress(t *testing.T) {
	sk := &sinks{}
	wall := &fakeWall{t: time.Unix(0, 0)}
	s, err := New(Config{
		Playlist:            &Playlist{Name: "p", Scenarios: []*scenario.Scenario{timesOut("t")}},
		Tuning:              fastTuning(),
		Attempts:            sk,
		Now:                 wall.Now,
		DisableAutoProgress: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.StartScenario(0); err != nil {
		t.Fatalf("StartScenario: %v", err)
	}
	drive(s, wall, 120)
	if s.Generation() != 1 || s.TransitionPending() || s.Evaluator().Status() != scenario.Failed {
		t.Fatalf("failure should wait for a manual action")
	}
}

func TestNewRejectsBadPlaylist(t *testing.T) {
	if _, err := New(Config{Playlist: &Playlist{Name: "x"}, Tuning: tuning.Defaults()}); !errors.Is(err, ErrEmptyPlaylist) {
		t.Fatalf("empty playlist: %v", err)
	}
	bad := withPlayer(&scenario.Scenario{Name: "never"})
	_, err := New(Config{Playlist: &Playlist{Name: "x", Scenarios: []*scenario.Scenario{bad}}, Tuning: tuning.Defaults()})
	if !errors.Is(err, scenario.ErrNoCompletion) {
		t.Fatalf("no completion: %v", err)
	}
}

func TestRecordedSessionReplays(t *testing.T) {
	dir := t.TempDir()
	rw := replay.NewWriter(dir)
	wall := &fakeWall{t: time.Unix(0, 0)}
	kicker := world.InputFunc(func(id string, tick uint64) world.Input {
		return world.Input{Right: true, Up: tick%20 < 4, Kick: tick%10 < 3, Charge: 0.5}
	})
	s, err := New(Config{
		Playlist: &Playlist{Name: "rec", Scenarios: []*scenario.Scenario{timesOut("t"), endless("e")}},
		Tuning:   fastTuning(),
		Inputs:   kicker,
		Recorder: rw,
		Now:      wall.Now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.StartScenario(0); err != nil {
		t.Fatalf("StartScenario: %v", err)
	}
	drive(s, wall, 100)
	if err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	drive(s, wall, 60)
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	names, err := replay.ListAttempts(dir)
	if err != nil || len(names) < 2 {
		t.Fatalf("attempts on disk: %v %v", names, err)
	}
	for _, name := range names {
		res, err := replay.Verify(dir, name, 0, 0)
		if err != nil {
			t.Fatalf("verify %s: %v", name, err)
		}
		if res.Checked == 0 {
			t.Fatalf("verify %s checked nothing", name)
		}
	}
}
