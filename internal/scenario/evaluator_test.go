package scenario

import (
	"errors"
	"math"
	"strings"
	"testing"

	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/world"
)

const gen = 3

type harness struct {
	ev      *Evaluator
	results []Result
}

func newHarness(t *testing.T, sc *Scenario) *harness {
	t.Helper()
	h := &harness{}
	h.ev = NewEvaluator(sc, gen, 0, Options{GoalWarmup: DefaultGoalWarmup, OnDone: func(r Result) {
		h.results = append(h.results, r)
	}})
	return h
}

func ballAt(x, y float64) *geom.Circle {
	c := geom.NewCircle(geom.V(x, y), 10, 1, 0.99)
	return &c
}

func intp(v int) *int { return &v }

func player(id string, team world.Team) world.Toucher {
	return world.Toucher{ID: id, Team: team}
}

func bot(id string, team world.Team) world.Toucher {
	return world.Toucher{ID: id, Team: team, IsBot: true}
}

func kick(by world.Toucher, at float64) world.KickEvent {
	return world.KickEvent{Generation: gen, SimTime: at, By: by}
}

func goalInto(net world.Team, by world.Toucher, at float64) world.GoalEvent {
	return world.GoalEvent{Generation: gen, SimTime: at, Goal: net, Scorer: by, HasScorer: true}
}

func touch(by world.Toucher, at float64) world.TouchEvent {
	return world.TouchEvent{Generation: gen, SimTime: at, By: by}
}

// tickFor runs Tick from..to seconds at 60 Hz with the ball where pos says.
func (h *harness) tickFor(from, to float64, pos func(t float64) *geom.Circle) {
	for i := int(math.Round(from * 60)); i <= int(math.Round(to*60)); i++ {
		now := float64(i) / 60
		h.ev.Tick(pos(now), now)
	}
}

func (h *harness) expect(t *testing.T, status Status, reason string) {
	t.Helper()
	st := h.ev.State()
	if st.Status != status {
		t.Fatalf("status: got=%s want=%s (reason %q)", st.Status, status, st.FailureReason)
	}
	if reason != "" && !strings.Contains(st.FailureReason, reason) {
		t.Fatalf("reason: got=%q want %q", st.FailureReason, reason)
	}
}

func TestCheckpointThenGoalCompletes(t *testing.T) {
	sc := &Scenario{
		Name:        "cp-goal",
		TimeLimit:   10,
		Checkpoints: []Checkpoint{{Pos: geom.V(100, 100), Radius: 20, TimeLimit: 5}},
		Goal:        &Goal{Team: world.TeamBlue, ScoredBy: ScoredByPlayer},
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	h := newHarness(t, sc)

	// The ball approaches and crosses into the checkpoint radius at t=2s.
	h.tickFor(0, 3.9, func(now float64) *geom.Circle {
		if now < 2 {
			return ballAt(300, 100)
		}
		return ballAt(115, 100)
	})
	if h.ev.State().CheckpointIndex != 1 {
		t.Fatalf("checkpoint not consumed: %+v", h.ev.State())
	}
	h.expect(t, Running, "")

	// At t=4s a blue player puts the ball into the net blue attacks.
	h.ev.OnGoal(goalInto(world.TeamRed, player("p1", world.TeamBlue), 4))
	h.expect(t, Completed, "")
	if len(h.results) != 1 || h.results[0].SimTime != 4 || h.results[0].Generation != gen {
		t.Fatalf("results: %+v", h.results)
	}
	if !h.ev.State().GoalScored {
		t.Fatalf("goal not recorded")
	}
}

func TestFourthKickFailsAtThatTick(t *testing.T) {
	sc := &Scenario{
		Name:      "three-kicks",
		TimeLimit: 20,
		Goal:      &Goal{Team: world.TeamRed},
		KickCount: &KickCount{Max: intp(3)},
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	h := newHarness(t, sc)
	p := player("p1", world.TeamRed)
	for _, at := range []float64{0.2, 0.5, 0.8} {
		h.ev.OnKick(kick(p, at))
	}
	h.expect(t, Running, "")
	h.ev.OnKick(kick(p, 1))
	h.expect(t, Failed, "Chutes demais")
	if len(h.results) != 1 || h.results[0].SimTime != 1 || h.results[0].Kicks != 4 {
		t.Fatalf("results: %+v", h.results)
	}
}

func TestBotKicksAreNotCounted(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "k", Goal: &Goal{Team: world.TeamRed}, KickCount: &KickCount{Max: intp(1)}})
	for i := 0; i < 5; i++ {
		h.ev.OnKick(kick(bot("b1", world.TeamBlue), 0.5))
	}
	h.expect(t, Running, "")
	if h.ev.State().KickCount != 0 {
		t.Fatalf("bot kicks counted: %d", h.ev.State().KickCount)
	}
}

func TestKickCountMinCompletes(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "k", KickCount: &KickCount{Min: intp(2)}})
	p := player("p1", world.TeamRed)
	h.ev.OnKick(kick(p, 0.5))
	h.expect(t, Running, "")
	h.ev.OnKick(kick(p, 0.7))
	h.expect(t, Completed, "")
}

func TestCheckpointsVisitedInOrder(t *testing.T) {
	h := newHarness(t, &Scenario{
		Name: "order",
		Checkpoints: []Checkpoint{
			{Pos: geom.V(0, 0), Radius: 10},
			{Pos: geom.V(200, 0), Radius: 10},
		},
	})
	h.tickFor(0, 1, func(float64) *geom.Circle { return ballAt(200, 0) })
	if idx := h.ev.State().CheckpointIndex; idx != 0 {
		t.Fatalf("skipped ahead to %d", idx)
	}
	h.tickFor(1.1, 1.2, func(float64) *geom.Circle { return ballAt(0, 0) })
	if idx := h.ev.State().CheckpointIndex; idx != 1 {
		t.Fatalf("first checkpoint: idx=%d", idx)
	}
	h.expect(t, Running, "")
	h.tickFor(1.3, 1.4, func(float64) *geom.Circle { return ballAt(205, 0) })
	h.expect(t, Completed, "")
}

func TestCheckpointTimeLimitUsesItsOwnClock(t *testing.T) {
	h := newHarness(t, &Scenario{
		Name: "cp-clock",
		Checkpoints: []Checkpoint{
			{Pos: geom.V(0, 0), Radius: 10},
			{Pos: geom.V(500, 0), Radius: 10, TimeLimit: 1},
		},
	})
	h.tickFor(0, 3, func(float64) *geom.Circle { return ballAt(100, 0) })
	h.tickFor(3.1, 3.1, func(float64) *geom.Circle { return ballAt(0, 0) })
	h.expect(t, Running, "")
	// The second clock starts on the tick after the first checkpoint.
	h.tickFor(3.2, 4.1, func(float64) *geom.Circle { return ballAt(100, 0) })
	h.expect(t, Running, "")
	h.tickFor(4.2, 4.3, func(float64) *geom.Circle { return ballAt(100, 0) })
	h.expect(t, Failed, ReasonCheckpointTimeout)
}

func TestTerminalStateIsSticky(t *testing.T) {
	h := newHarness(t, &Scenario{
		Name:         "sticky",
		TimeLimit:    5,
		Goal:         &Goal{Team: world.TeamRed},
		KickCount:    &KickCount{Max: intp(0)},
		PreventTouch: &PreventTouch{ForbiddenIDs: []string{"b1"}},
	})
	p := player("p1", world.TeamRed)
	h.ev.OnKick(kick(p, 1))
	h.expect(t, Failed, ReasonTooManyKicks)
	before := h.ev.State()

	h.ev.OnKick(kick(p, 1.1))
	h.ev.OnBallTouch(touch(bot("b1", world.TeamBlue), 1.2))
	h.ev.OnGoal(goalInto(world.TeamBlue, p, 1.3))
	h.tickFor(1.4, 9, func(float64) *geom.Circle { return ballAt(0, 0) })

	if h.ev.State() != before {
		t.Fatalf("state changed after terminal: %+v -> %+v", before, h.ev.State())
	}
	if len(h.results) != 1 {
		t.Fatalf("done reported %d times", len(h.results))
	}
}

func TestStaleGenerationIgnored(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "stale", Goal: &Goal{Team: world.TeamRed}})
	ev := goalInto(world.TeamBlue, player("p1", world.TeamRed), 2)
	ev.Generation = gen - 1
	h.ev.OnGoal(ev)
	h.expect(t, Running, "")
	ev.Generation = gen
	h.ev.OnGoal(ev)
	h.expect(t, Completed, "")
}

func TestTimeoutFails(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "t", TimeLimit: 2, Goal: &Goal{Team: world.TeamRed}})
	h.tickFor(0, 2, func(float64) *geom.Circle { return ballAt(0, 0) })
	h.expect(t, Running, "")
	h.tickFor(2.1, 2.1, func(float64) *geom.Circle { return ballAt(0, 0) })
	h.expect(t, Failed, "Time esgotado")
}

func TestSurvivalTimeoutCompletes(t *testing.T) {
	sc := &Scenario{Name: "defend", TimeLimit: 2, NoGoal: &NoGoal{Team: world.TeamRed}}
	if err := sc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	h := newHarness(t, sc)
	h.tickFor(0, 2, func(float64) *geom.Circle { return ballAt(0, 0) })
	h.expect(t, Running, "")
	h.tickFor(2.1, 2.1, func(float64) *geom.Circle { return ballAt(0, 0) })
	h.expect(t, Completed, "")
}

func TestNoGoalCheckedBeforeGoal(t *testing.T) {
	h := newHarness(t, &Scenario{
		Name:   "both",
		Goal:   &Goal{Team: world.TeamBlue},
		NoGoal: &NoGoal{Team: world.TeamRed},
	})
	h.ev.OnGoal(goalInto(world.TeamRed, player("p1", world.TeamBlue), 1))
	h.expect(t, Failed, "Gol sofrido")
}

func TestGoalWarmupIgnoresEarlyGoals(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "warm", Goal: &Goal{Team: world.TeamRed}})
	h.ev.OnGoal(goalInto(world.TeamBlue, player("p1", world.TeamRed), 0.1))
	h.expect(t, Running, "")
	h.ev.OnGoal(goalInto(world.TeamBlue, player("p1", world.TeamRed), 0.3))
	h.expect(t, Completed, "")
}

func TestGoalForOtherTeamIgnored(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "own", Goal: &Goal{Team: world.TeamRed}})
	h.ev.OnGoal(goalInto(world.TeamRed, player("p1", world.TeamRed), 1))
	h.expect(t, Running, "")
}

func TestGoalAttribution(t *testing.T) {
	cases := []struct {
		name   string
		goal   Goal
		scorer world.Toucher
		status Status
		reason string
	}{
		{"player ok", Goal{Team: world.TeamRed, ScoredBy: ScoredByPlayer}, player("p1", world.TeamRed), Completed, ""},
		{"player got bot", Goal{Team: world.TeamRed, ScoredBy: ScoredByPlayer}, bot("b1", world.TeamRed), Failed, ReasonGoalNeedsPlayer},
		{"bot got player", Goal{Team: world.TeamRed, ScoredBy: ScoredByBot}, player("p1", world.TeamRed), Failed, ReasonGoalNeedsBot},
		{"bot wrong team", Goal{Team: world.TeamRed, ScoredBy: ScoredByBot}, bot("b2", world.TeamBlue), Failed, ReasonGoalNeedsBot},
		{"bot wrong id", Goal{Team: world.TeamRed, ScoredBy: ScoredByBot, ScoredByBotID: "b1"}, bot("b3", world.TeamRed), Failed, "pelo bot b1"},
		{"bot exact id", Goal{Team: world.TeamRed, ScoredBy: ScoredByBot, ScoredByBotID: "b1"}, bot("b1", world.TeamRed), Completed, ""},
		{"anyone", Goal{Team: world.TeamRed}, bot("b9", world.TeamBlue), Completed, ""},
	}
	for _, tc := range cases {
		g := tc.goal
		h := newHarness(t, &Scenario{Name: tc.name, Goal: &g})
		h.ev.OnGoal(goalInto(world.TeamBlue, tc.scorer, 1))
		if st := h.ev.State(); st.Status != tc.status || !strings.Contains(st.FailureReason, tc.reason) {
			t.Fatalf("%s: got %s %q", tc.name, st.Status, st.FailureReason)
		}
	}
}

func TestGoalWithoutScorerFailsAttribution(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "anon", Goal: &Goal{Team: world.TeamRed, ScoredBy: ScoredByPlayer}})
	h.ev.OnGoal(world.GoalEvent{Generation: gen, SimTime: 1, Goal: world.TeamBlue})
	h.expect(t, Failed, ReasonGoalNeedsPlayer)
}

func TestPathAdherence(t *testing.T) {
	h := newHarness(t, &Scenario{
		Name:      "path",
		Path:      &Path{Points: []geom.Vec2{geom.V(0, 0), geom.V(100, 0), geom.V(100, 100)}, Width: 20},
		BallTouch: &BallTouch{TargetID: "p1", RequiredTouches: 99},
	})
	// Tolerance is width/2 + radius/2 = 15.
	h.tickFor(0, 1, func(float64) *geom.Circle { return ballAt(50, 14) })
	h.tickFor(1.1, 1.2, func(float64) *geom.Circle { return ballAt(112, -8) })
	h.expect(t, Running, "")
	h.tickFor(1.3, 1.3, func(float64) *geom.Circle { return ballAt(50, 16) })
	h.expect(t, Failed, "Bola saiu do caminho")
}

func TestPreventTouch(t *testing.T) {
	h := newHarness(t, &Scenario{
		Name:         "avoid",
		Goal:         &Goal{Team: world.TeamRed},
		PreventTouch: &PreventTouch{ForbiddenIDs: []string{"b1"}},
	})
	h.ev.OnBallTouch(touch(player("p1", world.TeamRed), 0.5))
	h.expect(t, Running, "")
	h.ev.OnBallTouch(touch(bot("b1", world.TeamBlue), 0.6))
	h.expect(t, Failed, "Bola tocou em bot adversário")
}

func TestBallTouchCompletesAndDeadline(t *testing.T) {
	sc := &Scenario{Name: "touch", BallTouch: &BallTouch{TargetID: "b1", RequiredTouches: 2, TimeLimit: 3}}
	h := newHarness(t, sc)
	h.ev.OnBallTouch(touch(bot("b1", world.TeamRed), 0.5))
	h.ev.OnBallTouch(touch(player("p1", world.TeamRed), 0.6))
	h.expect(t, Running, "")
	h.ev.OnBallTouch(touch(bot("b1", world.TeamRed), 1))
	h.expect(t, Completed, "")

	h = newHarness(t, sc)
	h.ev.OnBallTouch(touch(bot("b1", world.TeamRed), 0.5))
	h.tickFor(0, 3.1, func(float64) *geom.Circle { return ballAt(0, 0) })
	h.expect(t, Failed, ReasonTouchDeadline)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		sc   Scenario
		want error
	}{
		{Scenario{Name: "empty"}, ErrNoCompletion},
		{Scenario{Name: "max only", KickCount: &KickCount{Max: intp(2)}}, ErrNoCompletion},
		{Scenario{Name: "survive forever", NoGoal: &NoGoal{Team: world.TeamRed}}, ErrNoCompletion},
		{Scenario{Name: "score into protected net", Goal: &Goal{Team: world.TeamBlue}, NoGoal: &NoGoal{Team: world.TeamRed}}, ErrNoCompletion},
		{Scenario{Name: "score and defend", Goal: &Goal{Team: world.TeamRed}, NoGoal: &NoGoal{Team: world.TeamRed}}, nil},
		{Scenario{Name: "flat path", Goal: &Goal{Team: world.TeamRed}, Path: &Path{Points: []geom.Vec2{geom.V(1, 1), geom.V(1, 1)}, Width: 5}}, ErrInvalidScenario},
		{Scenario{Name: "bot id", Goal: &Goal{Team: world.TeamRed, ScoredByBotID: "b1"}}, ErrInvalidScenario},
		{Scenario{Name: "bounds", KickCount: &KickCount{Min: intp(3), Max: intp(1)}}, ErrInvalidScenario},
		{Scenario{Name: "ok", Checkpoints: []Checkpoint{{Radius: 5}}}, nil},
	}
	for _, tc := range cases {
		err := tc.sc.Validate()
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.sc.Name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.sc.Name, err, tc.want)
		}
	}
}
