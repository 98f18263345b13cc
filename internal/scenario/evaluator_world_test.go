package scenario

import (
	"testing"

	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/tuning"
	"futdrill.ai/internal/sim/world"
)

// Drives a real world with the evaluator as its listener.
func TestGoalAfterIgnoredWarmupGoalCompletes(t *testing.T) {
	h := newHarness(t, &Scenario{Name: "late-goal", Goal: &Goal{Team: world.TeamRed}})
	m := &world.Map{
		Name:      "net",
		Goals:     []world.GoalZone{{Team: world.TeamBlue, Min: geom.V(760, 150), Max: geom.V(800, 250)}},
		BallSpawn: geom.V(780, 200),
	}
	w, err := world.New(world.Config{Map: m, Tuning: tuning.Defaults(), Generation: gen, Listener: h.ev}, world.Setup{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	place := func(x, y float64) {
		b := w.Ball()
		b.Body.Pos = geom.V(x, y)
		b.Body.Vel = geom.Vec2{}
		b.PrevPos = b.Body.Pos
	}
	var tick uint64
	step := func(n int) {
		for i := 0; i < n; i++ {
			tick++
			now := float64(tick) / 60
			w.Step(nil, tick, now)
			h.ev.Tick(&w.Ball().Body, now)
		}
	}

	// The ball spawns in the net: that goal lands inside the warmup.
	step(1)
	h.expect(t, Running, "")
	if !w.InGoal() {
		t.Fatalf("ball should start in the net")
	}

	place(400, 200)
	step(60)
	h.expect(t, Running, "")

	place(780, 200)
	step(1)
	h.expect(t, Completed, "")
	if len(h.results) != 1 || h.results[0].Status != Completed {
		t.Fatalf("results: %+v", h.results)
	}
}
