package replay

import (
	"strings"
	"testing"

	"futdrill.ai/internal/persistence/snapshot"
	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/tuning"
	"futdrill.ai/internal/sim/world"
)

func testWorld(t *testing.T, gen uint64) *world.World {
	t.Helper()
	center := geom.V(200, 100)
	m := &world.Map{
		Name: "box",
		Segments: []geom.Segment{
			geom.NewSegment(geom.V(0, 0), geom.V(400, 0), center, 0.5, true),
			geom.NewSegment(geom.V(400, 0), geom.V(400, 200), center, 0.5, true),
			geom.NewSegment(geom.V(400, 200), geom.V(0, 200), center, 0.5, true),
			geom.NewSegment(geom.V(0, 200), geom.V(0, 0), center, 0.5, true),
		},
		BallSpawn: geom.V(200, 100),
	}
	p := geom.V(170, 100)
	w, err := world.New(world.Config{Map: m, Tuning: tuning.Defaults(), Generation: gen, Tick: 100, SimTime: 100.0 / 60},
		world.Setup{Players: []world.Spawn{{ID: "p1", Team: world.TeamRed, Pos: &p}}})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func inputAt(tick uint64) world.Input {
	return world.Input{Right: tick%20 < 12, Up: tick%33 < 5, Kick: tick%15 < 2, Charge: 0.75}
}

// record drives w for n ticks through a Writer the way the session does.
func record(t *testing.T, dir string, w *world.World, n int) string {
	t.Helper()
	rw := NewWriter(dir)
	snap := w.ExportSnapshot(snapshot.Header{Playlist: "pl", Scenario: "drill one"})
	if err := rw.BeginScenario(snap); err != nil {
		t.Fatalf("BeginScenario: %v", err)
	}
	dt := w.Tuning().FixedDt()
	for i := 0; i < n; i++ {
		tick := w.Tick() + 1
		in := map[string]world.Input{"p1": inputAt(tick)}
		w.Step(world.StaticInputs(in), tick, float64(tick)*dt)
		if err := rw.RecordTick(TickEntry{Tick: tick, SimTime: w.SimTime(), Inputs: in, Digest: w.Digest()}); err != nil {
			t.Fatalf("RecordTick: %v", err)
		}
	}
	name := rw.Current()
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return name
}

func TestRecordThenVerify(t *testing.T) {
	dir := t.TempDir()
	name := record(t, dir, testWorld(t, 4), 240)
	if name != "00000004-drill_one" {
		t.Fatalf("attempt name: %q", name)
	}
	names, err := ListAttempts(dir)
	if err != nil || len(names) != 1 || names[0] != name {
		t.Fatalf("ListAttempts: %v %v", names, err)
	}
	res, err := Verify(dir, name, 0, 0)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Checked != 240 || res.From != 100 || res.LastTick != 340 || res.Scenario != "drill one" {
		t.Fatalf("verify result: %+v", res)
	}

	res, err = Verify(dir, name, 200, 300)
	if err != nil {
		t.Fatalf("Verify window: %v", err)
	}
	if res.Checked != 101 {
		t.Fatalf("window checked=%d", res.Checked)
	}
}

func TestVerifyDetectsTamperedInput(t *testing.T) {
	dir := t.TempDir()
	w := testWorld(t, 1)
	rw := NewWriter(dir)
	if err := rw.BeginScenario(w.ExportSnapshot(snapshot.Header{Scenario: "s"})); err != nil {
		t.Fatalf("BeginScenario: %v", err)
	}
	dt := w.Tuning().FixedDt()
	for i := 0; i < 30; i++ {
		tick := w.Tick() + 1
		used := map[string]world.Input{"p1": {Right: true}}
		w.Step(world.StaticInputs(used), tick, float64(tick)*dt)
		logged := used
		if tick == 120 {
			logged = map[string]world.Input{"p1": {Left: true}}
		}
		_ = rw.RecordTick(TickEntry{Tick: tick, SimTime: w.SimTime(), Inputs: logged, Digest: w.Digest()})
	}
	name := rw.Current()
	_ = rw.Close()

	_, err := Verify(dir, name, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 120") {
		t.Fatalf("expected mismatch at tick 120, got %v", err)
	}
}

func TestRecordTickBeforeBeginIsDropped(t *testing.T) {
	rw := NewWriter(t.TempDir())
	if err := rw.RecordTick(TickEntry{Tick: 1}); err != nil {
		t.Fatalf("RecordTick: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
