package world

import (
	"fmt"

	"futdrill.ai/internal/persistence/snapshot"
	"futdrill.ai/internal/sim/geom"
)

// ExportSnapshot must be called from the loop goroutine. The caller fills in
// the playlist fields of the header.
func (w *World) ExportSnapshot(h snapshot.Header) snapshot.SnapshotV1 {
	h.Version = snapshot.Version
	h.Generation = w.gen
	h.Tick = w.tick

	ents := make([]snapshot.EntityV1, 0, len(w.players))
	for _, p := range w.players {
		ents = append(ents, exportEntity(p))
	}
	touches := make(map[string]int, len(w.touches))
	for id, n := range w.touches {
		if n != 0 {
			touches[id] = n
		}
	}
	last := ""
	if w.hasToucher {
		last = w.lastToucher.ID
	}
	var inGoal []bool
	if w.InGoal() {
		inGoal = append(inGoal, w.inGoal...)
	}
	return snapshot.SnapshotV1{
		Header:      h,
		SimTime:     w.simTime,
		Tuning:      w.tuning,
		Map:         ExportMap(w.m),
		Entities:    ents,
		Ball:        exportEntity(w.ball),
		Touches:     touches,
		LastToucher: last,
		InGoal:      inGoal,
	}
}

// FromSnapshot rebuilds a world exactly as it was exported, ready for the
// tick after snap.Header.Tick.
func FromSnapshot(snap snapshot.SnapshotV1, l Listener) (*World, error) {
	if snap.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	m := ImportMap(snap.Map)
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := snap.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot tuning: %w", err)
	}
	w := newEmpty(Config{
		Map:        m,
		Tuning:     snap.Tuning,
		Generation: snap.Header.Generation,
		Listener:   l,
		Tick:       snap.Header.Tick,
		SimTime:    snap.SimTime,
	})
	for _, ev := range snap.Entities {
		if ev.ID == "" || ev.ID == BallID {
			return nil, fmt.Errorf("snapshot: invalid entity id %q", ev.ID)
		}
		if _, dup := w.byID[ev.ID]; dup {
			return nil, fmt.Errorf("snapshot: duplicate entity id %q", ev.ID)
		}
		w.addPlayer(importEntity(ev))
	}
	if snap.Ball.ID != BallID {
		return nil, fmt.Errorf("snapshot: ball has id %q", snap.Ball.ID)
	}
	w.setBall(importEntity(snap.Ball))
	for id, n := range snap.Touches {
		w.touches[id] = n
	}
	if snap.LastToucher != "" {
		if e, ok := w.byID[snap.LastToucher]; ok {
			w.lastToucher = e.toucher()
			w.hasToucher = true
		}
	}
	if len(snap.InGoal) != 0 {
		if len(snap.InGoal) != len(w.inGoal) {
			return nil, fmt.Errorf("snapshot: %d goal flags for %d goals", len(snap.InGoal), len(w.inGoal))
		}
		copy(w.inGoal, snap.InGoal)
	}
	return w, nil
}

func exportEntity(e *Entity) snapshot.EntityV1 {
	return snapshot.EntityV1{
		ID:              e.ID,
		Team:            string(e.Team),
		IsBot:           e.IsBot,
		Pos:             vec2(e.Body.Pos),
		Vel:             vec2(e.Body.Vel),
		Radius:          e.Body.Radius,
		Mass:            e.Body.Mass,
		Damping:         e.Body.Damping,
		KickCharge:      e.KickCharge,
		ChargingKick:    e.ChargingKick,
		KickedThisPress: e.KickedThisPress,
		Touching:        e.touching,
	}
}

func importEntity(ev snapshot.EntityV1) *Entity {
	pos := unvec2(ev.Pos)
	e := &Entity{
		ID:              ev.ID,
		Team:            Team(ev.Team),
		IsBot:           ev.IsBot,
		Body:            geom.NewCircle(pos, ev.Radius, ev.Mass, ev.Damping),
		PrevPos:         pos,
		KickCharge:      ev.KickCharge,
		ChargingKick:    ev.ChargingKick,
		KickedThisPress: ev.KickedThisPress,
		touching:        ev.Touching,
	}
	e.Body.Vel = unvec2(ev.Vel)
	return e
}

func ExportMap(m *Map) snapshot.MapV1 {
	out := snapshot.MapV1{Name: m.Name, BallSpawn: vec2(m.BallSpawn)}
	for _, s := range m.Segments {
		out.Segments = append(out.Segments, snapshot.SegmentV1{
			P1:              vec2(s.P1),
			P2:              vec2(s.P2),
			Normal:          vec2(s.Normal),
			Bounce:          s.Bounce,
			PlayerCollision: s.PlayerCollision,
		})
	}
	for _, d := range m.Disks {
		out.Disks = append(out.Disks, snapshot.DiskV1{Pos: vec2(d.Pos), Radius: d.Radius, Bounce: d.Bounce})
	}
	for _, g := range m.Goals {
		out.Goals = append(out.Goals, snapshot.GoalV1{Team: string(g.Team), Min: vec2(g.Min), Max: vec2(g.Max)})
	}
	for _, sp := range m.Spawns {
		out.Spawns = append(out.Spawns, snapshot.SpawnV1{Team: string(sp.Team), Pos: vec2(sp.Pos)})
	}
	return out
}

// ImportMap keeps the stored normals as-is so a replayed world resolves
// collisions with the same bits.
func ImportMap(in snapshot.MapV1) *Map {
	m := &Map{Name: in.Name, BallSpawn: unvec2(in.BallSpawn)}
	for _, s := range in.Segments {
		m.Segments = append(m.Segments, geom.Segment{
			P1:              unvec2(s.P1),
			P2:              unvec2(s.P2),
			Normal:          unvec2(s.Normal),
			Bounce:          s.Bounce,
			PlayerCollision: s.PlayerCollision,
		})
	}
	for _, d := range in.Disks {
		m.Disks = append(m.Disks, geom.StaticDisk{Pos: unvec2(d.Pos), Radius: d.Radius, Bounce: d.Bounce})
	}
	for _, g := range in.Goals {
		m.Goals = append(m.Goals, GoalZone{Team: Team(g.Team), Min: unvec2(g.Min), Max: unvec2(g.Max)})
	}
	for _, sp := range in.Spawns {
		m.Spawns = append(m.Spawns, SpawnPoint{Team: Team(sp.Team), Pos: unvec2(sp.Pos)})
	}
	return m
}

func vec2(v geom.Vec2) [2]float64   { return [2]float64{v.X, v.Y} }
func unvec2(a [2]float64) geom.Vec2 { return geom.Vec2{X: a[0], Y: a[1]} }
