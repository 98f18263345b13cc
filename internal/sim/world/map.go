package world

import (
	"errors"
	"fmt"

	"futdrill.ai/internal/sim/geom"
)

var ErrInvalidMap = errors.New("invalid map")

// GoalZone is the net area belonging to Team. The ball center entering it is
// a goal conceded by Team.
type GoalZone struct {
	Team Team
	Min  geom.Vec2
	Max  geom.Vec2
}

func (g GoalZone) Contains(p geom.Vec2) bool {
	return p.X >= g.Min.X && p.X <= g.Max.X && p.Y >= g.Min.Y && p.Y <= g.Max.Y
}

type SpawnPoint struct {
	Team Team
	Pos  geom.Vec2
}

// Map is immutable once a world is built from it.
type Map struct {
	Name      string
	Segments  []geom.Segment
	Disks     []geom.StaticDisk
	Goals     []GoalZone
	Spawns    []SpawnPoint
	BallSpawn geom.Vec2
}

func (m *Map) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil map", ErrInvalidMap)
	}
	for i, s := range m.Segments {
		if s.Degenerate() {
			return fmt.Errorf("%w: %s: segment %d has zero length", ErrInvalidMap, m.Name, i)
		}
		if !s.P1.Finite() || !s.P2.Finite() {
			return fmt.Errorf("%w: %s: segment %d is not finite", ErrInvalidMap, m.Name, i)
		}
		if s.Bounce < 0 || s.Bounce > 1 {
			return fmt.Errorf("%w: %s: segment %d bounce out of [0,1]", ErrInvalidMap, m.Name, i)
		}
	}
	for i, d := range m.Disks {
		if !(d.Radius > 0) {
			return fmt.Errorf("%w: %s: disk %d radius must be positive", ErrInvalidMap, m.Name, i)
		}
	}
	for i, g := range m.Goals {
		if g.Team != TeamRed && g.Team != TeamBlue {
			return fmt.Errorf("%w: %s: goal %d has team %q", ErrInvalidMap, m.Name, i, g.Team)
		}
		if g.Min.X > g.Max.X || g.Min.Y > g.Max.Y {
			return fmt.Errorf("%w: %s: goal %d has min > max", ErrInvalidMap, m.Name, i)
		}
	}
	for i, sp := range m.Spawns {
		if !sp.Team.Valid() {
			return fmt.Errorf("%w: %s: spawn %d has team %q", ErrInvalidMap, m.Name, i, sp.Team)
		}
	}
	return nil
}

func (m *Map) spawnsFor(team Team) []geom.Vec2 {
	var out []geom.Vec2
	for _, sp := range m.Spawns {
		if sp.Team == team {
			out = append(out, sp.Pos)
		}
	}
	return out
}
