package catalogs

import (
	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/world"
)

type vec [2]float64

func (v vec) geom() geom.Vec2 { return geom.V(v[0], v[1]) }

func optVec(v *vec) *geom.Vec2 {
	if v == nil {
		return nil
	}
	g := v.geom()
	return &g
}

const defaultBounce = 0.5

// MapFile is the YAML layout of configs/maps/*.yaml.
type MapFile struct {
	Name string `yaml:"name"`
	// Any point inside the pitch. Segment normals are oriented toward it
	// unless the segment has its own.
	Inside    vec           `yaml:"inside"`
	Segments  []SegmentFile `yaml:"segments"`
	Disks     []DiskFile    `yaml:"disks"`
	Goals     []GoalFile    `yaml:"goals"`
	Spawns    []SpawnFile   `yaml:"spawns"`
	BallSpawn vec           `yaml:"ball_spawn"`
}

type SegmentFile struct {
	From            vec      `yaml:"from"`
	To              vec      `yaml:"to"`
	Inside          *vec     `yaml:"inside"`
	Bounce          *float64 `yaml:"bounce"`
	PlayerCollision bool     `yaml:"player_collision"`
}

type DiskFile struct {
	Pos    vec      `yaml:"pos"`
	Radius float64  `yaml:"radius"`
	Bounce *float64 `yaml:"bounce"`
}

type GoalFile struct {
	Team string `yaml:"team"`
	Min  vec    `yaml:"min"`
	Max  vec    `yaml:"max"`
}

type SpawnFile struct {
	Team string `yaml:"team"`
	Pos  vec    `yaml:"pos"`
}

func bounceOr(b *float64) float64 {
	if b == nil {
		return defaultBounce
	}
	return *b
}

// Build converts the file into a validated world map.
func (f MapFile) Build() (*world.Map, error) {
	m := &world.Map{Name: f.Name, BallSpawn: f.BallSpawn.geom()}
	for _, s := range f.Segments {
		inside := f.Inside.geom()
		if s.Inside != nil {
			inside = s.Inside.geom()
		}
		m.Segments = append(m.Segments, geom.NewSegment(s.From.geom(), s.To.geom(), inside, bounceOr(s.Bounce), s.PlayerCollision))
	}
	for _, d := range f.Disks {
		m.Disks = append(m.Disks, geom.StaticDisk{Pos: d.Pos.geom(), Radius: d.Radius, Bounce: bounceOr(d.Bounce)})
	}
	for _, g := range f.Goals {
		m.Goals = append(m.Goals, world.GoalZone{Team: world.Team(g.Team), Min: g.Min.geom(), Max: g.Max.geom()})
	}
	for _, sp := range f.Spawns {
		m.Spawns = append(m.Spawns, world.SpawnPoint{Team: world.Team(sp.Team), Pos: sp.Pos.geom()})
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
