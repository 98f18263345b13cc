package catalogs

import (
	"errors"
	"fmt"

	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/scenario"
	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/world"
)

var (
	ErrUnknownMap      = errors.New("unknown map")
	ErrUnknownPlaylist = errors.New("unknown playlist")
)

// PlaylistFile is the YAML layout of configs/playlists/*.yaml.
type PlaylistFile struct {
	Name      string         `yaml:"name"`
	Scenarios []ScenarioFile `yaml:"scenarios"`
}

type ScenarioFile struct {
	Name       string          `yaml:"name"`
	Map        string          `yaml:"map"`
	TimeLimit  float64         `yaml:"time_limit"`
	Players    []PlayerFile    `yaml:"players"`
	Ball       *BallFile       `yaml:"ball"`
	Objectives []ObjectiveFile `yaml:"objectives"`
}

type PlayerFile struct {
	ID   string `yaml:"id"`
	Team string `yaml:"team"`
	Bot  bool   `yaml:"bot"`
	Pos  *vec   `yaml:"pos"`
	Vel  *vec   `yaml:"vel"`
}

type BallFile struct {
	Pos *vec `yaml:"pos"`
	Vel *vec `yaml:"vel"`
}

// ObjectiveFile is a tagged union keyed by Type. Only the fields of that
// type are read.
type ObjectiveFile struct {
	Type string `yaml:"type"`

	Pos       vec     `yaml:"pos"`
	Radius    float64 `yaml:"radius"`
	TimeLimit float64 `yaml:"time_limit"`

	Points []vec   `yaml:"points"`
	Width  float64 `yaml:"width"`

	Team          string `yaml:"team"`
	ScoredBy      string `yaml:"scored_by"`
	ScoredByBotID string `yaml:"scored_by_bot_id"`

	Min   *int `yaml:"min"`
	Max   *int `yaml:"max"`
	Exact *int `yaml:"exact"`

	Target  string `yaml:"target"`
	Touches int    `yaml:"touches"`

	Forbidden []string `yaml:"forbidden"`
}

func velOf(v *vec) geom.Vec2 {
	if v == nil {
		return geom.Vec2{}
	}
	return v.geom()
}

// Build resolves map names against maps and returns a validated playlist.
func (f PlaylistFile) Build(maps map[string]*world.Map) (*playlist.Playlist, error) {
	pl := &playlist.Playlist{Name: f.Name}
	for i, sf := range f.Scenarios {
		sc, err := sf.build(maps)
		if err != nil {
			return nil, fmt.Errorf("scenario %d (%s): %w", i, sf.Name, err)
		}
		pl.Scenarios = append(pl.Scenarios, sc)
	}
	if err := pl.Validate(); err != nil {
		return nil, err
	}
	return pl, nil
}

func (f ScenarioFile) build(maps map[string]*world.Map) (*scenario.Scenario, error) {
	m, ok := maps[f.Map]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMap, f.Map)
	}
	sc := &scenario.Scenario{Name: f.Name, Map: m, TimeLimit: f.TimeLimit}
	for _, p := range f.Players {
		sc.Setup.Players = append(sc.Setup.Players, world.Spawn{
			ID:    p.ID,
			Team:  world.Team(p.Team),
			IsBot: p.Bot,
			Pos:   optVec(p.Pos),
			Vel:   velOf(p.Vel),
		})
	}
	if f.Ball != nil {
		sc.Setup.BallPos = optVec(f.Ball.Pos)
		sc.Setup.BallVel = velOf(f.Ball.Vel)
	}
	for i, o := range f.Objectives {
		if err := o.apply(sc); err != nil {
			return nil, fmt.Errorf("objective %d: %w", i, err)
		}
	}
	if err := checkRefs(sc); err != nil {
		return nil, err
	}
	return sc, nil
}

// checkRefs rejects objectives that name an entity the setup never spawns.
func checkRefs(sc *scenario.Scenario) error {
	ids := map[string]bool{}
	for _, p := range sc.Setup.Players {
		ids[p.ID] = true
	}
	var refs []string
	if sc.Goal != nil && sc.Goal.ScoredByBotID != "" {
		refs = append(refs, sc.Goal.ScoredByBotID)
	}
	if sc.BallTouch != nil {
		refs = append(refs, sc.BallTouch.TargetID)
	}
	if sc.PreventTouch != nil {
		refs = append(refs, sc.PreventTouch.ForbiddenIDs...)
	}
	for _, id := range refs {
		if !ids[id] {
			return fmt.Errorf("%w: %s: unknown entity %q", scenario.ErrInvalidScenario, sc.Name, id)
		}
	}
	return nil
}

func (o ObjectiveFile) apply(sc *scenario.Scenario) error {
	dup := func() error { return fmt.Errorf("%w: duplicate %s objective", scenario.ErrInvalidScenario, o.Type) }
	switch o.Type {
	case "checkpoint":
		sc.Checkpoints = append(sc.Checkpoints, scenario.Checkpoint{Pos: o.Pos.geom(), Radius: o.Radius, TimeLimit: o.TimeLimit})
	case "path":
		if sc.Path != nil {
			return dup()
		}
		pts := make([]geom.Vec2, len(o.Points))
		for i, p := range o.Points {
			pts[i] = p.geom()
		}
		sc.Path = &scenario.Path{Points: pts, Width: o.Width}
	case "goal":
		if sc.Goal != nil {
			return dup()
		}
		sc.Goal = &scenario.Goal{Team: world.Team(o.Team), ScoredBy: scenario.ScoredBy(o.ScoredBy), ScoredByBotID: o.ScoredByBotID}
	case "no_goal":
		if sc.NoGoal != nil {
			return dup()
		}
		sc.NoGoal = &scenario.NoGoal{Team: world.Team(o.Team)}
	case "kick_count":
		if sc.KickCount != nil {
			return dup()
		}
		sc.KickCount = &scenario.KickCount{Min: o.Min, Max: o.Max, Exact: o.Exact}
	case "ball_touch":
		if sc.BallTouch != nil {
			return dup()
		}
		sc.BallTouch = &scenario.BallTouch{TargetID: o.Target, RequiredTouches: o.Touches, TimeLimit: o.TimeLimit}
	case "prevent_touch":
		if sc.PreventTouch != nil {
			return dup()
		}
		sc.PreventTouch = &scenario.PreventTouch{ForbiddenIDs: append([]string(nil), o.Forbidden...)}
	default:
		return fmt.Errorf("%w: objective type %q", scenario.ErrInvalidScenario, o.Type)
	}
	return nil
}
