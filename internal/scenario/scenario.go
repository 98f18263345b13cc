package scenario

import (
	"errors"
	"fmt"

	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/world"
)

var (
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrNoCompletion marks a scenario that can never complete.
	ErrNoCompletion = errors.New("scenario has no completion condition")
)

type Checkpoint struct {
	Pos    geom.Vec2
	Radius float64
	// Seconds on the checkpoint's own clock; 0 means no limit.
	TimeLimit float64
}

type Path struct {
	Points []geom.Vec2
	Width  float64
}

type ScoredBy string

const (
	ScoredByAnyone ScoredBy = ""
	ScoredByPlayer ScoredBy = "player"
	ScoredByBot    ScoredBy = "bot"
)

// Goal requires Team to score.
type Goal struct {
	Team          world.Team
	ScoredBy      ScoredBy
	ScoredByBotID string
}

// NoGoal forbids conceding into Team's goal.
type NoGoal struct {
	Team world.Team
}

// KickCount bounds the number of non-bot kicks. Nil fields are unchecked.
type KickCount struct {
	Min   *int
	Max   *int
	Exact *int
}

func (k *KickCount) satisfied(n int) bool {
	if k.Min != nil && n < *k.Min {
		return false
	}
	if k.Max != nil && n > *k.Max {
		return false
	}
	if k.Exact != nil && n != *k.Exact {
		return false
	}
	return true
}

func (k *KickCount) exceeded(n int) bool {
	return (k.Max != nil && n > *k.Max) || (k.Exact != nil && n > *k.Exact)
}

type BallTouch struct {
	TargetID        string
	RequiredTouches int
	TimeLimit       float64
}

type PreventTouch struct {
	ForbiddenIDs []string
}

func (p *PreventTouch) forbids(id string) bool {
	for _, f := range p.ForbiddenIDs {
		if f == id {
			return true
		}
	}
	return false
}

// Scenario is one timed exercise. Checkpoints are visited in order; every
// other objective is optional and evaluated concurrently.
type Scenario struct {
	Name string
	Map  *world.Map
	// Seconds of simulation time; 0 means no global limit.
	TimeLimit float64
	Setup     world.Setup

	Checkpoints  []Checkpoint
	Path         *Path
	Goal         *Goal
	NoGoal       *NoGoal
	KickCount    *KickCount
	BallTouch    *BallTouch
	PreventTouch *PreventTouch
}

// SurvivalOnly reports a NoGoal scenario without a Goal objective. Such a
// scenario completes only by outlasting its time limit.
func (s *Scenario) SurvivalOnly() bool { return s.NoGoal != nil && s.Goal == nil }

func (s *Scenario) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidScenario, s.Name, fmt.Sprintf(format, args...))
	}
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidScenario)
	}
	if s.TimeLimit < 0 {
		return bad("negative time limit")
	}
	for i, cp := range s.Checkpoints {
		if !(cp.Radius > 0) {
			return bad("checkpoint %d radius must be positive", i)
		}
		if cp.TimeLimit < 0 {
			return bad("checkpoint %d negative time limit", i)
		}
	}
	if p := s.Path; p != nil {
		if len(p.Points) < 2 {
			return bad("path needs at least two points")
		}
		for i := 1; i < len(p.Points); i++ {
			if p.Points[i] == p.Points[i-1] {
				return bad("path segment %d has zero length", i-1)
			}
		}
		if !(p.Width > 0) {
			return bad("path width must be positive")
		}
	}
	if g := s.Goal; g != nil {
		if g.Team != world.TeamRed && g.Team != world.TeamBlue {
			return bad("goal team %q", g.Team)
		}
		switch g.ScoredBy {
		case ScoredByAnyone, ScoredByPlayer, ScoredByBot:
		default:
			return bad("goal scored_by %q", g.ScoredBy)
		}
		if g.ScoredByBotID != "" && g.ScoredBy != ScoredByBot {
			return bad("goal scored_by_bot_id requires scored_by bot")
		}
	}
	if n := s.NoGoal; n != nil && n.Team != world.TeamRed && n.Team != world.TeamBlue {
		return bad("no_goal team %q", n.Team)
	}
	if k := s.KickCount; k != nil {
		for _, v := range []*int{k.Min, k.Max, k.Exact} {
			if v != nil && *v < 0 {
				return bad("kick_count bounds must not be negative")
			}
		}
		if k.Min != nil && k.Max != nil && *k.Min > *k.Max {
			return bad("kick_count min > max")
		}
	}
	if b := s.BallTouch; b != nil {
		if b.TargetID == "" || b.RequiredTouches <= 0 {
			return bad("ball_touch needs a target and a positive touch count")
		}
		if b.TimeLimit < 0 {
			return bad("ball_touch negative time limit")
		}
	}
	if !s.completable() {
		return fmt.Errorf("%w: %s", ErrNoCompletion, s.Name)
	}
	return nil
}

func (s *Scenario) completable() bool {
	// The only goal that completes would be conceded into the protected net.
	if s.Goal != nil && s.NoGoal != nil && s.NoGoal.Team == s.Goal.Team.Opponent() {
		return false
	}
	if s.SurvivalOnly() {
		return s.TimeLimit > 0
	}
	if len(s.Checkpoints) > 0 || s.Goal != nil || s.BallTouch != nil {
		return true
	}
	return s.KickCount != nil && (s.KickCount.Min != nil || s.KickCount.Exact != nil)
}
