package world

import (
	"math"

	"futdrill.ai/internal/sim/geom"
)

type Team string

const (
	TeamRed       Team = "red"
	TeamBlue      Team = "blue"
	TeamSpectator Team = "spectator"
)

// Opponent returns the other playing team; spectators have none.
func (t Team) Opponent() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	}
	return TeamSpectator
}

func (t Team) Valid() bool {
	return t == TeamRed || t == TeamBlue || t == TeamSpectator
}

const BallID = "ball"

// Input is one entity's intent for one tick. Keyboard, bot and replay sources
// all produce the same shape.
type Input struct {
	Up     bool    `json:"up,omitempty"`
	Down   bool    `json:"down,omitempty"`
	Left   bool    `json:"left,omitempty"`
	Right  bool    `json:"right,omitempty"`
	Kick   bool    `json:"kick,omitempty"`
	Charge float64 `json:"charge,omitempty"`
}

// Direction is the 8-way unit vector of the held keys, so diagonals are not
// faster than straight lines. Opposite keys cancel.
func (in Input) Direction() geom.Vec2 {
	var d geom.Vec2
	if in.Up {
		d.Y--
	}
	if in.Down {
		d.Y++
	}
	if in.Left {
		d.X--
	}
	if in.Right {
		d.X++
	}
	return d.Normalize()
}

func (in Input) ClampedCharge() float64 {
	if math.IsNaN(in.Charge) || in.Charge < 0 {
		return 0
	}
	if in.Charge > 1 {
		return 1
	}
	return in.Charge
}

type InputSource interface {
	Input(entityID string, tick uint64) Input
}

// Idle never moves or kicks.
type Idle struct{}

func (Idle) Input(string, uint64) Input { return Input{} }

// StaticInputs holds the same input for every tick.
type StaticInputs map[string]Input

func (s StaticInputs) Input(id string, _ uint64) Input { return s[id] }

// InputFunc adapts a function to InputSource.
type InputFunc func(entityID string, tick uint64) Input

func (f InputFunc) Input(id string, tick uint64) Input { return f(id, tick) }

// Toucher identifies who last touched the ball.
type Toucher struct {
	ID    string `json:"id"`
	IsBot bool   `json:"is_bot"`
	Team  Team   `json:"team"`
}

type KickEvent struct {
	Generation uint64
	Tick       uint64
	SimTime    float64
	By         Toucher
	Charge     float64
}

type TouchEvent struct {
	Generation uint64
	Tick       uint64
	SimTime    float64
	By         Toucher
	Count      int
}

// GoalEvent reports the ball entering the goal that belongs to Goal.
// HasScorer is false when nobody touched the ball since the world was built.
type GoalEvent struct {
	Generation uint64
	Tick       uint64
	SimTime    float64
	Goal       Team
	Scorer     Toucher
	HasScorer  bool
}

// ScoringTeam is the side credited with the goal.
func (e GoalEvent) ScoringTeam() Team { return e.Goal.Opponent() }

// Listener receives world events after all collision resolution of the tick
// that produced them.
type Listener interface {
	OnKick(KickEvent)
	OnBallTouch(TouchEvent)
	OnGoal(GoalEvent)
}

type NopListener struct{}

func (NopListener) OnKick(KickEvent)       {}
func (NopListener) OnBallTouch(TouchEvent) {}
func (NopListener) OnGoal(GoalEvent)       {}
