package world

import "futdrill.ai/internal/sim/geom"

// Entity is a player, a bot or the ball. The ball has ID BallID and team
// spectator.
type Entity struct {
	ID    string
	Team  Team
	IsBot bool

	Body    geom.Circle
	PrevPos geom.Vec2

	KickCharge      float64
	ChargingKick    bool
	KickedThisPress bool
	// Cosmetic countdown after a kick; the core never reads it.
	KickFeedbackTicks int

	touching bool
}

func (e *Entity) IsBall() bool { return e.ID == BallID }

func (e *Entity) toucher() Toucher {
	return Toucher{ID: e.ID, IsBot: e.IsBot, Team: e.Team}
}

// Spawn describes one player or bot to create. Pos overrides the map spawn
// point; Vel is the initial velocity.
type Spawn struct {
	ID    string
	Team  Team
	IsBot bool
	Pos   *geom.Vec2
	Vel   geom.Vec2
}

// Setup lists the bodies of a fresh world. A nil BallPos uses the map's ball
// spawn.
type Setup struct {
	Players []Spawn
	BallPos *geom.Vec2
	BallVel geom.Vec2
}
