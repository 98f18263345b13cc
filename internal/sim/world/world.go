package world

import (
	"fmt"

	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/tuning"
)

type Config struct {
	Map        *Map
	Tuning     tuning.Tuning
	Generation uint64
	Listener   Listener
	// Clock position the world is created at; the first Step is Tick+1.
	Tick    uint64
	SimTime float64
}

type eventKind uint8

const (
	evKick eventKind = iota + 1
	evTouch
	evGoal
)

type pendingEvent struct {
	kind  eventKind
	kick  KickEvent
	touch TouchEvent
	goal  GoalEvent
}

type World struct {
	m        *Map
	tuning   tuning.Tuning
	gen      uint64
	listener Listener

	players []*Entity
	ball    *Entity
	// players followed by the ball; fixed order for stepping and digests.
	bodies []*Entity
	byID   map[string]*Entity

	touches     map[string]int
	lastToucher Toucher
	hasToucher  bool
	// inGoal[k] is true while the ball centre is inside Goals[k].
	inGoal []bool

	tick      uint64
	simTime   float64
	maxImpact float64

	// Per-tick scratch, sized once and reused by index.
	events  []pendingEvent
	contact []bool
	kicked  []bool
}

func New(cfg Config, setup Setup) (*World, error) {
	if err := cfg.Map.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	w := newEmpty(cfg)

	tu := cfg.Tuning
	next := map[Team]int{}
	for _, sp := range setup.Players {
		if sp.ID == "" || sp.ID == BallID {
			return nil, fmt.Errorf("invalid entity id %q", sp.ID)
		}
		if _, dup := w.byID[sp.ID]; dup {
			return nil, fmt.Errorf("duplicate entity id %q", sp.ID)
		}
		if sp.Team != TeamRed && sp.Team != TeamBlue {
			return nil, fmt.Errorf("entity %s: team %q cannot take the field", sp.ID, sp.Team)
		}
		var pos geom.Vec2
		if sp.Pos != nil {
			pos = *sp.Pos
		} else {
			slots := cfg.Map.spawnsFor(sp.Team)
			if len(slots) == 0 {
				return nil, fmt.Errorf("%w: %s: no %s spawn for %s", ErrInvalidMap, cfg.Map.Name, sp.Team, sp.ID)
			}
			pos = slots[next[sp.Team]%len(slots)]
			next[sp.Team]++
		}
		e := &Entity{
			ID:    sp.ID,
			Team:  sp.Team,
			IsBot: sp.IsBot,
			Body:  geom.NewCircle(pos, tu.Player.Radius, tu.Player.Mass, tu.Player.Damping),
		}
		e.Body.Vel = sp.Vel
		e.PrevPos = pos
		w.addPlayer(e)
	}

	ballPos := cfg.Map.BallSpawn
	if setup.BallPos != nil {
		ballPos = *setup.BallPos
	}
	ball := &Entity{
		ID:   BallID,
		Team: TeamSpectator,
		Body: geom.NewCircle(ballPos, tu.Ball.Radius, tu.Ball.Mass, tu.Ball.Damping),
	}
	ball.Body.Vel = setup.BallVel
	ball.PrevPos = ballPos
	w.setBall(ball)
	return w, nil
}

func newEmpty(cfg Config) *World {
	l := cfg.Listener
	if l == nil {
		l = NopListener{}
	}
	return &World{
		m:        cfg.Map,
		tuning:   cfg.Tuning,
		gen:      cfg.Generation,
		listener: l,
		byID:     map[string]*Entity{},
		touches:  map[string]int{},
		tick:     cfg.Tick,
		simTime:  cfg.SimTime,
		inGoal:   make([]bool, len(cfg.Map.Goals)),
	}
}

func (w *World) addPlayer(e *Entity) {
	w.players = append(w.players, e)
	w.byID[e.ID] = e
}

func (w *World) setBall(b *Entity) {
	w.ball = b
	w.byID[b.ID] = b
	w.bodies = append(append(w.bodies[:0], w.players...), b)
	w.contact = make([]bool, len(w.bodies))
	w.kicked = make([]bool, len(w.bodies))
	w.events = make([]pendingEvent, 0, 4*len(w.bodies))
}

func (w *World) Generation() uint64    { return w.gen }
func (w *World) Map() *Map             { return w.m }
func (w *World) Tuning() tuning.Tuning { return w.tuning }
func (w *World) Tick() uint64          { return w.tick }
func (w *World) SimTime() float64      { return w.simTime }

// InGoal reports whether the ball centre currently sits inside any goal zone.
func (w *World) InGoal() bool {
	for _, in := range w.inGoal {
		if in {
			return true
		}
	}
	return false
}

// MaxImpact is the highest normal impact speed seen during the last Step.
func (w *World) MaxImpact() float64 { return w.maxImpact }

func (w *World) Ball() *Entity { return w.ball }

func (w *World) Entity(id string) (*Entity, bool) {
	e, ok := w.byID[id]
	return e, ok
}

// Entities returns players and bots in creation order. The slice is shared.
func (w *World) Entities() []*Entity { return w.players }

func (w *World) Touches(id string) int { return w.touches[id] }

func (w *World) LastToucher() (Toucher, bool) { return w.lastToucher, w.hasToucher }
