package world

import (
	"math"

	"futdrill.ai/internal/sim/collide"
	"futdrill.ai/internal/sim/geom"
)

const (
	maxSubsteps = 32
	// A player resting against the ball within this gap is still in contact,
	// so a dribble does not count a new touch every other tick.
	touchSlack = 0.5
)

// Step advances the world by one fixed tick. All collision resolution of the
// tick happens before any event reaches the listener.
func (w *World) Step(src InputSource, tick uint64, simTime float64) {
	if src == nil {
		src = Idle{}
	}
	dt := w.tuning.FixedDt()
	w.tick = tick
	w.simTime = simTime
	w.maxImpact = 0
	w.events = w.events[:0]
	for i, e := range w.bodies {
		e.PrevPos = e.Body.Pos
		w.contact[i] = false
		w.kicked[i] = false
	}

	for i, p := range w.players {
		w.applyInput(i, p, src.Input(p.ID, tick), dt)
	}

	w.integrate(dt)

	for _, e := range w.bodies {
		e.Body.Vel = e.Body.Vel.Scale(geom.DampingFactor(e.Body.Damping, dt))
	}

	w.updateTouches()
	w.detectGoal()
	w.flush()
}

func (w *World) applyInput(i int, p *Entity, in Input, dt float64) {
	if p.KickFeedbackTicks > 0 {
		p.KickFeedbackTicks--
	}

	if !in.Kick {
		p.ChargingKick = false
		p.KickedThisPress = false
		p.KickCharge = 0
	} else {
		p.ChargingKick = true
		p.KickCharge = in.ClampedCharge()
	}

	accel := w.tuning.PlayerAccel
	if p.ChargingKick {
		accel = w.tuning.PlayerChargingAccel
	}
	if dir := in.Direction(); !dir.IsZero() {
		p.Body.Vel = p.Body.Vel.Add(dir.Scale(accel * dt))
	}

	if p.ChargingKick && !p.KickedThisPress {
		if w.tryKick(p) {
			p.KickedThisPress = true
			p.KickFeedbackTicks = w.tuning.KickFeedbackTicks
			w.kicked[i] = true
			w.queue(pendingEvent{kind: evKick, kick: KickEvent{
				Generation: w.gen,
				Tick:       w.tick,
				SimTime:    w.simTime,
				By:         p.toucher(),
				Charge:     p.KickCharge,
			}})
			w.registerTouch(p)
		}
	}
}

func (w *World) tryKick(p *Entity) bool {
	b := &w.ball.Body
	d := b.Pos.Sub(p.Body.Pos)
	dist := d.Len()
	if dist-(p.Body.Radius+b.Radius) > w.tuning.KickMargin {
		return false
	}
	if dist == 0 {
		return false
	}
	n := d.Scale(1 / dist)
	f := w.tuning.KickMinFactor + (1-w.tuning.KickMinFactor)*p.KickCharge
	b.Vel = b.Vel.Add(n.Scale(w.tuning.KickStrength * f * b.InvMass))
	return true
}

// substeps splits the tick so that no body travels more than MaxSafeVelocity
// worth of distance per sub-step.
func (w *World) substeps() int {
	var maxSpeed float64
	for _, e := range w.bodies {
		if s := e.Body.Speed(); s > maxSpeed {
			maxSpeed = s
		}
	}
	if math.IsNaN(maxSpeed) || maxSpeed <= w.tuning.MaxSafeVelocity {
		return 1
	}
	n := int(math.Ceil(maxSpeed / w.tuning.MaxSafeVelocity))
	if n > maxSubsteps {
		n = maxSubsteps
	}
	return n
}

func (w *World) integrate(dt float64) {
	n := w.substeps()
	h := dt / float64(n)
	restitution := w.tuning.BodyRestitution
	ballIdx := len(w.bodies) - 1
	for s := 0; s < n; s++ {
		for _, e := range w.bodies {
			e.Body.Pos = e.Body.Pos.Add(e.Body.Vel.Scale(h))
		}
		for _, e := range w.bodies {
			w.resolveStatics(e)
		}
		for i := 0; i < len(w.bodies); i++ {
			for j := i + 1; j < len(w.bodies); j++ {
				impact, hit := collide.ResolveCircleCircle(&w.bodies[i].Body, &w.bodies[j].Body, restitution)
				if !hit {
					continue
				}
				w.noteImpact(impact)
				if j == ballIdx {
					w.contact[i] = true
				}
			}
		}
	}
}

func (w *World) resolveStatics(e *Entity) {
	ball := e.IsBall()
	for k := range w.m.Segments {
		seg := &w.m.Segments[k]
		if !ball && !seg.PlayerCollision {
			continue
		}
		if impact, hit := collide.ResolveCircleSegment(&e.Body, seg); hit {
			w.noteImpact(impact)
		}
	}
	for k := range w.m.Disks {
		if impact, hit := collide.ResolveCircleStaticDisk(&e.Body, &w.m.Disks[k]); hit {
			w.noteImpact(impact)
		}
	}
}

func (w *World) noteImpact(v float64) {
	if v > w.maxImpact {
		w.maxImpact = v
	}
}

// updateTouches counts a touch on the first tick of each contact. A kick in
// the same tick already counted.
func (w *World) updateTouches() {
	b := &w.ball.Body
	for i, p := range w.players {
		in := w.contact[i]
		if !in {
			reach := p.Body.Radius + b.Radius + touchSlack
			in = p.Body.Pos.DistSq(b.Pos) <= reach*reach
		}
		if in && !p.touching && !w.kicked[i] {
			w.registerTouch(p)
		}
		p.touching = in || w.kicked[i]
	}
}

func (w *World) registerTouch(p *Entity) {
	w.touches[p.ID]++
	w.lastToucher = p.toucher()
	w.hasToucher = true
	w.queue(pendingEvent{kind: evTouch, touch: TouchEvent{
		Generation: w.gen,
		Tick:       w.tick,
		SimTime:    w.simTime,
		By:         p.toucher(),
		Count:      w.touches[p.ID],
	}})
}

// detectGoal fires when the ball centre enters a goal zone. A zone re-arms
// once the ball has left it.
func (w *World) detectGoal() {
	pos := w.ball.Body.Pos
	for k, g := range w.m.Goals {
		in := g.Contains(pos)
		was := w.inGoal[k]
		w.inGoal[k] = in
		if !in || was {
			continue
		}
		w.queue(pendingEvent{kind: evGoal, goal: GoalEvent{
			Generation: w.gen,
			Tick:       w.tick,
			SimTime:    w.simTime,
			Goal:       g.Team,
			Scorer:     w.lastToucher,
			HasScorer:  w.hasToucher,
		}})
	}
}

func (w *World) queue(ev pendingEvent) { w.events = append(w.events, ev) }

func (w *World) flush() {
	for i := range w.events {
		ev := &w.events[i]
		switch ev.kind {
		case evKick:
			w.listener.OnKick(ev.kick)
		case evTouch:
			w.listener.OnBallTouch(ev.touch)
		case evGoal:
			w.listener.OnGoal(ev.goal)
		}
	}
	w.events = w.events[:0]
}
