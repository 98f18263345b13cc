package geom

import "math"

// Circle is a moving body. InvMass is derived from Mass and must be kept in
// sync through SetMass; a zero InvMass makes the body immovable in collisions.
type Circle struct {
	Pos     Vec2
	Vel     Vec2
	Radius  float64
	Mass    float64
	Damping float64
	InvMass float64
}

func NewCircle(pos Vec2, radius, mass, damping float64) Circle {
	c := Circle{Pos: pos, Radius: radius, Damping: damping}
	c.SetMass(mass)
	return c
}

func (c *Circle) SetMass(m float64) {
	if m < 0 {
		m = 0
	}
	c.Mass = m
	if m > 0 {
		c.InvMass = 1 / m
	} else {
		c.InvMass = 0
	}
}

func (c *Circle) Speed() float64 { return c.Vel.Len() }

// Segment is an immovable wall. Normal points into the playable area.
type Segment struct {
	P1              Vec2
	P2              Vec2
	Normal          Vec2
	Bounce          float64
	PlayerCollision bool
}

// NewSegment computes the unit normal of p1->p2 and orients it toward inside.
// When inside lies on the line the left-hand normal is kept.
func NewSegment(p1, p2, inside Vec2, bounce float64, playerCollision bool) Segment {
	n := p2.Sub(p1).Perp().Normalize()
	if inside.Sub(p1).Dot(n) < 0 {
		n = n.Scale(-1)
	}
	return Segment{P1: p1, P2: p2, Normal: n, Bounce: clamp01(bounce), PlayerCollision: playerCollision}
}

func (s Segment) Degenerate() bool { return s.P1 == s.P2 }

// StaticDisk is an immovable round obstacle such as a goalpost.
type StaticDisk struct {
	Pos    Vec2
	Radius float64
	Bounce float64
}

// DampingFactor converts a per-reference-frame (60 Hz) damping into the
// factor for a tick of dt seconds.
func DampingFactor(damping, dt float64) float64 {
	if damping <= 0 {
		return 0
	}
	if damping >= 1 {
		return 1
	}
	return math.Pow(damping, dt*60)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
