// Package collide holds the stateless narrow-phase tests and resolvers used by
// the world step. Nothing here knows about teams, goals or objectives.
package collide

import (
	"math"

	"futdrill.ai/internal/sim/geom"
)

func CircleCircle(a, b *geom.Circle) bool {
	r := a.Radius + b.Radius
	return a.Pos.DistSq(b.Pos) < r*r
}

// ResolveCircleCircle separates overlapping circles along the contact normal,
// each moving by the other body's share of the combined inverse mass, then
// applies a restitution impulse if they are approaching. It returns the normal
// approach speed when an impulse was applied.
func ResolveCircleCircle(a, b *geom.Circle, restitution float64) (impact float64, hit bool) {
	d := b.Pos.Sub(a.Pos)
	distSq := d.LenSq()
	r := a.Radius + b.Radius
	if distSq >= r*r || distSq == 0 {
		return 0, false
	}
	invSum := a.InvMass + b.InvMass
	if invSum == 0 {
		return 0, false
	}
	dist := math.Sqrt(distSq)
	n := d.Scale(1 / dist)
	overlap := r - dist
	a.Pos = a.Pos.Sub(n.Scale(overlap * a.InvMass / invSum))
	b.Pos = b.Pos.Add(n.Scale(overlap * b.InvMass / invSum))

	vn := b.Vel.Sub(a.Vel).Dot(n)
	if vn >= 0 {
		return 0, true
	}
	j := -(1 + clampRestitution(restitution)) * vn / invSum
	a.Vel = a.Vel.Sub(n.Scale(j * a.InvMass))
	b.Vel = b.Vel.Add(n.Scale(j * b.InvMass))
	return -vn, true
}

func CircleSegment(c *geom.Circle, s *geom.Segment) bool {
	p := geom.ClosestPointOnSegment(c.Pos, s.P1, s.P2)
	return c.Pos.DistSq(p) < c.Radius*c.Radius
}

// ResolveCircleSegment pushes c out of s and reflects the inbound normal
// velocity scaled by (1+bounce). Endpoint projections give rounded caps.
func ResolveCircleSegment(c *geom.Circle, s *geom.Segment) (impact float64, hit bool) {
	if c.InvMass == 0 {
		return 0, false
	}
	p := geom.ClosestPointOnSegment(c.Pos, s.P1, s.P2)
	d := c.Pos.Sub(p)
	distSq := d.LenSq()
	if distSq >= c.Radius*c.Radius {
		return 0, false
	}
	var n geom.Vec2
	var pen float64
	if distSq == 0 {
		if s.Normal.IsZero() {
			return 0, false
		}
		n = s.Normal
		pen = c.Radius
	} else {
		dist := math.Sqrt(distSq)
		n = d.Scale(1 / dist)
		pen = c.Radius - dist
	}
	return pushOut(c, n, pen, s.Bounce), true
}

func CircleStaticDisk(c *geom.Circle, k *geom.StaticDisk) bool {
	r := c.Radius + k.Radius
	return c.Pos.DistSq(k.Pos) < r*r
}

// ResolveCircleStaticDisk treats the disk as infinitely massive. Coincident
// centers cannot be given a direction and are skipped.
func ResolveCircleStaticDisk(c *geom.Circle, k *geom.StaticDisk) (impact float64, hit bool) {
	if c.InvMass == 0 {
		return 0, false
	}
	d := c.Pos.Sub(k.Pos)
	distSq := d.LenSq()
	r := c.Radius + k.Radius
	if distSq >= r*r || distSq == 0 {
		return 0, false
	}
	dist := math.Sqrt(distSq)
	n := d.Scale(1 / dist)
	return pushOut(c, n, r-dist, k.Bounce), true
}

func pushOut(c *geom.Circle, n geom.Vec2, pen, bounce float64) float64 {
	c.Pos = c.Pos.Add(n.Scale(pen))
	vn := c.Vel.Dot(n)
	if vn >= 0 {
		return 0
	}
	c.Vel = c.Vel.Sub(n.Scale(vn * (1 + clampRestitution(bounce))))
	return -vn
}

func clampRestitution(e float64) float64 {
	if e < 0 || math.IsNaN(e) {
		return 0
	}
	if e > 1 {
		return 1
	}
	return e
}
