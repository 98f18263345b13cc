package world

import "futdrill.ai/internal/sim/geom"

// RenderBody is the interpolated, read-only view of one body for a frame.
type RenderBody struct {
	ID       string
	Team     Team
	IsBot    bool
	Pos      geom.Vec2
	Radius   float64
	Charging bool
	Kicked   bool
}

// RenderFrame appends to dst[:0] every body at lerp(PrevPos, Pos, alpha).
// Authoritative positions are not touched. The ball is last.
func (w *World) RenderFrame(alpha float64, dst []RenderBody) []RenderBody {
	if !(alpha >= 0) {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	dst = dst[:0]
	for _, e := range w.bodies {
		dst = append(dst, RenderBody{
			ID:       e.ID,
			Team:     e.Team,
			IsBot:    e.IsBot,
			Pos:      e.PrevPos.Lerp(e.Body.Pos, alpha),
			Radius:   e.Body.Radius,
			Charging: e.ChargingKick,
			Kicked:   e.KickFeedbackTicks > 0,
		})
	}
	return dst
}
