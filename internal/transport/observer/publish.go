package observer

import (
	"futdrill.ai/internal/observerproto"
	"futdrill.ai/internal/playlist"
	"futdrill.ai/internal/scenario"
	"futdrill.ai/internal/sim/world"
)

// Source is the part of a playlist session the publisher reads.
type Source interface {
	Status() playlist.Status
	RenderFrame(dst []world.RenderBody) []world.RenderBody
}

type Broadcaster interface {
	Broadcast(msg any)
	Subscribers() int
}

type statusKey struct {
	gen      uint64
	index    int
	state    scenario.Status
	kicks    int
	finished bool
}

// Publisher turns session frames into FRAME and STATUS messages. It runs on
// the simulation loop right after Session.Frame and reuses its buffers.
type Publisher struct {
	src Source
	out Broadcaster

	// STATUS is also repeated every StatusEvery frames while nothing changes.
	StatusEvery int

	bodies []world.RenderBody
	frame  observerproto.FrameMsg

	last        statusKey
	sent        bool
	sinceStatus int
}

func NewPublisher(src Source, out Broadcaster) *Publisher {
	return &Publisher{src: src, out: out, StatusEvery: 60}
}

func (p *Publisher) Publish() {
	if p.out.Subscribers() == 0 {
		return
	}
	st := p.src.Status()

	p.bodies = p.src.RenderFrame(p.bodies)
	p.frame = FrameMsg(st.Tick, st.Generation, p.bodies, p.frame.Bodies)
	p.out.Broadcast(&p.frame)

	key := statusKey{gen: st.Generation, index: st.Index, state: st.State, kicks: st.Kicks, finished: st.Finished}
	p.sinceStatus++
	if !p.sent || key != p.last || p.sinceStatus >= p.StatusEvery {
		p.out.Broadcast(StatusMsg(st))
		p.last = key
		p.sent = true
		p.sinceStatus = 0
	}
}

// FrameMsg converts render bodies, appending into dst[:0].
func FrameMsg(tick, gen uint64, bodies []world.RenderBody, dst []observerproto.BodyState) observerproto.FrameMsg {
	dst = dst[:0]
	for _, b := range bodies {
		dst = append(dst, observerproto.BodyState{
			ID:       b.ID,
			Team:     string(b.Team),
			Bot:      b.IsBot,
			Pos:      [2]float64{b.Pos.X, b.Pos.Y},
			Radius:   b.Radius,
			Charging: b.Charging,
			Kicked:   b.Kicked,
		})
	}
	return observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		Generation:      gen,
		Bodies:          dst,
	}
}

func StatusMsg(st playlist.Status) observerproto.StatusMsg {
	return observerproto.StatusMsg{
		Type:            observerproto.TypeStatus,
		ProtocolVersion: observerproto.Version,
		Playlist:        st.Playlist,
		Index:           st.Index,
		Count:           st.Count,
		Scenario:        st.Scenario,
		Generation:      st.Generation,
		Tick:            st.Tick,
		State:           st.State.String(),
		Reason:          st.Reason,
		Elapsed:         st.Elapsed,
		Kicks:           st.Kicks,
		TotalElapsed:    st.TotalElapsed,
		TotalKicks:      st.TotalKicks,
		Completed:       st.Completed,
		Finished:        st.Finished,
	}
}

// Bootstrap describes a playlist and the geometry of every map it uses.
func Bootstrap(pl *playlist.Playlist, tickRateHz int) observerproto.BootstrapResponse {
	resp := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		Playlist:        pl.Name,
		TickRateHz:      tickRateHz,
		Maps:            map[string]observerproto.MapInfo{},
	}
	for _, sc := range pl.Scenarios {
		resp.Scenarios = append(resp.Scenarios, observerproto.ScenarioInfo{Name: sc.Name, Map: sc.Map.Name})
		if _, ok := resp.Maps[sc.Map.Name]; ok {
			continue
		}
		resp.Maps[sc.Map.Name] = mapInfo(sc.Map)
	}
	return resp
}

func mapInfo(m *world.Map) observerproto.MapInfo {
	var mi observerproto.MapInfo
	for _, s := range m.Segments {
		mi.Segments = append(mi.Segments, [4]float64{s.P1.X, s.P1.Y, s.P2.X, s.P2.Y})
	}
	for _, d := range m.Disks {
		mi.Disks = append(mi.Disks, [3]float64{d.Pos.X, d.Pos.Y, d.Radius})
	}
	for _, g := range m.Goals {
		mi.Goals = append(mi.Goals, observerproto.GoalInfo{
			Team: string(g.Team),
			Min:  [2]float64{g.Min.X, g.Min.Y},
			Max:  [2]float64{g.Max.X, g.Max.Y},
		})
	}
	return mi
}
