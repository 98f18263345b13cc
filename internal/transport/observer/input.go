package observer

import (
	"sync"

	"futdrill.ai/internal/sim/world"
)

// RemoteInput is a world.InputSource fed by observer connections. Each
// controlled player holds the latest keys its connection sent; every other
// entity reads from the fallback.
type RemoteInput struct {
	mu       sync.Mutex
	latest   map[string]world.Input
	owner    map[string]string // player id -> session id
	fallback world.InputSource
}

func NewRemoteInput(fallback world.InputSource) *RemoteInput {
	if fallback == nil {
		fallback = world.Idle{}
	}
	return &RemoteInput{
		latest:   map[string]world.Input{},
		owner:    map[string]string{},
		fallback: fallback,
	}
}

// Claim gives sid control of player id. A player has at most one controller.
func (r *RemoteInput) Claim(id, sid string) bool {
	if id == "" || id == world.BallID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.owner[id]; ok && cur != sid {
		return false
	}
	r.owner[id] = sid
	r.latest[id] = world.Input{}
	return true
}

// Release drops every player sid controls; they fall back on the next tick.
func (r *RemoteInput) Release(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, owner := range r.owner {
		if owner == sid {
			delete(r.owner, id)
			delete(r.latest, id)
		}
	}
}

// Set stores the latest keys for the player sid controls.
func (r *RemoteInput) Set(sid string, in world.Input) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, owner := range r.owner {
		if owner == sid {
			r.latest[id] = in
			return true
		}
	}
	return false
}

func (r *RemoteInput) Input(id string, tick uint64) world.Input {
	r.mu.Lock()
	in, ok := r.latest[id]
	r.mu.Unlock()
	if ok {
		return in
	}
	return r.fallback.Input(id, tick)
}
