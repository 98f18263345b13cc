package playlist

import (
	"errors"
	"fmt"

	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/persistence/snapshot"
	"futdrill.ai/internal/scenario"
)

var (
	ErrIndexOutOfRange = errors.New("scenario index out of range")
	ErrEmptyPlaylist   = errors.New("playlist has no scenarios")
)

type Playlist struct {
	Name      string
	Scenarios []*scenario.Scenario
}

func (p *Playlist) Validate() error {
	if p == nil || len(p.Scenarios) == 0 {
		return ErrEmptyPlaylist
	}
	if p.Name == "" {
		return fmt.Errorf("playlist: missing name")
	}
	for i, sc := range p.Scenarios {
		if sc == nil {
			return fmt.Errorf("playlist %s: scenario %d is nil", p.Name, i)
		}
		if sc.Map == nil {
			return fmt.Errorf("playlist %s: scenario %s has no map", p.Name, sc.Name)
		}
		if err := sc.Validate(); err != nil {
			return fmt.Errorf("playlist %s: %w", p.Name, err)
		}
	}
	return nil
}

// RunState lives for a whole session and is reset only by Restart.
type RunState struct {
	CurrentIndex int
	Completed    []bool
	TotalElapsed float64
	TotalKicks   int
	Finished     bool
}

func (s RunState) clone() RunState {
	s.Completed = append([]bool(nil), s.Completed...)
	return s
}

// Result is what a finished playlist reports for ranking.
type Result struct {
	PlaylistName string
	TotalElapsed float64
	TotalKicks   int
}

type ResultSink interface {
	PlaylistCompleted(Result)
}

// Outcome of a left attempt. Abandoned means it was still running.
const OutcomeAbandoned = "abandoned"

type Attempt struct {
	Playlist   string
	Scenario   string
	Index      int
	Generation uint64
	Outcome    string
	Reason     string
	Elapsed    float64
	Kicks      int
}

type AttemptSink interface {
	AttemptFinished(Attempt)
}

// Sinks fans attempts and results out to every member that implements the
// matching interface.
type Sinks []any

func (s Sinks) AttemptFinished(a Attempt) {
	for _, x := range s {
		if as, ok := x.(AttemptSink); ok {
			as.AttemptFinished(a)
		}
	}
}

func (s Sinks) PlaylistCompleted(r Result) {
	for _, x := range s {
		if rs, ok := x.(ResultSink); ok {
			rs.PlaylistCompleted(r)
		}
	}
}

// Recorder receives the starting snapshot and every tick of each attempt.
type Recorder interface {
	BeginScenario(snapshot.SnapshotV1) error
	RecordTick(replay.TickEntry) error
	EndScenario() error
}
