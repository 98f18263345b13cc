package playlist

import (
	"fmt"
	"io"
	"log"
	"time"

	"futdrill.ai/internal/persistence/replay"
	"futdrill.ai/internal/persistence/snapshot"
	"futdrill.ai/internal/scenario"
	"futdrill.ai/internal/sched"
	"futdrill.ai/internal/sim/clock"
	"futdrill.ai/internal/sim/tuning"
	"futdrill.ai/internal/sim/world"
)

type Config struct {
	Playlist *Playlist
	Tuning   tuning.Tuning
	Inputs   world.InputSource

	Results  ResultSink
	Attempts AttemptSink
	Recorder Recorder

	// Wall clock for the transition delays. Defaults to time.Now.
	Now    func() time.Time
	Logger *log.Logger

	// Failed attempts wait for a manual Restart/Next/Previous instead of
	// retrying on their own.
	DisableAutoProgress bool
}

// Session runs one playlist on a single goroutine: every method must be
// called from the loop that calls Frame.
type Session struct {
	cfg    Config
	pl     *Playlist
	log    *log.Logger
	clock  *clock.Clock
	timers *sched.Timers

	gen     uint64
	world   *world.World
	eval    *scenario.Evaluator
	open    bool
	pending *sched.Task
	alpha   float64

	state RunState

	inputs map[string]world.Input
}

func New(cfg Config) (*Session, error) {
	if err := cfg.Playlist.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if cfg.Inputs == nil {
		cfg.Inputs = world.Idle{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Session{
		cfg:    cfg,
		pl:     cfg.Playlist,
		log:    logger,
		clock:  clock.New(clock.Config{TickRateHz: cfg.Tuning.TickRateHz, MaxFrameDt: cfg.Tuning.MaxFrameSeconds}),
		timers: sched.New(cfg.Now),
		state:  RunState{Completed: make([]bool, len(cfg.Playlist.Scenarios))},
		inputs: map[string]world.Input{},
	}, nil
}

func (s *Session) Playlist() *Playlist            { return s.pl }
func (s *Session) Generation() uint64             { return s.gen }
func (s *Session) World() *world.World            { return s.world }
func (s *Session) Evaluator() *scenario.Evaluator { return s.eval }
func (s *Session) Clock() *clock.Clock            { return s.clock }
func (s *Session) State() RunState                { return s.state.clone() }

// TransitionPending reports a scheduled advance, retry or finish.
func (s *Session) TransitionPending() bool { return s.pending.Pending() }

// StartScenario builds a fresh world and evaluator for index i under a new
// generation. On error nothing changes.
func (s *Session) StartScenario(i int) error {
	if i < 0 || i >= len(s.pl.Scenarios) {
		err := fmt.Errorf("%w: %d (playlist %s has %d)", ErrIndexOutOfRange, i, s.pl.Name, len(s.pl.Scenarios))
		s.log.Printf("start scenario: %v", err)
		return err
	}
	sc := s.pl.Scenarios[i]
	// Build before leave so a failed start keeps the running attempt.
	gen := s.gen + 1
	start := s.clock.SimTime()
	ev := scenario.NewEvaluator(sc, gen, start, scenario.Options{
		GoalWarmup: s.cfg.Tuning.GoalWarmupSeconds,
		OnDone:     s.onResult,
	})
	w, err := world.New(world.Config{
		Map:        sc.Map,
		Tuning:     s.cfg.Tuning,
		Generation: gen,
		Listener:   ev,
		Tick:       s.clock.Tick(),
		SimTime:    start,
	}, sc.Setup)
	if err != nil {
		err = fmt.Errorf("scenario %s: %w", sc.Name, err)
		s.log.Printf("start scenario: %v", err)
		return err
	}

	s.leave()
	s.cancelPending()
	s.gen = gen
	s.world = w
	s.eval = ev
	s.open = true
	s.state.CurrentIndex = i
	s.log.Printf("scenario %d/%d %q started gen=%d tick=%d", i+1, len(s.pl.Scenarios), sc.Name, gen, s.clock.Tick())

	if s.cfg.Recorder != nil {
		snap := w.ExportSnapshot(snapshot.Header{Playlist: s.pl.Name, Scenario: sc.Name, ScenarioIndex: i})
		if err := s.cfg.Recorder.BeginScenario(snap); err != nil {
			s.log.Printf("replay begin: %v", err)
		}
	}
	return nil
}

// Frame consumes one render frame of wall time: it drains whole ticks, then
// runs any due transition.
func (s *Session) Frame(frameDt float64) {
	if s.world != nil {
		_, s.alpha = s.clock.Advance(frameDt, s.step)
	}
	s.timers.Poll()
}

func (s *Session) step(tick uint64, simTime float64) {
	w := s.world
	for _, e := range w.Entities() {
		s.inputs[e.ID] = s.cfg.Inputs.Input(e.ID, tick)
	}
	w.Step(world.StaticInputs(s.inputs), tick, simTime)
	s.eval.Tick(&w.Ball().Body, simTime)

	if s.cfg.Recorder != nil {
		in := make(map[string]world.Input, len(s.inputs))
		for id, v := range s.inputs {
			in[id] = v
		}
		if err := s.cfg.Recorder.RecordTick(replay.TickEntry{Tick: tick, SimTime: simTime, Inputs: in, Digest: w.Digest()}); err != nil {
			s.log.Printf("replay tick %d: %v", tick, err)
		}
	}
	for id := range s.inputs {
		delete(s.inputs, id)
	}
}

// Status is a read-only summary for observers.
type Status struct {
	Playlist     string
	Index        int
	Count        int
	Scenario     string
	Generation   uint64
	Tick         uint64
	SimTime      float64
	State        scenario.Status
	Reason       string
	Elapsed      float64
	Kicks        int
	TotalElapsed float64
	TotalKicks   int
	Completed    []bool
	Finished     bool
}

func (s *Session) Status() Status {
	st := Status{
		Playlist:     s.pl.Name,
		Index:        s.state.CurrentIndex,
		Count:        len(s.pl.Scenarios),
		Generation:   s.gen,
		Tick:         s.clock.Tick(),
		SimTime:      s.clock.SimTime(),
		TotalElapsed: s.state.TotalElapsed,
		TotalKicks:   s.state.TotalKicks,
		Completed:    append([]bool(nil), s.state.Completed...),
		Finished:     s.state.Finished,
	}
	if s.eval != nil {
		rs := s.eval.State()
		st.Scenario = s.eval.Scenario().Name
		st.State = rs.Status
		st.Reason = rs.FailureReason
		st.Kicks = rs.KickCount
		st.Elapsed = st.SimTime - rs.StartTime
	}
	return st
}

// RenderFrame is the interpolated view for the last Frame.
func (s *Session) RenderFrame(dst []world.RenderBody) []world.RenderBody {
	if s.world == nil {
		return dst[:0]
	}
	return s.world.RenderFrame(s.alpha, dst)
}

func (s *Session) onResult(res scenario.Result) {
	if res.Generation != s.gen {
		return
	}
	idx := s.state.CurrentIndex
	tu := s.cfg.Tuning
	switch res.Status {
	case scenario.Completed:
		s.state.Completed[idx] = true
		s.log.Printf("scenario %q completed at t=%.3f kicks=%d", res.Scenario, res.SimTime, res.Kicks)
		if s.allCompleted() {
			s.schedule(tu.SuccessDelay(), s.finish)
			return
		}
		if s.cfg.DisableAutoProgress {
			return
		}
		s.schedule(tu.SuccessDelay(), func() {
			if err := s.StartScenario(s.nextUncompleted(idx)); err != nil {
				s.log.Printf("advance: %v", err)
			}
		})
	case scenario.Failed:
		s.log.Printf("scenario %q failed at t=%.3f: %s", res.Scenario, res.SimTime, res.Reason)
		if s.cfg.DisableAutoProgress {
			return
		}
		s.schedule(tu.FailDelay(), func() {
			if err := s.StartScenario(idx); err != nil {
				s.log.Printf("retry: %v", err)
			}
		})
	}
}

// schedule runs fn after d unless the generation moved on first.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.cancelPending()
	gen := s.gen
	s.pending = s.timers.After(d, func() {
		if gen != s.gen {
			return
		}
		s.pending = nil
		fn()
	})
}

func (s *Session) cancelPending() {
	s.pending.Cancel()
	s.pending = nil
}

func (s *Session) allCompleted() bool {
	for _, done := range s.state.Completed {
		if !done {
			return false
		}
	}
	return true
}

// nextUncompleted scans forward from idx, wrapping around.
func (s *Session) nextUncompleted(idx int) int {
	n := len(s.state.Completed)
	for k := 1; k <= n; k++ {
		j := (idx + k) % n
		if !s.state.Completed[j] {
			return j
		}
	}
	return idx
}

// leave folds the open attempt into the session totals.
func (s *Session) leave() {
	if !s.open {
		return
	}
	s.open = false
	st := s.eval.State()
	elapsed := s.clock.SimTime() - st.StartTime
	s.state.TotalElapsed += elapsed
	s.state.TotalKicks += st.KickCount

	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.EndScenario(); err != nil {
			s.log.Printf("replay end: %v", err)
		}
	}
	if s.cfg.Attempts != nil {
		outcome := st.Status.String()
		if st.Status == scenario.Running {
			outcome = OutcomeAbandoned
		}
		s.cfg.Attempts.AttemptFinished(Attempt{
			Playlist:   s.pl.Name,
			Scenario:   s.eval.Scenario().Name,
			Index:      s.state.CurrentIndex,
			Generation: s.gen,
			Outcome:    outcome,
			Reason:     st.FailureReason,
			Elapsed:    elapsed,
			Kicks:      st.KickCount,
		})
	}
}

func (s *Session) finish() {
	s.leave()
	s.state.Finished = true
	res := Result{
		PlaylistName: s.pl.Name,
		TotalElapsed: s.state.TotalElapsed,
		TotalKicks:   s.state.TotalKicks,
	}
	s.log.Printf("playlist %q finished elapsed=%.3f kicks=%d", res.PlaylistName, res.TotalElapsed, res.TotalKicks)
	if s.cfg.Results != nil {
		s.cfg.Results.PlaylistCompleted(res)
	}
}

// Next jumps to the following scenario, wrapping at the end.
func (s *Session) Next() error {
	n := len(s.pl.Scenarios)
	return s.StartScenario((s.state.CurrentIndex + 1) % n)
}

// Previous jumps to the preceding scenario, wrapping at the start.
func (s *Session) Previous() error {
	n := len(s.pl.Scenarios)
	return s.StartScenario((s.state.CurrentIndex - 1 + n) % n)
}

// Restart clears completion and totals and starts again at index 0. The
// simulation clock keeps running.
func (s *Session) Restart() error {
	s.timers.CancelAll()
	s.pending = nil
	s.leave()
	s.state = RunState{Completed: make([]bool, len(s.pl.Scenarios))}
	return s.StartScenario(0)
}

// Close tears down the active scenario without folding it.
func (s *Session) Close() {
	s.timers.CancelAll()
	s.pending = nil
	s.gen++
	s.world = nil
	s.eval = nil
	s.open = false
}
