package scenario

import (
	"futdrill.ai/internal/sim/geom"
	"futdrill.ai/internal/sim/world"
)

type Status uint8

const (
	Running Status = iota
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Failure reasons shown to the player.
const (
	ReasonTimeout           = "Time esgotado"
	ReasonOffPath           = "Bola saiu do caminho"
	ReasonTooManyKicks      = "Chutes demais"
	ReasonForbiddenTouch    = "Bola tocou em bot adversário"
	ReasonGoalConceded      = "Gol sofrido"
	ReasonTouchDeadline     = "Não tocou na bola a tempo"
	ReasonCheckpointTimeout = "Checkpoint não alcançado a tempo"
	ReasonGoalNeedsPlayer   = "Gol deve ser marcado pelo jogador"
	ReasonGoalNeedsBot      = "Gol deve ser marcado por um bot"
	reasonGoalNeedsBotID    = "Gol deve ser marcado pelo bot "
)

const DefaultGoalWarmup = 0.25

// RunState is the per-attempt state. A fresh one is built for every attempt.
type RunState struct {
	Status              Status
	FailureReason       string
	CheckpointIndex     int
	CheckpointStartTime float64
	KickCount           int
	GoalScored          bool
	StartTime           float64

	checkpointArmed bool
	targetTouches   int
}

type Result struct {
	Generation uint64
	Scenario   string
	Status     Status
	Reason     string
	// Simulation time of the transition.
	SimTime float64
	Kicks   int
}

type Options struct {
	// Seconds after start during which goals are ignored. Negative means
	// DefaultGoalWarmup.
	GoalWarmup float64
	// OnDone is called once, on the transition out of Running.
	OnDone func(Result)
}

// Evaluator judges one attempt. It is a world.Listener bound to the world of
// the same generation; events from any other generation are ignored.
type Evaluator struct {
	sc     *Scenario
	gen    uint64
	warmup float64
	onDone func(Result)
	st     RunState
}

func NewEvaluator(sc *Scenario, generation uint64, startTime float64, opts Options) *Evaluator {
	warmup := opts.GoalWarmup
	if warmup < 0 {
		warmup = DefaultGoalWarmup
	}
	return &Evaluator{
		sc:     sc,
		gen:    generation,
		warmup: warmup,
		onDone: opts.OnDone,
		st:     RunState{Status: Running, StartTime: startTime},
	}
}

func (e *Evaluator) Generation() uint64  { return e.gen }
func (e *Evaluator) Scenario() *Scenario { return e.sc }
func (e *Evaluator) Status() Status      { return e.st.Status }
func (e *Evaluator) State() RunState     { return e.st }

// Tick runs the per-tick checks after the world has stepped. The first rule
// that decides the attempt wins.
func (e *Evaluator) Tick(ball *geom.Circle, simTime float64) {
	if e.st.Status != Running {
		return
	}
	sc := e.sc
	elapsed := simTime - e.st.StartTime

	if sc.TimeLimit > 0 && elapsed > sc.TimeLimit {
		if sc.SurvivalOnly() {
			e.complete(simTime)
		} else {
			e.fail(ReasonTimeout, simTime)
		}
		return
	}

	if bt := sc.BallTouch; bt != nil && bt.TimeLimit > 0 && elapsed > bt.TimeLimit && e.st.targetTouches < bt.RequiredTouches {
		e.fail(ReasonTouchDeadline, simTime)
		return
	}

	if p := sc.Path; p != nil {
		if geom.DistToPolyline(ball.Pos, p.Points) > p.Width/2+ball.Radius/2 {
			e.fail(ReasonOffPath, simTime)
			return
		}
	}

	if e.st.CheckpointIndex < len(sc.Checkpoints) {
		cp := sc.Checkpoints[e.st.CheckpointIndex]
		if !e.st.checkpointArmed {
			e.st.checkpointArmed = true
			e.st.CheckpointStartTime = elapsed
		}
		if cp.TimeLimit > 0 && elapsed-e.st.CheckpointStartTime > cp.TimeLimit {
			e.fail(ReasonCheckpointTimeout, simTime)
			return
		}
		if ball.Pos.DistSq(cp.Pos) <= cp.Radius*cp.Radius {
			e.st.CheckpointIndex++
			e.st.checkpointArmed = false
			e.st.CheckpointStartTime = 0
		}
	}

	e.checkCompletion(simTime)
}

func (e *Evaluator) OnKick(ev world.KickEvent) {
	if ev.Generation != e.gen || e.st.Status != Running || ev.By.IsBot {
		return
	}
	e.st.KickCount++
	if k := e.sc.KickCount; k != nil && k.exceeded(e.st.KickCount) {
		e.fail(ReasonTooManyKicks, ev.SimTime)
		return
	}
	e.checkCompletion(ev.SimTime)
}

func (e *Evaluator) OnBallTouch(ev world.TouchEvent) {
	if ev.Generation != e.gen || e.st.Status != Running {
		return
	}
	if p := e.sc.PreventTouch; p != nil && p.forbids(ev.By.ID) {
		e.fail(ReasonForbiddenTouch, ev.SimTime)
		return
	}
	if bt := e.sc.BallTouch; bt != nil && ev.By.ID == bt.TargetID {
		e.st.targetTouches++
		if e.st.targetTouches >= bt.RequiredTouches {
			e.checkCompletion(ev.SimTime)
		}
	}
}

func (e *Evaluator) OnGoal(ev world.GoalEvent) {
	if ev.Generation != e.gen || e.st.Status != Running {
		return
	}
	if ev.SimTime-e.st.StartTime < e.warmup {
		return
	}
	if n := e.sc.NoGoal; n != nil && n.Team == ev.Goal {
		e.fail(ReasonGoalConceded, ev.SimTime)
		return
	}
	g := e.sc.Goal
	scoring := ev.ScoringTeam()
	if g == nil || g.Team != scoring {
		return
	}
	switch g.ScoredBy {
	case ScoredByPlayer:
		if !ev.HasScorer || ev.Scorer.IsBot {
			e.fail(ReasonGoalNeedsPlayer, ev.SimTime)
			return
		}
	case ScoredByBot:
		if !ev.HasScorer || !ev.Scorer.IsBot || ev.Scorer.Team != scoring {
			e.fail(ReasonGoalNeedsBot, ev.SimTime)
			return
		}
		if g.ScoredByBotID != "" && ev.Scorer.ID != g.ScoredByBotID {
			e.fail(reasonGoalNeedsBotID+g.ScoredByBotID, ev.SimTime)
			return
		}
	}
	e.st.GoalScored = true
	e.checkCompletion(ev.SimTime)
}

// checkCompletion completes the attempt when every declared condition holds.
func (e *Evaluator) checkCompletion(simTime float64) {
	if e.st.Status != Running {
		return
	}
	sc := e.sc
	if e.st.CheckpointIndex < len(sc.Checkpoints) {
		return
	}
	if sc.SurvivalOnly() {
		return
	}
	if sc.Goal != nil && !e.st.GoalScored {
		return
	}
	if sc.KickCount != nil && !sc.KickCount.satisfied(e.st.KickCount) {
		return
	}
	if sc.BallTouch != nil && e.st.targetTouches < sc.BallTouch.RequiredTouches {
		return
	}
	e.complete(simTime)
}

func (e *Evaluator) complete(simTime float64) {
	e.st.Status = Completed
	e.done(simTime)
}

func (e *Evaluator) fail(reason string, simTime float64) {
	e.st.Status = Failed
	e.st.FailureReason = reason
	e.done(simTime)
}

func (e *Evaluator) done(simTime float64) {
	if e.onDone == nil {
		return
	}
	e.onDone(Result{
		Generation: e.gen,
		Scenario:   e.sc.Name,
		Status:     e.st.Status,
		Reason:     e.st.FailureReason,
		SimTime:    simTime,
		Kicks:      e.st.KickCount,
	})
}
