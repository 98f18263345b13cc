package clock

import "math"

// Clock converts variable render-frame deltas into fixed simulation ticks.
// Simulation time is derived from the tick count, so it only ever moves in
// whole multiples of FixedDt.
type Clock struct {
	fixedDt    float64
	maxFrameDt float64

	accumulator float64
	tick        uint64
}

type Config struct {
	TickRateHz int
	MaxFrameDt float64
}

// StepFunc runs one fixed tick. tick is the index of the tick being run and
// simTime the simulation time at its end.
type StepFunc func(tick uint64, simTime float64)

func New(cfg Config) *Clock {
	hz := cfg.TickRateHz
	if hz <= 0 {
		hz = 60
	}
	maxFrame := cfg.MaxFrameDt
	if !(maxFrame > 0) {
		maxFrame = 0.1
	}
	return &Clock{fixedDt: 1 / float64(hz), maxFrameDt: maxFrame}
}

func (c *Clock) FixedDt() float64 { return c.fixedDt }
func (c *Clock) Tick() uint64     { return c.tick }
func (c *Clock) SimTime() float64 { return float64(c.tick) * c.fixedDt }

// Alpha is the render interpolation factor in [0,1).
func (c *Clock) Alpha() float64 { return c.accumulator / c.fixedDt }

// Advance feeds one render frame into the accumulator and runs every whole
// tick it covers. Negative or non-finite deltas are dropped and long stalls
// are clamped to the max frame length so a resumed loop never tries to catch
// up on an unbounded backlog.
func (c *Clock) Advance(frameDt float64, step StepFunc) (ticks int, alpha float64) {
	if math.IsNaN(frameDt) || frameDt < 0 {
		frameDt = 0
	}
	if frameDt > c.maxFrameDt {
		frameDt = c.maxFrameDt
	}
	c.accumulator += frameDt
	for c.accumulator >= c.fixedDt {
		c.accumulator -= c.fixedDt
		c.tick++
		if step != nil {
			step(c.tick, c.SimTime())
		}
		ticks++
	}
	if c.accumulator < 0 {
		c.accumulator = 0
	}
	return ticks, c.Alpha()
}

// StepOnce runs exactly one tick regardless of the accumulator. Replays and
// tests use it to walk the same tick boundaries without wall-clock input.
func (c *Clock) StepOnce(step StepFunc) {
	c.tick++
	if step != nil {
		step(c.tick, c.SimTime())
	}
}
