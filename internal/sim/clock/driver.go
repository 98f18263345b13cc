package clock

import (
	"context"
	"sync"
	"time"
)

type TimeSource interface {
	Now() time.Time
}

type SystemTime struct{}

func (SystemTime) Now() time.Time { return time.Now() }

// FrameStepper consumes one render frame of wall-clock time.
type FrameStepper interface {
	Frame(frameDt float64)
}

// Driver is the real-time loop. It owns the stepper: every Frame call and
// every submitted command runs on the Run goroutine.
type Driver struct {
	stepper  FrameStepper
	interval time.Duration
	now      TimeSource

	cmds     chan func()
	stop     chan struct{}
	stopOnce sync.Once
}

func NewDriver(s FrameStepper, renderRateHz int, ts TimeSource) *Driver {
	if renderRateHz <= 0 {
		renderRateHz = 60
	}
	if ts == nil {
		ts = SystemTime{}
	}
	return &Driver{
		stepper:  s,
		interval: time.Second / time.Duration(renderRateHz),
		now:      ts,
		cmds:     make(chan func(), 64),
		stop:     make(chan struct{}),
	}
}

// Submit queues fn to run on the loop goroutine before the next frame.
// It reports false when the queue is full.
func (d *Driver) Submit(fn func()) bool {
	select {
	case d.cmds <- fn:
		return true
	default:
		return false
	}
}

func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	last := d.now.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.stop:
			return nil
		case fn := <-d.cmds:
			fn()
		case <-ticker.C:
			now := d.now.Now()
			frameDt := now.Sub(last).Seconds()
			last = now
			d.stepper.Frame(frameDt)
		}
	}
}

func (d *Driver) Stop() { d.stopOnce.Do(func() { close(d.stop) }) }
