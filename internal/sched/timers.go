// Package sched holds wall-clock deferred tasks that run on the simulation
// loop goroutine when it polls them.
package sched

import (
	"sort"
	"time"
)

type Task struct {
	seq       uint64
	due       time.Time
	fn        func()
	cancelled bool
	fired     bool
}

// Cancel stops a pending task. It reports whether the task was still pending.
func (t *Task) Cancel() bool {
	if t == nil || t.cancelled || t.fired {
		return false
	}
	t.cancelled = true
	return true
}

func (t *Task) Pending() bool { return t != nil && !t.cancelled && !t.fired }

// Timers is not safe for concurrent use; the owning loop calls every method.
type Timers struct {
	now   func() time.Time
	tasks []*Task
	seq   uint64
	due   []*Task
}

// New uses time.Now when now is nil.
func New(now func() time.Time) *Timers {
	if now == nil {
		now = time.Now
	}
	return &Timers{now: now}
}

func (t *Timers) After(d time.Duration, fn func()) *Task {
	t.seq++
	task := &Task{seq: t.seq, due: t.now().Add(d), fn: fn}
	t.tasks = append(t.tasks, task)
	return task
}

// Poll runs every task due by now, earliest first, and returns how many ran.
// Tasks scheduled by a running task wait for the next Poll.
func (t *Timers) Poll() int {
	now := t.now()
	t.due = t.due[:0]
	kept := t.tasks[:0]
	for _, task := range t.tasks {
		switch {
		case task.cancelled:
		case !task.due.After(now):
			t.due = append(t.due, task)
		default:
			kept = append(kept, task)
		}
	}
	for i := len(kept); i < len(t.tasks); i++ {
		t.tasks[i] = nil
	}
	t.tasks = kept

	sort.Slice(t.due, func(i, j int) bool {
		a, b := t.due[i], t.due[j]
		if !a.due.Equal(b.due) {
			return a.due.Before(b.due)
		}
		return a.seq < b.seq
	})
	ran := 0
	for _, task := range t.due {
		// An earlier task in this batch may have cancelled it.
		if task.cancelled {
			continue
		}
		task.fired = true
		task.fn()
		ran++
	}
	return ran
}

func (t *Timers) CancelAll() {
	for _, task := range t.tasks {
		task.cancelled = true
	}
	for i := range t.tasks {
		t.tasks[i] = nil
	}
	t.tasks = t.tasks[:0]
}

// Len counts pending tasks.
func (t *Timers) Len() int {
	n := 0
	for _, task := range t.tasks {
		if task.Pending() {
			n++
		}
	}
	return n
}
