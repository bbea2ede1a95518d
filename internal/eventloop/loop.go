package eventloop

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Errors
var (
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")
	ErrLoopTerminated     = errors.New("eventloop: loop has been terminated")
)

// Loop is a single-goroutine task and timer scheduler.
type Loop struct {
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	timers  timerHeap
	seq     uint64
	stopped bool

	// wake is signalled when work is added while Run is waiting.
	wake    chan struct{}
	running atomic.Bool
}

// New creates a Loop using clk as its time source.
func New(clk clock.Clock, logger *slog.Logger) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		clock:  clk,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the loop's time source.
func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Now returns the current time of the loop's clock.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post enqueues task to run on the loop.
func (l *Loop) Post(task func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrLoopTerminated
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	l.signal()
	return nil
}

// AfterFunc schedules task to run on the loop once d has elapsed.
// A stopped loop returns a Timer that never fires.
func (l *Loop) AfterFunc(d time.Duration, task func()) *Timer {
	if d < 0 {
		d = 0
	}

	l.mu.Lock()
	l.seq++
	t := &Timer{
		loop:     l,
		deadline: l.clock.Now().Add(d),
		seq:      l.seq,
		task:     task,
		index:    -1,
	}
	if l.stopped {
		l.mu.Unlock()
		return t
	}
	heap.Push(&l.timers, t)
	l.mu.Unlock()

	l.signal()
	return t
}

// NextDeadline returns the deadline of the earliest pending timer.
func (l *Loop) NextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.timers) == 0 {
		return time.Time{}, false
	}
	return l.timers[0].deadline, true
}

// Pending returns the number of queued tasks and pending timers.
func (l *Loop) Pending() (tasks, timers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue), len(l.timers)
}

// RunPending runs every queued task and every timer due at the clock's
// current time, including work those tasks schedule for the same instant.
// It returns the number of tasks executed.
func (l *Loop) RunPending() int {
	ran := 0
	for {
		task, ok := l.next()
		if !ok {
			return ran
		}
		l.execute(task)
		ran++
	}
}

// Run drives the loop until ctx is cancelled. Pending work is discarded
// and further Post calls fail once Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopAlreadyRunning
	}
	defer l.running.Store(false)
	defer l.terminate()

	l.logger.Debug("event loop started")

	for {
		l.RunPending()

		var timerC <-chan time.Time
		var sleeper *clock.Timer
		if deadline, ok := l.NextDeadline(); ok {
			sleeper = l.clock.Timer(deadline.Sub(l.clock.Now()))
			timerC = sleeper.C
		}

		select {
		case <-ctx.Done():
			if sleeper != nil {
				sleeper.Stop()
			}
			l.logger.Debug("event loop stopped")
			return nil
		case <-l.wake:
		case <-timerC:
		}

		if sleeper != nil {
			sleeper.Stop()
		}
	}
}

// next pops the next runnable unit of work: queued tasks first, then due timers.
func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) > 0 {
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		return task, true
	}

	if len(l.timers) > 0 && !l.timers[0].deadline.After(l.clock.Now()) {
		t := heap.Pop(&l.timers).(*Timer)
		t.fired = true
		return t.task, true
	}

	return nil, false
}

// execute runs a task, recovering panics so one bad task cannot kill the loop.
func (l *Loop) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop task panicked", "panic", r)
		}
	}()
	task()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) terminate() {
	l.mu.Lock()
	l.stopped = true
	l.queue = nil
	for _, t := range l.timers {
		t.index = -1
	}
	l.timers = nil
	l.mu.Unlock()
}
