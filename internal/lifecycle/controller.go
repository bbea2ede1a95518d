package lifecycle

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/pairamid-live/internal/channel"
	"github.com/rickgao/pairamid-live/internal/eventloop"
)

// Channel is the part of channel.Handle the controller consumes.
type Channel interface {
	IsConnected() bool
	Close() error
	Subscribe(kind channel.LossKind, fn func(channel.LossKind)) channel.Subscription
	Unsubscribe(sub channel.Subscription) bool
}

// Scheduler runs controller tasks one at a time. *eventloop.Loop implements it.
type Scheduler interface {
	Post(task func()) error
	AfterFunc(d time.Duration, task func()) *eventloop.Timer
	Now() time.Time
}

// Controller is the Connection Lifecycle Controller.
type Controller struct {
	cfg       Config
	sched     Scheduler
	ch        Channel
	reloader  Reloader
	logger    *slog.Logger
	observers []Observer

	// Owned by the scheduler goroutine.
	state       State
	since       time.Time
	retries     int
	cycle       uint64
	pollTimer   *eventloop.Timer
	mounted     bool
	dataPresent bool
	reloading   bool
	closed      bool
	det         *detector
	sup         *suppressor

	status atomic.Pointer[Status]
}

// NewController creates a controller in StateConnected. Zero-valued Config
// fields take their DefaultConfig value.
func NewController(cfg Config, sched Scheduler, ch Channel, reloader Reloader, logger *slog.Logger, observers ...Observer) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = def.FallbackDelay
	}
	if reloader == nil {
		reloader = ReloaderFunc(func(string) {})
	}

	c := &Controller{
		cfg:       cfg,
		sched:     sched,
		ch:        ch,
		reloader:  reloader,
		logger:    logger.With("component", "lifecycle"),
		observers: observers,
		state:     StateConnected,
		since:     sched.Now(),
	}
	c.det = &detector{
		ch:     ch,
		post:   c.post,
		now:    sched.Now,
		logger: c.logger,
		onLost: c.onLost,
	}
	c.sup = &suppressor{
		sched:    sched,
		delay:    cfg.FallbackDelay,
		onChange: c.onFallback,
	}
	c.publish()
	return c
}

// Mount binds the detector. It is called when the consuming view appears.
// Mounting while a recovery cycle runs restarts that cycle at zero retries.
func (c *Controller) Mount() error {
	return c.post(c.mount)
}

// Unmount unbinds the detector and releases the flicker timer. A recovery
// cycle in progress keeps polling until it reloads or abandons.
func (c *Controller) Unmount() error {
	return c.post(c.unmount)
}

// SetInitialData updates the external "initial data present" flag.
func (c *Controller) SetInitialData(present bool) error {
	return c.post(func() { c.setInitialData(present) })
}

// Status returns the snapshot published after the last completed task.
func (c *Controller) Status() Status {
	return *c.status.Load()
}

// Gate reports the current gating signal.
func (c *Controller) Gate() bool {
	return c.Status().Gate
}

// View reports the current render-time choice.
func (c *Controller) View() View {
	return c.Status().View
}

// post schedules fn and republishes the status once it ran.
func (c *Controller) post(fn func()) error {
	return c.sched.Post(c.task(fn))
}

func (c *Controller) after(d time.Duration, fn func()) *eventloop.Timer {
	return c.sched.AfterFunc(d, c.task(fn))
}

func (c *Controller) task(fn func()) func() {
	return func() {
		fn()
		c.publish()
	}
}

func (c *Controller) mount() {
	if c.mounted {
		return
	}
	c.mounted = true
	c.emit(Event{Type: EventMounted, From: c.state, To: c.state})

	switch {
	case c.state == StateAbandoned:
		c.logger.Info("mounted after abandonment, channel stays closed")
	case c.reloading:
		c.logger.Debug("mounted while reloading")
	case c.state == StateLost || c.state == StateRecovering:
		c.restartCycle()
	default:
		c.det.bind()
	}
	c.refreshGate()
}

func (c *Controller) unmount() {
	if !c.mounted {
		return
	}
	c.mounted = false
	c.det.unbind()
	c.sup.cancel()
	c.emit(Event{Type: EventUnmounted, From: c.state, To: c.state})
}

func (c *Controller) setInitialData(present bool) {
	if c.dataPresent == present {
		return
	}
	c.dataPresent = present
	c.logger.Debug("initial data changed", "present", present)
	c.refreshGate()
}

// refreshGate recomputes the gate and drives the suppressor from it.
func (c *Controller) refreshGate() {
	if c.reloading {
		return
	}
	if Gate(c.state, c.dataPresent) {
		c.sup.cancel()
		return
	}
	if c.mounted {
		c.sup.arm()
	}
}

func (c *Controller) onFallback(visible bool) {
	typ := EventFallbackHidden
	if visible {
		typ = EventFallbackShown
		c.logger.Info("showing fallback view", "state", c.state)
	}
	c.emit(Event{Type: typ, From: c.state, To: c.state})
}

func (c *Controller) transition(to State) State {
	from := c.state
	c.state = to
	c.since = c.sched.Now()
	c.logger.Info("state transition", "from", from, "to", to)
	return from
}

func (c *Controller) emit(ev Event) {
	ev.At = c.sched.Now()
	for _, obs := range c.observers {
		obs.Observe(ev)
	}
}

func (c *Controller) publish() {
	gate := Gate(c.state, c.dataPresent)
	c.status.Store(&Status{
		State:           c.state,
		Retries:         c.retries,
		MaxAttempts:     c.cfg.MaxAttempts,
		Mounted:         c.mounted,
		DataPresent:     c.dataPresent,
		FallbackVisible: c.sup.visible,
		Reloading:       c.reloading,
		Gate:            gate,
		View:            choose(gate, c.sup.visible),
		Since:           c.since,
	})
}
