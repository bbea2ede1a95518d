package lifecycle

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rickgao/pairamid-live/internal/channel"
	"github.com/rickgao/pairamid-live/internal/eventloop"
)

// fakeChannel records bindings and lets tests raise loss events.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	closes    int
	nextID    uint64
	handlers  map[uint64]channel.Subscription
	fns       map[uint64]func(channel.LossKind)
	unsubs    int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		handlers: make(map[uint64]channel.Subscription),
		fns:      make(map[uint64]func(channel.LossKind)),
	}
}

func (f *fakeChannel) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) setConnected(v bool) {
	f.mu.Lock()
	f.connected = v
	f.mu.Unlock()
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Subscribe(kind channel.LossKind, fn func(channel.LossKind)) channel.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := channel.Subscription{ID: f.nextID, Kind: kind}
	f.handlers[sub.ID] = sub
	f.fns[sub.ID] = fn
	return sub
}

func (f *fakeChannel) Unsubscribe(sub channel.Subscription) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[sub.ID]; !ok {
		return false
	}
	delete(f.handlers, sub.ID)
	delete(f.fns, sub.ID)
	f.unsubs++
	return true
}

func (f *fakeChannel) bindings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeChannel) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fail delivers a loss event to every handler bound to kind, as the
// channel's dispatch goroutine would.
func (f *fakeChannel) fail(kind channel.LossKind) {
	f.mu.Lock()
	var fns []func(channel.LossKind)
	for id, sub := range f.handlers {
		if sub.Kind == kind {
			fns = append(fns, f.fns[id])
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
}

// recorder collects lifecycle events.
type recorder struct {
	events []Event
}

func (r *recorder) Observe(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) count(typ EventType) int {
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (r *recorder) first(typ EventType) (Event, bool) {
	for _, ev := range r.events {
		if ev.Type == typ {
			return ev, true
		}
	}
	return Event{}, false
}

// harness bundles a controller with a mock clock and its event loop.
type harness struct {
	t       *testing.T
	mock    *clock.Mock
	loop    *eventloop.Loop
	ch      *fakeChannel
	rec     *recorder
	reloads []string
	ctrl    *Controller
	start   time.Time
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	mock := clock.NewMock()
	h := &harness{
		t:     t,
		mock:  mock,
		loop:  eventloop.New(mock, nil),
		ch:    newFakeChannel(),
		rec:   &recorder{},
		start: mock.Now(),
	}
	h.ch.connected = true
	h.ctrl = NewController(cfg, h.loop, h.ch, ReloaderFunc(func(reason string) {
		h.reloads = append(h.reloads, reason)
	}), nil, h.rec)
	return h
}

// mountWithData mounts the view with initial data present.
func (h *harness) mountWithData() {
	h.t.Helper()
	if err := h.ctrl.SetInitialData(true); err != nil {
		h.t.Fatalf("SetInitialData: %v", err)
	}
	if err := h.ctrl.Mount(); err != nil {
		h.t.Fatalf("Mount: %v", err)
	}
	h.loop.RunPending()
}

// elapsed returns the mock time since the harness started.
func (h *harness) elapsed() time.Duration {
	return h.mock.Now().Sub(h.start)
}

// advance moves the mock clock forward by d, running every task and timer
// at its own deadline.
func (h *harness) advance(d time.Duration) {
	target := h.mock.Now().Add(d)
	h.loop.RunPending()
	for {
		next, ok := h.loop.NextDeadline()
		if !ok || next.After(target) {
			break
		}
		h.mock.Set(next)
		h.loop.RunPending()
	}
	h.mock.Set(target)
	h.loop.RunPending()
}

// advanceUntil steps timer by timer until cond holds or d elapses.
func (h *harness) advanceUntil(d time.Duration, cond func() bool) bool {
	target := h.mock.Now().Add(d)
	h.loop.RunPending()
	for !cond() {
		next, ok := h.loop.NextDeadline()
		if !ok || next.After(target) {
			return false
		}
		h.mock.Set(next)
		h.loop.RunPending()
	}
	return true
}
