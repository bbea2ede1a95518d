package lifecycle

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pairamid-live/internal/channel"
)

func TestNewController_Defaults(t *testing.T) {
	h := newHarness(t, Config{})

	assert.Equal(t, DefaultConfig(), h.ctrl.cfg)
	st := h.ctrl.Status()
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, 100, st.MaxAttempts)
	assert.False(t, st.Gate, "no initial data yet")
	assert.Equal(t, ViewBlank, st.View)
}

func TestController_MountBindsDetector(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mountWithData()

	assert.Equal(t, 2, h.ch.bindings())
	st := h.ctrl.Status()
	assert.True(t, st.Mounted)
	assert.True(t, st.Gate)
	assert.Equal(t, ViewContent, st.View)

	require.NoError(t, h.ctrl.Mount())
	h.loop.RunPending()
	assert.Equal(t, 2, h.ch.bindings(), "second mount does not bind again")
	assert.Equal(t, 1, h.rec.count(EventMounted))
}

// Scenario A: the channel is back on the first poll.
func TestController_RecoversOnFirstPoll(t *testing.T) {
	h := newHarness(t, Config{
		PollInterval:  time.Millisecond,
		MaxAttempts:   100,
		FallbackDelay: 500 * time.Millisecond,
	})
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostWithError)
	h.loop.RunPending()

	st := h.ctrl.Status()
	assert.Equal(t, StateRecovering, st.State)
	assert.False(t, st.Gate)
	assert.Equal(t, ViewBlank, st.View)

	h.ch.setConnected(true)
	h.advance(time.Millisecond)

	require.Len(t, h.reloads, 1)
	ev, ok := h.rec.first(EventReload)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Attempt)
	assert.Equal(t, h.start.Add(time.Millisecond), ev.At)

	h.advance(time.Second)
	assert.Len(t, h.reloads, 1, "reload happens exactly once")
	assert.Zero(t, h.rec.count(EventFallbackShown), "fallback never shown")
	assert.Equal(t, 1, h.rec.count(EventPoll))
	assert.Equal(t, 0, h.ch.bindings())
	assert.Zero(t, h.ch.closeCount())

	_, timers := h.loop.Pending()
	assert.Zero(t, timers, "nothing is scheduled after reload")
	assert.True(t, h.ctrl.Status().Reloading)
}

// Scenario B: the channel never comes back.
func TestController_AbandonsAfterMaxAttempts(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostCleanly)
	h.advance(100 * time.Second)

	st := h.ctrl.Status()
	assert.Equal(t, StateAbandoned, st.State)
	assert.Zero(t, st.Retries)
	assert.Equal(t, ViewFallback, st.View)
	assert.Equal(t, 1, h.ch.closeCount())
	assert.Equal(t, 100, h.rec.count(EventPoll))
	assert.Empty(t, h.reloads)

	ev, ok := h.rec.first(EventAbandoned)
	require.True(t, ok)
	assert.Equal(t, 100, ev.Attempt)
	assert.Equal(t, h.start.Add(100*time.Second), ev.At)

	_, timers := h.loop.Pending()
	assert.Zero(t, timers, "no poll after the last attempt")

	h.advance(time.Hour)
	assert.Equal(t, 100, h.rec.count(EventPoll))
	assert.Equal(t, 1, h.ch.closeCount())
}

func TestController_AbandonedSurvivesRemount(t *testing.T) {
	h := newHarness(t, Config{PollInterval: time.Millisecond, MaxAttempts: 3, FallbackDelay: time.Millisecond})
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostWithError)
	h.advance(10 * time.Millisecond)
	require.Equal(t, StateAbandoned, h.ctrl.Status().State)

	require.NoError(t, h.ctrl.Unmount())
	require.NoError(t, h.ctrl.Mount())
	h.ch.setConnected(true)
	h.advance(time.Second)

	st := h.ctrl.Status()
	assert.Equal(t, StateAbandoned, st.State)
	assert.Equal(t, 0, h.ch.bindings(), "abandoned controller never rebinds")
	assert.Equal(t, 1, h.ch.closeCount())
	assert.Empty(t, h.reloads)
	assert.Equal(t, ViewFallback, st.View)
}

// Scenario C: the view goes away inside the flicker window.
func TestController_UnmountDuringRecovery(t *testing.T) {
	h := newHarness(t, Config{
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   100,
		FallbackDelay: 500 * time.Millisecond,
	})
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostWithError)
	h.advance(200 * time.Millisecond)
	require.Equal(t, StateRecovering, h.ctrl.Status().State)
	require.Equal(t, 20, h.ctrl.Status().Retries)

	require.NoError(t, h.ctrl.Unmount())
	h.loop.RunPending()

	st := h.ctrl.Status()
	assert.False(t, st.Mounted)
	assert.Equal(t, StateRecovering, st.State, "unmount leaves the state machine alone")
	assert.False(t, st.Gate)
	assert.Equal(t, 0, h.ch.bindings(), "subscription unbound")
	_, timers := h.loop.Pending()
	assert.Equal(t, 1, timers, "only the poll is left, the flicker timer is released")

	h.advance(300 * time.Millisecond)
	assert.Zero(t, h.rec.count(EventFallbackShown), "fallback never shown")
	assert.Equal(t, 50, h.rec.count(EventPoll), "recovery keeps polling while unmounted")

	require.NoError(t, h.ctrl.Mount())
	h.loop.RunPending()
	st = h.ctrl.Status()
	assert.Equal(t, StateRecovering, st.State)
	assert.Zero(t, st.Retries, "remount starts a clean cycle")
	restarted, ok := h.rec.first(EventCycleRestarted)
	require.True(t, ok)
	assert.Equal(t, 50, restarted.Attempt)

	h.advance(10 * time.Millisecond)
	last := h.rec.events[len(h.rec.events)-1]
	assert.Equal(t, EventPoll, last.Type)
	assert.Equal(t, 1, last.Attempt)
	assert.Equal(t, 1, h.rec.count(EventLost))
}

func TestController_RemountOnDeadChannel(t *testing.T) {
	h := newHarness(t, Config{
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   1000,
		FallbackDelay: 500 * time.Millisecond,
	})
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostCleanly)
	h.advance(200 * time.Millisecond)

	require.NoError(t, h.ctrl.Unmount())
	require.NoError(t, h.ctrl.Mount())
	h.advance(2 * time.Second)

	st := h.ctrl.Status()
	assert.Equal(t, StateRecovering, st.State)
	assert.False(t, st.Gate, "gate stays closed while the channel is down")
	assert.Equal(t, ViewFallback, st.View)
	assert.Empty(t, h.reloads)

	shown, ok := h.rec.first(EventFallbackShown)
	require.True(t, ok)
	assert.Equal(t, h.start.Add(700*time.Millisecond), shown.At, "remount re-arms the flicker timer")

	h.ch.setConnected(true)
	h.advance(10 * time.Millisecond)
	assert.Len(t, h.reloads, 1)
	assert.True(t, h.ctrl.Status().Reloading)
}

func TestController_ReloadWhileUnmounted(t *testing.T) {
	h := newHarness(t, Config{
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   100,
		FallbackDelay: 500 * time.Millisecond,
	})
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostWithError)
	h.advance(50 * time.Millisecond)
	require.NoError(t, h.ctrl.Unmount())
	h.advance(100 * time.Millisecond)

	h.ch.setConnected(true)
	h.advance(10 * time.Millisecond)

	require.Len(t, h.reloads, 1)
	ev, ok := h.rec.first(EventReload)
	require.True(t, ok)
	assert.Equal(t, 16, ev.Attempt)
	assert.Zero(t, h.rec.count(EventFallbackShown))

	_, timers := h.loop.Pending()
	assert.Zero(t, timers)
}

// Scenario D: the channel comes back after the fallback became visible.
func TestController_RecoversAfterFallback(t *testing.T) {
	h := newHarness(t, Config{
		PollInterval:  10 * time.Millisecond,
		MaxAttempts:   100,
		FallbackDelay: 500 * time.Millisecond,
	})
	h.mountWithData()

	h.ch.setConnected(false)
	h.ch.fail(channel.LostWithError)

	h.advance(499 * time.Millisecond)
	assert.Equal(t, ViewBlank, h.ctrl.Status().View)

	h.advance(time.Millisecond)
	assert.Equal(t, ViewFallback, h.ctrl.Status().View)
	shown, ok := h.rec.first(EventFallbackShown)
	require.True(t, ok)
	assert.Equal(t, h.start.Add(500*time.Millisecond), shown.At)

	h.advance(95 * time.Millisecond)
	h.ch.setConnected(true)
	h.advance(5 * time.Millisecond)

	require.Len(t, h.reloads, 1)
	reload, ok := h.rec.first(EventReload)
	require.True(t, ok)
	assert.Equal(t, h.start.Add(600*time.Millisecond), reload.At)
	assert.Equal(t, 60, reload.Attempt)

	assert.Equal(t, 1, h.rec.count(EventFallbackHidden), "reload supersedes the fallback")
	assert.NotEqual(t, ViewFallback, h.ctrl.Status().View)
}

func TestController_FallbackWhileDataMissing(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	require.NoError(t, h.ctrl.Mount())

	h.advance(400 * time.Millisecond)
	assert.Equal(t, ViewBlank, h.ctrl.Status().View)

	h.advance(100 * time.Millisecond)
	assert.Equal(t, ViewFallback, h.ctrl.Status().View)

	require.NoError(t, h.ctrl.SetInitialData(true))
	h.loop.RunPending()
	st := h.ctrl.Status()
	assert.Equal(t, ViewContent, st.View)
	assert.False(t, st.FallbackVisible)
	assert.Equal(t, 1, h.rec.count(EventFallbackHidden))
}

func TestController_DataArrivesInsideWindow(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	require.NoError(t, h.ctrl.Mount())
	h.advance(200 * time.Millisecond)

	require.NoError(t, h.ctrl.SetInitialData(true))
	h.advance(time.Second)

	assert.Zero(t, h.rec.count(EventFallbackShown))
	assert.Equal(t, ViewContent, h.ctrl.Status().View)
}

func TestController_UnmountedLossIsIgnored(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mountWithData()
	require.NoError(t, h.ctrl.Unmount())
	h.loop.RunPending()

	h.ch.fail(channel.LostWithError)
	h.advance(time.Minute)

	assert.Equal(t, StateConnected, h.ctrl.Status().State)
	assert.Zero(t, h.rec.count(EventLost))
}

// TestController_Invariants drives random event sequences and checks the
// recovery invariants after every step.
func TestController_Invariants(t *testing.T) {
	const maxAttempts = 10
	cfg := Config{
		PollInterval:  time.Millisecond,
		MaxAttempts:   maxAttempts,
		FallbackDelay: 5 * time.Millisecond,
	}

	for seed := int64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		h := newHarness(t, cfg)

		active := 0
		lastAttempt := 0
		h.ctrl.observers = append(h.ctrl.observers, ObserverFunc(func(ev Event) {
			switch ev.Type {
			case EventLost:
				active++
				lastAttempt = 0
			case EventReload, EventAbandoned:
				active--
			case EventCycleRestarted:
				assert.Equal(t, 1, active, "seed %d: restart needs a running cycle", seed)
				lastAttempt = 0
			case EventPoll:
				assert.Equal(t, lastAttempt+1, ev.Attempt, "seed %d: retries step by one", seed)
				lastAttempt = ev.Attempt
			}
			assert.LessOrEqual(t, active, 1, "seed %d: one recovery loop at a time", seed)
			assert.GreaterOrEqual(t, active, 0, "seed %d", seed)
		}))

		connected := true
		data := false
		for step := 0; step < 300 && len(h.reloads) == 0; step++ {
			switch rng.Intn(7) {
			case 0:
				h.ch.fail(channel.LostCleanly)
			case 1:
				h.ch.fail(channel.LostWithError)
			case 2:
				connected = !connected
				h.ch.setConnected(connected)
			case 3:
				require.NoError(t, h.ctrl.Unmount())
			case 4:
				require.NoError(t, h.ctrl.Mount())
			case 5:
				data = !data
				require.NoError(t, h.ctrl.SetInitialData(data))
			case 6:
				h.advance(time.Duration(rng.Intn(20)) * time.Millisecond)
			}
			h.loop.RunPending()

			st := h.ctrl.Status()
			assert.Equal(t, Gate(st.State, st.DataPresent), st.Gate, "seed %d", seed)
			assert.GreaterOrEqual(t, st.Retries, 0)
			assert.LessOrEqual(t, st.Retries, maxAttempts)
			assert.LessOrEqual(t, h.ch.closeCount(), 1, "seed %d: close at most once", seed)
			assert.LessOrEqual(t, h.ch.bindings(), 2, "seed %d: one binding per kind", seed)
			if st.State == StateAbandoned {
				assert.Equal(t, 1, h.ch.closeCount())
				assert.Equal(t, 0, h.ch.bindings())
			}
		}
		assert.LessOrEqual(t, len(h.reloads), 1, "seed %d", seed)
	}
}
