package lifecycle

import (
	"time"

	"github.com/rickgao/pairamid-live/internal/channel"
)

// EventType identifies an observable lifecycle step.
type EventType int

const (
	EventMounted EventType = iota + 1
	EventUnmounted
	EventLost
	EventRecovering
	EventPoll
	EventReload
	EventAbandoned
	EventFallbackShown
	EventFallbackHidden
	EventCycleRestarted
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventMounted:
		return "mounted"
	case EventUnmounted:
		return "unmounted"
	case EventLost:
		return "lost"
	case EventRecovering:
		return "recovering"
	case EventPoll:
		return "poll"
	case EventReload:
		return "reload"
	case EventAbandoned:
		return "abandoned"
	case EventFallbackShown:
		return "fallback_shown"
	case EventFallbackHidden:
		return "fallback_hidden"
	case EventCycleRestarted:
		return "cycle_restarted"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle step. From and To are equal for events that
// do not change state.
type Event struct {
	Type      EventType
	From      State
	To        State
	Kind      channel.LossKind // EventLost only
	Attempt   int              // EventPoll, EventReload, EventAbandoned, EventCycleRestarted
	Connected bool             // EventPoll only
	At        time.Time
}

// Observer receives lifecycle events on the event loop goroutine.
// Implementations must not block.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc is a function adapter for Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// Reloader performs a full application restart.
type Reloader interface {
	Reload(reason string)
}

// ReloaderFunc is a function adapter for Reloader.
type ReloaderFunc func(reason string)

func (f ReloaderFunc) Reload(reason string) {
	f(reason)
}
