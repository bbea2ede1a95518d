package lifecycle

import "time"

// State is the controller's view of the event channel.
type State int

const (
	// StateConnected is the initial state.
	StateConnected State = iota
	// StateLost is entered when the detector fires.
	StateLost
	// StateRecovering is entered when the recovery loop starts polling.
	StateRecovering
	// StateAbandoned is terminal; the channel has been closed.
	StateAbandoned
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateLost:
		return "lost"
	case StateRecovering:
		return "recovering"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// View is the render-time choice handed to the rendering layer.
type View int

const (
	// ViewBlank is the fallback while it is still suppressed.
	ViewBlank View = iota
	// ViewContent is the live content.
	ViewContent
	// ViewFallback is the "channel unavailable" view.
	ViewFallback
)

// String returns the string representation of the view.
func (v View) String() string {
	switch v {
	case ViewBlank:
		return "blank"
	case ViewContent:
		return "content"
	case ViewFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v View) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Status is a point-in-time snapshot of the controller.
type Status struct {
	State           State     `json:"state"`
	Retries         int       `json:"retries"`
	MaxAttempts     int       `json:"max_attempts"`
	Mounted         bool      `json:"mounted"`
	DataPresent     bool      `json:"data_present"`
	FallbackVisible bool      `json:"fallback_visible"`
	Reloading       bool      `json:"reloading"`
	Gate            bool      `json:"gate"`
	View            View      `json:"view"`
	Since           time.Time `json:"since"`
}

// Config holds recovery and suppression timing.
type Config struct {
	PollInterval  time.Duration // Sleep between polls
	MaxAttempts   int           // Polls before abandoning
	FallbackDelay time.Duration // Delay before the fallback view becomes visible
}

// DefaultConfig returns the documented contract: 100 polls one second apart
// and a half-second flicker window.
func DefaultConfig() Config {
	return Config{
		PollInterval:  1 * time.Second,
		MaxAttempts:   100,
		FallbackDelay: 500 * time.Millisecond,
	}
}
