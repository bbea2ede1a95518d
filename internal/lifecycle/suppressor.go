package lifecycle

import (
	"time"

	"github.com/rickgao/pairamid-live/internal/eventloop"
)

// suppressor holds the fallback view back for delay after it is armed.
type suppressor struct {
	sched    Scheduler
	delay    time.Duration
	onChange func(visible bool)

	timer   *eventloop.Timer
	visible bool
}

// arm starts the deferred-visibility timer unless it is already pending or
// the fallback is already visible.
func (s *suppressor) arm() {
	if s.timer != nil || s.visible {
		return
	}
	var t *eventloop.Timer
	t = s.sched.AfterFunc(s.delay, func() {
		if s.timer != t {
			return
		}
		s.timer = nil
		s.visible = true
		s.onChange(true)
	})
	s.timer = t
}

// cancel releases a pending timer and hides a visible fallback.
func (s *suppressor) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.visible {
		s.visible = false
		s.onChange(false)
	}
}

func (s *suppressor) pending() bool {
	return s.timer != nil
}
