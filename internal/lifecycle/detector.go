package lifecycle

import (
	"log/slog"
	"time"

	"github.com/rickgao/pairamid-live/internal/channel"
)

// lossSignal is the single typed event the detector hands to the state machine.
type lossSignal struct {
	kind channel.LossKind
	at   time.Time
}

// detector collapses both loss kinds into one lossSignal.
//
// Handlers run on the channel's dispatch goroutine and only post a fire task.
// The fire task drops itself when the binding it came from is gone, which
// covers handlers already snapshotted by the channel when unbind ran.
type detector struct {
	ch     Channel
	post   func(func()) error
	now    func() time.Time
	logger *slog.Logger
	onLost func(lossSignal)

	gen  uint64
	subs []channel.Subscription
}

func (d *detector) bound() bool {
	return len(d.subs) > 0
}

// bind subscribes to both loss kinds. It is a no-op while already bound.
func (d *detector) bind() {
	if d.bound() {
		return
	}
	d.gen++
	gen := d.gen

	handler := func(kind channel.LossKind) {
		if err := d.post(func() { d.fire(gen, kind) }); err != nil {
			d.logger.Debug("loss event dropped", "kind", kind, "error", err)
		}
	}

	d.subs = []channel.Subscription{
		d.ch.Subscribe(channel.LostCleanly, handler),
		d.ch.Subscribe(channel.LostWithError, handler),
	}
	d.logger.Debug("detector bound", "generation", gen)
}

// unbind removes every live binding and returns how many were removed.
// Calling it while unbound does nothing.
func (d *detector) unbind() int {
	removed := 0
	for _, sub := range d.subs {
		if d.ch.Unsubscribe(sub) {
			removed++
		}
	}
	if d.subs != nil {
		d.logger.Debug("detector unbound", "generation", d.gen, "removed", removed)
	}
	d.subs = nil
	return removed
}

// fire unbinds before handing off, in the same task, so a second loss can
// never reach onLost for this binding.
func (d *detector) fire(gen uint64, kind channel.LossKind) {
	if !d.bound() || gen != d.gen {
		return
	}
	d.unbind()
	d.onLost(lossSignal{kind: kind, at: d.now()})
}
