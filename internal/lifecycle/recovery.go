package lifecycle

// onLost starts a recovery cycle. The detector has already unbound itself.
func (c *Controller) onLost(sig lossSignal) {
	if c.state != StateConnected || c.reloading {
		return
	}

	from := c.transition(StateLost)
	c.retries = 0
	c.cycle++
	c.logger.Warn("channel lost", "kind", sig.kind, "cycle", c.cycle)
	c.emit(Event{Type: EventLost, From: from, To: StateLost, Kind: sig.kind})
	c.refreshGate()

	from = c.transition(StateRecovering)
	c.logger.Info("reconnecting", "interval", c.cfg.PollInterval, "max_attempts", c.cfg.MaxAttempts)
	c.emit(Event{Type: EventRecovering, From: from, To: StateRecovering})
	c.schedulePoll()
}

func (c *Controller) schedulePoll() {
	cycle := c.cycle
	c.pollTimer = c.after(c.cfg.PollInterval, func() { c.poll(cycle) })
}

// poll is one recovery attempt. Each poll schedules at most one successor.
func (c *Controller) poll(cycle uint64) {
	if cycle != c.cycle || c.state != StateRecovering || c.reloading {
		return
	}
	c.pollTimer = nil
	c.retries++

	connected := c.ch.IsConnected()
	c.logger.Debug("reconnect attempt",
		"attempt", c.retries,
		"max_attempts", c.cfg.MaxAttempts,
		"connected", connected,
	)
	c.emit(Event{
		Type:      EventPoll,
		From:      c.state,
		To:        c.state,
		Attempt:   c.retries,
		Connected: connected,
	})

	switch {
	case connected:
		c.reload("channel recovered")
	case c.retries >= c.cfg.MaxAttempts:
		c.abandon()
	default:
		c.schedulePoll()
	}
}

// reload hands off to the Reloader. The controller schedules nothing after
// this; the reconstructed application starts at StateConnected.
func (c *Controller) reload(reason string) {
	c.reloading = true
	c.stopPoll()
	c.det.unbind()
	c.sup.cancel()

	c.logger.Info("reloading application", "reason", reason, "attempt", c.retries)
	c.emit(Event{Type: EventReload, From: c.state, To: StateConnected, Attempt: c.retries})
	c.reloader.Reload(reason)
}

// abandon closes the channel and enters the terminal state.
func (c *Controller) abandon() {
	attempts := c.retries
	c.stopPoll()
	c.det.unbind()

	from := c.transition(StateAbandoned)
	c.retries = 0
	c.closeChannel()

	c.logger.Error("channel abandoned", "attempts", attempts)
	c.emit(Event{Type: EventAbandoned, From: from, To: StateAbandoned, Attempt: attempts})
	c.refreshGate()
}

// restartCycle starts the running recovery over at zero retries. The state
// never leaves Recovering, so the gate stays closed on a dead channel.
func (c *Controller) restartCycle() {
	c.stopPoll()
	c.cycle++
	attempts := c.retries
	c.retries = 0

	from := c.state
	if from != StateRecovering {
		c.transition(StateRecovering)
	}
	c.logger.Info("recovery cycle restarted", "previous_attempts", attempts, "cycle", c.cycle)
	c.emit(Event{Type: EventCycleRestarted, From: from, To: StateRecovering, Attempt: attempts})
	c.schedulePoll()
}

func (c *Controller) stopPoll() {
	if c.pollTimer != nil {
		c.pollTimer.Stop()
		c.pollTimer = nil
	}
}

func (c *Controller) closeChannel() {
	if c.closed {
		return
	}
	c.closed = true
	if err := c.ch.Close(); err != nil {
		c.logger.Warn("channel close failed", "error", err)
	}
}
