package channel

// event is one queued notification. epoch is the Start generation that
// produced it; fire receives the liveness check for its listeners.
type event struct {
	epoch uint64
	fire  func(live func() bool)
}

// Notifications are queued under c.mu, in the same critical section as the
// state change they report, so queue order is state order. One goroutine at
// a time drains the queue; a listener that calls back into the channel only
// queues, and the running drain delivers its events after it returns.

func (c *Channel) emitStatusLocked(s Status) {
	c.queue = append(c.queue, event{
		epoch: c.epoch,
		fire:  func(func() bool) { c.statusListeners.notify(s) },
	})
}

// emitMessageLocked queues msg for message listeners. A Start before
// delivery ends it: listeners not yet called never see msg.
func (c *Channel) emitMessageLocked(msg Message) {
	c.queue = append(c.queue, event{
		epoch: c.epoch,
		fire:  func(live func() bool) { c.messageListeners.notifyWhile(msg, live) },
	})
}

func (c *Channel) emitErrorLocked(err error) {
	c.queue = append(c.queue, event{
		epoch: c.epoch,
		fire:  func(live func() bool) { c.errorListeners.notifyWhile(err, live) },
	})
}

// drain delivers queued events in order unless another goroutine is already
// draining, in which case that drain picks them up.
func (c *Channel) drain() {
	c.mu.Lock()
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue[0] = event{}
		c.queue = c.queue[1:]
		c.mu.Unlock()

		ev.fire(func() bool { return c.epochIs(ev.epoch) })

		c.mu.Lock()
	}
	c.queue = nil
	c.draining = false
	c.mu.Unlock()
}

func (c *Channel) epochIs(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}
