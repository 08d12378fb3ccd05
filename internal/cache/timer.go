package cache

import "time"

// armLocked schedules the purge timer for at unless one is already armed
// for the same time or earlier. The timer is only ever moved earlier here;
// fire recomputes the real next target.
func (c *TTLCache[K, V]) armLocked(at int64) {
	if c.timer != nil && c.timerAt <= at {
		return
	}
	c.cancelTimerLocked()

	c.timerSeq++
	seq := c.timerSeq
	delay := time.UnixMilli(at).Sub(c.clock())
	if delay < 0 {
		delay = 0
	}
	c.timerAt = at
	c.timer = time.AfterFunc(delay, func() { c.fire(seq) })
}

// cancelTimerLocked stops the armed timer. A callback that already
// started sees a newer sequence number and returns without work.
func (c *TTLCache[K, V]) cancelTimerLocked() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.timerAt = 0
	c.timerSeq++
}

// fire runs on the timer goroutine: purge what is stale, then arm for the
// earliest bucket left.
func (c *TTLCache[K, V]) fire(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.timerAt = 0
	pending := c.purgeStaleLocked(nil)
	if b, ok := c.buckets.Min(); ok {
		c.armLocked(b.at)
	}
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil && c.opts.OnPanic != nil {
			c.opts.OnPanic(r)
		}
	}()
	c.dispose(pending)
}

// NextPurge reports when the purge timer is due, if one is armed.
func (c *TTLCache[K, V]) NextPurge() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(c.timerAt), true
}
