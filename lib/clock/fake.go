// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// Fake returns a FakeClock reading initial. Time only moves when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.registered = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
type FakeClock struct {
	mu         sync.Mutex
	now        time.Time
	pending    []*pendingTimer
	registered *sync.Cond
}

// pendingTimer is an After channel or a ticker waiting for its
// deadline. Tickers carry a non-zero period and are rescheduled after
// each delivery.
type pendingTimer struct {
	deadline time.Time
	period   time.Duration
	channel  chan time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has been
// advanced by at least d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.addLocked(&pendingTimer{deadline: c.now.Add(d), channel: channel})
	return channel
}

// NewTicker returns a Ticker that fires each time the clock crosses a
// multiple of d from now.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &pendingTimer{
		deadline: c.now.Add(d),
		period:   d,
		channel:  make(chan time.Time, 1),
	}
	c.addLocked(timer)
	return &Ticker{
		C: timer.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.pending = slices.DeleteFunc(c.pending, func(p *pendingTimer) bool { return p == timer })
		},
	}
}

// Advance moves the clock forward by d and delivers every deadline
// reached, earliest first. A ticker spanning several periods fires
// once per period; deliveries to a full channel are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for {
		index := c.earliestDueLocked()
		if index < 0 {
			return
		}
		timer := c.pending[index]
		select {
		case timer.channel <- timer.deadline:
		default:
		}
		if timer.period > 0 {
			timer.deadline = timer.deadline.Add(timer.period)
		} else {
			c.pending = slices.Delete(c.pending, index, index+1)
		}
	}
}

// WaitForTimers blocks until at least n timers or tickers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.registered.Wait()
	}
}

// PendingCount returns the number of registered timers and tickers
// that have not fired or been stopped.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *FakeClock) addLocked(timer *pendingTimer) {
	c.pending = append(c.pending, timer)
	c.registered.Broadcast()
}

// earliestDueLocked returns the index of the pending timer with the
// earliest deadline at or before now, or -1.
func (c *FakeClock) earliestDueLocked() int {
	best := -1
	for i, timer := range c.pending {
		if timer.deadline.After(c.now) {
			continue
		}
		if best < 0 || timer.deadline.Before(c.pending[best].deadline) {
			best = i
		}
	}
	return best
}
