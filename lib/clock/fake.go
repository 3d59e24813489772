// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock reading initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. It is safe for
// concurrent use.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order, without the clock's lock held. A callback must not call
// Advance.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*fakeTimer
	changed *sync.Cond

	// sequence is the last tie-break value handed out. Guarded by mu.
	sequence uint64
}

type fakeTimer struct {
	deadline time.Time

	// Exactly one of callback (AfterFunc) and wake (Sleep) is set.
	callback func()
	wake     chan struct{}

	// sequence breaks deadline ties in registration order.
	sequence uint64
	active   bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AfterFunc registers f to run once the clock has been advanced by at
// least d. If d <= 0, f runs before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stopFunc:  func() bool { return false },
			resetFunc: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	timer := &fakeTimer{
		deadline: c.current.Add(d),
		callback: f,
		sequence: c.nextSequenceLocked(),
		active:   true,
	}
	c.timers = append(c.timers, timer)
	c.changed.Broadcast()
	c.mu.Unlock()

	return &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := timer.active
			c.removeLocked(timer)
			return wasActive
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := timer.active
			c.removeLocked(timer)
			timer.deadline = c.current.Add(d)
			timer.sequence = c.nextSequenceLocked()
			timer.active = true
			c.timers = append(c.timers, timer)
			c.changed.Broadcast()
			return wasActive
		},
	}
}

// Sleep blocks until the clock has been advanced by at least d.
func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	timer := &fakeTimer{
		deadline: c.current.Add(d),
		wake:     make(chan struct{}),
		sequence: c.nextSequenceLocked(),
		active:   true,
	}
	c.timers = append(c.timers, timer)
	c.changed.Broadcast()
	c.mu.Unlock()

	<-timer.wake
}

// Advance moves the clock forward by d and fires every timer whose
// deadline is now due. Timers armed by a firing callback are also
// fired if they fall within the new time.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()

	for {
		due := c.popDue()
		if due == nil {
			return
		}
		if due.callback != nil {
			due.callback()
		} else {
			close(due.wake)
		}
	}
}

// popDue removes and returns the earliest due timer, or nil.
func (c *FakeClock) popDue() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].sequence < c.timers[j].sequence
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if len(c.timers) == 0 || c.timers[0].deadline.After(c.current) {
		return nil
	}
	due := c.timers[0]
	c.timers = c.timers[1:]
	due.active = false
	c.changed.Broadcast()
	return due
}

// removeLocked drops timer from the pending list. Caller holds c.mu.
func (c *FakeClock) removeLocked(timer *fakeTimer) {
	timer.active = false
	for i, pending := range c.timers {
		if pending == timer {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			c.changed.Broadcast()
			return
		}
	}
}

func (c *FakeClock) nextSequenceLocked() uint64 {
	c.sequence++
	return c.sequence
}

// WaitForTimers blocks until at least n timers or sleeps are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.timers) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of armed timers and sleeps.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
