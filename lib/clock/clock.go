// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations the engine needs. Inject Real()
// in production and Fake() in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for d and then calls f. The returned Timer can
	// cancel or re-arm the pending call. If d <= 0, f runs immediately
	// (in a new goroutine for the real clock, synchronously for the
	// fake one).
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop prevents the callback from running. Returns false if the
// callback already ran or the timer was already stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset re-arms the timer to fire d from now. Returns true if the
// timer was still pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
