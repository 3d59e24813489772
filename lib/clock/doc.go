// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the
// mutation engine's debounce timers.
//
// Production code holds a [Clock] and never calls time.AfterFunc or
// time.Now directly. [Real] forwards to the time package. [Fake]
// returns a [FakeClock] whose time only moves when a test calls
// [FakeClock.Advance], so a debounce window can be crossed (or not)
// deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	mutator := mutation.NewMutator(controller, editor, mutation.WithClock(fake))
//	// ... debounce some updates ...
//	fake.WaitForTimers(1)
//	fake.Advance(500 * time.Millisecond)
//
// [FakeClock.WaitForTimers] closes the race between a goroutine arming
// a timer and the test advancing past it.
package clock
