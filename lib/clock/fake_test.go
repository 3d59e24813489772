// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	if got, want := clock.Now(), epoch.Add(5*time.Second); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFuncFiresAtDeadline(t *testing.T) {
	clock := Fake(epoch)
	var called atomic.Bool
	clock.AfterFunc(2*time.Second, func() { called.Store(true) })

	clock.Advance(time.Second)
	if called.Load() {
		t.Fatal("AfterFunc fired before deadline")
	}
	clock.Advance(time.Second)
	if !called.Load() {
		t.Fatal("AfterFunc did not fire at deadline")
	}
	if clock.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d after firing, want 0", clock.PendingCount())
	}
}

func TestFakeClockAfterFuncZeroDurationRunsSynchronously(t *testing.T) {
	clock := Fake(epoch)
	var called atomic.Bool
	clock.AfterFunc(0, func() { called.Store(true) })
	if !called.Load() {
		t.Fatal("AfterFunc(0) should call f before returning")
	}
}

func TestFakeClockStop(t *testing.T) {
	clock := Fake(epoch)
	var called atomic.Bool
	timer := clock.AfterFunc(time.Second, func() { called.Store(true) })

	if !timer.Stop() {
		t.Fatal("Stop() on a pending timer = false, want true")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true, want false")
	}
	clock.Advance(2 * time.Second)
	if called.Load() {
		t.Fatal("stopped timer fired")
	}
}

func TestFakeClockResetPushesDeadline(t *testing.T) {
	clock := Fake(epoch)
	var calls atomic.Int32
	timer := clock.AfterFunc(100*time.Millisecond, func() { calls.Add(1) })

	clock.Advance(80 * time.Millisecond)
	if !timer.Reset(100 * time.Millisecond) {
		t.Fatal("Reset() on a pending timer = false, want true")
	}
	clock.Advance(80 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("timer fired at its original deadline after Reset")
	}
	clock.Advance(20 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	// Re-arming a fired timer schedules it again.
	if timer.Reset(time.Second) {
		t.Fatal("Reset() on a fired timer = true, want false")
	}
	clock.Advance(time.Second)
	if calls.Load() != 2 {
		t.Fatalf("calls after re-arm = %d, want 2", calls.Load())
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	var order []int
	clock.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	clock.AfterFunc(time.Second, func() { order = append(order, 1) })
	clock.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	clock.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}

func TestFakeClockCallbackMayArmTimer(t *testing.T) {
	clock := Fake(epoch)
	var second atomic.Bool
	clock.AfterFunc(time.Second, func() {
		clock.AfterFunc(time.Second, func() { second.Store(true) })
	})

	clock.Advance(time.Second)
	if second.Load() {
		t.Fatal("nested timer fired early")
	}
	clock.Advance(time.Second)
	if !second.Load() {
		t.Fatal("nested timer did not fire")
	}
}

func TestFakeClockSleepAndWaitForTimers(t *testing.T) {
	clock := Fake(epoch)
	done := make(chan struct{})
	go func() {
		clock.Sleep(time.Minute)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		t.Fatal("Sleep did not return after Advance")
	}
}
