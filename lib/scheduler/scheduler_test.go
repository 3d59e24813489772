// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/mutator/lib/scheduler"
	"github.com/bureau-foundation/mutator/lib/testutil"
)

const waitTimeout = 5 * time.Second

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	s := scheduler.New()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTasksRunInSeries(t *testing.T) {
	s := newScheduler(t)
	var recorder testutil.Recorder
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})

	recorder.Record("A:queue")
	first := s.Submit(ctx, func(context.Context) error {
		recorder.Record("A:run")
		close(started)
		<-release
		recorder.Record("A:done")
		return nil
	})
	testutil.RequireClosed(t, started, waitTimeout, "A should start at once on an idle queue")

	var rest []*scheduler.Task
	for _, name := range []string{"B", "C"} {
		recorder.Record("%s:queue", name)
		rest = append(rest, s.Submit(ctx, func(context.Context) error {
			recorder.Record("%s:run", name)
			recorder.Record("%s:done", name)
			return nil
		}))
	}
	close(release)

	for _, task := range append([]*scheduler.Task{first}, rest...) {
		if err := task.Wait(); err != nil {
			t.Fatalf("task %d: %v", task.Sequence(), err)
		}
	}

	recorder.RequireActions(t, []string{
		"A:queue",
		"A:run",
		"B:queue",
		"C:queue",
		"A:done",
		"B:run",
		"B:done",
		"C:run",
		"C:done",
	})
}

func TestTaskDoesNotStartUntilPreviousFinishes(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	release := make(chan struct{})
	blocker := s.Submit(ctx, func(context.Context) error {
		<-release
		return nil
	})

	var secondRan atomic.Bool
	second := s.Submit(ctx, func(context.Context) error {
		secondRan.Store(true)
		return nil
	})

	testutil.RequireOpen(t, second.Done(), "second task finished while the first was blocked")
	if secondRan.Load() {
		t.Fatal("second task ran while the first was still in flight")
	}
	if got := s.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	close(release)
	if err := second.Wait(); err != nil {
		t.Fatalf("second.Wait: %v", err)
	}
	if err := blocker.Wait(); err != nil {
		t.Fatalf("blocker.Wait: %v", err)
	}
	if !secondRan.Load() {
		t.Fatal("second task never ran")
	}
}

func TestFailingTaskDoesNotHaltQueue(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()
	failure := errors.New("mutation exploded")

	failing := s.Submit(ctx, func(context.Context) error { return failure })
	succeeding := s.Submit(ctx, func(context.Context) error { return nil })

	if err := failing.Wait(); !errors.Is(err, failure) {
		t.Fatalf("failing.Wait() = %v, want %v", err, failure)
	}
	if err := succeeding.Wait(); err != nil {
		t.Fatalf("succeeding.Wait() = %v, want nil", err)
	}
}

func TestPanickingTaskIsRecovered(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	err := s.Run(ctx, func(context.Context) error { panic("boom") })
	if !errors.Is(err, scheduler.ErrTaskPanicked) {
		t.Fatalf("Run() = %v, want ErrTaskPanicked", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("panic error %q does not mention the panic value", err)
	}

	if err := s.Run(ctx, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Run after panic = %v, want nil", err)
	}
}

func TestCallReturnsValue(t *testing.T) {
	s := newScheduler(t)

	value, err := scheduler.Call(context.Background(), s, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if value != 42 {
		t.Fatalf("Call() = %d, want 42", value)
	}
}

func TestRunFromInsideTaskIsRejected(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	var nested *scheduler.Task
	var recorder testutil.Recorder
	err := s.Run(ctx, func(ctx context.Context) error {
		if err := s.Run(ctx, func(context.Context) error { return nil }); !errors.Is(err, scheduler.ErrReentrant) {
			t.Errorf("nested Run() = %v, want ErrReentrant", err)
		}
		nested = s.Submit(ctx, func(context.Context) error {
			recorder.Record("nested")
			return nil
		})
		recorder.Record("outer")
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := nested.Wait(); err != nil {
		t.Fatalf("nested.Wait: %v", err)
	}
	recorder.RequireActions(t, []string{"outer", "nested"})
}

func TestCloseDrainsQueueAndRejectsNewWork(t *testing.T) {
	s := scheduler.New()
	ctx := context.Background()

	release := make(chan struct{})
	var completed atomic.Int32
	var tasks []*scheduler.Task
	tasks = append(tasks, s.Submit(ctx, func(context.Context) error {
		<-release
		completed.Add(1)
		return nil
	}))
	for range 3 {
		tasks = append(tasks, s.Submit(ctx, func(context.Context) error {
			completed.Add(1)
			return nil
		}))
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	testutil.RequireOpen(t, closed, "Close returned while tasks were still queued")
	close(release)
	testutil.RequireClosed(t, closed, waitTimeout, "Close did not return after draining")

	if got := completed.Load(); got != 4 {
		t.Fatalf("completed = %d, want 4", got)
	}
	for _, task := range tasks {
		if err := task.Wait(); err != nil {
			t.Fatalf("task %d: %v", task.Sequence(), err)
		}
	}

	if err := s.Run(ctx, func(context.Context) error { return nil }); !errors.Is(err, scheduler.ErrClosed) {
		t.Fatalf("Run after Close = %v, want ErrClosed", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestConcurrentSubmittersNeverOverlap(t *testing.T) {
	s := newScheduler(t)
	ctx := context.Background()

	var active, maxActive, total atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				err := s.Run(ctx, func(context.Context) error {
					current := active.Add(1)
					for {
						previous := maxActive.Load()
						if current <= previous || maxActive.CompareAndSwap(previous, current) {
							break
						}
					}
					total.Add(1)
					active.Add(-1)
					return nil
				})
				if err != nil {
					t.Errorf("Run: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if got := total.Load(); got != 16*25 {
		t.Fatalf("total = %d, want %d", got, 16*25)
	}
	if got := maxActive.Load(); got != 1 {
		t.Fatalf("max concurrently active tasks = %d, want 1", got)
	}
}
