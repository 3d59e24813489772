// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bureau-foundation/mutator/lib/clock"
	"github.com/bureau-foundation/mutator/lib/mutation"
	"github.com/bureau-foundation/mutator/lib/scheduler"
	"github.com/bureau-foundation/mutator/lib/testutil"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// scene is the toy domain state mutated by these tests.
type scene struct {
	position int
	label    string
}

// domain is a Collaborator over one scene that records every persist.
type domain struct {
	scene      *scene
	recorder   *testutil.Recorder
	persistErr error
}

func (d *domain) MutationArgs() *scene { return d.scene }

func (d *domain) PersistChanges(context.Context) error {
	d.recorder.Record("persist")
	return d.persistErr
}

type env struct {
	clock      *clock.FakeClock
	scheduler  *scheduler.Scheduler
	controller *mutation.Controller
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := scheduler.New()
	t.Cleanup(func() { s.Close() })
	return &env{
		clock:      clock.Fake(epoch),
		scheduler:  s,
		controller: mutation.NewController(s),
	}
}

func (e *env) newMutator(t *testing.T, opts ...mutation.Option) (*mutation.Mutator[*scene], *domain) {
	t.Helper()
	d := &domain{
		scene:    &scene{position: 5},
		recorder: &testutil.Recorder{},
	}
	opts = append([]mutation.Option{mutation.WithClock(e.clock)}, opts...)
	return mutation.NewMutator[*scene](e.controller, d, opts...), d
}

// setPosition is a simple mutation that records each apply.
func setPosition(recorder *testutil.Recorder, value int) *mutation.Simple[*scene, int] {
	return mutation.NewSimple(fmt.Sprintf("set position %d", value), value, mutation.SimpleFuncs[*scene, int]{
		Apply: func(_ context.Context, s *scene, v int) error {
			recorder.Record("apply:%d", v)
			s.position = v
			return nil
		},
		Snapshot: func(s *scene) int { return s.position },
	})
}

// dragPosition is a continuous mutation. Updates record the value
// they saw before writing, so tests can check each update observes
// its predecessor.
func dragPosition(recorder *testutil.Recorder) *mutation.Continuous[*scene, int] {
	return mutation.NewContinuous("drag position", mutation.ContinuousFuncs[*scene, int]{
		Update: func(_ context.Context, s *scene, v int) error {
			recorder.Record("update(%d):%d", v, s.position)
			s.position = v
			return nil
		},
		Apply: func(_ context.Context, s *scene) error {
			recorder.Record("apply:%d", s.position)
			return nil
		},
		Snapshot: func(s *scene) int {
			recorder.Record("snapshot:%d", s.position)
			return s.position
		},
	})
}

// renameLabel is a continuous mutation with a different argument type
// than dragPosition.
func renameLabel(recorder *testutil.Recorder) *mutation.Continuous[*scene, string] {
	return mutation.NewContinuous("rename", mutation.ContinuousFuncs[*scene, string]{
		Update: func(_ context.Context, s *scene, label string) error {
			recorder.Record("rename:%s", label)
			s.label = label
			return nil
		},
		Snapshot: func(s *scene) string { return s.label },
	})
}

func requireViolation(t *testing.T, err error, message string) {
	t.Helper()
	if !errors.Is(err, mutation.ErrProtocolViolation) {
		t.Fatalf("error = %v, want a protocol violation", err)
	}
	if err.Error() != message {
		t.Fatalf("error message = %q, want %q", err.Error(), message)
	}
}

func requireNoError(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}

func requirePosition(t *testing.T, d *domain, want int) {
	t.Helper()
	if d.scene.position != want {
		t.Fatalf("position = %d, want %d", d.scene.position, want)
	}
}

// settle waits for every task queued so far, including any flush a
// timer callback just submitted.
func settle(t *testing.T, s *scheduler.Scheduler) {
	t.Helper()
	requireNoError(t, s.Run(context.Background(), func(context.Context) error { return nil }), "settling scheduler")
}

// waitForPending polls until the scheduler holds n tasks.
func waitForPending(t *testing.T, s *scheduler.Scheduler, n int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for s.Pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("scheduler pending = %d, want %d", s.Pending(), n)
		}
		time.Sleep(time.Millisecond) //nolint:realclock polling the real worker goroutine
	}
}
