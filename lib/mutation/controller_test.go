// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bureau-foundation/mutator/lib/mutation"
)

func TestMutationIDsIncreaseAcrossMutators(t *testing.T) {
	e := newEnv(t)
	viewport, viewportDomain := e.newMutator(t)
	project, projectDomain := e.newMutator(t)
	ctx := context.Background()

	requireNoError(t, viewport.Apply(ctx, setPosition(viewportDomain.recorder, 1)), "viewport apply")
	requireNoError(t, project.Apply(ctx, setPosition(projectDomain.recorder, 2)), "project apply")
	requireNoError(t, viewport.Apply(ctx, setPosition(viewportDomain.recorder, 3)), "viewport apply")

	viewportID, _ := viewport.LatestID()
	projectID, _ := project.LatestID()
	if projectID != 1001 || viewportID != 1002 {
		t.Fatalf("IDs = project %d, viewport %d; want 1001, 1002", projectID, viewportID)
	}
	if next := e.controller.RequestMutationID(); next != 1003 {
		t.Fatalf("RequestMutationID = %d, want 1003", next)
	}
}

func TestRegistration(t *testing.T) {
	e := newEnv(t)
	m, _ := e.newMutator(t)

	err := m.Register()
	if !errors.Is(err, mutation.ErrAlreadyRegistered) {
		t.Fatalf("Register error = %v, want ErrAlreadyRegistered", err)
	}
	if err.Error() != "mutation: mutator is already registered" {
		t.Fatalf("Register error message = %q", err.Error())
	}

	requireNoError(t, m.SetActive(true), "SetActive")
	if !e.controller.IsActive(m) {
		t.Fatal("IsActive = false after SetActive(true)")
	}

	m.Deregister()
	if e.controller.IsActive(m) {
		t.Fatal("IsActive = true after Deregister")
	}
	err = m.SetActive(true)
	if !errors.Is(err, mutation.ErrNotRegistered) {
		t.Fatalf("SetActive error = %v, want ErrNotRegistered", err)
	}

	requireNoError(t, m.Register(), "Register after Deregister")
	if e.controller.IsActive(m) {
		t.Fatal("re-registered mutator should start inactive")
	}
}

func TestUndoLatestActiveFollowsGlobalOrder(t *testing.T) {
	e := newEnv(t)
	viewport, viewportDomain := e.newMutator(t)
	project, projectDomain := e.newMutator(t)
	ctx := context.Background()
	requireNoError(t, viewport.SetActive(true), "activate viewport")
	requireNoError(t, project.SetActive(true), "activate project")

	requireNoError(t, viewport.Apply(ctx, setPosition(viewportDomain.recorder, 6)), "viewport 6")
	requireNoError(t, project.Apply(ctx, setPosition(projectDomain.recorder, 7)), "project 7")
	requireNoError(t, viewport.Apply(ctx, setPosition(viewportDomain.recorder, 8)), "viewport 8")

	requireNoError(t, e.controller.UndoLatestActive(ctx), "undo 1")
	requirePosition(t, viewportDomain, 6)
	requirePosition(t, projectDomain, 7)

	requireNoError(t, e.controller.UndoLatestActive(ctx), "undo 2")
	requirePosition(t, projectDomain, 5)

	requireNoError(t, e.controller.UndoLatestActive(ctx), "undo 3")
	requirePosition(t, viewportDomain, 5)

	persists := viewportDomain.recorder.Count("persist") + projectDomain.recorder.Count("persist")
	requireNoError(t, e.controller.UndoLatestActive(ctx), "undo with nothing left")
	after := viewportDomain.recorder.Count("persist") + projectDomain.recorder.Count("persist")
	if after != persists {
		t.Fatalf("undo with empty stacks persisted %d times", after-persists)
	}
}

func TestUndoLatestActiveSkipsInactive(t *testing.T) {
	e := newEnv(t)
	viewport, viewportDomain := e.newMutator(t)
	project, projectDomain := e.newMutator(t)
	ctx := context.Background()
	requireNoError(t, viewport.SetActive(true), "activate viewport")

	requireNoError(t, viewport.Apply(ctx, setPosition(viewportDomain.recorder, 6)), "viewport 6")
	requireNoError(t, project.Apply(ctx, setPosition(projectDomain.recorder, 7)), "project 7")

	requireNoError(t, e.controller.UndoLatestActive(ctx), "UndoLatestActive")
	requirePosition(t, viewportDomain, 5)
	requirePosition(t, projectDomain, 7)

	requireNoError(t, viewport.SetActive(false), "deactivate viewport")
	requireNoError(t, project.SetActive(true), "activate project")
	requireNoError(t, e.controller.UndoLatestActive(ctx), "UndoLatestActive")
	requirePosition(t, projectDomain, 5)
}

func TestUndoLatestActiveFlushesDebounce(t *testing.T) {
	e := newEnv(t)
	m, d := e.newMutator(t)
	ctx := context.Background()
	requireNoError(t, m.SetActive(true), "SetActive")

	requireNoError(t, debounceDrag(ctx, m, d, "cube", 9, window), "DebounceContinuous")
	requireNoError(t, e.controller.UndoLatestActive(ctx), "UndoLatestActive")

	requirePosition(t, d, 5)
	if m.Depth() != 0 || m.DebouncePending() {
		t.Fatalf("Depth = %d, DebouncePending = %v after undo", m.Depth(), m.DebouncePending())
	}
	if got := d.recorder.Count("persist"); got != 2 {
		t.Fatalf("persist count = %d, want 2 (flush and undo)", got)
	}
}
