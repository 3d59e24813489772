// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation

import "context"

// Mutation is one undoable change against dependencies of type D.
//
// The Mutator calls CaptureUndo immediately before the first Apply so
// the mutation can record whatever it needs to revert itself. Undo
// must restore that captured state. Mutations are compared by
// identity, so implementations should be pointer types.
type Mutation[D any] interface {
	// Description is a short human-readable label for logs and undo
	// menus.
	Description() string
	CaptureUndo(deps D)
	Apply(ctx context.Context, deps D) error
	Undo(ctx context.Context, deps D) error
}

// AfterPersister is implemented by mutations that need a hook after
// the collaborator has persisted the change (for example to reload a
// derived view from disk).
type AfterPersister[D any] interface {
	AfterPersistChanges(ctx context.Context, deps D) error
}

// Collaborator supplies the live domain state a Mutator acts on and
// persists it after every successful apply or undo.
type Collaborator[D any] interface {
	// MutationArgs returns live references to the domain state. It is
	// called once per operation and must not block.
	MutationArgs() D

	// PersistChanges writes the current domain state. It may be called
	// many times in quick succession.
	PersistChanges(ctx context.Context) error
}

// CollaboratorFuncs adapts a pair of functions to Collaborator. A nil
// Persist is a no-op.
type CollaboratorFuncs[D any] struct {
	Args    func() D
	Persist func(ctx context.Context) error
}

func (f CollaboratorFuncs[D]) MutationArgs() D { return f.Args() }

func (f CollaboratorFuncs[D]) PersistChanges(ctx context.Context) error {
	if f.Persist == nil {
		return nil
	}
	return f.Persist(ctx)
}

// SimpleFuncs are the callbacks behind a Simple mutation. Apply is
// used both to apply the mutation's own arguments and, on undo, to
// apply the snapshot taken by Snapshot.
type SimpleFuncs[D, A any] struct {
	Apply        func(ctx context.Context, deps D, args A) error
	Snapshot     func(deps D) A
	AfterPersist func(ctx context.Context, deps D) error
}

// Simple is a one-shot mutation whose undo re-applies a snapshot of
// the state it overwrote.
type Simple[D, A any] struct {
	description string
	args        A
	funcs       SimpleFuncs[D, A]

	undoArgs A
	hasUndo  bool
}

// NewSimple returns a mutation that applies args through funcs.Apply.
func NewSimple[D, A any](description string, args A, funcs SimpleFuncs[D, A]) *Simple[D, A] {
	return &Simple[D, A]{description: description, args: args, funcs: funcs}
}

func (s *Simple[D, A]) Description() string { return s.description }

// Args returns the arguments the mutation applies.
func (s *Simple[D, A]) Args() A { return s.args }

func (s *Simple[D, A]) CaptureUndo(deps D) {
	s.undoArgs = s.funcs.Snapshot(deps)
	s.hasUndo = true
}

func (s *Simple[D, A]) Apply(ctx context.Context, deps D) error {
	return s.funcs.Apply(ctx, deps, s.args)
}

func (s *Simple[D, A]) Undo(ctx context.Context, deps D) error {
	if !s.hasUndo {
		return violation(msgNoUndoState)
	}
	if err := s.funcs.Apply(ctx, deps, s.undoArgs); err != nil {
		return err
	}
	var zero A
	s.undoArgs, s.hasUndo = zero, false
	return nil
}

func (s *Simple[D, A]) AfterPersistChanges(ctx context.Context, deps D) error {
	if s.funcs.AfterPersist == nil {
		return nil
	}
	return s.funcs.AfterPersist(ctx, deps)
}

// ContinuousFuncs are the callbacks behind a Continuous mutation.
// Update changes live state and may run many times. Apply finalizes;
// nil means there is nothing to finalize beyond the last update.
// Snapshot captures the pre-state in the same shape as an update so
// that undo can replay it.
type ContinuousFuncs[D, A any] struct {
	Update       func(ctx context.Context, deps D, args A) error
	Apply        func(ctx context.Context, deps D) error
	Snapshot     func(deps D) A
	AfterPersist func(ctx context.Context, deps D) error
}

// Continuous is an interactive mutation: begun once, updated any
// number of times while the user drags or types, then applied. Undo
// replays the captured pre-state through Update followed by Apply.
//
// A Continuous is driven through BeginContinuous, UpdateContinuous,
// ApplyInstantly, DebounceContinuous, and Mutator.Apply.
type Continuous[D, A any] struct {
	description string
	funcs       ContinuousFuncs[D, A]

	undoArgs A
	hasUndo  bool
}

// NewContinuous returns a continuous mutation driven by funcs.
func NewContinuous[D, A any](description string, funcs ContinuousFuncs[D, A]) *Continuous[D, A] {
	return &Continuous[D, A]{description: description, funcs: funcs}
}

func (c *Continuous[D, A]) Description() string { return c.description }

func (c *Continuous[D, A]) CaptureUndo(deps D) {
	c.undoArgs = c.funcs.Snapshot(deps)
	c.hasUndo = true
}

func (c *Continuous[D, A]) Update(ctx context.Context, deps D, args A) error {
	return c.funcs.Update(ctx, deps, args)
}

func (c *Continuous[D, A]) Apply(ctx context.Context, deps D) error {
	if c.funcs.Apply == nil {
		return nil
	}
	return c.funcs.Apply(ctx, deps)
}

func (c *Continuous[D, A]) Undo(ctx context.Context, deps D) error {
	if !c.hasUndo {
		return violation(msgNoUndoState)
	}
	if err := c.Update(ctx, deps, c.undoArgs); err != nil {
		return err
	}
	if err := c.Apply(ctx, deps); err != nil {
		return err
	}
	var zero A
	c.undoArgs, c.hasUndo = zero, false
	return nil
}

func (c *Continuous[D, A]) AfterPersistChanges(ctx context.Context, deps D) error {
	if c.funcs.AfterPersist == nil {
		return nil
	}
	return c.funcs.AfterPersist(ctx, deps)
}

func (c *Continuous[D, A]) isContinuous() {}

// continuous is satisfied only by *Continuous.
type continuous interface {
	isContinuous()
}

func isContinuous(value any) bool {
	_, ok := value.(continuous)
	return ok
}
