// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation matches every error caused by a caller
	// driving a mutation out of order: double begin, update or apply
	// on a mutation that is not the stack top, double apply, undo
	// without a captured snapshot. These are caller bugs.
	ErrProtocolViolation = errors.New("mutation protocol violation")

	// ErrMutationFailed wraps an error returned by a mutation's own
	// Apply, Update, Undo, or AfterPersistChanges callback. The stack
	// is left in whatever state the failed step implies.
	ErrMutationFailed = errors.New("mutation failed")

	// ErrPersistence wraps an error returned by the collaborator's
	// PersistChanges. The in-memory change has already happened and
	// is not rolled back.
	ErrPersistence = errors.New("persisting changes")

	// ErrAlreadyRegistered is returned by Controller.Register for a
	// mutator that is already registered.
	ErrAlreadyRegistered = errors.New("mutation: mutator is already registered")

	// ErrNotRegistered is returned by Controller.SetMutatorActive for
	// an unknown mutator.
	ErrNotRegistered = errors.New("mutation: mutator not registered")
)

// Protocol violation messages. These are a stable, user-facing
// contract and are compared verbatim by callers and tests, so they keep
// their sentence case.
const (
	msgBeginPreviousPending          = "Cannot begin continuous mutation - Previous continuous mutation has not been applied"
	msgUpdateNotLatest               = "Cannot update continuous mutation - provided instance is not the latest mutation"
	msgUpdateAlreadyApplied          = "Cannot update continuous mutation - It has already been applied"
	msgApplyContinuousNotLatest      = "Cannot apply continuous mutation - It is not the latest mutation, did you call 'beginContinuous()'?"
	msgApplyPreviousPending          = "Cannot apply mutation - Previous continuous mutation has not been applied"
	msgApplyAlreadyApplied           = "Cannot apply mutation - It has already been applied"
	msgApplyContinuousAlreadyApplied = "Cannot apply continuous mutation - It has already been applied"
	msgNoUndoState                   = "Cannot undo mutation - no undo state has been captured. Has the mutation been applied?"
	msgDebounceTypeMismatch          = "Cannot debounce continuous mutation - the pending mutation for this key has a different update type"
)

// protocolError carries one of the messages above verbatim and
// matches ErrProtocolViolation under errors.Is.
type protocolError struct {
	message string
}

func (e *protocolError) Error() string { return e.message }

func (e *protocolError) Is(target error) bool { return target == ErrProtocolViolation }

func violation(message string) error {
	return &protocolError{message: message}
}

func mutationFailed(step string, description string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrMutationFailed, step, description, err)
}
