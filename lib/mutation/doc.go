// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package mutation applies, undoes, and coalesces undoable changes
// issued by interactive editors.
//
// A [Mutation] is one undoable change. [Simple] mutations are applied
// once; [Continuous] mutations are begun, updated any number of times
// (while the user drags a gizmo or a slider), and then applied. Either
// kind captures an undo snapshot before it first touches live state.
//
// A [Mutator] owns the undo stack for one domain and a [Collaborator]
// that supplies live state and persists it after each change. Every
// Mutator operation runs as one task on the shared
// [scheduler.Scheduler], so callers on any goroutine observe a single
// total order and PersistChanges always runs after the in-memory
// change it records.
//
// A [Controller] hands out strictly increasing mutation IDs and
// implements cross-domain undo: [Controller.UndoLatestActive] undoes
// whichever active Mutator holds the most recent mutation.
//
// [DebounceContinuous] folds a burst of rapid updates (typing into a
// number field, scrubbing a slider) into one continuous mutation that
// is applied, persisted, and pushed as one undo step once the burst
// goes quiet.
//
// Misuse of the begin/update/apply protocol returns an error matching
// [ErrProtocolViolation]. Errors from mutation callbacks match
// [ErrMutationFailed]; errors from PersistChanges match
// [ErrPersistence] and leave the in-memory change in place.
package mutation
