// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/mutator/lib/mutation"
)

// Args is what document mutations receive: the live document.
type Args struct {
	Document *Document
}

// Editor pairs a live Document with the Store it is saved to. It is
// the mutation.Collaborator for document mutators.
type Editor struct {
	doc    *Document
	store  *Store
	logger *slog.Logger
}

var _ mutation.Collaborator[Args] = (*Editor)(nil)

// OpenEditor opens and locks path, loads it, and returns an Editor
// over it.
func OpenEditor(path string, options StoreOptions) (*Editor, error) {
	store, err := OpenStore(path, options)
	if err != nil {
		return nil, err
	}
	doc, err := store.Load()
	if err != nil {
		store.Close()
		return nil, err
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Editor{doc: doc, store: store, logger: logger}, nil
}

// Document returns the live document. Reads are safe at any time;
// changes should go through mutations so they can be undone.
func (e *Editor) Document() *Document { return e.doc }

// Path returns the file the editor saves to.
func (e *Editor) Path() string { return e.store.Path() }

func (e *Editor) MutationArgs() Args { return Args{Document: e.doc} }

// PersistChanges saves the document, skipping the write when nothing
// changed since the last save.
func (e *Editor) PersistChanges(context.Context) error {
	written, err := e.store.Save(e.doc)
	if err != nil {
		return err
	}
	if !written {
		e.logger.Debug("document unchanged, save skipped", "path", e.store.Path())
	}
	return nil
}

// Close releases the store's lock.
func (e *Editor) Close() error { return e.store.Close() }

// Value is a raw JSON value at some path, or its absence.
type Value struct {
	Raw     string
	Present bool
}

// Raw returns a present Value holding raw JSON.
func Raw(raw string) Value { return Value{Raw: raw, Present: true} }

// Absent is the Value of a path that does not exist.
var Absent = Value{}

func readValue(doc *Document, path string) Value {
	result := doc.Get(path)
	if !result.Exists() {
		return Absent
	}
	return Raw(result.Raw)
}

func writeValue(doc *Document, path string, value Value) error {
	if !value.Present {
		return doc.Delete(path)
	}
	return doc.Set(path, value.Raw)
}

// SetValue returns a mutation that stores raw at path. Undo restores
// the previous value, or removes the path if it did not exist.
func SetValue(path string, raw string) *mutation.Simple[Args, Value] {
	return mutation.NewSimple(fmt.Sprintf("set %s", path), Raw(raw), mutation.SimpleFuncs[Args, Value]{
		Apply: func(_ context.Context, args Args, value Value) error {
			return writeValue(args.Document, path, value)
		},
		Snapshot: func(args Args) Value {
			return readValue(args.Document, path)
		},
	})
}

// SetValueContinuous returns an interactive mutation for path; each
// update writes a new Value immediately.
func SetValueContinuous(path string) *mutation.Continuous[Args, Value] {
	return mutation.NewContinuous(fmt.Sprintf("set %s", path), mutation.ContinuousFuncs[Args, Value]{
		Update: func(_ context.Context, args Args, value Value) error {
			return writeValue(args.Document, path, value)
		},
		Snapshot: func(args Args) Value {
			return readValue(args.Document, path)
		},
	})
}

// valueTarget identifies one path of one document for debouncing.
type valueTarget struct {
	doc  *Document
	path string
}

// DebounceSet writes raw at path through m's debounce slot: a burst
// of calls for the same path becomes one undo step and one save.
func DebounceSet(ctx context.Context, m *mutation.Mutator[Args], e *Editor, path string, raw string, timeout time.Duration) error {
	return mutation.DebounceContinuous(ctx, m,
		mutation.DebounceKey{Kind: "set-value", Target: valueTarget{doc: e.doc, path: path}},
		func() *mutation.Continuous[Args, Value] { return SetValueContinuous(path) },
		func() Value { return Raw(raw) },
		timeout,
	)
}
