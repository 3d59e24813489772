// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation

import (
	"context"
	"fmt"
	"time"
)

// EventKind says what happened to a mutation.
type EventKind int

const (
	// EventApplied follows a successful apply and persist.
	EventApplied EventKind = iota + 1
	// EventUndone follows a successful undo and persist.
	EventUndone
)

func (k EventKind) String() string {
	switch k {
	case EventApplied:
		return "applied"
	case EventUndone:
		return "undone"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event describes one finished apply or undo.
type Event struct {
	Kind        EventKind
	Mutator     string
	ID          uint64
	Description string
	// Depth is the stack depth after the operation.
	Depth int
	Time  time.Time
}

// Observer is notified after every successful apply or undo, once
// PersistChanges and AfterPersistChanges have both returned. Observer
// errors are logged and never fail the operation.
type Observer interface {
	Observe(ctx context.Context, event Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event) error

func (f ObserverFunc) Observe(ctx context.Context, event Event) error { return f(ctx, event) }
