// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Recorder is an append-only, goroutine-safe list of action strings.
type Recorder struct {
	mu      sync.Mutex
	actions []string
}

// Record appends one formatted action.
func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, fmt.Sprintf(format, args...))
}

// Actions returns a copy of everything recorded so far.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.actions)
}

// Count returns how many recorded actions have the given prefix.
func (r *Recorder) Count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, action := range r.actions {
		if strings.HasPrefix(action, prefix) {
			count++
		}
	}
	return count
}

// RequireActions fails the test unless the recorded actions equal want
// exactly.
func (r *Recorder) RequireActions(t TB, want []string) {
	t.Helper()
	got := r.Actions()
	if !slices.Equal(got, want) {
		t.Fatalf("actions mismatch\n got: %q\nwant: %q", got, want)
	}
}
