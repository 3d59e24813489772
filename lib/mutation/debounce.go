// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/mutator/lib/clock"
	"github.com/bureau-foundation/mutator/lib/scheduler"
)

// DebounceKey identifies one debounced action. Kind names the kind of
// change ("set-position", "rename"); Target is an opaque handle to
// the thing being changed, compared by ==, so it should be a pointer
// or another comparable value such as an ID string.
type DebounceKey struct {
	Kind   string
	Target any
}

func (k DebounceKey) equal(other DebounceKey) bool {
	return k.Kind == other.Kind && sameIdentity(k.Target, other.Target)
}

// debounceState is the mutator's single debounce slot: a begun but not
// yet applied continuous mutation and the timer that will apply it.
type debounceState[D any] struct {
	key        DebounceKey
	slot       *entry[D]
	timer      *clock.Timer
	generation uint64
}

// DebounceContinuous coalesces a burst of calls into one continuous
// mutation, one undo entry, and one persist.
//
// The first call for a key creates the mutation with create, begins
// it, and applies one update. Later calls for the same key only
// update it. Each call restarts the quiet-period timer; when it
// expires, a new scheduler task applies and persists the mutation. A
// call for a different key applies the pending mutation immediately
// before starting the new one. Any other Mutator operation also
// applies it first.
//
// updateArgs is evaluated inside the scheduled task, so it observes
// state as of the moment the update runs. A zero timeout uses the
// mutator's default.
func DebounceContinuous[D, A any](
	ctx context.Context,
	m *Mutator[D],
	key DebounceKey,
	create func() *Continuous[D, A],
	updateArgs func() A,
	timeout time.Duration,
) error {
	return m.scheduler.Run(ctx, func(ctx context.Context) error {
		return debounceInTask(ctx, m, key, create, updateArgs, timeout)
	})
}

func debounceInTask[D, A any](
	ctx context.Context,
	m *Mutator[D],
	key DebounceKey,
	create func() *Continuous[D, A],
	updateArgs func() A,
	timeout time.Duration,
) error {
	if timeout <= 0 {
		timeout = m.debounceTimeout
	}

	state := m.pendingDebounce()
	if state != nil && !state.key.equal(key) {
		// A different action: finalize the previous one first.
		if err := m.flushDebounceInTask(ctx); err != nil {
			return err
		}
		state = nil
	}

	if state == nil {
		continuous := create()
		if err := m.beginInTask(ctx, continuous); err != nil {
			return err
		}
		// Arm before the first update so a failing update still
		// leaves the begun mutation to be flushed rather than stuck
		// pending.
		m.armDebounce(key, m.top(), timeout)
		return updateInTask(ctx, m, continuous, updateArgs())
	}

	continuous, ok := state.slot.mutation.(*Continuous[D, A])
	if !ok {
		return violation(msgDebounceTypeMismatch)
	}
	if err := updateInTask(ctx, m, continuous, updateArgs()); err != nil {
		return err
	}
	m.rearmDebounce(state, timeout)
	return nil
}

func (m *Mutator[D]) pendingDebounce() *debounceState[D] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debounce
}

// DebouncePending reports whether a debounced mutation is waiting for
// its quiet period to end.
func (m *Mutator[D]) DebouncePending() bool {
	return m.pendingDebounce() != nil
}

func (m *Mutator[D]) armDebounce(key DebounceKey, slot *entry[D], timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	state := &debounceState[D]{
		key:        key,
		slot:       slot,
		generation: m.generation,
	}
	m.debounce = state
	state.timer = m.startDebounceTimer(state, state.generation, timeout)
}

func (m *Mutator[D]) rearmDebounce(state *debounceState[D], timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.timer.Stop()
	m.generation++
	state.generation = m.generation
	state.timer = m.startDebounceTimer(state, state.generation, timeout)
}

// startDebounceTimer arms the expiry timer. On expiry it only enqueues
// a flush task; it never touches the stack from the timer goroutine.
func (m *Mutator[D]) startDebounceTimer(state *debounceState[D], generation uint64, timeout time.Duration) *clock.Timer {
	return m.clock.AfterFunc(timeout, func() {
		task := m.scheduler.Submit(m.baseContext, func(ctx context.Context) error {
			return m.expireDebounceInTask(ctx, state, generation)
		})
		select {
		case <-task.Done():
			if err := task.Wait(); errors.Is(err, scheduler.ErrClosed) {
				m.logger.Warn("debounced mutation dropped: scheduler closed",
					"mutator", m.name,
					"description", state.slot.mutation.Description(),
				)
			}
		default:
		}
	})
}

// expireDebounceInTask applies the debounced mutation if state is still
// the current slot and generation is still its latest timer.
func (m *Mutator[D]) expireDebounceInTask(ctx context.Context, state *debounceState[D], generation uint64) error {
	m.mu.Lock()
	current := m.debounce == state && state.generation == generation
	m.mu.Unlock()
	if !current {
		return nil
	}

	err := m.flushDebounceInTask(ctx)
	if err != nil {
		m.logger.Error("applying debounced mutation failed",
			"mutator", m.name,
			"description", state.slot.mutation.Description(),
			"error", err,
		)
	}
	return err
}

// flushDebounceInTask clears the debounce slot and applies its mutation.
func (m *Mutator[D]) flushDebounceInTask(ctx context.Context) error {
	m.mu.Lock()
	state := m.debounce
	m.debounce = nil
	if state != nil {
		state.timer.Stop()
	}
	m.mu.Unlock()

	if state == nil {
		return nil
	}
	return m.applyInTask(ctx, state.slot.mutation)
}
