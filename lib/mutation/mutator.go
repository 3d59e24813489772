// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/bureau-foundation/mutator/lib/clock"
	"github.com/bureau-foundation/mutator/lib/scheduler"
)

// DefaultDebounceTimeout is the quiet period after the last
// DebounceContinuous call before the pending mutation is applied.
const DefaultDebounceTimeout = 500 * time.Millisecond

// ActiveMutation is a mutation on a Mutator's stack together with the
// globally ordered ID the Controller assigned when it was pushed.
type ActiveMutation[D any] struct {
	ID       uint64
	Instance Mutation[D]
}

// entry is one stack slot. Simple mutations are pushed already marked
// applied; continuous ones are pushed pending by begin.
type entry[D any] struct {
	id         uint64
	mutation   Mutation[D]
	continuous bool
	applied    bool
}

// Option configures a Mutator.
type Option func(*options)

type options struct {
	name            string
	logger          *slog.Logger
	clock           clock.Clock
	observer        Observer
	debounceTimeout time.Duration
	maxDepth        int
	baseContext     context.Context
}

// WithName labels the mutator in logs and observer events.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock used for debounce timers. The default is
// clock.Real(); tests inject clock.Fake().
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithObserver registers an observer for applied and undone events.
func WithObserver(observer Observer) Option {
	return func(o *options) { o.observer = observer }
}

// WithDebounceTimeout sets the window DebounceContinuous uses when the
// caller passes a zero timeout. The default is DefaultDebounceTimeout.
func WithDebounceTimeout(timeout time.Duration) Option {
	return func(o *options) { o.debounceTimeout = timeout }
}

// WithMaxDepth bounds the undo stack. When a push exceeds the bound
// the oldest entries are discarded. Zero means unbounded.
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithBaseContext sets the context handed to tasks that the mutator
// schedules on its own, such as an expired debounce. The default is
// context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) { o.baseContext = ctx }
}

// Mutator owns the undo stack and the debounce slot for one domain.
// Every public operation runs as a single task on the scheduler shared
// through the Controller, so operations from concurrent goroutines
// never interleave, even across different Mutators.
type Mutator[D any] struct {
	controller   *Controller
	scheduler    *scheduler.Scheduler
	collaborator Collaborator[D]
	options

	// mu guards stack and debounce. Both are only written from inside
	// scheduler tasks; mu exists so accessors are safe from any
	// goroutine. It is never held across a callback.
	mu       sync.Mutex
	stack    []*entry[D]
	debounce *debounceState[D]
	// generation tags debounce timers so a superseded timer's flush
	// task can recognise itself as stale.
	generation uint64
}

// NewMutator creates a Mutator over collaborator's domain state and
// registers it, inactive, with controller.
func NewMutator[D any](controller *Controller, collaborator Collaborator[D], opts ...Option) *Mutator[D] {
	m := &Mutator[D]{
		controller:   controller,
		scheduler:    controller.Scheduler(),
		collaborator: collaborator,
		options: options{
			name:            "mutator",
			logger:          slog.New(slog.DiscardHandler),
			clock:           clock.Real(),
			debounceTimeout: DefaultDebounceTimeout,
			baseContext:     context.Background(),
		},
	}
	for _, opt := range opts {
		opt(&m.options)
	}
	// A fresh mutator cannot already be registered.
	_ = controller.Register(m)
	return m
}

// Name returns the label set by WithName.
func (m *Mutator[D]) Name() string { return m.name }

// Register re-registers the mutator with its controller after
// Deregister. New mutators are registered automatically.
func (m *Mutator[D]) Register() error { return m.controller.Register(m) }

// Deregister removes the mutator from its controller. Its stack is
// kept.
func (m *Mutator[D]) Deregister() { m.controller.Deregister(m) }

// SetActive includes or excludes the mutator from
// Controller.UndoLatestActive.
func (m *Mutator[D]) SetActive(active bool) error {
	return m.controller.SetMutatorActive(m, active)
}

// Apply applies mutation as one scheduled task: any pending debounced
// mutation is applied first, the stack invariants are checked, an undo
// snapshot is captured for a new mutation, the mutation runs against
// fresh MutationArgs, and the collaborator persists before
// AfterPersistChanges runs. A *Continuous must already have been begun.
func (m *Mutator[D]) Apply(ctx context.Context, mutation Mutation[D]) error {
	return m.scheduler.Run(ctx, func(ctx context.Context) error {
		return m.applyInTask(ctx, mutation)
	})
}

// Undo reverts and pops the top mutation, then persists. An empty
// stack is a no-op and persists nothing. A pending debounced mutation
// is applied first, so it is the one undone.
func (m *Mutator[D]) Undo(ctx context.Context) error {
	return m.scheduler.Run(ctx, m.undoInTask)
}

// Flush applies the pending debounced mutation now, if there is one.
func (m *Mutator[D]) Flush(ctx context.Context) error {
	return m.scheduler.Run(ctx, m.flushDebounceInTask)
}

// BeginContinuous pushes continuous onto m's stack in the pending state
// and captures its undo snapshot.
func BeginContinuous[D, A any](ctx context.Context, m *Mutator[D], continuous *Continuous[D, A]) error {
	return m.scheduler.Run(ctx, func(ctx context.Context) error {
		return m.beginInTask(ctx, continuous)
	})
}

// UpdateContinuous feeds args to the pending continuous mutation, which
// must be the top of m's stack.
func UpdateContinuous[D, A any](ctx context.Context, m *Mutator[D], continuous *Continuous[D, A], args A) error {
	return m.scheduler.Run(ctx, func(ctx context.Context) error {
		return updateInTask(ctx, m, continuous, args)
	})
}

// ApplyInstantly begins, updates once, and applies continuous inside a
// single task.
func ApplyInstantly[D, A any](ctx context.Context, m *Mutator[D], continuous *Continuous[D, A], args A) error {
	return m.scheduler.Run(ctx, func(ctx context.Context) error {
		if err := m.beginInTask(ctx, continuous); err != nil {
			return err
		}
		if err := updateInTask(ctx, m, continuous, args); err != nil {
			return err
		}
		return m.applyInTask(ctx, continuous)
	})
}

// LatestMutation returns the top of the stack.
func (m *Mutator[D]) LatestMutation() (ActiveMutation[D], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	top := m.topLocked()
	if top == nil {
		return ActiveMutation[D]{}, false
	}
	return ActiveMutation[D]{ID: top.id, Instance: top.mutation}, true
}

// LatestID returns the ID of the top of the stack.
func (m *Mutator[D]) LatestID() (uint64, bool) {
	active, ok := m.LatestMutation()
	return active.ID, ok
}

// Depth returns the number of mutations on the stack.
func (m *Mutator[D]) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stack)
}

// Descriptions returns the stack's descriptions, oldest first.
func (m *Mutator[D]) Descriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.descriptionsLocked()
}

func (m *Mutator[D]) descriptionsLocked() []string {
	descriptions := make([]string, len(m.stack))
	for i, slot := range m.stack {
		descriptions[i] = slot.mutation.Description()
	}
	return descriptions
}

func (m *Mutator[D]) top() *entry[D] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topLocked()
}

func (m *Mutator[D]) topLocked() *entry[D] {
	if len(m.stack) == 0 {
		return nil
	}
	return m.stack[len(m.stack)-1]
}

// push appends slot and trims the stack to maxDepth, oldest first. The
// new slot itself is always kept.
func (m *Mutator[D]) push(slot *entry[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stack = append(m.stack, slot)
	if m.maxDepth > 0 && len(m.stack) > m.maxDepth {
		dropped := len(m.stack) - m.maxDepth
		for i := range dropped {
			m.stack[i] = nil
		}
		m.stack = m.stack[dropped:]
		m.logger.Debug("mutation stack trimmed",
			"mutator", m.name,
			"dropped", dropped,
			"max_depth", m.maxDepth,
		)
	}
}

func (m *Mutator[D]) pop(slot *entry[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if top := m.topLocked(); top == slot {
		m.stack[len(m.stack)-1] = nil
		m.stack = m.stack[:len(m.stack)-1]
	}
}

func (m *Mutator[D]) setApplied(slot *entry[D]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot.applied = true
}

func (m *Mutator[D]) beginInTask(ctx context.Context, mutation Mutation[D]) error {
	if err := m.flushDebounceInTask(ctx); err != nil {
		return err
	}

	if top := m.top(); top != nil && top.continuous && !top.applied {
		return violation(msgBeginPreviousPending)
	}

	slot := &entry[D]{
		id:         m.controller.RequestMutationID(),
		mutation:   mutation,
		continuous: true,
	}
	m.push(slot)

	// Capture before any update touches live state.
	mutation.CaptureUndo(m.collaborator.MutationArgs())

	m.logger.Debug("continuous mutation begun",
		"mutator", m.name,
		"id", slot.id,
		"description", mutation.Description(),
	)
	return nil
}

func updateInTask[D, A any](ctx context.Context, m *Mutator[D], continuous *Continuous[D, A], args A) error {
	top := m.top()
	if top == nil || !sameIdentity(top.mutation, continuous) {
		return violation(msgUpdateNotLatest)
	}
	if top.applied {
		return violation(msgUpdateAlreadyApplied)
	}
	if err := continuous.Update(ctx, m.collaborator.MutationArgs(), args); err != nil {
		return mutationFailed("updating", continuous.Description(), err)
	}
	return nil
}

func (m *Mutator[D]) applyInTask(ctx context.Context, mutation Mutation[D]) error {
	if err := m.flushDebounceInTask(ctx); err != nil {
		return err
	}

	top := m.top()
	var slot *entry[D]
	if top == nil || !sameIdentity(top.mutation, mutation) {
		switch {
		case isContinuous(mutation):
			// Continuous mutations reach the stack through begin.
			return violation(msgApplyContinuousNotLatest)
		case top != nil && top.continuous && !top.applied:
			return violation(msgApplyPreviousPending)
		}
		slot = &entry[D]{
			id:       m.controller.RequestMutationID(),
			mutation: mutation,
			applied:  true,
		}
		m.push(slot)
	} else {
		switch {
		case !top.continuous:
			return violation(msgApplyAlreadyApplied)
		case top.applied:
			return violation(msgApplyContinuousAlreadyApplied)
		}
		slot = top
		m.setApplied(slot)
	}

	args := m.collaborator.MutationArgs()
	if !slot.continuous {
		// Continuous mutations captured their snapshot at begin.
		mutation.CaptureUndo(args)
	}

	if err := mutation.Apply(ctx, args); err != nil {
		return mutationFailed("applying", mutation.Description(), err)
	}

	m.logger.Debug("mutation applied",
		"mutator", m.name,
		"id", slot.id,
		"description", mutation.Description(),
		"stack", m.Descriptions(),
	)

	return m.persistInTask(ctx, slot, args, EventApplied)
}

func (m *Mutator[D]) undoInTask(ctx context.Context) error {
	if err := m.flushDebounceInTask(ctx); err != nil {
		return err
	}

	top := m.top()
	if top == nil {
		return nil
	}

	args := m.collaborator.MutationArgs()
	if err := top.mutation.Undo(ctx, args); err != nil {
		return mutationFailed("undoing", top.mutation.Description(), err)
	}
	// No redo: an undone mutation is gone for good.
	m.pop(top)

	m.logger.Debug("mutation undone",
		"mutator", m.name,
		"id", top.id,
		"description", top.mutation.Description(),
		"stack", m.Descriptions(),
	)

	return m.persistInTask(ctx, top, args, EventUndone)
}

// persistInTask runs the collaborator's PersistChanges, then the
// mutation's AfterPersistChanges, then notifies the observer.
func (m *Mutator[D]) persistInTask(ctx context.Context, slot *entry[D], args D, kind EventKind) error {
	if err := m.collaborator.PersistChanges(ctx); err != nil {
		m.logger.Error("persisting changes failed",
			"mutator", m.name,
			"id", slot.id,
			"description", slot.mutation.Description(),
			"error", err,
		)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if hook, ok := slot.mutation.(AfterPersister[D]); ok {
		if err := hook.AfterPersistChanges(ctx, args); err != nil {
			return mutationFailed("after persisting", slot.mutation.Description(), err)
		}
	}

	if m.observer != nil {
		event := Event{
			Kind:        kind,
			Mutator:     m.name,
			ID:          slot.id,
			Description: slot.mutation.Description(),
			Depth:       m.Depth(),
			Time:        m.clock.Now(),
		}
		if err := m.observer.Observe(ctx, event); err != nil {
			m.logger.Warn("mutation observer failed",
				"mutator", m.name,
				"id", slot.id,
				"kind", kind.String(),
				"error", err,
			)
		}
	}
	return nil
}

// sameIdentity reports whether a and b are the same mutation or debounce
// target. Values of non-comparable dynamic types are never identical.
func sameIdentity(a, b any) bool {
	typeA := reflect.TypeOf(a)
	if typeA != reflect.TypeOf(b) {
		return false
	}
	if typeA == nil {
		return true
	}
	if !typeA.Comparable() {
		return false
	}
	return a == b
}
