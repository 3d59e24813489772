// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mutation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/mutator/lib/scheduler"
)

// firstMutationID is the first ID handed out by a Controller.
const firstMutationID = 1000

// Managed is the view of a Mutator the Controller needs. Only
// *Mutator implements it.
type Managed interface {
	Name() string
	LatestID() (uint64, bool)
	undoInTask(ctx context.Context) error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the controller's logger. The default
// discards everything.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// Controller issues globally ordered mutation IDs and undoes the most
// recent mutation across every active Mutator. All Mutators created
// against one Controller share its Scheduler.
type Controller struct {
	scheduler *scheduler.Scheduler
	logger    *slog.Logger

	mu         sync.Mutex
	nextID     uint64
	registered map[Managed]bool // value is the active flag
	order      []Managed
}

// NewController creates a Controller around s.
func NewController(s *scheduler.Scheduler, options ...ControllerOption) *Controller {
	c := &Controller{
		scheduler:  s,
		logger:     slog.New(slog.DiscardHandler),
		nextID:     firstMutationID,
		registered: make(map[Managed]bool),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Scheduler returns the shared scheduler.
func (c *Controller) Scheduler() *scheduler.Scheduler { return c.scheduler }

// RequestMutationID returns the next ID. IDs increase strictly and are
// never reused.
func (c *Controller) RequestMutationID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

// Register adds m, inactive.
func (c *Controller) Register(m Managed) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registered[m]; ok {
		return ErrAlreadyRegistered
	}
	c.registered[m] = false
	c.order = append(c.order, m)
	return nil
}

// Deregister removes m. Unknown mutators are ignored.
func (c *Controller) Deregister(m Managed) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registered[m]; !ok {
		return
	}
	delete(c.registered, m)
	for i, candidate := range c.order {
		if candidate == m {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// SetMutatorActive includes or excludes m from UndoLatestActive.
func (c *Controller) SetMutatorActive(m Managed, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.registered[m]; !ok {
		return ErrNotRegistered
	}
	c.registered[m] = active
	c.logger.Debug("mutator activation changed", "mutator", m.Name(), "active", active)
	return nil
}

// IsActive reports whether m is registered and active.
func (c *Controller) IsActive(m Managed) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered[m]
}

// UndoLatestActive undoes the top mutation with the highest ID among
// the active Mutators. Selection and undo run in one scheduler task,
// so no other mutation can slip in between. With nothing to undo it
// does nothing.
func (c *Controller) UndoLatestActive(ctx context.Context) error {
	return c.scheduler.Run(ctx, func(ctx context.Context) error {
		target, id, ok := c.latestActive()
		if !ok {
			c.logger.Debug("nothing to undo")
			return nil
		}
		c.logger.Debug("undoing latest mutation", "mutator", target.Name(), "id", id)
		return target.undoInTask(ctx)
	})
}

func (c *Controller) latestActive() (Managed, uint64, bool) {
	c.mu.Lock()
	candidates := make([]Managed, 0, len(c.order))
	for _, m := range c.order {
		if c.registered[m] {
			candidates = append(candidates, m)
		}
	}
	c.mu.Unlock()

	// LatestID takes the mutator's own lock; keep it out from under ours.
	var (
		target Managed
		best   uint64
		found  bool
	)
	for _, m := range candidates {
		id, ok := m.LatestID()
		if !ok {
			continue
		}
		if !found || id > best {
			target, best, found = m, id, true
		}
	}
	return target, best, found
}
