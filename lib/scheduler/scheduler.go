// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

var (
	// ErrClosed is the outcome of a task submitted after Close.
	ErrClosed = errors.New("scheduler: closed")

	// ErrTaskPanicked wraps the recovered value of a panicking task.
	ErrTaskPanicked = errors.New("scheduler: task panicked")

	// ErrReentrant is returned by Run when called from inside a task
	// of the same scheduler.
	ErrReentrant = errors.New("scheduler: Run called from inside a running task")
)

// Task is the handle for one unit of submitted work.
type Task struct {
	sequence uint64
	ctx      context.Context
	work     func(context.Context) error

	done chan struct{}
	err  error
}

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task has finished and returns its outcome.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Sequence is the task's submission number, starting at 1.
func (t *Task) Sequence() uint64 { return t.sequence }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for task lifecycle records. The default
// discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Scheduler serializes submitted work. See the package documentation.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	ready   *sync.Cond
	queue   []*Task
	running *Task
	closed  bool
	// submitted counts every Submit call, including rejected ones.
	submitted uint64

	finished chan struct{}
}

// New creates a Scheduler and starts its worker goroutine. Call Close
// to stop it.
func New(options ...Option) *Scheduler {
	s := &Scheduler{
		logger:   slog.New(slog.DiscardHandler),
		finished: make(chan struct{}),
	}
	s.ready = sync.NewCond(&s.mu)
	for _, option := range options {
		option(s)
	}
	go s.loop()
	return s
}

// Submit enqueues work and returns without waiting for it. ctx is
// handed to work when it runs; cancelling it does not remove the task
// from the queue.
func (s *Scheduler) Submit(ctx context.Context, work func(context.Context) error) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitted++
	task := &Task{
		sequence: s.submitted,
		ctx:      ctx,
		work:     work,
		done:     make(chan struct{}),
	}
	if s.closed {
		task.err = ErrClosed
		close(task.done)
		return task
	}

	s.queue = append(s.queue, task)
	s.logger.Debug("task queued",
		"sequence", task.sequence,
		"pending", s.pendingLocked(),
	)
	s.ready.Signal()
	return task
}

// Run submits work and waits for its outcome.
func (s *Scheduler) Run(ctx context.Context, work func(context.Context) error) error {
	if running, ok := ctx.Value(taskContextKey{}).(*Scheduler); ok && running == s {
		return ErrReentrant
	}
	return s.Submit(ctx, work).Wait()
}

// Call is Run for work that produces a value.
func Call[R any](ctx context.Context, s *Scheduler, work func(context.Context) (R, error)) (R, error) {
	var result R
	err := s.Run(ctx, func(ctx context.Context) error {
		value, err := work(ctx)
		result = value
		return err
	})
	return result, err
}

// Pending returns the number of queued tasks plus the running one.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Scheduler) pendingLocked() int {
	count := len(s.queue)
	if s.running != nil {
		count++
	}
	return count
}

// Close stops accepting work, lets every already-queued task run to
// completion, and waits for the worker goroutine to exit. Safe to call
// more than once. Must not be called from inside a task.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.ready.Broadcast()
	}
	s.mu.Unlock()

	<-s.finished
	return nil
}

// taskContextKey marks contexts handed to running work.
type taskContextKey struct{}

func (s *Scheduler) loop() {
	defer close(s.finished)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.ready.Wait()
		}
		if len(s.queue) == 0 {
			submitted := s.submitted
			s.mu.Unlock()
			s.logger.Debug("scheduler stopped", "submitted", submitted)
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.running = task
		s.mu.Unlock()

		s.execute(task)

		s.mu.Lock()
		s.running = nil
		s.mu.Unlock()
		close(task.done)
	}
}

// execute runs one task and records its outcome, converting a panic
// into an error for that task's caller.
func (s *Scheduler) execute(task *Task) {
	defer func() {
		if recovered := recover(); recovered != nil {
			task.err = fmt.Errorf("%w: %v", ErrTaskPanicked, recovered)
			s.logger.Error("task panicked",
				"sequence", task.sequence,
				"panic", recovered,
				"stack", string(debug.Stack()),
			)
		}
	}()

	ctx := context.WithValue(task.ctx, taskContextKey{}, s)
	task.err = task.work(ctx)
	if task.err != nil {
		s.logger.Debug("task failed", "sequence", task.sequence, "error", task.err)
	}
}
