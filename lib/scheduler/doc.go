// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs asynchronous work strictly one task at a
// time, in submission order.
//
// A [Scheduler] owns a FIFO queue and a single worker goroutine. A
// task submitted while the queue is idle starts immediately; otherwise
// it starts only after every previously submitted task has fully
// returned, including any blocking tail such as a disk write. Each
// task's outcome is delivered to its own [Task] handle and never
// affects its neighbours: a failing or panicking task does not stop
// the queue.
//
// The engine creates one Scheduler per process and injects it into
// every component that mutates editor state. Routing all work through
// the one queue is what gives the engine its global ordering, without
// any lock held across a mutation callback.
//
// Lifecycle:
//
//	s := scheduler.New(scheduler.WithLogger(logger))
//	defer s.Close()
//
//	err := s.Run(ctx, func(ctx context.Context) error {
//	    // exclusive section
//	    return nil
//	})
//
// Work running inside a task must not call [Scheduler.Run] on the same
// scheduler: it would wait for itself. Run detects this through the
// task's context and returns [ErrReentrant]. [Scheduler.Submit] is
// safe from inside a task; the new task simply runs after the current
// one.
package scheduler
