// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [RequireOpen] encapsulate the
// timeout safety valve pattern (select with a time.After fallback) so
// individual tests never sleep or call time.After themselves. These
// are the only place in the test suite where real wall-clock timeouts
// are used; everything time-dependent in the engine runs on a fake
// clock.
//
// [Recorder] collects an ordered, goroutine-safe trace of actions
// ("queue(9):5", "apply(9):5", ...) so ordering properties can be
// asserted as a single slice comparison.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
