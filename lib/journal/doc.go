// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records every applied and undone mutation in a
// SQLite database so an editor session's history survives restarts.
//
// A [Journal] is a mutation.Observer: pass it to mutation.WithObserver
// and each successful apply or undo appends one row. Rows carry the
// relational fields needed for listing plus a deterministic CBOR
// payload (lib/codec) with the full event. Each Journal stamps its rows
// with a session ID, a random UUID unless one is configured.
package journal
