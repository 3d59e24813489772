// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens a small SQLite connection pool with the
// project's standard pragmas.
//
// It wraps zombiezen.com/go/sqlite. Every connection runs in WAL mode
// with synchronous=NORMAL and a 5 second busy timeout, then applies the
// caller's schema script. Callers write plain SQL through sqlitex:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/lib/editor/journal.db",
//	    Schema: schema,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	err = pool.Write(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "INSERT ...", &sqlitex.ExecOptions{Args: args})
//	})
package sqlitepool
