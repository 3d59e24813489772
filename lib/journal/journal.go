// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/mutator/lib/codec"
	"github.com/bureau-foundation/mutator/lib/mutation"
	"github.com/bureau-foundation/mutator/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS mutation_events (
	sequence    INTEGER PRIMARY KEY AUTOINCREMENT,
	session     TEXT    NOT NULL,
	mutation_id INTEGER NOT NULL,
	mutator     TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	description TEXT    NOT NULL,
	recorded_at TEXT    NOT NULL,
	payload     BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS mutation_events_session ON mutation_events (session, sequence);
`

// Config configures Open.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// Session labels every entry written through this Journal. Empty
	// means a fresh random UUID.
	Session string

	Logger *slog.Logger
}

// Entry is one recorded apply or undo.
type Entry struct {
	Sequence    int64
	Session     string
	MutationID  uint64
	Mutator     string
	Kind        string
	Description string
	RecordedAt  time.Time
	// Depth is the mutator's stack depth after the operation, carried
	// in the CBOR payload.
	Depth int
	// Payload is the raw CBOR payload.
	Payload []byte
}

// payload is the CBOR body of an entry. It carries the full event so
// the row can be decoded without the relational columns.
type payload struct {
	Kind        string    `cbor:"kind"`
	Mutator     string    `cbor:"mutator"`
	ID          uint64    `cbor:"id"`
	Description string    `cbor:"description"`
	Depth       int       `cbor:"depth"`
	Time        time.Time `cbor:"time"`
}

// Journal appends mutation events to SQLite. It implements
// mutation.Observer.
type Journal struct {
	pool    *sqlitepool.Pool
	session string
	logger  *slog.Logger
}

var _ mutation.Observer = (*Journal)(nil)

// Open opens or creates the journal database.
func Open(cfg Config) (*Journal, error) {
	if cfg.Path == "" {
		return nil, errors.New("journal: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	session := cfg.Session
	if session == "" {
		session = uuid.NewString()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		Schema: schema,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	logger.Debug("journal opened", "path", cfg.Path, "session", session)
	return &Journal{pool: pool, session: session, logger: logger}, nil
}

// Session returns the session label stamped on new entries.
func (j *Journal) Session() string { return j.session }

// Observe appends event.
func (j *Journal) Observe(ctx context.Context, event mutation.Event) error {
	body, err := codec.Marshal(payload{
		Kind:        event.Kind.String(),
		Mutator:     event.Mutator,
		ID:          event.ID,
		Description: event.Description,
		Depth:       event.Depth,
		Time:        event.Time.UTC(),
	})
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	err = j.pool.Write(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			INSERT INTO mutation_events
				(session, mutation_id, mutator, kind, description, recorded_at, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				j.session,
				int64(event.ID),
				event.Mutator,
				event.Kind.String(),
				event.Description,
				event.Time.UTC().Format(time.RFC3339Nano),
				body,
			}},
		)
	})
	if err != nil {
		return fmt.Errorf("journal: recording mutation %d: %w", event.ID, err)
	}
	return nil
}

// Recent returns up to limit entries across all sessions, newest
// first. A limit of zero or less returns every entry.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	var entries []Entry
	err := j.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `
			SELECT sequence, session, mutation_id, mutator, kind, description, recorded_at, payload
			FROM mutation_events
			ORDER BY sequence DESC
			LIMIT ?`,
			&sqlitex.ExecOptions{
				Args: []any{limit},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					entry, err := scanEntry(stmt)
					if err != nil {
						return err
					}
					entries = append(entries, entry)
					return nil
				},
			},
		)
	})
	if err != nil {
		return nil, fmt.Errorf("journal: reading entries: %w", err)
	}
	return entries, nil
}

func scanEntry(stmt *sqlite.Stmt) (Entry, error) {
	entry := Entry{
		Sequence:    stmt.ColumnInt64(0),
		Session:     stmt.ColumnText(1),
		MutationID:  uint64(stmt.ColumnInt64(2)),
		Mutator:     stmt.ColumnText(3),
		Kind:        stmt.ColumnText(4),
		Description: stmt.ColumnText(5),
	}

	recordedAt, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(6))
	if err != nil {
		return Entry{}, fmt.Errorf("entry %d: recorded_at: %w", entry.Sequence, err)
	}
	entry.RecordedAt = recordedAt

	entry.Payload = make([]byte, stmt.ColumnLen(7))
	stmt.ColumnBytes(7, entry.Payload)

	var body payload
	if err := codec.Unmarshal(entry.Payload, &body); err != nil {
		return Entry{}, fmt.Errorf("entry %d: %w", entry.Sequence, err)
	}
	entry.Depth = body.Depth
	return entry, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.pool.Close()
}
