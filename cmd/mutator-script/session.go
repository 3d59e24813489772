// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bureau-foundation/mutator/lib/clock"
	"github.com/bureau-foundation/mutator/lib/codec"
	"github.com/bureau-foundation/mutator/lib/config"
	"github.com/bureau-foundation/mutator/lib/document"
	"github.com/bureau-foundation/mutator/lib/journal"
	"github.com/bureau-foundation/mutator/lib/mutation"
	"github.com/bureau-foundation/mutator/lib/scheduler"
)

// openDocument is one document opened by the script, with its own
// undo stack.
type openDocument struct {
	editor  *document.Editor
	mutator *mutation.Mutator[document.Args]
}

// session executes script commands against one shared scheduler and
// controller.
type session struct {
	cfg         *config.Config
	logger      *slog.Logger
	clock       clock.Clock
	output      io.Writer
	compression document.Compression

	scheduler  *scheduler.Scheduler
	controller *mutation.Controller
	journal    *journal.Journal

	documents map[string]*openDocument
	order     []string
}

func newSession(cfg *config.Config, logger *slog.Logger, clk clock.Clock, output io.Writer) (*session, error) {
	compression, err := document.ParseCompression(cfg.Document.Compression)
	if err != nil {
		return nil, err
	}

	var history *journal.Journal
	if cfg.Journal.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
		history, err = journal.Open(journal.Config{Path: cfg.Journal.Path, Logger: logger})
		if err != nil {
			return nil, err
		}
	}

	s := scheduler.New(scheduler.WithLogger(logger))
	return &session{
		cfg:         cfg,
		logger:      logger,
		clock:       clk,
		output:      output,
		compression: compression,
		scheduler:   s,
		controller:  mutation.NewController(s, mutation.WithControllerLogger(logger)),
		journal:     history,
		documents:   make(map[string]*openDocument),
	}, nil
}

// run executes every line of script, stopping at the first error.
func (s *session) run(ctx context.Context, script io.Reader) error {
	scanner := bufio.NewScanner(script)
	number := 0
	for scanner.Scan() {
		number++
		cmd, ok, err := parseLine(number, scanner.Text())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.execute(ctx, cmd); err != nil {
			return fmt.Errorf("line %d: %s: %w", cmd.line, cmd.name, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return nil
}

func (s *session) execute(ctx context.Context, cmd command) error {
	s.logger.Debug("executing", "line", cmd.line, "command", cmd.name, "args", cmd.args)

	switch cmd.name {
	case "open":
		return s.open(cmd.args[0], cmd.args[1])
	case "history":
		limit := 10
		if len(cmd.args) == 1 {
			parsed, err := strconv.Atoi(cmd.args[0])
			if err != nil {
				return fmt.Errorf("invalid count %q", cmd.args[0])
			}
			limit = parsed
		}
		return s.history(ctx, limit)
	case "settle":
		return s.settle(ctx)
	case "undo":
		if len(cmd.args) == 0 {
			return s.controller.UndoLatestActive(ctx)
		}
	}

	doc, err := s.lookup(cmd.args[0])
	if err != nil {
		return err
	}
	switch cmd.name {
	case "activate":
		return doc.mutator.SetActive(true)
	case "deactivate":
		return doc.mutator.SetActive(false)
	case "set":
		return doc.mutator.Apply(ctx, document.SetValue(cmd.args[1], cmd.args[2]))
	case "slide":
		return document.DebounceSet(ctx, doc.mutator, doc.editor, cmd.args[1], cmd.args[2], 0)
	case "drag":
		return drag(ctx, doc.mutator, cmd.args[1], cmd.args[2:])
	case "undo":
		return doc.mutator.Undo(ctx)
	case "show":
		pretty := bytes.TrimRight(doc.editor.Document().Pretty(), "\n")
		_, err := fmt.Fprintf(s.output, "%s\n", pretty)
		return err
	case "stack":
		for _, description := range doc.mutator.Descriptions() {
			if _, err := fmt.Fprintln(s.output, description); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unhandled command %q", cmd.name)
	}
}

func (s *session) lookup(name string) (*openDocument, error) {
	doc, ok := s.documents[name]
	if !ok {
		return nil, fmt.Errorf("no document named %q (use open first)", name)
	}
	return doc, nil
}

func (s *session) open(name string, path string) error {
	if _, exists := s.documents[name]; exists {
		return fmt.Errorf("document %q is already open", name)
	}

	editor, err := document.OpenEditor(s.cfg.ResolveDocument(path), document.StoreOptions{
		Compression: s.compression,
		Logger:      s.logger.With("document", name),
	})
	if err != nil {
		return err
	}

	options := []mutation.Option{
		mutation.WithName(name),
		mutation.WithLogger(s.logger),
		mutation.WithClock(s.clock),
		mutation.WithDebounceTimeout(s.cfg.Engine.DebounceTimeout),
		mutation.WithMaxDepth(s.cfg.Engine.MaxStackDepth),
	}
	if s.journal != nil {
		options = append(options, mutation.WithObserver(s.journal))
	}

	s.documents[name] = &openDocument{
		editor:  editor,
		mutator: mutation.NewMutator[document.Args](s.controller, editor, options...),
	}
	s.order = append(s.order, name)
	s.logger.Info("document opened", "document", name, "path", editor.Path())
	return nil
}

// drag runs a full interactive edit: begin, one update per value, apply.
func drag(ctx context.Context, m *mutation.Mutator[document.Args], path string, values []string) error {
	continuous := document.SetValueContinuous(path)
	if err := mutation.BeginContinuous(ctx, m, continuous); err != nil {
		return err
	}
	for _, value := range values {
		if err := mutation.UpdateContinuous(ctx, m, continuous, document.Raw(value)); err != nil {
			return err
		}
	}
	return m.Apply(ctx, continuous)
}

// settle waits out the debounce window, then applies anything still
// pending.
func (s *session) settle(ctx context.Context) error {
	s.clock.Sleep(s.cfg.Engine.DebounceTimeout)
	return s.flushAll(ctx)
}

func (s *session) flushAll(ctx context.Context) error {
	var errs []error
	for _, name := range s.order {
		if err := s.documents[name].mutator.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *session) history(ctx context.Context, limit int) error {
	if s.journal == nil {
		return errors.New("the journal is disabled")
	}
	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		payload, err := codec.Diagnose(entry.Payload)
		if err != nil {
			payload = fmt.Sprintf("<undecodable: %v>", err)
		}
		_, err = fmt.Fprintf(s.output, "%d\t%s\t%s\t%d\t%s\t%s\n",
			entry.Sequence, entry.Kind, entry.Mutator, entry.MutationID, entry.Description, payload)
		if err != nil {
			return err
		}
	}
	return nil
}

// close applies pending debounced edits, drains the scheduler, and
// releases every file.
func (s *session) close(ctx context.Context) error {
	errs := []error{s.flushAll(ctx)}
	errs = append(errs, s.scheduler.Close())
	for _, name := range s.order {
		errs = append(errs, s.documents[name].editor.Close())
	}
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	return errors.Join(errs...)
}
