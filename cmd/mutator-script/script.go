// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
)

// command is one parsed script line.
type command struct {
	line int
	name string
	args []string
}

// arity bounds each command's argument count. max < 0 means unbounded.
var arity = map[string]struct{ min, max int }{
	"open":       {2, 2},
	"activate":   {1, 1},
	"deactivate": {1, 1},
	"set":        {3, 3},
	"slide":      {3, 3},
	"drag":       {3, -1},
	"undo":       {0, 1},
	"show":       {1, 1},
	"stack":      {1, 1},
	"history":    {0, 1},
	"settle":     {0, 0},
}

// parseLine parses one script line. Blank lines and lines starting with
// '#' yield ok == false.
func parseLine(number int, text string) (command, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return command{}, false, nil
	}

	fields, err := splitFields(trimmed)
	if err != nil {
		return command{}, false, fmt.Errorf("line %d: %w", number, err)
	}
	cmd := command{line: number, name: fields[0], args: fields[1:]}

	bounds, known := arity[cmd.name]
	if !known {
		return command{}, false, fmt.Errorf("line %d: unknown command %q", number, cmd.name)
	}
	if len(cmd.args) < bounds.min || (bounds.max >= 0 && len(cmd.args) > bounds.max) {
		return command{}, false, fmt.Errorf("line %d: %s: wrong number of arguments (%d)", number, cmd.name, len(cmd.args))
	}
	return cmd, true, nil
}

// splitFields splits on whitespace, except inside JSON strings, objects,
// and arrays, so `set doc a {"x": 1}` yields three arguments after the
// command.
func splitFields(text string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		depth   int
		quoted  bool
		escaped bool
	)
	flush := func() {
		if current.Len() > 0 {
			fields = append(fields, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '{' || r == '[':
			depth++
		case r == '}' || r == ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q", r)
			}
		case depth == 0 && (r == ' ' || r == '\t'):
			flush()
			continue
		}
		current.WriteRune(r)
	}
	if quoted {
		return nil, fmt.Errorf("unterminated string")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unterminated object or array")
	}
	flush()
	return fields, nil
}
