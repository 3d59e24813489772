// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

// ErrInvalidJSON is returned when a document or a value is not valid
// JSON.
var ErrInvalidJSON = errors.New("document: invalid JSON")

// Document is an in-memory JSON object addressed by gjson/sjson paths
// ("camera.fov", "objects.3.name"). It is safe for concurrent use.
//
// A document parsed from JSONC keeps its comments. Reads go through a
// plain JSON copy in which every comment is blanked to spaces at the
// same offsets; edits are made on that copy and the changed byte range
// is spliced into the commented source. An edit that removes a key
// also removes comments inside the removed range.
type Document struct {
	mu sync.RWMutex
	// source is the text Bytes returns: JSONC with trailing commas
	// blanked. data is source with comments blanked, so offsets agree.
	source []byte
	data   []byte
}

// New returns an empty object.
func New() *Document {
	return &Document{source: []byte("{}"), data: []byte("{}")}
}

// Parse accepts JSON or JSONC (comments and trailing commas). The
// top-level value must be an object.
func Parse(data []byte) (*Document, error) {
	plain := jsonc.ToJSON(data)
	if !json.Valid(plain) {
		return nil, ErrInvalidJSON
	}
	if !gjson.ParseBytes(plain).IsObject() {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrInvalidJSON)
	}
	source := slices.Clone(data)
	blankTrailingCommas(source, plain)
	return &Document{source: source, data: plain}, nil
}

// blankTrailingCommas overwrites the trailing commas of source with
// spaces, leaving commas inside comments alone. plain is
// jsonc.ToJSON(source): a non-space byte that plain blanks is either
// a trailing comma or the start of a comment.
func blankTrailingCommas(source, plain []byte) {
	for i := 0; i < len(source); i++ {
		if plain[i] != ' ' || source[i] == ' ' {
			continue
		}
		switch source[i] {
		case ',':
			source[i] = ' '
		case '/':
			if i+1 < len(source) && source[i+1] == '*' {
				end := bytes.Index(source[i+2:], []byte("*/"))
				if end < 0 {
					return
				}
				i += 2 + end + 1
			} else {
				end := bytes.IndexByte(source[i:], '\n')
				if end < 0 {
					return
				}
				i += end
			}
		}
	}
}

// Get returns the value at path.
func (d *Document) Get(path string) gjson.Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return gjson.GetBytes(d.data, path)
}

// Set stores the raw JSON value at path, creating intermediate
// objects as needed.
func (d *Document) Set(path string, raw string) error {
	if !gjson.Valid(raw) {
		return fmt.Errorf("%w: value for %s: %s", ErrInvalidJSON, path, raw)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edit(func(object []byte) ([]byte, error) {
		updated, err := sjson.SetRawBytes(object, path, []byte(raw))
		if err != nil {
			return nil, fmt.Errorf("document: setting %s: %w", path, err)
		}
		return updated, nil
	})
}

// Delete removes path. Deleting a missing path is not an error.
func (d *Document) Delete(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.edit(func(object []byte) ([]byte, error) {
		updated, err := sjson.DeleteBytes(object, path)
		if err != nil {
			return nil, fmt.Errorf("document: deleting %s: %w", path, err)
		}
		return updated, nil
	})
}

// edit applies change to the top-level object of the plain copy and
// carries the result into source. Callers hold mu.
func (d *Document) edit(change func(object []byte) ([]byte, error)) error {
	// Restrict the edit to the object itself so text around it, such
	// as a header comment, is never rewritten.
	start := bytes.IndexByte(d.data, '{')
	end := bytes.LastIndexByte(d.data, '}') + 1
	object := slices.Clone(d.data[start:end])
	updated, err := change(object)
	if err != nil {
		return err
	}
	data := slices.Concat(d.data[:start], updated, d.data[end:])
	d.source = splice(d.source, d.data, data)
	d.data = data
	return nil
}

// splice returns source with the byte range where before and after
// differ replaced by after's bytes. source and before have the same
// length and differ only inside comments. If the replaced range cuts
// through a comment, the commented text cannot be kept and after is
// returned as is.
func splice(source, before, after []byte) []byte {
	prefix := 0
	limit := min(len(before), len(after))
	for prefix < limit && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < limit-prefix && before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}

	result := slices.Concat(
		source[:prefix],
		after[prefix:len(after)-suffix],
		source[len(source)-suffix:],
	)
	if !bytes.Equal(jsonc.ToJSON(result), after) {
		return slices.Clone(after)
	}
	return result
}

// Bytes returns a copy of the document text, comments included.
func (d *Document) Bytes() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.source)
}

// JSON returns a copy of the document as plain JSON, with comments
// blanked to whitespace.
func (d *Document) JSON() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.data)
}

// Pretty returns the document indented for display.
func (d *Document) Pretty() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return []byte(gjson.GetBytes(d.data, "@pretty").Raw)
}
