// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package document is a persistence collaborator for the mutation
// engine: a JSON document on disk, edited through undoable mutations.
//
// [Parse] accepts JSONC, so hand-written files may carry comments.
// Values are addressed with gjson/sjson paths. A [Store] owns the file:
// it locks it, writes atomically, optionally compresses with zstd or
// lz4, and hashes content with BLAKE3 so that saving an unchanged
// document is free. An [Editor] joins a live Document to its Store and
// implements mutation.Collaborator, so a Mutator saves the file after
// every apply and undo.
//
//	editor, err := document.OpenEditor(path, document.StoreOptions{})
//	if err != nil {
//	    return err
//	}
//	defer editor.Close()
//
//	m := mutation.NewMutator[document.Args](controller, editor)
//	err = m.Apply(ctx, document.SetValue("camera.fov", "60"))
package document
