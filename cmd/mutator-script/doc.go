// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Mutator-script applies scripted edits to JSON documents through the
// mutation engine. Every open document gets its own undo stack; all
// stacks share one scheduler, so "undo" without a name reverts the most
// recent change across active documents. Applied and undone changes
// are recorded in the journal when it is enabled.
//
//	open scene scene.json
//	activate scene
//	set scene camera.fov 60
//	slide scene material.roughness 0.4
//	slide scene material.roughness 0.45
//	settle
//	undo
//	show scene
//
// Exit codes:
//
//	0  every command succeeded
//	1  a command, the config, or the flags were invalid
package main
