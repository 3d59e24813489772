// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration shared by the mutation
// engine's commands.
//
// Configuration comes from a single file named either by the
// MUTATOR_CONFIG environment variable ([Load]) or by a --config flag
// ([LoadFile]). There is no discovery and no per-field environment
// override. The file is applied on top of [Default].
//
// After loading, ${HOME}, ${MUTATOR_DATA_DIR}, and ${VAR:-default}
// patterns are expanded in path fields.
//
//	data_dir: ${HOME}/.local/share/mutator
//	engine:
//	  debounce_timeout: 500ms
//	  max_stack_depth: 200
//	document:
//	  dir: ${MUTATOR_DATA_DIR}/documents
//	  compression: zstd
//	journal:
//	  enabled: true
//	  path: ${MUTATOR_DATA_DIR}/journal.db
//	log:
//	  level: debug
//	  format: json
package config
