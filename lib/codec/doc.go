// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used for binary
// payloads, such as the per-event records in the mutation journal.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same logical value always produces identical bytes, so payloads can
// be compared and hashed directly.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that are only ever stored as CBOR use `cbor` struct tags.
// Types that are also shown as JSON use `json` tags, which
// fxamacker/cbor reads when no `cbor` tag is present.
package codec
