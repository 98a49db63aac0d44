// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the relay's CBOR configuration.
//
// The relay speaks JSON to the database because the series write API
// requires it. Everything the relay writes for itself, currently the
// batch capture file, is CBOR: compact, self-delimiting, and able to
// carry the compressed payload as a byte string without escaping.
//
// For buffers:
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
//
// For a file holding a sequence of frames:
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types written only as CBOR carry `cbor` struct tags. Types that are
// also rendered as JSON (for example by bureau-carbon-capture) carry
// `json` tags only; fxamacker/cbor falls back to them.
package codec
