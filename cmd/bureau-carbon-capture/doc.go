// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-carbon-capture reads a capture file written by
// bureau-carbon-relay --capture and prints one JSON object per batch.
//
// Usage:
//
//	bureau-carbon-capture [flags] <capture-file>
//
// Each payload is decompressed and checked against its BLAKE3 digest.
// The tool exits 1 if any frame fails verification or the file is
// truncated. Pass "-" to read standard input.
//
// --payload includes the batch body as sent to the database.
// --diagnose prints each frame in CBOR diagnostic notation instead and
// skips verification.
package main
