// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package capture records outgoing batches to an append-only file.
//
// Each batch the relay sends (or fails to send) becomes one [Frame]: a
// CBOR map holding the peer the lines came from, the redacted
// destination, record and point counts, the HTTP outcome, and the
// exact JSON payload. The payload is compressed (zstd by default,
// lz4 or none on request) and its uncompressed bytes are covered by a
// keyed BLAKE3 [Digest]. Frames follow each other with no container
// framing; a capture file is an RFC 8742 CBOR sequence.
//
// The file is an audit trail. The relay never reads it back, and in
// particular never resends from it. [Reader] decodes frames, restores
// and verifies each payload, and is what bureau-carbon-capture uses
// to print a file.
//
// The same digest appears in the relay's "sending batch" log line, so
// a log entry can be matched to its frame.
package capture
