// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import "time"

// Frame is one captured batch as stored in a capture file.
type Frame struct {
	// Sequence numbers frames from 1 within one writer. A relay that
	// restarts and appends to the same file starts again at 1.
	Sequence uint64 `cbor:"sequence"`

	CapturedAt time.Time `cbor:"captured_at"`

	// Peer is the host of the connection the batch was read from.
	Peer string `cbor:"peer"`

	// Target is the destination write URL with the password redacted.
	Target string `cbor:"target"`

	Records int `cbor:"records"`
	Points  int `cbor:"points"`

	// Digest covers the uncompressed payload.
	Digest Digest `cbor:"digest"`

	Compression Compression `cbor:"compression"`

	// Size is the uncompressed payload length.
	Size int `cbor:"size"`

	// Payload holds the serialized batch in the form named by
	// Compression.
	Payload []byte `cbor:"payload"`

	// StatusCode and Status are the destination's answer. Both are
	// empty when the request never produced a response.
	StatusCode int    `cbor:"status_code,omitempty"`
	Status     string `cbor:"status,omitempty"`

	// Error is the transport error text for a failed request.
	Error string `cbor:"error,omitempty"`
}

// Batch describes a batch send for Writer.Record.
type Batch struct {
	Peer    string
	Target  string
	Records int
	Points  int

	// Payload is the exact request body, uncompressed.
	Payload []byte

	StatusCode int
	Status     string

	// Err is the send error, if any.
	Err error
}
