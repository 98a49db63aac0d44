// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides network and HTTP I/O utilities for the
// relay.
//
// [ReadResponse] bounds response body reads at [MaxResponseSize]. A
// series write answers with an empty body or a one-line error, so
// anything larger is a misbehaving destination and is cut off rather
// than buffered.
//
// [IsExpectedCloseError] classifies errors that occur when a sender
// disconnects or the relay interrupts a connection during shutdown.
//
// [ListenTCP] binds the ingress listener with the socket options the
// relay needs.
package netutil

import (
	"io"
)

// MaxResponseSize is the bound on destination response body reads:
// 1 MB.
const MaxResponseSize int64 = 1 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes. Use
// instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}
