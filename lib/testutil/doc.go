// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the relay
// packages.
//
// [RequireReceive], [RequireClosed], and [RequireNoReceive] wrap the
// select-with-timeout pattern so individual tests do not need direct
// time.After calls. They are the only place in the test suite where
// real wall-clock timeouts are used.
//
// [UniqueID] generates distinct identifiers, for example metric names
// that must not collide between concurrent connections in one test.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
