// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package carbon parses the Carbon plaintext ("line") protocol spoken by
// Graphite senders:
//
//	<metric-name> <value> <timestamp>\n
//
// Fields are separated by runs of spaces or tabs. The value is a decimal
// floating point number and the timestamp is a non-negative integer
// count of seconds since the Unix epoch.
//
// Malformed lines are an expected, frequent outcome on a Carbon stream
// (blank lines, protocol noise, partial writes). [ParseLine] reports
// them by returning false rather than an error, so callers drop them
// without any error handling path.
//
// This package depends on no other Bureau packages.
package carbon
