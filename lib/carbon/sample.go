// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package carbon

import (
	"math"
	"strconv"
	"strings"
)

// Sample is one parsed Carbon data point.
type Sample struct {
	// MetricName is the first field of the line, unmodified. Carbon
	// names are dot-delimited by convention but the relay treats them
	// as opaque: no character validation is applied.
	MetricName string

	// Value is the measurement.
	Value float64

	// Timestamp is seconds since the Unix epoch.
	Timestamp uint64

	// SourceHost is the address of the sender that produced the
	// line. Empty when the peer address was unavailable.
	SourceHost string
}

// ParseLine parses one Carbon line. The line is trimmed and split on
// runs of spaces and tabs; exactly three fields are required. The
// second field must parse as a finite decimal float64 and the third
// as an unsigned base-10 integer.
//
// Returns false for any line that does not match. This is not an
// error: callers drop the line and continue with the stream.
//
// NaN and infinities are rejected because the destination's JSON
// write API has no representation for them.
func ParseLine(line string) (Sample, bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(line), isFieldSeparator)
	if len(fields) != 3 {
		return Sample{}, false
	}

	// ParseFloat also accepts hex floats ("0x1p-2"); Carbon values are
	// decimal.
	if strings.ContainsAny(fields[1], "xX") {
		return Sample{}, false
	}
	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Sample{}, false
	}

	timestamp, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return Sample{}, false
	}

	return Sample{
		MetricName: fields[0],
		Value:      value,
		Timestamp:  timestamp,
	}, true
}

// Line renders the sample back into Carbon line format, without the
// trailing newline. The value uses the shortest representation that
// parses back to the same float64, so ParseLine(s.Line()) returns s
// (minus SourceHost, which is not part of the wire format).
func (s Sample) Line() string {
	return s.MetricName + " " +
		strconv.FormatFloat(s.Value, 'g', -1, 64) + " " +
		strconv.FormatUint(s.Timestamp, 10)
}

// isFieldSeparator matches the separators the Carbon plaintext
// protocol allows between fields. strings.TrimSpace has already
// removed the line ending, but a stray carriage return in the middle
// of a line is treated as a separator too.
func isFieldSeparator(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r'
}
