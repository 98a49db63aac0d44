// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package influx

import (
	"encoding/json"
	"fmt"
)

// Encode serializes records into a write request body: one line of
// JSON (an array of series objects) followed by a newline. The output
// is deterministic: records appear in slice order, points in record
// order, and object fields in a fixed order.
//
// An empty or nil slice encodes as "[]\n".
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding batch of %d records: %w", len(records), err)
	}
	return append(data, '\n'), nil
}

// PointCount returns the total number of points across records.
func PointCount(records []Record) int {
	count := 0
	for _, record := range records {
		count += len(record.points)
	}
	return count
}
