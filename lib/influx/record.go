// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package influx

import (
	"encoding/json"
	"slices"
)

// Column names used by Carbon-sourced records.
const (
	ColumnTime       = "time"
	ColumnValue      = "value"
	ColumnSourceHost = "source_host"
)

var (
	carbonColumns           = []string{ColumnTime, ColumnValue}
	carbonSourceHostColumns = []string{ColumnTime, ColumnValue, ColumnSourceHost}
)

// Point is one row of a Carbon record. SourceHost is only written when
// the owning record carries the source_host column.
type Point struct {
	Time       uint64
	Value      float64
	SourceHost string
}

// Record is the batch unit for one series: a series name, a column
// list fixed at creation, and points in arrival order. Records are
// created by [Builder]; the zero value is not useful.
type Record struct {
	name       string
	columns    []string
	sourceHost bool
	points     []Point
}

func newRecord(name string, sourceHost bool) *Record {
	columns := carbonColumns
	if sourceHost {
		columns = carbonSourceHostColumns
	}
	return &Record{name: name, columns: columns, sourceHost: sourceHost}
}

// Name returns the destination series name.
func (r Record) Name() string { return r.name }

// Columns returns a copy of the record's column list.
func (r Record) Columns() []string { return slices.Clone(r.columns) }

// Points returns a copy of the record's points in arrival order.
func (r Record) Points() []Point { return slices.Clone(r.points) }

// Len returns the number of points in the record.
func (r Record) Len() int { return len(r.points) }

// wireRecord is the JSON shape of one series in a write request.
type wireRecord struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Points  [][]any  `json:"points"`
}

// MarshalJSON encodes the record as a series object. Timestamps are
// encoded from uint64 directly so they never pass through a float64.
func (r Record) MarshalJSON() ([]byte, error) {
	points := make([][]any, len(r.points))
	for i, point := range r.points {
		if r.sourceHost {
			points[i] = []any{point.Time, point.Value, point.SourceHost}
		} else {
			points[i] = []any{point.Time, point.Value}
		}
	}
	return json.Marshal(wireRecord{
		Name:    r.name,
		Columns: r.columns,
		Points:  points,
	})
}
