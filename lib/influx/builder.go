// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package influx

import "github.com/bureau-foundation/carbon-relay/lib/carbon"

// Builder groups Carbon samples into one [Record] per series. Series
// appear in the batch in the order their first sample arrived, and
// points within a series keep arrival order. Duplicate timestamps are
// kept as-is.
//
// A Builder is owned by a single connection handler and is not safe
// for concurrent use. It accumulates without bound until Flush; the
// relay flushes once per connection, so a sender that never closes its
// connection grows the builder for the connection's lifetime.
type Builder struct {
	sourceHost bool
	records    []*Record
	bySeries   map[string]*Record
	points     int
}

// NewBuilder returns an empty Builder. When sourceHostColumn is true,
// records are created with columns [time, value, source_host] and each
// point carries the sample's SourceHost. Otherwise records use the
// Carbon shape [time, value].
func NewBuilder(sourceHostColumn bool) *Builder {
	return &Builder{
		sourceHost: sourceHostColumn,
		bySeries:   make(map[string]*Record),
	}
}

// Add appends a sample to the record for its series, creating the
// record on first use. The series name is the metric name.
func (b *Builder) Add(sample carbon.Sample) {
	record, ok := b.bySeries[sample.MetricName]
	if !ok {
		record = newRecord(sample.MetricName, b.sourceHost)
		b.bySeries[sample.MetricName] = record
		b.records = append(b.records, record)
	}
	record.points = append(record.points, Point{
		Time:       sample.Timestamp,
		Value:      sample.Value,
		SourceHost: sample.SourceHost,
	})
	b.points++
}

// Len returns the number of records (distinct series) accumulated.
func (b *Builder) Len() int { return len(b.records) }

// PointCount returns the number of points accumulated across all
// records.
func (b *Builder) PointCount() int { return b.points }

// Flush returns the accumulated records and resets the builder.
// Returns nil if nothing has been added since the last flush. The
// builder keeps no reference to the returned records.
func (b *Builder) Flush() []Record {
	if len(b.records) == 0 {
		return nil
	}
	records := make([]Record, len(b.records))
	for i, record := range b.records {
		records[i] = *record
	}
	b.records = nil
	b.bySeries = make(map[string]*Record)
	b.points = 0
	return records
}
