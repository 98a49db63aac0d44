// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package influx builds and sends batches for the InfluxDB 0.8 series
// write API.
//
// A batch is a list of [Record] values, one per series. Each record
// has a fixed column list and an ordered list of points whose arity
// matches the columns. Carbon samples map 1:1 onto series named after
// the metric, with columns [time, value]:
//
//	[{"name":"cpu.load","columns":["time","value"],"points":[[1700000000,0.75]]}]
//
// [Builder] groups samples into records, [Encode] produces the wire
// payload, and [Client] posts it to the database described by a
// [Target]:
//
//	POST http://<host>:<port>/db/<database>/series?u=<username>&p=<password>
//	Content-Type: application/x-www-form-urlencoded
//
// The form content type is what the original 0.8-era senders used and
// is kept for wire compatibility even though the body is JSON.
//
// The client never retries and never buffers: a transport failure is
// returned as a [*TransportError] and the batch is the caller's to
// drop. A non-2xx response is not an error; it is returned in the
// [Response] for the caller to log.
package influx
