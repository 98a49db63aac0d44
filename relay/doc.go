// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay accepts Carbon plaintext connections and forwards each
// connection's metrics to InfluxDB as one batch.
//
// [Server.Serve] accepts connections on a listener and runs
// [Server.Handle] for each in its own goroutine. A handler reads lines
// until the sender closes the connection, parses them with
// lib/carbon, groups samples into per-series records with
// lib/influx, and when reading ends writes everything it collected in
// a single request. There is no intermediate flush: a connection is a
// batch, and a sender that never disconnects is only flushed by the
// idle timeout or by shutdown. Memory per connection grows with what
// the sender writes.
//
// Reading ends on end-of-stream, on a read error (including a line
// longer than the configured limit), on the idle timeout, or when the
// server shuts down. In every case the points already collected are
// sent. A connection that produced no valid points sends nothing.
//
// Malformed lines are dropped without logging each one; they only
// show up in the [Stats] counters. A failed or rejected write is
// logged and counted, and the batch is discarded. Nothing is retried.
//
// When the server's context is cancelled it stops accepting,
// interrupts blocked reads so handlers flush what they have, and waits
// up to the shutdown timeout for those sends. Sends still running
// after that are cancelled. Any accept error other than shutdown ends
// Serve with an error; the relay treats it as fatal.
package relay
