// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-carbon-relay accepts Carbon plaintext metrics over TCP and
// writes them to an InfluxDB 0.8 database through its series HTTP API.
//
// Usage:
//
//	bureau-carbon-relay [flags] <listen-port> <influx-host> <influx-port> <database>
//
// Each TCP connection is one batch: the relay reads "<metric> <value>
// <timestamp>" lines until the sender disconnects, then POSTs every
// point it parsed as a single JSON write. Malformed lines are dropped.
// Failed writes are logged and not retried.
//
// Defaults reproduce the minimal relay: bind 127.0.0.1, credentials
// test/test, no capture. A YAML or JSONC file passed with --config and
// the flags below override them; the four positional arguments always
// win for the ports, host, and database.
//
// SIGINT or SIGTERM stops accepting, ends reads on open connections,
// and waits up to --shutdown-timeout for their batches to be sent.
//
// Exit status is 0 after a clean shutdown, 2 for usage and
// configuration errors, and 1 for anything else, including a failure
// to bind the listen port.
package main
