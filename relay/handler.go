// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/carbon-relay/lib/capture"
	"github.com/bureau-foundation/carbon-relay/lib/carbon"
	"github.com/bureau-foundation/carbon-relay/lib/influx"
	"github.com/bureau-foundation/carbon-relay/lib/netutil"
)

// errInterrupted is returned by connection.Read once shutdown has
// interrupted the connection.
var errInterrupted = errors.New("connection interrupted by shutdown")

// aLongTimeAgo is a read deadline that has always passed. Setting it
// wakes a blocked Read immediately.
var aLongTimeAgo = time.Unix(1, 0)

// connection wraps an accepted net.Conn for reading. Every Read
// pushes the idle deadline forward unless shutdown has interrupted
// the connection; the mutex keeps an interrupt from being overwritten
// by a concurrent deadline extension.
type connection struct {
	conn        net.Conn
	idleTimeout time.Duration
	stats       *Stats

	mu          sync.Mutex
	interrupted bool
}

func (c *connection) Read(buffer []byte) (int, error) {
	c.mu.Lock()
	if c.interrupted {
		c.mu.Unlock()
		return 0, errInterrupted
	}
	if c.idleTimeout > 0 {
		// Socket deadlines are wall-clock instants.
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)) //nolint:realclock socket deadline
	}
	c.mu.Unlock()
	n, err := c.conn.Read(buffer)
	c.stats.BytesRead.Add(int64(n))
	return n, err
}

// interrupt wakes any blocked Read and fails all later ones.
func (c *connection) interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interrupted = true
	c.conn.SetReadDeadline(aLongTimeAgo)
}

func (c *connection) wasInterrupted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interrupted
}

// Handle reads Carbon lines from conn until reading ends, then sends
// the accumulated batch. It closes conn before returning. ctx bounds
// the send only: reading ends on end-of-stream, a read error, the idle
// timeout, or server shutdown.
func (s *Server) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	c := &connection{conn: conn, idleTimeout: s.config.IdleTimeout, stats: s.stats}
	s.track(c)
	defer s.untrack(c)

	s.stats.ConnectionsAccepted.Add(1)
	s.stats.ConnectionsActive.Add(1)
	defer s.stats.ConnectionsActive.Add(-1)

	peer := peerHost(conn.RemoteAddr())
	logger := s.logger.With(
		"connection", s.nextID.Add(1),
		"peer", peer,
	)
	logger.Debug("connection accepted")

	builder := influx.NewBuilder(s.config.SourceHostColumn)
	lines, rejected := 0, 0

	scanner := bufio.NewScanner(c)
	// Room for the line ending on top of the content limit.
	scanner.Buffer(make([]byte, 0, min(4096, s.config.MaxLineBytes+2)), s.config.MaxLineBytes+2)
	scanner.Split(limitedLines(s.config.MaxLineBytes))
	for scanner.Scan() {
		lines++
		sample, ok := carbon.ParseLine(scanner.Text())
		if !ok {
			rejected++
			continue
		}
		sample.SourceHost = peer
		builder.Add(sample)
	}

	s.stats.LinesRead.Add(int64(lines))
	s.stats.LinesRejected.Add(int64(rejected))
	s.logReadEnd(logger, scanner.Err(), c.wasInterrupted(), lines, rejected)

	s.flush(ctx, logger, peer, builder)
}

// limitedLines splits like bufio.ScanLines and fails with
// bufio.ErrTooLong once a line's content, excluding "\n" or "\r\n",
// exceeds maxBytes.
func limitedLines(maxBytes int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, atEOF)
		if err == nil && len(token) > maxBytes {
			return 0, nil, bufio.ErrTooLong
		}
		return advance, token, err
	}
}

// logReadEnd records why reading stopped. Every cause leads to the
// same flush; only the log level differs.
func (s *Server) logReadEnd(logger *slog.Logger, err error, interrupted bool, lines, rejected int) {
	attributes := []any{"lines", lines, "rejected", rejected}
	switch {
	case err == nil:
		logger.Debug("connection closed by sender", attributes...)
	case interrupted:
		logger.Info("connection interrupted by shutdown", attributes...)
	case errors.Is(err, bufio.ErrTooLong):
		logger.Warn("line exceeds limit, reading stopped",
			append(attributes, "max_line_bytes", s.config.MaxLineBytes)...)
	case netutil.IsTimeout(err):
		logger.Info("connection idle, reading stopped",
			append(attributes, "idle_timeout", s.config.IdleTimeout)...)
	case netutil.IsExpectedCloseError(err):
		logger.Debug("connection closed by sender", append(attributes, "error", err)...)
	default:
		logger.Warn("read failed, reading stopped", append(attributes, "error", err)...)
	}
}

// flush sends the builder's records as one batch, if there are any.
func (s *Server) flush(ctx context.Context, logger *slog.Logger, peer string, builder *influx.Builder) {
	points := builder.PointCount()
	records := builder.Flush()
	if len(records) == 0 {
		s.stats.BatchesEmpty.Add(1)
		logger.Debug("no valid lines, nothing to send")
		return
	}
	s.stats.PointsAccepted.Add(int64(points))

	payload, err := influx.Encode(records)
	if err != nil {
		s.stats.SendFailures.Add(1)
		logger.Error("encoding batch failed", "records", len(records), "error", err)
		return
	}

	digest := capture.HashPayload(payload)
	logger = logger.With("digest", digest.Short())
	logger.Info("sending batch",
		"records", len(records),
		"points", points,
		"bytes", len(payload),
	)

	batch := capture.Batch{
		Peer:    peer,
		Target:  s.config.Destination,
		Records: len(records),
		Points:  points,
		Payload: payload,
	}

	response, err := s.config.Writer.Write(ctx, payload)
	switch {
	case err != nil:
		s.stats.SendFailures.Add(1)
		batch.Err = err
		logger.Error("batch send failed", "error", err)
	case response.Success():
		s.stats.BatchesSent.Add(1)
		batch.StatusCode, batch.Status = response.StatusCode, response.Status
		logger.Info("batch sent", "status", response.StatusCode)
	default:
		s.stats.BatchesRejected.Add(1)
		batch.StatusCode, batch.Status = response.StatusCode, response.Status
		logger.Warn("batch sent", "status", response.StatusCode, "body", string(response.Body))
	}

	if s.config.Capture != nil {
		frame, err := s.config.Capture.Record(batch)
		if err != nil {
			logger.Warn("capturing batch failed", "error", err)
			return
		}
		logger.Debug("batch captured", "sequence", frame.Sequence)
	}
}

// peerHost returns the host part of addr, or its full string form when
// it has no port.
func peerHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	address := addr.String()
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return address
	}
	return host
}
