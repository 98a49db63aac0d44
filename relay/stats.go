// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/carbon-relay/lib/clock"
)

// Stats counts relay activity since start. Fields are updated by
// handlers and may be read at any time.
type Stats struct {
	ConnectionsAccepted atomic.Int64
	ConnectionsActive   atomic.Int64

	BytesRead     atomic.Int64
	LinesRead     atomic.Int64
	LinesRejected atomic.Int64

	// PointsAccepted counts points in batches handed to the writer.
	PointsAccepted atomic.Int64

	// BatchesSent counts 2xx answers, BatchesRejected other statuses,
	// and SendFailures batches that got no answer.
	BatchesSent     atomic.Int64
	BatchesRejected atomic.Int64
	SendFailures    atomic.Int64

	// BatchesEmpty counts connections that ended with no valid lines.
	BatchesEmpty atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	ConnectionsAccepted int64
	ConnectionsActive   int64
	BytesRead           int64
	LinesRead           int64
	LinesRejected       int64
	PointsAccepted      int64
	BatchesSent         int64
	BatchesRejected     int64
	SendFailures        int64
	BatchesEmpty        int64
}

// Snapshot copies the current counter values. Counters are read one
// at a time, so a snapshot taken under load is not atomic as a whole.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		ConnectionsAccepted: s.ConnectionsAccepted.Load(),
		ConnectionsActive:   s.ConnectionsActive.Load(),
		BytesRead:           s.BytesRead.Load(),
		LinesRead:           s.LinesRead.Load(),
		LinesRejected:       s.LinesRejected.Load(),
		PointsAccepted:      s.PointsAccepted.Load(),
		BatchesSent:         s.BatchesSent.Load(),
		BatchesRejected:     s.BatchesRejected.Load(),
		SendFailures:        s.SendFailures.Load(),
		BatchesEmpty:        s.BatchesEmpty.Load(),
	}
}

// LogValue implements slog.LogValuer.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("connections_accepted", s.ConnectionsAccepted),
		slog.Int64("connections_active", s.ConnectionsActive),
		slog.Int64("bytes_read", s.BytesRead),
		slog.Int64("lines_read", s.LinesRead),
		slog.Int64("lines_rejected", s.LinesRejected),
		slog.Int64("points_accepted", s.PointsAccepted),
		slog.Int64("batches_sent", s.BatchesSent),
		slog.Int64("batches_rejected", s.BatchesRejected),
		slog.Int64("send_failures", s.SendFailures),
		slog.Int64("batches_empty", s.BatchesEmpty),
	)
}

// LogPeriodically logs a snapshot every interval until ctx is
// cancelled, then logs a final one. A non-positive interval only logs
// the final snapshot.
func (s *Stats) LogPeriodically(ctx context.Context, clk clock.Clock, interval time.Duration, logger *slog.Logger) {
	defer func() {
		logger.Info("relay stats", "stats", s.Snapshot(), "final", true)
	}()

	if interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("relay stats", "stats", s.Snapshot())
		}
	}
}
