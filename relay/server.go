// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/carbon-relay/lib/capture"
	"github.com/bureau-foundation/carbon-relay/lib/clock"
	"github.com/bureau-foundation/carbon-relay/lib/influx"
)

// Writer delivers one serialized batch to the database. *influx.Client
// implements it.
type Writer interface {
	Write(ctx context.Context, payload []byte) (*influx.Response, error)
}

// DefaultMaxLineBytes is used when Config.MaxLineBytes is zero.
const DefaultMaxLineBytes = 64 * 1024

// Config configures a Server.
type Config struct {
	// Writer sends batches. Required.
	Writer Writer

	// Destination names the write target in logs and capture frames.
	// It must not contain credentials; use influx.Target.String.
	Destination string

	// Capture records every batch when non-nil. The caller owns it and
	// closes it after Serve returns.
	Capture *capture.Writer

	// IdleTimeout ends a connection that has sent nothing for this
	// long. Zero disables.
	IdleTimeout time.Duration

	// MaxLineBytes is the longest line accepted. A longer line ends
	// reading on that connection.
	MaxLineBytes int

	// SourceHostColumn adds the sender's host as a source_host column.
	SourceHostColumn bool

	// ShutdownTimeout bounds how long Serve waits for handlers to
	// finish their sends after its context is cancelled.
	ShutdownTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Server runs connection handlers for accepted Carbon connections.
type Server struct {
	config Config
	clock  clock.Clock
	logger *slog.Logger
	stats  *Stats

	nextID   atomic.Uint64
	handlers sync.WaitGroup

	mu          sync.Mutex
	closing     bool
	connections map[*connection]struct{}
}

// NewServer validates config and returns a Server. A nil Clock uses
// the real clock; a nil Logger uses slog.Default.
func NewServer(config Config) (*Server, error) {
	if config.Writer == nil {
		return nil, errors.New("relay: Writer is required")
	}
	if config.MaxLineBytes < 0 || config.IdleTimeout < 0 || config.ShutdownTimeout < 0 {
		return nil, errors.New("relay: negative limit in config")
	}
	if config.MaxLineBytes == 0 {
		config.MaxLineBytes = DefaultMaxLineBytes
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		config:      config,
		clock:       config.Clock,
		logger:      config.Logger,
		stats:       &Stats{},
		connections: make(map[*connection]struct{}),
	}, nil
}

// Stats returns the server's counters.
func (s *Server) Stats() *Stats { return s.stats }

// Serve accepts connections on listener until ctx is cancelled or
// Accept fails, then drains handlers as described in the package
// documentation. The listener is closed on return. Serve returns nil
// after a shutdown and the accept error otherwise.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	// Sends outlive ctx so a shutdown still flushes accumulated
	// batches; drain cancels them once the shutdown timeout expires.
	sendContext, cancelSends := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSends()

	acceptDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			listener.Close()
		case <-acceptDone:
		}
	}()

	s.logger.Info("relay listening",
		"address", listener.Addr().String(),
		"destination", s.config.Destination,
	)

	var acceptError error
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptError = err
			}
			break
		}

		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			s.Handle(sendContext, conn)
		}()
	}
	close(acceptDone)
	listener.Close()

	if acceptError != nil {
		s.logger.Error("accept failed, stopping relay", "error", acceptError)
	} else {
		s.logger.Info("relay shutting down")
	}
	s.drain(cancelSends)

	if acceptError != nil {
		return fmt.Errorf("accepting connections: %w", acceptError)
	}
	return nil
}

// drain interrupts every open connection and waits for the handlers.
func (s *Server) drain(cancelSends context.CancelFunc) {
	open := s.interruptAll()

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()

	if open > 0 {
		s.logger.Info("waiting for connections to flush",
			"connections", open,
			"timeout", s.config.ShutdownTimeout,
		)
	}

	select {
	case <-done:
		return
	case <-s.clock.After(s.config.ShutdownTimeout):
	}

	s.logger.Warn("shutdown timeout reached, cancelling in-flight sends",
		"connections", s.stats.ConnectionsActive.Load(),
	)
	cancelSends()
	<-done
}

// track registers c so shutdown can interrupt it. A connection that
// arrives after shutdown began is interrupted immediately.
func (s *Server) track(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		c.interrupt()
		return
	}
	s.connections[c] = struct{}{}
}

func (s *Server) untrack(c *connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, c)
}

// interruptAll marks the server as closing and interrupts every open
// connection. It returns how many were interrupted.
func (s *Server) interruptAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for c := range s.connections {
		c.interrupt()
	}
	return len(s.connections)
}
