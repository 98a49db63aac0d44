// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/carbon-relay/lib/clock"
	"github.com/bureau-foundation/carbon-relay/lib/influx"
	"github.com/bureau-foundation/carbon-relay/lib/netutil"
	"github.com/bureau-foundation/carbon-relay/lib/testutil"
)

// runningServer is a Server serving on a loopback listener.
type runningServer struct {
	address string
	cancel  context.CancelFunc
	result  chan error

	once sync.Once
	err  error
}

// stop cancels Serve and returns its result. Safe to call repeatedly.
func (r *runningServer) stop(t *testing.T) error {
	t.Helper()
	r.once.Do(func() {
		r.cancel()
		r.err = testutil.RequireReceive(t, r.result, 10*time.Second, "Serve did not return")
	})
	return r.err
}

// startServer runs server.Serve on a loopback listener until the test
// ends.
func startServer(t *testing.T, server *Server) *runningServer {
	t.Helper()

	listener, err := netutil.ListenTCP(context.Background(), "127.0.0.1:0", netutil.ListenOptions{ReuseAddress: true})
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	running := &runningServer{
		address: listener.Addr().String(),
		cancel:  cancel,
		result:  make(chan error, 1),
	}
	go func() {
		running.result <- server.Serve(ctx, listener)
	}()
	t.Cleanup(func() { running.stop(t) })
	return running
}

// waitFor polls condition until it holds or five seconds pass.
func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestServeConcurrentConnections(t *testing.T) {
	t.Parallel()

	const connections = 20
	const linesPerConnection = 25

	client, requests := testDestination(t, 204, "")
	server := newTestServer(t, client, nil)
	running := startServer(t, server)

	// Each connection writes its own disjoint set of metric names.
	owner := make(map[string]int)
	payloads := make([]string, connections)
	for connection := range connections {
		var builder strings.Builder
		for line := range linesPerConnection {
			name := testutil.UniqueID(fmt.Sprintf("conn%d.metric", connection))
			owner[name] = connection
			fmt.Fprintf(&builder, "%s %d %d\n", name, line, 1700000000+line)
		}
		payloads[connection] = builder.String()
	}

	var wg sync.WaitGroup
	for connection := range connections {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.Dial("tcp", running.address)
			if err != nil {
				t.Errorf("dialing relay: %v", err)
				return
			}
			defer conn.Close()
			// Split the write so reads interleave across connections.
			payload := payloads[connection]
			middle := len(payload) / 2
			io.WriteString(conn, payload[:middle])
			io.WriteString(conn, payload[middle:])
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for range connections {
		request := testutil.RequireReceive(t, requests, 10*time.Second, "waiting for batches")
		records := decodeBatch(t, request.Body)
		if len(records) != linesPerConnection {
			t.Fatalf("batch has %d records, want %d", len(records), linesPerConnection)
		}

		batchOwner := owner[records[0].Name]
		for index, record := range records {
			connection, known := owner[record.Name]
			if !known {
				t.Fatalf("unknown series %q", record.Name)
			}
			if connection != batchOwner {
				t.Fatalf("batch mixes series from connections %d and %d", batchOwner, connection)
			}
			if len(record.Points) != 1 || len(record.Columns) != 2 {
				t.Fatalf("record %q = %+v", record.Name, record)
			}
			// Records keep arrival order: the value is the line index.
			if value, _ := record.Points[0][1].(float64); int(value) != index {
				t.Errorf("record %d of connection %d carries value %v", index, batchOwner, record.Points[0][1])
			}
		}
		if seen[batchOwner] {
			t.Fatalf("connection %d produced two batches", batchOwner)
		}
		seen[batchOwner] = true
	}

	testutil.RequireNoReceive(t, requests, 100*time.Millisecond, "more batches than connections")
	if accepted := server.Stats().ConnectionsAccepted.Load(); accepted != connections {
		t.Errorf("ConnectionsAccepted = %d, want %d", accepted, connections)
	}
}

func TestServeSourceHostColumn(t *testing.T) {
	t.Parallel()

	client, requests := testDestination(t, 204, "")
	server := newTestServer(t, client, func(config *Config) { config.SourceHostColumn = true })
	running := startServer(t, server)

	conn, err := net.Dial("tcp", running.address)
	if err != nil {
		t.Fatalf("dialing relay: %v", err)
	}
	io.WriteString(conn, "cpu.load 0.75 1700000000\n")
	conn.Close()

	request := testutil.RequireReceive(t, requests, 5*time.Second, "waiting for batch")
	want := `[{"name":"cpu.load","columns":["time","value","source_host"],"points":[[1700000000,0.75,"127.0.0.1"]]}]` + "\n"
	if request.Body != want {
		t.Errorf("body = %q, want %q", request.Body, want)
	}
}

func TestServeShutdownFlushesOpenConnections(t *testing.T) {
	t.Parallel()

	const line = "cpu.load 0.75 1700000000\n"

	client, requests := testDestination(t, 204, "")
	server := newTestServer(t, client, nil)
	running := startServer(t, server)

	conn, err := net.Dial("tcp", running.address)
	if err != nil {
		t.Fatalf("dialing relay: %v", err)
	}
	defer conn.Close()
	io.WriteString(conn, line)
	waitFor(t, "the handler to read the line", func() bool {
		return server.Stats().BytesRead.Load() >= int64(len(line))
	})

	if err := running.stop(t); err != nil {
		t.Fatalf("Serve after shutdown = %v, want nil", err)
	}

	request := testutil.RequireReceive(t, requests, 5*time.Second, "waiting for shutdown flush")
	records := decodeBatch(t, request.Body)
	if len(records) != 1 || records[0].Name != "cpu.load" {
		t.Errorf("records = %+v", records)
	}
	if active := server.Stats().ConnectionsActive.Load(); active != 0 {
		t.Errorf("ConnectionsActive = %d after Serve returned", active)
	}
}

func TestServeStopsAccepting(t *testing.T) {
	t.Parallel()

	client, _ := testDestination(t, 204, "")
	server := newTestServer(t, client, nil)
	running := startServer(t, server)

	if err := running.stop(t); err != nil {
		t.Fatalf("Serve = %v, want nil", err)
	}
	if conn, err := net.Dial("tcp", running.address); err == nil {
		conn.Close()
		t.Fatal("listener still accepting after Serve returned")
	}
}

// blockingWriter holds every write until its context is cancelled.
type blockingWriter struct {
	started chan struct{}
}

func (w *blockingWriter) Write(ctx context.Context, payload []byte) (*influx.Response, error) {
	close(w.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestServeShutdownTimeoutCancelsSends(t *testing.T) {
	t.Parallel()

	const line = "cpu.load 0.75 1700000000\n"

	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	writer := &blockingWriter{started: make(chan struct{})}
	server := newTestServer(t, writer, func(config *Config) {
		config.Clock = fake
		config.ShutdownTimeout = 10 * time.Second
	})
	running := startServer(t, server)

	conn, err := net.Dial("tcp", running.address)
	if err != nil {
		t.Fatalf("dialing relay: %v", err)
	}
	io.WriteString(conn, line)
	conn.Close()
	testutil.RequireClosed(t, writer.started, 5*time.Second, "send did not start")

	running.cancel()

	// Serve is now draining; the blocked send holds it until the
	// shutdown timer fires.
	fake.WaitForTimers(1)
	select {
	case err := <-running.result:
		t.Fatalf("Serve returned %v before the shutdown timeout", err)
	default:
	}
	fake.Advance(10 * time.Second)

	if err := running.stop(t); err != nil {
		t.Fatalf("Serve = %v, want nil", err)
	}
	if failures := server.Stats().SendFailures.Load(); failures != 1 {
		t.Errorf("SendFailures = %d, want 1", failures)
	}
}

// failingListener hands out queued connections, then fails Accept.
type failingListener struct {
	conns  chan net.Conn
	err    error
	closed chan struct{}
	once   sync.Once
}

func (l *failingListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	default:
		return nil, l.err
	}
}

func (l *failingListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2003}
}

func TestServeAcceptErrorIsFatal(t *testing.T) {
	t.Parallel()

	client, requests := testDestination(t, 204, "")
	server := newTestServer(t, client, nil)

	sender, receiver := net.Pipe()
	defer sender.Close()
	listener := &failingListener{
		conns:  make(chan net.Conn, 1),
		err:    errors.New("too many open files"),
		closed: make(chan struct{}),
	}
	listener.conns <- receiver
	go io.WriteString(sender, "cpu.load 0.75 1700000000\n")

	err := server.Serve(context.Background(), listener)
	if err == nil || !strings.Contains(err.Error(), "too many open files") {
		t.Fatalf("Serve = %v, want the accept error", err)
	}
	testutil.RequireClosed(t, listener.closed, time.Second, "listener not closed")

	// The connection accepted before the failure is interrupted; it
	// sends at most the one line it may have read.
	select {
	case request := <-requests:
		if records := decodeBatch(t, request.Body); len(records) != 1 {
			t.Errorf("records = %+v", records)
		}
	default:
	}
	testutil.RequireNoReceive(t, requests, 50*time.Millisecond, "more than one batch")
	if active := server.Stats().ConnectionsActive.Load(); active != 0 {
		t.Errorf("ConnectionsActive = %d after Serve returned", active)
	}
}
