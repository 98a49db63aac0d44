// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/bureau-foundation/carbon-relay/lib/influx"
)

// recordedRequest is what the test destination saw for one write.
type recordedRequest struct {
	Method      string
	Path        string
	Query       url.Values
	ContentType string
	Body        string
}

// wireRecord mirrors one element of a batch payload.
type wireRecord struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Points  [][]any  `json:"points"`
}

// testDestination starts an HTTP server standing in for InfluxDB. It
// answers every write with status and forwards the request on the
// returned channel.
func testDestination(t *testing.T, status int, body string) (*influx.Client, <-chan recordedRequest) {
	t.Helper()

	requests := make(chan recordedRequest, 256)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		requests <- recordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.Query(),
			ContentType: r.Header.Get("Content-Type"),
			Body:        string(payload),
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}
	host, portText, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		t.Fatalf("splitting test server address: %v", err)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		t.Fatalf("parsing test server port: %v", err)
	}

	client, err := influx.NewClient(influx.Target{
		Host:     host,
		Port:     port,
		Database: "metrics",
		Username: "test",
		Password: "test",
	}, server.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, requests
}

// unreachableClient returns a client for a loopback port with nothing
// listening on it.
func unreachableClient(t *testing.T) *influx.Client {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	client, err := influx.NewClient(influx.Target{
		Host:     "127.0.0.1",
		Port:     port,
		Database: "metrics",
		Username: "test",
		Password: "secret-password",
	}, &http.Client{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

// newTestServer builds a Server writing through writer. modify, when
// non-nil, adjusts the config first.
func newTestServer(t *testing.T, writer Writer, modify func(*Config)) *Server {
	t.Helper()

	config := Config{
		Writer:          writer,
		Destination:     "http://test/db/metrics/series?u=test&p=REDACTED",
		ShutdownTimeout: 5 * time.Second,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if modify != nil {
		modify(&config)
	}
	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return server
}

// handlePipe runs server.Handle on one end of a net.Pipe and returns
// the sender's end plus a channel closed when Handle returns.
func handlePipe(server *Server) (net.Conn, <-chan struct{}) {
	sender, receiver := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Handle(context.Background(), receiver)
	}()
	return sender, done
}

// decodeBatch parses a request body as a batch payload.
func decodeBatch(t *testing.T, body string) []wireRecord {
	t.Helper()
	var records []wireRecord
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		t.Fatalf("batch body is not a JSON record array: %v\n%s", err, body)
	}
	return records
}
