// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package influx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bureau-foundation/carbon-relay/lib/netutil"
)

// ContentType is the request content type for series writes.
const ContentType = "application/x-www-form-urlencoded"

// ErrEmptyBatch is returned by Send when there are no records.
var ErrEmptyBatch = errors.New("influx: empty batch")

// Response is the destination's answer to a write. Any status code is
// a successful transport outcome; interpretation is left to the
// caller.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// Success reports whether the status code is 2xx.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError reports that a batch could not be delivered: the
// request could not be built, the connection failed, or the response
// could not be read. Target is the redacted write URL.
type TransportError struct {
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sending batch to %s: %v", e.Target, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client posts batches to one [Target]. It is safe for concurrent use:
// the target is immutable and http.Client is safe for concurrent use.
type Client struct {
	target     Target
	writeURL   string
	httpClient *http.Client
}

// NewClient creates a Client for target. A nil httpClient uses a new
// http.Client with no timeout.
func NewClient(target Target, httpClient *http.Client) (*Client, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		target:     target,
		writeURL:   target.WriteURL(),
		httpClient: httpClient,
	}, nil
}

// Target returns the destination this client writes to.
func (c *Client) Target() Target { return c.target }

// Send encodes records and writes them in a single request. Returns
// ErrEmptyBatch without making a request if records is empty.
func (c *Client) Send(ctx context.Context, records []Record) (*Response, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	payload, err := Encode(records)
	if err != nil {
		return nil, err
	}
	return c.Write(ctx, payload)
}

// Write posts an already-encoded batch. There is no retry: on failure
// the error is a *TransportError and the payload is not kept.
func (c *Client) Write(ctx context.Context, payload []byte) (*Response, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.writeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, c.transportError(err)
	}
	request.Header.Set("Content-Type", ContentType)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, c.transportError(fmt.Errorf("reading response body: %w", err))
	}

	return &Response{
		StatusCode: response.StatusCode,
		Status:     response.Status,
		Body:       body,
	}, nil
}

// transportError wraps err, stripping the *url.Error layer: its
// message embeds the full URL, including the password.
func (c *Client) transportError(err error) *TransportError {
	var urlError *url.Error
	if errors.As(err, &urlError) {
		err = urlError.Err
	}
	return &TransportError{Target: c.target.String(), Err: err}
}
