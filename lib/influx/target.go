// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package influx

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Target describes the single destination database. It is built once
// at startup and then only read, so one value can be shared by every
// connection handler without locking.
type Target struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string

	// TimePrecision, when non-empty, is appended to the write URL as
	// the time_precision query parameter (e.g. "s" for Carbon's
	// second-resolution timestamps). Empty leaves the URL exactly as
	// the 0.8 senders built it.
	TimePrecision string
}

// Validate reports whether the target can produce a write URL.
func (t Target) Validate() error {
	if t.Host == "" {
		return errors.New("destination host is empty")
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("destination port %d out of range 1-65535", t.Port)
	}
	if t.Database == "" {
		return errors.New("destination database is empty")
	}
	return nil
}

// WriteURL returns the series write endpoint:
//
//	http://<host>:<port>/db/<database>/series?u=<username>&p=<password>
//
// The query parameters are written in u, p order (url.Values would
// sort them) so the URL matches what the destination's access logs
// show for other 0.8 senders.
func (t Target) WriteURL() string {
	return t.baseURL() + "?" + t.query(t.Username, t.Password)
}

// String returns the write URL with the password replaced, for logs
// and error messages.
func (t Target) String() string {
	return t.baseURL() + "?" + t.query(t.Username, "REDACTED")
}

func (t Target) baseURL() string {
	return "http://" + net.JoinHostPort(t.Host, strconv.Itoa(t.Port)) +
		"/db/" + url.PathEscape(t.Database) + "/series"
}

func (t Target) query(username, password string) string {
	query := "u=" + url.QueryEscape(username) + "&p=" + url.QueryEscape(password)
	if t.TimePrecision != "" {
		query += "&time_precision=" + url.QueryEscape(t.TimePrecision)
	}
	return query
}
