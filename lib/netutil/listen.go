// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenOptions controls socket options applied before bind.
type ListenOptions struct {
	// ReuseAddress sets SO_REUSEADDR so a restarted relay can rebind
	// its port while connections from the previous process are still
	// in TIME_WAIT.
	ReuseAddress bool
}

// ListenTCP binds a TCP listener on address ("host:port"; port 0
// picks a free port).
func ListenTCP(ctx context.Context, address string, options ListenOptions) (net.Listener, error) {
	config := net.ListenConfig{}
	if options.ReuseAddress {
		config.Control = reuseAddressControl
	}
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return listener, nil
}

func reuseAddressControl(_, _ string, raw syscall.RawConn) error {
	var optionError error
	err := raw.Control(func(fd uintptr) {
		optionError = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	if optionError != nil {
		return fmt.Errorf("setting SO_REUSEADDR: %w", optionError)
	}
	return nil
}
