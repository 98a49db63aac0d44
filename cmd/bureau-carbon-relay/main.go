// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/carbon-relay/lib/capture"
	"github.com/bureau-foundation/carbon-relay/lib/clock"
	"github.com/bureau-foundation/carbon-relay/lib/config"
	"github.com/bureau-foundation/carbon-relay/lib/influx"
	"github.com/bureau-foundation/carbon-relay/lib/netutil"
	"github.com/bureau-foundation/carbon-relay/lib/sealed"
	"github.com/bureau-foundation/carbon-relay/lib/version"
	"github.com/bureau-foundation/carbon-relay/relay"
)

const programName = "bureau-carbon-relay"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

// usageError is a bad invocation. It exits with status 2.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
func (e *usageError) ExitCode() int { return 2 }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// options is the parsed command line.
type options struct {
	config      *config.Config
	logLevel    slog.Level
	showVersion bool
	showHelp    bool
}

// parseOptions layers the configuration file, flags, and positional
// arguments over the defaults and validates the result. Help text
// goes to output.
func parseOptions(args []string, output io.Writer) (*options, error) {
	defaults := config.Default()

	var (
		configPath       string
		listenHost       string
		reuseAddress     bool
		idleTimeout      time.Duration
		maxLineBytes     int
		username         string
		password         string
		identityFile     string
		timePrecision    string
		httpTimeout      time.Duration
		sourceHostColumn bool
		capturePath      string
		compression      string
		statsInterval    time.Duration
		shutdownTimeout  time.Duration
		logLevel         string
		result           options
	)

	flagSet := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&configPath, "config", "", "YAML or JSONC configuration file")
	flagSet.StringVar(&listenHost, "listen-host", defaults.Listen.Host, "interface to bind")
	flagSet.BoolVar(&reuseAddress, "reuse-address", defaults.Listen.ReuseAddress, "set SO_REUSEADDR on the listening socket")
	flagSet.DurationVar(&idleTimeout, "idle-timeout", defaults.Listen.IdleTimeout, "end a connection silent for this long (0 disables)")
	flagSet.IntVar(&maxLineBytes, "max-line-bytes", defaults.Listen.MaxLineBytes, "longest accepted line")
	flagSet.StringVar(&username, "username", defaults.Destination.Username, "database username")
	flagSet.StringVar(&password, "password", defaults.Destination.Password, "database password")
	flagSet.StringVar(&identityFile, "identity-file", "", "age identity file for destination.password_sealed")
	flagSet.StringVar(&timePrecision, "time-precision", "", "time_precision query parameter (s, m, u)")
	flagSet.DurationVar(&httpTimeout, "http-timeout", defaults.Destination.Timeout, "timeout for each database write (0 disables)")
	flagSet.BoolVar(&sourceHostColumn, "source-host-column", false, "add the sender's host as a source_host column")
	flagSet.StringVar(&capturePath, "capture", "", "append every batch to this capture file")
	flagSet.StringVar(&compression, "capture-compression", defaults.Capture.Compression, "capture payload compression: none, lz4, zstd")
	flagSet.DurationVar(&statsInterval, "stats-interval", defaults.StatsInterval, "how often to log counters (0 disables)")
	flagSet.DurationVar(&shutdownTimeout, "shutdown-timeout", defaults.ShutdownTimeout, "how long to wait for batches on shutdown")
	flagSet.StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	flagSet.BoolVar(&result.showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&result.showHelp, "help", "h", false, "show help")
	flagSet.Usage = func() { printUsage(output, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			result.showHelp = true
			return &result, nil
		}
		return nil, &usageError{err: err}
	}
	if result.showHelp {
		printUsage(output, flagSet)
		return &result, nil
	}
	if result.showVersion {
		return &result, nil
	}

	if err := result.logLevel.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, usagef("--log-level: %v", err)
	}

	positional := flagSet.Args()
	if len(positional) != 4 {
		printUsage(output, flagSet)
		return nil, usagef("expected 4 arguments, got %d", len(positional))
	}

	cfg := defaults
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return nil, &usageError{err: err}
		}
		cfg = loaded
	}

	changed := flagSet.Changed
	if changed("listen-host") {
		cfg.Listen.Host = listenHost
	}
	if changed("reuse-address") {
		cfg.Listen.ReuseAddress = reuseAddress
	}
	if changed("idle-timeout") {
		cfg.Listen.IdleTimeout = idleTimeout
	}
	if changed("max-line-bytes") {
		cfg.Listen.MaxLineBytes = maxLineBytes
	}
	if changed("username") {
		cfg.Destination.Username = username
	}
	if changed("password") {
		cfg.Destination.Password = password
		cfg.Destination.PasswordSealed = ""
	}
	if changed("identity-file") {
		cfg.Destination.IdentityFile = identityFile
	}
	if changed("time-precision") {
		cfg.Destination.TimePrecision = timePrecision
	}
	if changed("http-timeout") {
		cfg.Destination.Timeout = httpTimeout
	}
	if changed("source-host-column") {
		cfg.Destination.SourceHostColumn = sourceHostColumn
	}
	if changed("capture") {
		cfg.Capture.Path = capturePath
	}
	if changed("capture-compression") {
		cfg.Capture.Compression = compression
	}
	if changed("stats-interval") {
		cfg.StatsInterval = statsInterval
	}
	if changed("shutdown-timeout") {
		cfg.ShutdownTimeout = shutdownTimeout
	}

	listenPort, err := parsePort("listen port", positional[0])
	if err != nil {
		return nil, err
	}
	destinationPort, err := parsePort("influx port", positional[2])
	if err != nil {
		return nil, err
	}
	cfg.Listen.Port = listenPort
	cfg.Destination.Host = positional[1]
	cfg.Destination.Port = destinationPort
	cfg.Destination.Database = positional[3]

	if err := cfg.Validate(); err != nil {
		return nil, &usageError{err: fmt.Errorf("invalid configuration: %w", err)}
	}
	result.config = cfg
	return &result, nil
}

func parsePort(name, text string) (int, error) {
	port, err := strconv.Atoi(text)
	if err != nil {
		return 0, usagef("%s %q is not a number", name, text)
	}
	return port, nil
}

func printUsage(output io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(output, `Relay Carbon plaintext metrics to an InfluxDB 0.8 database.

Usage:
  %s [flags] <listen-port> <influx-host> <influx-port> <database>

Example:
  %s 2003 localhost 8086 metrics

Flags:
`, programName, programName)
	flagSet.SetOutput(output)
	flagSet.PrintDefaults()
}

// newLogger writes text when stderr is a terminal and JSON otherwise.
func newLogger(output *os.File, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(output.Fd())) {
		return slog.New(slog.NewTextHandler(output, options))
	}
	return slog.New(slog.NewJSONHandler(output, options))
}

func run(ctx context.Context, args []string, stdout, stderr *os.File) error {
	parsed, err := parseOptions(args, stderr)
	if err != nil {
		return err
	}
	if parsed.showHelp {
		return nil
	}
	if parsed.showVersion {
		version.Print(stdout, programName)
		return nil
	}
	return serve(ctx, parsed.config, newLogger(stderr, parsed.logLevel))
}

// destinationTarget builds the write target, opening a sealed
// password if one is configured.
func destinationTarget(destination config.DestinationConfig) (influx.Target, error) {
	password := destination.Password
	if destination.PasswordSealed != "" {
		opened, err := sealed.OpenPassword(destination.PasswordSealed, destination.IdentityFile)
		if err != nil {
			return influx.Target{}, err
		}
		password = opened
	}
	return influx.Target{
		Host:          destination.Host,
		Port:          destination.Port,
		Database:      destination.Database,
		Username:      destination.Username,
		Password:      password,
		TimePrecision: destination.TimePrecision,
	}, nil
}

// serve runs the relay until ctx is cancelled or accepting fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	target, err := destinationTarget(cfg.Destination)
	if err != nil {
		return err
	}
	client, err := influx.NewClient(target, &http.Client{Timeout: cfg.Destination.Timeout})
	if err != nil {
		return err
	}

	realClock := clock.Real()

	var captureWriter *capture.Writer
	if cfg.Capture.Path != "" {
		compression, err := capture.ParseCompression(cfg.Capture.Compression)
		if err != nil {
			return err
		}
		captureWriter, err = capture.Create(cfg.Capture.Path, compression, realClock)
		if err != nil {
			return err
		}
		defer captureWriter.Close()
		logger.Info("capturing batches", "path", cfg.Capture.Path, "compression", compression.String())
	}

	server, err := relay.NewServer(relay.Config{
		Writer:           client,
		Destination:      target.String(),
		Capture:          captureWriter,
		IdleTimeout:      cfg.Listen.IdleTimeout,
		MaxLineBytes:     cfg.Listen.MaxLineBytes,
		SourceHostColumn: cfg.Destination.SourceHostColumn,
		ShutdownTimeout:  cfg.ShutdownTimeout,
		Clock:            realClock,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	address := net.JoinHostPort(cfg.Listen.Host, strconv.Itoa(cfg.Listen.Port))
	listener, err := netutil.ListenTCP(ctx, address, netutil.ListenOptions{ReuseAddress: cfg.Listen.ReuseAddress})
	if err != nil {
		return err
	}

	statsContext, stopStats := context.WithCancel(context.Background())
	var statsDone sync.WaitGroup
	statsDone.Add(1)
	go func() {
		defer statsDone.Done()
		server.Stats().LogPeriodically(statsContext, realClock, cfg.StatsInterval, logger)
	}()

	serveErr := server.Serve(ctx, listener)

	stopStats()
	statsDone.Wait()
	return serveErr
}
