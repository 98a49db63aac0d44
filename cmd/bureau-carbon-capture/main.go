// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/carbon-relay/lib/capture"
	"github.com/bureau-foundation/carbon-relay/lib/codec"
	"github.com/bureau-foundation/carbon-relay/lib/version"
)

const programName = "bureau-carbon-capture"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
func (e *usageError) ExitCode() int { return 2 }

// frameSummary is the JSON form of one captured batch.
type frameSummary struct {
	Sequence    uint64          `json:"sequence"`
	CapturedAt  time.Time       `json:"captured_at"`
	Peer        string          `json:"peer"`
	Target      string          `json:"target"`
	Records     int             `json:"records"`
	Points      int             `json:"points"`
	Digest      capture.Digest  `json:"digest"`
	Compression string          `json:"compression"`
	Size        int             `json:"size"`
	StoredSize  int             `json:"stored_size"`
	StatusCode  int             `json:"status_code,omitempty"`
	Status      string          `json:"status,omitempty"`
	Error       string          `json:"error,omitempty"`
	Verified    bool            `json:"verified"`
	VerifyError string          `json:"verify_error,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func summarize(frame capture.Frame) frameSummary {
	return frameSummary{
		Sequence:    frame.Sequence,
		CapturedAt:  frame.CapturedAt,
		Peer:        frame.Peer,
		Target:      frame.Target,
		Records:     frame.Records,
		Points:      frame.Points,
		Digest:      frame.Digest,
		Compression: frame.Compression.String(),
		Size:        frame.Size,
		StoredSize:  len(frame.Payload),
		StatusCode:  frame.StatusCode,
		Status:      frame.Status,
		Error:       frame.Error,
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		includePayload bool
		diagnose       bool
		showVersion    bool
		showHelp       bool
	)

	flagSet := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.BoolVar(&includePayload, "payload", false, "include each batch body in the output")
	flagSet.BoolVar(&diagnose, "diagnose", false, "print frames in CBOR diagnostic notation")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &usageError{err: err}
	}
	if showHelp {
		printUsage(stderr, flagSet)
		return nil
	}
	if showVersion {
		version.Print(stdout, programName)
		return nil
	}
	if flagSet.NArg() != 1 {
		printUsage(stderr, flagSet)
		return &usageError{err: fmt.Errorf("expected 1 argument, got %d", flagSet.NArg())}
	}

	path := flagSet.Arg(0)
	input := stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		input = file
	}

	if diagnose {
		return diagnoseFrames(input, stdout)
	}
	return dumpFrames(input, stdout, includePayload)
}

func printUsage(output io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(output, `Print the batches in a relay capture file as JSON lines.

Usage:
  %s [flags] <capture-file>

Flags:
`, programName)
	flagSet.SetOutput(output)
	flagSet.PrintDefaults()
}

// dumpFrames writes one summary per frame and fails if any frame did
// not verify.
func dumpFrames(input io.Reader, output io.Writer, includePayload bool) error {
	reader := capture.NewReader(input)
	encoder := json.NewEncoder(output)

	var total, failed int
	for {
		frame, payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		var verifyError *capture.VerifyError
		if err != nil && !errors.As(err, &verifyError) {
			return fmt.Errorf("after %d frames: %w", total, err)
		}
		total++

		summary := summarize(frame)
		if err != nil {
			failed++
			summary.VerifyError = err.Error()
		} else {
			summary.Verified = true
			if includePayload {
				summary.Payload = json.RawMessage(payload)
			}
		}
		if err := encoder.Encode(summary); err != nil {
			return fmt.Errorf("writing frame %d: %w", frame.Sequence, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d frames failed verification", failed, total)
	}
	return nil
}

// diagnoseFrames writes every CBOR item in input in diagnostic
// notation, one per line.
func diagnoseFrames(input io.Reader, output io.Writer) error {
	data, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("reading capture: %w", err)
	}
	for index := 0; len(data) > 0; index++ {
		notation, rest, err := codec.DiagnoseFirst(data)
		if err != nil {
			return fmt.Errorf("frame %d: %w", index+1, err)
		}
		if _, err := fmt.Fprintln(output, notation); err != nil {
			return err
		}
		data = rest
	}
	return nil
}
