// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bureau-foundation/carbon-relay/lib/clock"
	"github.com/bureau-foundation/carbon-relay/lib/codec"
)

// Writer appends frames to a capture stream. Connection handlers share
// one Writer; Record serializes them.
type Writer struct {
	clock       clock.Clock
	compression Compression

	mu       sync.Mutex
	closer   io.Closer
	encoder  *codec.Encoder
	sequence uint64
}

// Create opens path for appending, creating it with mode 0640 if
// needed.
func Create(path string, compression Compression, clk clock.Clock) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening capture file: %w", err)
	}
	writer := NewWriter(file, compression, clk)
	writer.closer = file
	return writer, nil
}

// NewWriter returns a Writer that encodes frames to output. Close does
// not close output.
func NewWriter(output io.Writer, compression Compression, clk clock.Clock) *Writer {
	return &Writer{
		clock:       clk,
		compression: compression,
		encoder:     codec.NewEncoder(output),
	}
}

// Record compresses and digests batch.Payload and appends the frame.
// The written frame is returned so callers can log its sequence.
func (w *Writer) Record(batch Batch) (Frame, error) {
	if len(batch.Payload) > MaxPayloadSize {
		return Frame{}, fmt.Errorf("payload of %d bytes exceeds capture limit of %d", len(batch.Payload), MaxPayloadSize)
	}
	stored, compression, err := compress(batch.Payload, w.compression)
	if err != nil {
		return Frame{}, fmt.Errorf("compressing captured payload: %w", err)
	}

	frame := Frame{
		CapturedAt:  w.clock.Now().UTC(),
		Peer:        batch.Peer,
		Target:      batch.Target,
		Records:     batch.Records,
		Points:      batch.Points,
		Digest:      HashPayload(batch.Payload),
		Compression: compression,
		Size:        len(batch.Payload),
		Payload:     stored,
		StatusCode:  batch.StatusCode,
		Status:      batch.Status,
	}
	if batch.Err != nil {
		frame.Error = batch.Err.Error()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.encoder == nil {
		return Frame{}, fmt.Errorf("capture writer is closed")
	}
	w.sequence++
	frame.Sequence = w.sequence
	if err := w.encoder.Encode(frame); err != nil {
		return Frame{}, fmt.Errorf("writing capture frame %d: %w", frame.Sequence, err)
	}
	return frame, nil
}

// Close stops the writer and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.encoder = nil
	if w.closer == nil {
		return nil
	}
	closer := w.closer
	w.closer = nil
	return closer.Close()
}
