// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/carbon-relay/lib/codec"
)

// ErrDigestMismatch reports a frame whose restored payload does not
// hash to its recorded digest.
var ErrDigestMismatch = errors.New("capture: payload digest mismatch")

// VerifyError is a frame that decoded but whose payload could not be
// restored or did not match its digest. The stream remains readable
// after one.
type VerifyError struct {
	Sequence uint64
	Err      error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Sequence, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Reader decodes frames from a capture stream.
type Reader struct {
	decoder *codec.Decoder
}

// NewReader returns a Reader over input.
func NewReader(input io.Reader) *Reader {
	return &Reader{decoder: codec.NewDecoder(input)}
}

// Next decodes the next frame and returns it with its restored,
// verified payload. It returns io.EOF after the last frame. A frame
// that fails verification is still returned alongside a *VerifyError
// so callers can report it and continue.
func (r *Reader) Next() (Frame, []byte, error) {
	var frame Frame
	if err := r.decoder.Decode(&frame); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, nil, io.EOF
		}
		return Frame{}, nil, fmt.Errorf("decoding capture frame: %w", err)
	}

	payload, err := Verify(frame)
	if err != nil {
		return frame, nil, err
	}
	return frame, payload, nil
}

// Verify restores frame's payload and checks it against the digest.
// Failures are *VerifyError.
func Verify(frame Frame) ([]byte, error) {
	payload, err := decompress(frame.Payload, frame.Compression, frame.Size)
	if err != nil {
		return nil, &VerifyError{Sequence: frame.Sequence, Err: err}
	}
	if HashPayload(payload) != frame.Digest {
		return nil, &VerifyError{Sequence: frame.Sequence, Err: ErrDigestMismatch}
	}
	return payload, nil
}
