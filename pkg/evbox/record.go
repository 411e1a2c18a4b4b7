// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Recorder writes decoded telemetry as a CBOR sequence (RFC 8742)
type Recorder struct {
	enc *cbor.Encoder
}

var recordEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("evbox: cbor enc mode: %v", err))
	}
	return em
}()

// NewRecorder creates a recorder writing to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: recordEncMode.NewEncoder(w)}
}

// Write appends one telemetry record
func (r *Recorder) Write(t *Telemetry) error {
	if err := r.enc.Encode(t); err != nil {
		return fmt.Errorf("failed to encode telemetry record: %w", err)
	}
	return nil
}

// ReadRecording calls fn for every telemetry record in r until EOF
func ReadRecording(r io.Reader, fn func(*Telemetry) error) error {
	dec := cbor.NewDecoder(r)
	for {
		var t Telemetry
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode telemetry record: %w", err)
		}
		if err := fn(&t); err != nil {
			return err
		}
	}
}
