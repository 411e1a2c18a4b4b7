// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

// ReceiverState is the state of the frame receiver
type ReceiverState int

// Receiver states
const (
	StateIdle ReceiverState = iota
	StateReceiving
)

func (s ReceiverState) String() string {
	if s == StateReceiving {
		return "RECEIVING"
	}
	return "IDLE"
}

// Receiver assembles frame payloads from a byte stream.
//
// Malformed input never produces an error: the receiver drops back to idle and
// resynchronizes on the next START byte.
type Receiver struct {
	state   ReceiverState
	buffer  [MaxFrameLength]byte
	length  int
	dropped uint64 // bytes discarded outside of a frame or on abort
}

// NewReceiver creates a new frame receiver in the idle state
func NewReceiver() *Receiver {
	return &Receiver{state: StateIdle}
}

// Reset discards any partial frame and returns to idle
func (r *Receiver) Reset() {
	r.state = StateIdle
	r.length = 0
}

// State returns the current receiver state
func (r *Receiver) State() ReceiverState {
	return r.state
}

// Len returns the number of payload bytes captured so far
func (r *Receiver) Len() int {
	return r.length
}

// Dropped returns the number of bytes discarded since creation
func (r *Receiver) Dropped() uint64 {
	return r.dropped
}

// DecodeByte advances the receiver by one byte.
// Returns a copy of the payload when b completes a frame, nil otherwise.
func (r *Receiver) DecodeByte(b byte) []byte {
	switch {
	case b == StartByte:
		// A new START always restarts capture
		if r.state == StateReceiving {
			r.dropped += uint64(r.length)
		}
		r.state = StateReceiving
		r.length = 0
		return nil

	case b == EndByte && r.state == StateReceiving && r.length > MinFrameLength:
		payload := make([]byte, r.length)
		copy(payload, r.buffer[:r.length])
		r.Reset()
		return payload

	case r.state == StateReceiving && b >= captureMin && b <= captureMax:
		// Bytes past capacity are dropped, capture continues
		if r.length < MaxFrameLength {
			r.buffer[r.length] = b
			r.length++
		}
		return nil

	default:
		r.dropped += uint64(r.length) + 1
		r.Reset()
		return nil
	}
}

// Decode feeds data through the receiver and returns every completed payload
func (r *Receiver) Decode(data []byte) [][]byte {
	var payloads [][]byte
	for _, b := range data {
		if p := r.DecodeByte(b); p != nil {
			payloads = append(payloads, p)
		}
	}
	return payloads
}
