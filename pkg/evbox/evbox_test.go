// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// zeroBody is a 52-character telemetry body with every field zero
var zeroBody = TelemetryHeader + strings.Repeat("0", 46)

// buildPayload appends the dual checksum to a 52-character body
func buildPayload(body string) []byte {
	sum := CalculateChecksum([]byte(body)).Hex()
	return append([]byte(body), sum[:]...)
}

// withField replaces width characters of body at offset
func withField(body string, offset int, value string) string {
	return body[:offset] + value + body[offset+len(value):]
}

// framed wraps payload in START/END
func framed(payload []byte) []byte {
	out := []byte{StartByte}
	out = append(out, payload...)
	return append(out, EndByte)
}

// ============================================================
// Checksum Tests
// ============================================================

func TestCalculateChecksum_Empty(t *testing.T) {
	c := CalculateChecksum(nil)
	if c.Sum != 0 || c.Xor != 0 {
		t.Errorf("checksum of empty data should be zero, got %s", c)
	}
	if c.String() != "0000" {
		t.Errorf("expected 0000, got %s", c)
	}
}

func TestCalculateChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		data string
		sum  string
		xor  string
	}{
		{name: "zero telemetry body", data: zeroBody, sum: "E8", xor: "76"},
		{name: "7.3 A command body", data: "80A069004900490049003C003C003C003C", sum: "07", xor: "7B"},
		{name: "sum wraps modulo 256", data: "\xFF\x02", sum: "01", xor: "FD"},
		{name: "single byte", data: "A", sum: "41", xor: "41"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CalculateChecksum([]byte(tt.data))
			if c.SumHex() != tt.sum {
				t.Errorf("sum: expected %s, got %s", tt.sum, c.SumHex())
			}
			if c.XorHex() != tt.xor {
				t.Errorf("xor: expected %s, got %s", tt.xor, c.XorHex())
			}
		})
	}
}

func TestChecksumHex_Uppercase(t *testing.T) {
	c := Checksum{Sum: 0xab, Xor: 0xcd}
	if c.String() != "ABCD" {
		t.Errorf("expected uppercase ABCD, got %s", c)
	}
}

// ============================================================
// Receiver Tests
// ============================================================

func TestReceiver_CompleteFrame(t *testing.T) {
	r := NewReceiver()
	payload := buildPayload(zeroBody)

	var got []byte
	for _, b := range framed(payload) {
		if p := r.DecodeByte(b); p != nil {
			if got != nil {
				t.Fatal("receiver emitted more than one payload")
			}
			got = p
		}
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch:\nexpected %s\ngot      %s", payload, got)
	}
	if r.State() != StateIdle {
		t.Errorf("receiver should be idle after END, got %s", r.State())
	}
}

func TestReceiver_StartRestartsCapture(t *testing.T) {
	r := NewReceiver()
	payload := buildPayload(zeroBody)

	stream := []byte{StartByte}
	stream = append(stream, []byte("0123456789ABCDEF0123")...)
	stream = append(stream, StartByte)
	stream = append(stream, []byte("FFFF")...)
	stream = append(stream, framed(payload)...)

	payloads := r.Decode(stream)
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(payloads))
	}
	if !bytes.Equal(payloads[0], payload) {
		t.Errorf("capture should restart at the most recent START, got %s", payloads[0])
	}
}

func TestReceiver_ShortFrameRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "eight bytes", body: "01234567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReceiver()
			payloads := r.Decode(framed([]byte(tt.body)))
			if len(payloads) != 0 {
				t.Errorf("END after %d bytes should not complete a frame", len(tt.body))
			}
			if r.State() != StateIdle {
				t.Errorf("premature END should return to idle, got %s", r.State())
			}
		})
	}
}

func TestReceiver_NineBytesAccepted(t *testing.T) {
	r := NewReceiver()
	payloads := r.Decode(framed([]byte("012345678")))
	if len(payloads) != 1 || string(payloads[0]) != "012345678" {
		t.Errorf("expected a 9-byte payload, got %q", payloads)
	}
}

func TestReceiver_CaptureRange(t *testing.T) {
	// ':' through '@' sit between '9' and 'A' and are captured
	r := NewReceiver()
	payloads := r.Decode(framed([]byte("0:;<=>?@9F")))
	if len(payloads) != 1 || string(payloads[0]) != "0:;<=>?@9F" {
		t.Errorf("expected range bytes to be captured, got %q", payloads)
	}
}

func TestReceiver_InvalidByteAborts(t *testing.T) {
	for _, bad := range []byte{'a', 'G', '/', ' ', 0x00, 0xFF, '\r'} {
		r := NewReceiver()
		stream := []byte{StartByte}
		stream = append(stream, []byte("0123456789")...)
		stream = append(stream, bad)
		stream = append(stream, []byte("0123456789")...)
		stream = append(stream, EndByte)

		if payloads := r.Decode(stream); len(payloads) != 0 {
			t.Errorf("byte 0x%02X should abort the frame, got %q", bad, payloads)
		}
		if r.State() != StateIdle {
			t.Errorf("byte 0x%02X should leave receiver idle", bad)
		}
	}
}

func TestReceiver_IdleIgnoresData(t *testing.T) {
	r := NewReceiver()
	r.Decode([]byte("0123456789ABCDEF"))
	if r.State() != StateIdle || r.Len() != 0 {
		t.Error("bytes outside a frame should not be captured")
	}
	if r.Dropped() != 16 {
		t.Errorf("expected 16 dropped bytes, got %d", r.Dropped())
	}
	if p := r.DecodeByte(EndByte); p != nil {
		t.Error("END while idle should not emit a payload")
	}
}

func TestReceiver_Overflow(t *testing.T) {
	r := NewReceiver()
	stream := []byte{StartByte}
	stream = append(stream, bytes.Repeat([]byte{'1'}, 300)...)
	stream = append(stream, EndByte)

	payloads := r.Decode(stream)
	if len(payloads) != 1 {
		t.Fatalf("expected overflowed frame to complete, got %d payloads", len(payloads))
	}
	if len(payloads[0]) != MaxFrameLength {
		t.Errorf("expected capture truncated to %d bytes, got %d", MaxFrameLength, len(payloads[0]))
	}
	if err := ValidatePayload(payloads[0]); err == nil {
		t.Error("overflowed frame should fail length validation")
	}

	// The receiver must still decode the next frame
	payload := buildPayload(zeroBody)
	next := r.Decode(framed(payload))
	if len(next) != 1 || !bytes.Equal(next[0], payload) {
		t.Errorf("receiver did not recover after overflow, got %q", next)
	}
}

func TestReceiver_PayloadIsCopied(t *testing.T) {
	r := NewReceiver()
	first := r.Decode(framed([]byte("111111111")))[0]
	r.Decode(framed([]byte("222222222")))
	if string(first) != "111111111" {
		t.Errorf("emitted payload was overwritten: %s", first)
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidatePayload_Valid(t *testing.T) {
	payload := []byte(zeroBody + "E876")
	if err := ValidatePayload(payload); err != nil {
		t.Errorf("expected valid payload, got %v", err)
	}
}

func TestValidatePayload_Rejections(t *testing.T) {
	valid := buildPayload(zeroBody)
	badHeader := buildPayload(withField(zeroBody, 0, "A08070"))

	tests := []struct {
		name    string
		payload []byte
		anomaly AnomalyType
	}{
		{name: "too short", payload: valid[:55], anomaly: AnomalyLengthMismatch},
		{name: "too long", payload: append(append([]byte{}, valid...), '0'), anomaly: AnomalyLengthMismatch},
		{name: "empty", payload: []byte{}, anomaly: AnomalyLengthMismatch},
		{name: "wrong header", payload: badHeader, anomaly: AnomalyInvalidHeader},
		{name: "wrong sum", payload: []byte(zeroBody + "E976"), anomaly: AnomalySumChecksum},
		{name: "wrong xor", payload: []byte(zeroBody + "E877"), anomaly: AnomalyXorChecksum},
		{name: "lowercase checksum", payload: []byte(zeroBody + "e876"), anomaly: AnomalySumChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePayload(tt.payload)
			verr, ok := AsValidationError(err)
			if !ok {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Type != tt.anomaly {
				t.Errorf("expected %s, got %s (%v)", tt.anomaly, verr.Type, err)
			}
		})
	}
}

func TestValidatePayload_ChecksumBitFlips(t *testing.T) {
	payload := buildPayload(withField(zeroBody, 20, "0046"))
	for i := ChecksumOffset; i < TelemetryLength; i++ {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte{}, payload...)
			corrupted[i] ^= 1 << bit

			err := ValidatePayload(corrupted)
			verr, ok := AsValidationError(err)
			if !ok || !verr.IsChecksumError() {
				t.Errorf("flip of bit %d at offset %d not detected as checksum error: %v", bit, i, err)
			}
		}
	}
}

// ============================================================
// Decoder Tests
// ============================================================

type capture struct {
	values []float64
}

func (c *capture) Publish(v float64) { c.values = append(c.values, v) }

func TestDecoder_Scaling(t *testing.T) {
	body := withField(zeroBody, 20, "0046")
	body = withField(body, 24, "00E6")
	body = withField(body, 28, "0140")
	body = withField(body, 44, "00000064")
	payload := buildPayload(body)

	sinks := map[Field]*capture{}
	d := NewDecoder()
	for _, f := range []Field{FieldL1Current, FieldL2Current, FieldL3Current, FieldTotalEnergy} {
		sinks[f] = &capture{}
		d.SetSink(f, sinks[f])
	}

	if err := d.Dispatch(payload); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	expected := map[Field]float64{
		FieldL1Current:   7.0,
		FieldL2Current:   23.0,
		FieldL3Current:   32.0,
		FieldTotalEnergy: 0.1,
	}
	for f, want := range expected {
		got := sinks[f].values
		if len(got) != 1 || got[0] != want {
			t.Errorf("%s: expected [%v], got %v", f, want, got)
		}
	}
}

func TestDecoder_ZeroTelemetry(t *testing.T) {
	tel, err := DecodeTelemetry([]byte(zeroBody + "E876"))
	if err != nil {
		t.Fatalf("DecodeTelemetry failed: %v", err)
	}
	for _, f := range Fields() {
		if v := tel.Value(f.Field); v != 0 {
			t.Errorf("%s: expected 0.0, got %v", f.Name, v)
		}
	}
}

func TestDecoder_UnconfiguredSinksSkipped(t *testing.T) {
	// L2 is malformed but has no sink, so it must not be parsed
	payload := buildPayload(withField(withField(zeroBody, 24, "0:00"), 20, "000A"))

	l1 := &capture{}
	d := NewDecoder()
	d.SetSink(FieldL1Current, l1)

	if err := d.Dispatch(payload); err != nil {
		t.Errorf("unconfigured field should not be parsed, got %v", err)
	}
	if len(l1.values) != 1 || l1.values[0] != 1.0 {
		t.Errorf("expected L1 1.0, got %v", l1.values)
	}
}

func TestDecoder_MalformedFieldSkipped(t *testing.T) {
	payload := buildPayload(withField(withField(zeroBody, 24, "0:00"), 20, "000A"))

	l1, l2 := &capture{}, &capture{}
	d := NewDecoder()
	d.SetSink(FieldL1Current, l1)
	d.SetSink(FieldL2Current, l2)

	err := d.Dispatch(payload)
	verr, ok := AsValidationError(err)
	if !ok || verr.Type != AnomalyMalformedField {
		t.Fatalf("expected malformed field error, got %v", err)
	}
	if len(l2.values) != 0 {
		t.Errorf("malformed L2 should not be published, got %v", l2.values)
	}
	if len(l1.values) != 1 {
		t.Errorf("well-formed L1 should still be published, got %v", l1.values)
	}
}

func TestDecoder_PublishOrder(t *testing.T) {
	var order []Field
	d := NewDecoder()
	for _, f := range []Field{FieldL3Current, FieldL1Current, FieldTotalEnergy, FieldL2Current} {
		f := f
		d.SetSink(f, SinkFunc(func(float64) { order = append(order, f) }))
	}
	if err := d.Dispatch(buildPayload(zeroBody)); err != nil {
		t.Fatal(err)
	}
	want := []Field{FieldTotalEnergy, FieldL1Current, FieldL2Current, FieldL3Current}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected publish order %v, got %v", want, order)
		}
	}
}

func TestEncodeTelemetry_RoundTrip(t *testing.T) {
	in := &Telemetry{L1Current: 16.1, L2Current: 15.9, L3Current: 0, TotalEnergy: 1234.567}
	frame := EncodeTelemetry(in)

	if frame[0] != StartByte || frame[len(frame)-1] != EndByte {
		t.Fatal("telemetry frame should be wrapped in START/END")
	}
	out, err := DecodeTelemetry(frame[1 : len(frame)-1])
	if err != nil {
		t.Fatalf("DecodeTelemetry failed: %v", err)
	}
	if out.L1Current != 16.1 || out.L2Current != 15.9 || out.L3Current != 0 || out.TotalEnergy != 1234.567 {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestSetpoint_Clamp(t *testing.T) {
	tests := []struct {
		amp      float64
		expected uint16
	}{
		{amp: 0.0, expected: 0},
		{amp: 0.01, expected: 60},
		{amp: 3.0, expected: 60},
		{amp: 5.99, expected: 60},
		{amp: 6.0, expected: 60},
		{amp: 7.3, expected: 73},
		{amp: 16.0, expected: 160},
		{amp: 16.04, expected: 160},
		{amp: 16.05, expected: 161},
		{amp: 25.5, expected: 255},
		{amp: 32.0, expected: 320},
	}

	for _, tt := range tests {
		sp, err := Setpoint(tt.amp)
		if err != nil {
			t.Errorf("Setpoint(%v) failed: %v", tt.amp, err)
			continue
		}
		if sp != tt.expected {
			t.Errorf("Setpoint(%v): expected %d, got %d", tt.amp, tt.expected, sp)
		}
	}
}

func TestSetpoint_Invalid(t *testing.T) {
	for _, amp := range []float64{-1, -0.5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Setpoint(amp); !errors.Is(err, ErrInvalidCurrent) {
			t.Errorf("Setpoint(%v): expected ErrInvalidCurrent, got %v", amp, err)
		}
	}
}

func TestEncodeSetCurrent_KnownFrame(t *testing.T) {
	got, err := EncodeSetCurrent(7.3)
	if err != nil {
		t.Fatalf("EncodeSetCurrent failed: %v", err)
	}
	want := "\x02" + "80A069004900490049003C003C003C003C" + "077B" + "\x03"
	if string(got) != want {
		t.Errorf("frame mismatch:\nexpected %q\ngot      %q", want, got)
	}
	if len(got) != CommandFrameSize {
		t.Errorf("expected %d bytes, got %d", CommandFrameSize, len(got))
	}
}

func TestEncodeSetCurrent_Stop(t *testing.T) {
	got, err := EncodeSetCurrent(0)
	if err != nil {
		t.Fatal(err)
	}
	want := "\x02" + "80A069000000000000003C003C003C003C" + "E076" + "\x03"
	if string(got) != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCommandBody_LowByteOnly(t *testing.T) {
	// 32 A = 320 = 0x140, only 0x40 fits the slot
	body := string(CommandBody(320))
	if body != "80A069004000400040003C003C003C003C" {
		t.Errorf("unexpected body %s", body)
	}
}

func TestParseCommand_RoundTrip(t *testing.T) {
	for _, amp := range []float64{0, 6, 7.3, 10, 16, 25.5} {
		frame, err := EncodeSetCurrent(amp)
		if err != nil {
			t.Fatal(err)
		}
		cmd, err := ParseCommand(frame[1 : len(frame)-1])
		if err != nil {
			t.Fatalf("ParseCommand(%v) failed: %v", amp, err)
		}
		sp, _ := Setpoint(amp)
		if uint16(cmd.Setpoint) != sp {
			t.Errorf("amp %v: expected setpoint %d, got %d", amp, sp, cmd.Setpoint)
		}
	}
}

func TestParseCommand_Rejections(t *testing.T) {
	good, _ := EncodeSetCurrent(10)
	payload := good[1 : len(good)-1]

	mismatched := []byte("80A069006400640065003C003C003C003C")
	sum := CalculateChecksum(mismatched).Hex()
	mismatched = append(mismatched, sum[:]...)

	tests := []struct {
		name    string
		payload []byte
		anomaly AnomalyType
	}{
		{name: "short", payload: payload[:30], anomaly: AnomalyLengthMismatch},
		{name: "bad template", payload: append([]byte("90"), payload[2:]...), anomaly: AnomalyInvalidHeader},
		{name: "bad checksum", payload: append(append([]byte{}, payload[:36]...), '0', '0'), anomaly: AnomalyXorChecksum},
		{name: "slots disagree", payload: mismatched, anomaly: AnomalyMalformedField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.payload)
			verr, ok := AsValidationError(err)
			if !ok || verr.Type != tt.anomaly {
				t.Errorf("expected %s, got %v", tt.anomaly, err)
			}
		})
	}
}

func TestIsOperatorCurrent(t *testing.T) {
	for _, amp := range []float64{0, 9, 16, 32} {
		if !IsOperatorCurrent(amp) {
			t.Errorf("%v A should be accepted", amp)
		}
	}
	for _, amp := range []float64{-1, 1, 6, 8.9, 32.1, math.NaN()} {
		if IsOperatorCurrent(amp) {
			t.Errorf("%v A should be rejected", amp)
		}
	}
}
