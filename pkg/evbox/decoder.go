// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"errors"
	"fmt"
	"strconv"
)

// Field identifies a decoded telemetry value
type Field int

const (
	FieldTotalEnergy Field = iota
	FieldL1Current
	FieldL2Current
	FieldL3Current

	fieldCount
)

func (f Field) String() string {
	if f >= 0 && f < fieldCount {
		return telemetryFields[f].Name
	}
	return "unknown"
}

// Unit returns the physical unit of the field
func (f Field) Unit() string {
	if f >= 0 && f < fieldCount {
		return telemetryFields[f].Unit
	}
	return ""
}

// FieldSpec describes where a value lives in the telemetry payload
type FieldSpec struct {
	Field   Field
	Name    string
	Unit    string
	Offset  int
	Width   int
	Divisor float64
}

// telemetryFields is indexed by Field and ordered as the station publishes them
var telemetryFields = [fieldCount]FieldSpec{
	{Field: FieldTotalEnergy, Name: "total_energy", Unit: "kWh", Offset: 44, Width: 8, Divisor: 1000},
	{Field: FieldL1Current, Name: "l1_current", Unit: "A", Offset: 20, Width: 4, Divisor: 10},
	{Field: FieldL2Current, Name: "l2_current", Unit: "A", Offset: 24, Width: 4, Divisor: 10},
	{Field: FieldL3Current, Name: "l3_current", Unit: "A", Offset: 28, Width: 4, Divisor: 10},
}

// Fields returns the telemetry field table
func Fields() []FieldSpec {
	out := make([]FieldSpec, len(telemetryFields))
	copy(out, telemetryFields[:])
	return out
}

// Sink receives one decoded value per valid telemetry report
type Sink interface {
	Publish(value float64)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(value float64)

// Publish implements Sink
func (f SinkFunc) Publish(value float64) { f(value) }

// Decoder extracts telemetry fields and delivers them to the configured sinks.
// Fields without a sink are not parsed.
type Decoder struct {
	sinks [fieldCount]Sink
}

// NewDecoder creates a decoder with no sinks configured
func NewDecoder() *Decoder {
	return &Decoder{}
}

// SetSink configures the sink for field. A nil sink disables the field.
func (d *Decoder) SetSink(field Field, sink Sink) {
	if field < 0 || field >= fieldCount {
		return
	}
	d.sinks[field] = sink
}

// Dispatch decodes a validated payload and publishes each configured field.
// A malformed field is skipped and the remaining fields are still delivered,
// so sinks can advance on a frame that yields no Telemetry report.
func (d *Decoder) Dispatch(payload []byte) error {
	var errs []error
	for _, def := range telemetryFields {
		sink := d.sinks[def.Field]
		if sink == nil {
			continue
		}
		value, err := def.decode(payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sink.Publish(value)
	}
	return errors.Join(errs...)
}

func (s FieldSpec) decode(payload []byte) (float64, error) {
	if len(payload) < s.Offset+s.Width {
		return 0, &ValidationError{
			Type:    AnomalyLengthMismatch,
			Message: fmt.Sprintf("%s: payload too short (%d bytes)", s.Name, len(payload)),
			Details: map[string]interface{}{"field": s.Name, "length": len(payload)},
		}
	}
	raw := string(payload[s.Offset : s.Offset+s.Width])
	v, err := strconv.ParseUint(raw, 16, 64)
	if err != nil {
		return 0, &ValidationError{
			Type:    AnomalyMalformedField,
			Message: fmt.Sprintf("%s: malformed hex field %q", s.Name, raw),
			Details: map[string]interface{}{"field": s.Name, "raw": raw},
		}
	}
	return float64(v) / s.Divisor, nil
}
