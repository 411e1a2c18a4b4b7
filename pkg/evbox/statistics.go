// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package evbox

import (
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	ValidFrames     uint64
	LengthErrors    uint64
	HeaderErrors    uint64
	ChecksumErrors  uint64
	SumErrors       uint64
	XorErrors       uint64
	MalformedFields uint64
	DroppedBytes    uint64
	CommandsSent    uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one completed frame and the error it was rejected with, if any
func (s *Statistics) Update(err error) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if err == nil {
		s.ValidFrames++
		return
	}

	verr, ok := AsValidationError(err)
	if !ok {
		s.MalformedFields++
		return
	}

	switch verr.Type {
	case AnomalyLengthMismatch:
		s.LengthErrors++
	case AnomalyInvalidHeader:
		s.HeaderErrors++
	case AnomalySumChecksum:
		s.SumErrors++
		s.ChecksumErrors++
	case AnomalyXorChecksum:
		s.XorErrors++
		s.ChecksumErrors++
	case AnomalyMalformedField:
		s.MalformedFields++
	}
}

// Errors returns the number of rejected frames
func (s *Statistics) Errors() uint64 {
	return s.LengthErrors + s.HeaderErrors + s.ChecksumErrors + s.MalformedFields
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, percent(s.ValidFrames))

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, percent(s.ChecksumErrors))
		result += fmt.Sprintf("  Sum:              %5d\n", s.SumErrors)
		result += fmt.Sprintf("  XOR:              %5d\n", s.XorErrors)
	}
	if s.LengthErrors > 0 {
		result += fmt.Sprintf("Length Errors:   %8d (%.1f%%)\n", s.LengthErrors, percent(s.LengthErrors))
	}
	if s.HeaderErrors > 0 {
		result += fmt.Sprintf("Header Errors:   %8d (%.1f%%)\n", s.HeaderErrors, percent(s.HeaderErrors))
	}
	if s.MalformedFields > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.MalformedFields, percent(s.MalformedFields))
	}
	if s.DroppedBytes > 0 {
		result += fmt.Sprintf("Dropped Bytes:   %8d\n", s.DroppedBytes)
	}
	if s.CommandsSent > 0 {
		result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
