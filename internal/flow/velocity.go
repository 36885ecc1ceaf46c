package flow

import (
	"fmt"
	"math"
)

// ValueKind tags a velocity matrix cell.
type ValueKind int

const (
	// ValueNumeric marks a usable velocity in µm/s, rounded to 2 decimals.
	ValueNumeric ValueKind = iota
	// ValueTooShort marks a segment shorter than the minimum measurable length.
	ValueTooShort
	// ValueOutOfRange marks a velocity beyond the measurable range, including
	// divergent and non-finite results.
	ValueOutOfRange
)

// Value is one velocity matrix cell: a tagged variant of a numeric speed or
// a sentinel recording why no usable velocity exists. Text formatting of
// sentinels lives at the serialization boundary, not here.
type Value struct {
	Kind  ValueKind
	Speed float64 // valid only when Kind == ValueNumeric
}

// Numeric builds a numeric cell, rounding to 2-decimal precision.
func Numeric(speed float64) Value {
	return Value{Kind: ValueNumeric, Speed: math.Round(speed*100) / 100}
}

// TooShort is the sentinel for segments below the minimum measurable length.
var TooShort = Value{Kind: ValueTooShort}

// OutOfRange is the sentinel for speeds beyond the measurable range.
var OutOfRange = Value{Kind: ValueOutOfRange}

// IsSentinel reports whether the cell holds no numeric speed.
func (v Value) IsSentinel() bool { return v.Kind != ValueNumeric }

func (v Value) String() string {
	switch v.Kind {
	case ValueTooShort:
		return "short"
	case ValueOutOfRange:
		return "out"
	default:
		return fmt.Sprintf("%.2f", v.Speed)
	}
}

// Calculator converts kymograph orientations into physical velocities and
// applies the validity policy. It is an immutable bundle of the acquisition
// parameters and thresholds for one run; rebuild it when parameters change.
type Calculator struct {
	FrameRate        float64 // fps
	PixelSize        float64 // µm/px
	MinSegmentLength float64 // µm; below this a segment is TooShort
	MaxMeasuredSpeed float64 // µm/s; above this a measurement is OutOfRange
}

// Speed converts an orientation angle to µm/s. tan(angle) is frames per
// column; its reciprocal is columns per frame, scaled by frame rate and
// pixel size. angle = 0 diverges to ±Inf, which the policy maps to
// OutOfRange rather than an error.
func (c Calculator) Speed(angleRadians float64) float64 {
	return (1 / math.Tan(angleRadians)) * c.FrameRate * c.PixelSize
}

// Evaluate applies the validity policy in order:
//
//  1. segment shorter than MinSegmentLength → TooShort
//  2. non-finite angle or velocity, or |velocity| > MaxMeasuredSpeed → OutOfRange
//  3. otherwise → Numeric, 2-decimal precision
//
// TooShort takes precedence over OutOfRange. A non-finite result returns an
// Anomaly for the diagnostic record; the cell itself is recovered to
// OutOfRange and never aborts the run.
func (c Calculator) Evaluate(angleRadians, segmentLengthMicrons float64, segmentID, intervalID int) (Value, *Anomaly) {
	if segmentLengthMicrons < c.MinSegmentLength {
		return TooShort, nil
	}

	if math.IsNaN(angleRadians) || math.IsInf(angleRadians, 0) {
		return OutOfRange, &Anomaly{SegmentID: segmentID, IntervalID: intervalID, RawAngle: angleRadians}
	}

	v := c.Speed(angleRadians)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return OutOfRange, &Anomaly{SegmentID: segmentID, IntervalID: intervalID, RawAngle: angleRadians}
	}
	if math.Abs(v) > c.MaxMeasuredSpeed {
		return OutOfRange, nil
	}
	return Numeric(v), nil
}
