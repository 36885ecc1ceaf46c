package flow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCalculator() Calculator {
	return Calculator{
		FrameRate:        30,
		PixelSize:        0.5,
		MinSegmentLength: 20,
		MaxMeasuredSpeed: 2000,
	}
}

func TestEvaluateShortSegment(t *testing.T) {
	t.Parallel()

	calc := testCalculator()

	// A 15 µm segment against a 20 µm minimum is short for every interval,
	// regardless of angle.
	for _, angle := range []float64{math.Pi / 4, 0, math.NaN(), -math.Pi / 3} {
		v, anomaly := calc.Evaluate(angle, 15, 1, 1)
		assert.Equal(t, TooShort, v, "angle %v", angle)
		assert.Nil(t, anomaly, "short takes precedence, no anomaly recorded")
	}
}

func TestEvaluateNumeric(t *testing.T) {
	t.Parallel()

	calc := testCalculator()

	// (1/tan(π/4)) × 30 × 0.5 = 15.00
	v, anomaly := calc.Evaluate(math.Pi/4, 100, 1, 1)
	require.Nil(t, anomaly)
	require.Equal(t, ValueNumeric, v.Kind)
	assert.Equal(t, 15.0, v.Speed)
	assert.Equal(t, "15.00", v.String())
}

func TestEvaluateRoundsToTwoDecimals(t *testing.T) {
	t.Parallel()

	calc := testCalculator()
	angle := math.Atan(1 / 1.2345) // speed = 1.2345 × 30 × 0.5 = 18.5175
	v, _ := calc.Evaluate(angle, 100, 1, 1)
	require.Equal(t, ValueNumeric, v.Kind)
	assert.Equal(t, 18.52, v.Speed)
}

func TestEvaluateZeroAngleDiverges(t *testing.T) {
	t.Parallel()

	calc := testCalculator()

	// tan(0) = 0 diverges; this must classify as OutOfRange, not crash.
	v, _ := calc.Evaluate(0, 100, 1, 1)
	assert.Equal(t, OutOfRange, v)

	v, _ = calc.Evaluate(math.Pi, 100, 1, 1)
	assert.Equal(t, OutOfRange, v)
}

func TestEvaluateOverMaxSpeed(t *testing.T) {
	t.Parallel()

	calc := testCalculator()

	// Just past the boundary must be out of range.
	angle := math.Atan(calc.FrameRate * calc.PixelSize / (calc.MaxMeasuredSpeed + 0.01))
	v, anomaly := calc.Evaluate(angle, 100, 1, 1)
	assert.Equal(t, OutOfRange, v)
	assert.Nil(t, anomaly, "ordinary out-of-range is not an anomaly")

	// Just inside the boundary stays numeric.
	angle = math.Atan(calc.FrameRate * calc.PixelSize / (calc.MaxMeasuredSpeed - 0.01))
	v, _ = calc.Evaluate(angle, 100, 1, 1)
	assert.Equal(t, ValueNumeric, v.Kind)
}

func TestEvaluateNonFiniteAngle(t *testing.T) {
	t.Parallel()

	calc := testCalculator()

	for _, angle := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		v, anomaly := calc.Evaluate(angle, 100, 3, 7)
		assert.Equal(t, OutOfRange, v, "angle %v recovers to out-of-range", angle)
		require.NotNil(t, anomaly, "non-finite results retain a diagnostic record")
		assert.Equal(t, 3, anomaly.SegmentID)
		assert.Equal(t, 7, anomaly.IntervalID)
		if math.IsNaN(angle) {
			assert.True(t, math.IsNaN(anomaly.RawAngle))
		}
	}
}

func TestEvaluateNegativeVelocity(t *testing.T) {
	t.Parallel()

	calc := testCalculator()
	v, _ := calc.Evaluate(-math.Pi/4, 100, 1, 1)
	require.Equal(t, ValueNumeric, v.Kind)
	assert.Equal(t, -15.0, v.Speed)
}

func TestValueString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", TooShort.String())
	assert.Equal(t, "out", OutOfRange.String())
	assert.Equal(t, "3.10", Numeric(3.1).String())
	assert.True(t, TooShort.IsSentinel())
	assert.True(t, OutOfRange.IsSentinel())
	assert.False(t, Numeric(1).IsSentinel())
}
