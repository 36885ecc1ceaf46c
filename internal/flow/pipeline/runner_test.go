package pipeline

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microflow-data/vessel.report/internal/flow"
)

// fixedEstimator reports the same orientation for every kymograph, which
// makes run outcomes exactly predictable.
type fixedEstimator struct {
	angle float64
	fit   float64
}

func (e fixedEstimator) Estimate(*flow.Kymograph) (flow.Orientation, error) {
	return flow.Orientation{AngleRadians: e.angle, FitGoodness: e.fit}, nil
}

func (fixedEstimator) Name() string { return "fixed" }

func flatVideo(t *testing.T, frameCount int) *flow.MemVideo {
	t.Helper()
	frames := make([]*flow.Frame, frameCount)
	for i := range frames {
		frames[i] = flow.NewFrame(30, 20)
	}
	v, err := flow.NewMemVideo(frames)
	require.NoError(t, err)
	return v
}

func testRunner(t *testing.T) *Runner {
	t.Helper()
	return &Runner{
		Video: flatVideo(t, 10),
		Segments: []flow.Segment{
			{ID: 1, Name: "long", Points: []flow.Point{{X: 0, Y: 5}, {X: 20, Y: 5}}},
			{ID: 2, Name: "stub", Points: []flow.Point{{X: 0, Y: 8}, {X: 4, Y: 8}}},
		},
		Intervals: []flow.Interval{
			{ID: 1, Start: 0, End: 4},
			{ID: 2, Start: 5, End: 9},
		},
		Estimator: fixedEstimator{angle: math.Pi / 4, fit: 0.95},
		Calc: flow.Calculator{
			FrameRate:        30,
			PixelSize:        0.5,
			MinSegmentLength: 5,
			MaxMeasuredSpeed: 2000,
		},
	}
}

func TestRunProducesFullMatrices(t *testing.T) {
	t.Parallel()

	res, err := testRunner(t).Run(context.Background())
	require.NoError(t, err)

	rows, cols := res.Velocity.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)
	assert.True(t, res.Velocity.Complete())

	for _, ivID := range []int{1, 2} {
		// 10 µm segment at π/4: (1/tan) × 30 × 0.5 = 15.00.
		v, ok := res.Velocity.At(ivID, 1)
		require.True(t, ok)
		assert.Equal(t, flow.Numeric(15), v, "interval %d long segment", ivID)

		// 2 µm segment is under the 5 µm minimum for every interval.
		v, ok = res.Velocity.At(ivID, 2)
		require.True(t, ok)
		assert.Equal(t, flow.TooShort, v, "interval %d stub segment", ivID)

		// Angle and fit carry the raw estimator output even for sentinels.
		assert.InDelta(t, math.Pi/4, res.Angle.At(ivID, 2), 1e-12)
		assert.Equal(t, 0.95, res.Fit.At(ivID, 2))
	}
	assert.Empty(t, res.Anomalies)
}

func TestRunWorkerCountDoesNotChangeResults(t *testing.T) {
	t.Parallel()

	sequential := testRunner(t)
	sequential.Workers = 1
	seqRes, err := sequential.Run(context.Background())
	require.NoError(t, err)

	parallel := testRunner(t)
	parallel.Workers = 4
	parRes, err := parallel.Run(context.Background())
	require.NoError(t, err)

	for _, ivID := range []int{1, 2} {
		seqRow, _ := seqRes.Velocity.Row(ivID)
		parRow, _ := parRes.Velocity.Row(ivID)
		assert.Equal(t, seqRow, parRow, "interval %d", ivID)
	}
}

func TestRunCollectsAnomalies(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.Estimator = fixedEstimator{angle: math.NaN()}

	res, err := r.Run(context.Background())
	require.NoError(t, err, "anomalies recover, they do not abort the run")

	// The stub segment short-circuits to TooShort before the angle is
	// inspected, so only the long segment contributes anomalies.
	assert.Len(t, res.Anomalies, 2)
	for _, a := range res.Anomalies {
		assert.Equal(t, 1, a.SegmentID)
		assert.True(t, math.IsNaN(a.RawAngle))
	}

	v, _ := res.Velocity.At(1, 1)
	assert.Equal(t, flow.OutOfRange, v)
}

func TestRunValidatesIntervalBounds(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.Intervals = append(r.Intervals, flow.Interval{ID: 3, Start: 8, End: 12})

	_, err := r.Run(context.Background())
	require.Error(t, err)
}

func TestRunValidatesDependencies(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.Video = nil
	_, err := r.Run(context.Background())
	assert.Error(t, err)

	r = testRunner(t)
	r.Estimator = nil
	_, err = r.Run(context.Background())
	assert.Error(t, err)

	r = testRunner(t)
	r.Calc.PixelSize = 0
	_, err = r.Run(context.Background())
	assert.Error(t, err)
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testRunner(t).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunProgressCallback(t *testing.T) {
	t.Parallel()

	r := testRunner(t)
	r.Workers = 3

	var (
		mu   sync.Mutex
		seen []int
	)
	r.Progress = func(done, totalUnits int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, done)
		assert.Equal(t, 4, totalUnits)
	}

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	// Calls are serialized, so even with concurrent workers the done counts
	// arrive in ascending order with no gaps.
	assert.Equal(t, []int{1, 2, 3, 4}, seen)
}
