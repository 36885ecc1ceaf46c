package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/microflow-data/vessel.report/internal/flow"
)

// Runner bundles the dependencies of one analysis run. Wiring is explicit:
// construct, populate, call Run. The zero Workers value means sequential
// execution, which reproduces the reference single-focus behavior exactly.
type Runner struct {
	Video     flow.VideoSource
	Segments  []flow.Segment
	Intervals []flow.Interval
	Estimator flow.Estimator
	Calc      flow.Calculator

	// Workers bounds the number of concurrent (interval, segment) units.
	Workers int

	// Progress, if set, is called after every completed unit with the number
	// of finished units and the total. Calls are serialized.
	Progress func(done, total int)
}

// Result is the outcome of a run: the three parallel matrices, always of
// dimensions (|intervals|, |segments|), plus the anomaly diagnostics
// collected along the way.
type Result struct {
	Velocity  *flow.ValueMatrix
	Angle     *flow.ScalarMatrix
	Fit       *flow.ScalarMatrix
	Anomalies []flow.Anomaly
}

type unit struct {
	interval flow.Interval
	segment  flow.Segment
	length   float64 // physical segment length, µm
}

// Run executes the full pipeline. Interval bounds are validated up front so
// a RangeError aborts before any work begins. Matrix inserts are keyed by
// (interval, segment), so the result is identical regardless of worker
// completion order. Cancellation is cooperative, checked once per unit.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	intervalIDs := make([]int, len(r.Intervals))
	for i, iv := range r.Intervals {
		intervalIDs[i] = iv.ID
	}
	segmentIDs := make([]int, len(r.Segments))
	for i, s := range r.Segments {
		segmentIDs[i] = s.ID
	}

	res := &Result{
		Velocity: flow.NewValueMatrix(intervalIDs, segmentIDs),
		Angle:    flow.NewScalarMatrix(intervalIDs, segmentIDs),
		Fit:      flow.NewScalarMatrix(intervalIDs, segmentIDs),
	}

	units := make([]unit, 0, len(r.Intervals)*len(r.Segments))
	for _, iv := range r.Intervals {
		for _, seg := range r.Segments {
			units = append(units, unit{
				interval: iv,
				segment:  seg,
				length:   seg.LengthMicrons(r.Calc.PixelSize),
			})
		}
	}
	total := len(units)

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}

	var (
		mu       sync.Mutex
		done     int
		firstErr error
		stopOnce sync.Once
	)
	feed := make(chan unit)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		stopOnce.Do(func() { close(stop) })
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range feed {
				if err := r.process(u, res, &mu); err != nil {
					setErr(err)
					return
				}
				// Holding the lock through the callback keeps calls
				// serialized and in ascending done order.
				mu.Lock()
				done++
				if r.Progress != nil {
					r.Progress(done, total)
				}
				mu.Unlock()
			}
		}()
	}

feedLoop:
	for _, u := range units {
		// Cancellation wins over a ready worker.
		select {
		case <-ctx.Done():
			setErr(ctx.Err())
			break feedLoop
		case <-stop:
			break feedLoop
		default:
		}
		select {
		case <-ctx.Done():
			setErr(ctx.Err())
			break feedLoop
		case <-stop:
			break feedLoop
		case feed <- u:
		}
	}
	close(feed)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	diagf("run complete: %d units, %d anomalies", total, len(res.Anomalies))
	return res, nil
}

// process handles one (interval, segment) unit to completion.
func (r *Runner) process(u unit, res *Result, mu *sync.Mutex) error {
	kymo, err := flow.BuildKymograph(r.Video, u.segment, u.interval)
	if err != nil {
		return err
	}

	orient, err := r.Estimator.Estimate(kymo)
	if err != nil {
		return fmt.Errorf("estimate segment %d interval %d: %w", u.segment.ID, u.interval.ID, err)
	}

	// Angle and fit are recorded even when the velocity cell becomes a
	// sentinel; the scalar matrices carry the raw estimator output.
	res.Angle.Set(u.interval.ID, u.segment.ID, orient.AngleRadians)
	res.Fit.Set(u.interval.ID, u.segment.ID, orient.FitGoodness)

	value, anomaly := r.Calc.Evaluate(orient.AngleRadians, u.length, u.segment.ID, u.interval.ID)
	res.Velocity.Set(u.interval.ID, u.segment.ID, value)

	if anomaly != nil {
		mu.Lock()
		res.Anomalies = append(res.Anomalies, *anomaly)
		mu.Unlock()
		opsf("anomaly recovered to out-of-range: %s", anomaly)
	} else {
		diagf("segment %d interval %d: %s", u.segment.ID, u.interval.ID, value)
	}
	return nil
}

func (r *Runner) validate() error {
	if r.Video == nil {
		return fmt.Errorf("runner: no video source")
	}
	if r.Estimator == nil {
		return fmt.Errorf("runner: no orientation estimator")
	}
	if len(r.Segments) == 0 {
		return fmt.Errorf("runner: empty segment catalog")
	}
	if len(r.Intervals) == 0 {
		return fmt.Errorf("runner: empty interval catalog")
	}
	if r.Calc.PixelSize <= 0 {
		return fmt.Errorf("runner: pixel size must be positive, got %v", r.Calc.PixelSize)
	}
	if r.Calc.FrameRate <= 0 {
		return fmt.Errorf("runner: frame rate must be positive, got %v", r.Calc.FrameRate)
	}
	return flow.ValidateIntervals(r.Intervals, r.Video.FrameCount())
}
