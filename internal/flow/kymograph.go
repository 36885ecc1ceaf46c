package flow

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// KymographSampleSpacing is the arc-length step, in pixels, between adjacent
// kymograph columns. One-pixel spacing keeps the raster at the native
// resolution of the traced path.
const KymographSampleSpacing = 1.0

// Kymograph is the transient space-time raster for one (segment, interval)
// pair. Rows are frames of the interval in order; columns are arc-length
// samples along the segment, so one column is always the same physical
// position. Built per pair and discarded after estimation.
type Kymograph struct {
	SegmentID  int
	IntervalID int

	// Data has FrameCount rows and sample-count columns.
	Data *mat.Dense
}

// Rows returns the number of frames in the raster.
func (k *Kymograph) Rows() int {
	r, _ := k.Data.Dims()
	return r
}

// Cols returns the number of arc-length samples in the raster.
func (k *Kymograph) Cols() int {
	_, c := k.Data.Dims()
	return c
}

// BuildKymograph samples the video along the segment's polyline for every
// frame of the interval. The sample grid is computed once from the polyline
// so every row shares identical physical positions. The source is only read,
// never mutated, and only the interval's frames are touched.
func BuildKymograph(src VideoSource, seg Segment, iv Interval) (*Kymograph, error) {
	if iv.End >= src.FrameCount() {
		return nil, Rangef("interval %d covers frames %d-%d but the video has only %d frames",
			iv.ID, iv.Start, iv.End, src.FrameCount())
	}

	samples := seg.ResamplePoints(KymographSampleSpacing)
	if len(samples) < 2 {
		return nil, fmt.Errorf("segment %d resamples to %d positions, need at least 2", seg.ID, len(samples))
	}

	rows := iv.FrameCount()
	data := mat.NewDense(rows, len(samples), nil)
	for row := 0; row < rows; row++ {
		frame, err := src.Frame(iv.Start + row)
		if err != nil {
			return nil, fmt.Errorf("kymograph segment %d interval %d: %w", seg.ID, iv.ID, err)
		}
		for col, p := range samples {
			data.Set(row, col, frame.Sample(p.X, p.Y))
		}
	}

	return &Kymograph{SegmentID: seg.ID, IntervalID: iv.ID, Data: data}, nil
}
