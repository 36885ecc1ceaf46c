// Package render turns a velocity matrix and segment geometry into the
// spatial map: one color/arrow-coded raster frame per interval at video
// dimensions.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/microflow-data/vessel.report/internal/flow"
)

// arrowBracket is the fixed sample offset on either side of the polyline
// midpoint used to anchor the direction arrow. The anchor approximates the
// midpoint rather than computing an exact geometric center; downstream
// visual output depends on this exact bracketing.
const arrowBracket = 8

// Config carries the rendering parameters for one run.
type Config struct {
	MaxPlotSpeed  float64 // µm/s mapped to the top LUT entry
	LineThickness float64 // segment stroke width, px
	ArrowSize     float64 // arrowhead edge length, px
	ArrowCutoff   float64 // no arrow when |velocity| <= this, µm/s
	Background    color.RGBA
}

// Renderer draws spatial map frames. Construct one per run; it is safe for
// concurrent RenderInterval calls because each call owns its drawing
// context.
type Renderer struct {
	cfg    Config
	lut    ColorLUT
	width  int
	height int
}

// NewRenderer builds a renderer for the given video dimensions.
func NewRenderer(cfg Config, lut ColorLUT, width, height int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("render dimensions %dx%d invalid", width, height)
	}
	if cfg.MaxPlotSpeed <= 0 {
		return nil, fmt.Errorf("max plot speed must be positive, got %v", cfg.MaxPlotSpeed)
	}
	return &Renderer{cfg: cfg, lut: lut, width: width, height: height}, nil
}

// RenderInterval produces the frame for one interval. Segments are drawn in
// catalog order; later segments overpaint shared pixels of earlier ones,
// which byte-exact reproduction depends on. Sentinel cells draw nothing.
func (r *Renderer) RenderInterval(m *flow.ValueMatrix, intervalID int, segments []flow.Segment) (*image.RGBA, error) {
	dc := gg.NewContext(r.width, r.height)
	dc.SetColor(r.cfg.Background)
	dc.Clear()

	for _, seg := range segments {
		v, ok := m.At(intervalID, seg.ID)
		if !ok {
			return nil, flow.Rangef("no cell for interval %d segment %d", intervalID, seg.ID)
		}
		if v.IsSentinel() {
			continue
		}
		r.drawSegment(dc, seg, v.Speed)
	}

	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("drawing context yielded %T, expected *image.RGBA", dc.Image())
	}
	return img, nil
}

func (r *Renderer) drawSegment(dc *gg.Context, seg flow.Segment, velocity float64) {
	speed := math.Min(math.Abs(velocity), r.cfg.MaxPlotSpeed)
	c := r.lut[r.lut.Index(speed, r.cfg.MaxPlotSpeed)]

	dc.SetColor(c)
	dc.SetLineWidth(r.cfg.LineThickness)
	dc.SetLineCapRound()

	samples := seg.ResamplePoints(flow.KymographSampleSpacing)
	dc.MoveTo(samples[0].X, samples[0].Y)
	for _, p := range samples[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()

	mid := len(samples) / 2
	pre := samples[clampIndex(mid-arrowBracket, len(samples))]
	post := samples[clampIndex(mid+arrowBracket, len(samples))]

	switch {
	case velocity > r.cfg.ArrowCutoff:
		r.drawArrow(dc, pre, post, c)
	case velocity < -r.cfg.ArrowCutoff:
		r.drawArrow(dc, post, pre, c)
	}
}

// drawArrow draws a shaft from tail to tip with a two-stroke arrowhead.
func (r *Renderer) drawArrow(dc *gg.Context, tail, tip flow.Point, c color.RGBA) {
	dc.SetColor(c)
	dc.SetLineWidth(r.cfg.LineThickness)
	dc.DrawLine(tail.X, tail.Y, tip.X, tip.Y)
	dc.Stroke()

	theta := math.Atan2(tip.Y-tail.Y, tip.X-tail.X)
	const barb = 5 * math.Pi / 6 // barb angle relative to shaft direction
	for _, a := range []float64{theta + barb, theta - barb} {
		dc.DrawLine(tip.X, tip.Y, tip.X+r.cfg.ArrowSize*math.Cos(a), tip.Y+r.cfg.ArrowSize*math.Sin(a))
		dc.Stroke()
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
