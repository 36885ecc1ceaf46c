package flow

import (
	"fmt"
	"math"
)

// VideoMeta carries the acquisition metadata needed to convert pixel-frame
// quantities into physical units.
type VideoMeta struct {
	PixelSizeMicrons float64 // µm per pixel
	FrameRate        float64 // frames per second
}

// VideoSource is the frame-indexable video capability the pipeline consumes.
// Implementations must be safe for concurrent Frame calls: kymographs for
// different segments are built in parallel against the same source.
type VideoSource interface {
	// FrameCount returns the total number of frames available.
	FrameCount() int

	// Bounds returns the frame dimensions in pixels.
	Bounds() (width, height int)

	// Frame returns the grayscale raster for the given 0-based frame index.
	Frame(i int) (*Frame, error)

	// Meta returns the acquisition metadata currently attached to the source.
	Meta() VideoMeta

	// SetMeta attaches acquisition metadata to the source.
	SetMeta(VideoMeta)

	// Close releases any resources held by the source.
	Close() error
}

// Frame is one grayscale video frame. Pix is row-major, Width*Height values
// in the source's native intensity range.
type Frame struct {
	Width  int
	Height int
	Pix    []float64
}

// NewFrame allocates a zero frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the intensity at integer pixel coordinates, zero outside the
// frame bounds.
func (f *Frame) At(x, y int) float64 {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0
	}
	return f.Pix[y*f.Width+x]
}

// Set stores an intensity at integer pixel coordinates; out-of-bounds writes
// are dropped.
func (f *Frame) Set(x, y int, v float64) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	f.Pix[y*f.Width+x] = v
}

// Sample returns the bilinearly interpolated intensity at sub-pixel
// coordinates. Positions outside the frame contribute zero, matching the
// behavior of sampling a traced path that grazes the frame edge.
func (f *Frame) Sample(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	v00 := f.At(x0, y0)
	v10 := f.At(x0+1, y0)
	v01 := f.At(x0, y0+1)
	v11 := f.At(x0+1, y0+1)

	top := v00*(1-fx) + v10*fx
	bottom := v01*(1-fx) + v11*fx
	return top*(1-fy) + bottom*fy
}

// MemVideo is an in-memory VideoSource used by tests and synthetic fixtures.
type MemVideo struct {
	frames []*Frame
	width  int
	height int
	meta   VideoMeta
}

// NewMemVideo builds a MemVideo from pre-rendered frames. All frames must
// share the same dimensions.
func NewMemVideo(frames []*Frame) (*MemVideo, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("mem video needs at least one frame")
	}
	w, h := frames[0].Width, frames[0].Height
	for i, fr := range frames {
		if fr.Width != w || fr.Height != h {
			return nil, fmt.Errorf("frame %d is %dx%d, expected %dx%d", i, fr.Width, fr.Height, w, h)
		}
	}
	return &MemVideo{frames: frames, width: w, height: h}, nil
}

func (m *MemVideo) FrameCount() int          { return len(m.frames) }
func (m *MemVideo) Bounds() (int, int)       { return m.width, m.height }
func (m *MemVideo) Meta() VideoMeta          { return m.meta }
func (m *MemVideo) SetMeta(meta VideoMeta)   { m.meta = meta }
func (m *MemVideo) Close() error             { return nil }

func (m *MemVideo) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(m.frames) {
		return nil, Rangef("frame %d requested from a %d-frame video", i, len(m.frames))
	}
	return m.frames[i], nil
}
