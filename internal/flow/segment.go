package flow

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Point is a pixel coordinate in video frame space. Sub-pixel positions are
// produced by resampling; traced polylines carry integer-valued points.
type Point struct {
	X float64
	Y float64
}

// Segment is one traced vessel polyline. The ID is 1-based and stable across
// every pipeline stage; matrices, plots and reports all refer to segments by
// this ordinal. Segments are immutable once loaded.
type Segment struct {
	ID     int
	Name   string
	Points []Point
}

// PathLengthPixels returns the polyline arc length in pixels.
func (s Segment) PathLengthPixels() float64 {
	var total float64
	for i := 1; i < len(s.Points); i++ {
		dx := s.Points[i].X - s.Points[i-1].X
		dy := s.Points[i].Y - s.Points[i-1].Y
		total += math.Hypot(dx, dy)
	}
	return total
}

// LengthMicrons returns the physical segment length for the given pixel size
// in µm/px.
func (s Segment) LengthMicrons(pixelSizeMicrons float64) float64 {
	return s.PathLengthPixels() * pixelSizeMicrons
}

// ResamplePoints walks the polyline at uniform arc-length steps of the given
// spacing (pixels) and returns the sampled positions, always including the
// first point. The same sample grid is used by the kymograph builder and the
// renderer's arrow anchoring, so both see identical sample indices.
func (s Segment) ResamplePoints(spacing float64) []Point {
	if len(s.Points) == 0 {
		return nil
	}
	if spacing <= 0 {
		spacing = 1
	}

	out := []Point{s.Points[0]}
	remaining := spacing
	for i := 1; i < len(s.Points); i++ {
		a, b := s.Points[i-1], s.Points[i]
		segLen := math.Hypot(b.X-a.X, b.Y-a.Y)
		if segLen == 0 {
			continue
		}
		pos := 0.0
		for remaining <= segLen-pos {
			pos += remaining
			t := pos / segLen
			out = append(out, Point{
				X: a.X + (b.X-a.X)*t,
				Y: a.Y + (b.Y-a.Y)*t,
			})
			remaining = spacing
		}
		remaining -= segLen - pos
	}
	return out
}

// regionContainer matches the externally-owned region file: an ordered list
// of named polylines produced by the tracing step.
type regionContainer struct {
	Regions []struct {
		Name   string      `json:"name"`
		Points [][]float64 `json:"points"`
	} `json:"regions"`
}

// LoadSegments reads the region container at path and returns the segment
// catalog in file order with 1-based ids. Regions with fewer than two points
// are rejected: a single point has no arc length to sample along.
func LoadSegments(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segment file: %w", err)
	}
	return ParseSegments(data)
}

// ParseSegments decodes a region container held in memory.
func ParseSegments(data []byte) ([]Segment, error) {
	var container regionContainer
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, fmt.Errorf("parse segment file: %w", err)
	}
	if len(container.Regions) == 0 {
		return nil, fmt.Errorf("segment file holds no regions")
	}

	segments := make([]Segment, 0, len(container.Regions))
	for i, r := range container.Regions {
		if len(r.Points) < 2 {
			return nil, fmt.Errorf("region %d (%q) has %d points, need at least 2", i+1, r.Name, len(r.Points))
		}
		pts := make([]Point, len(r.Points))
		for j, p := range r.Points {
			if len(p) != 2 {
				return nil, fmt.Errorf("region %d (%q) point %d: expected [x,y], got %d values", i+1, r.Name, j, len(p))
			}
			pts[j] = Point{X: p[0], Y: p[1]}
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("segment_%d", i+1)
		}
		segments = append(segments, Segment{ID: i + 1, Name: name, Points: pts})
	}
	return segments, nil
}
