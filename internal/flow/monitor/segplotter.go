// Package monitor produces post-run diagnostics: velocity trend plots and
// an HTML report. Nothing here feeds back into the quantitative pipeline.
package monitor

import (
	"bytes"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/microflow-data/vessel.report/internal/flow"
	"github.com/microflow-data/vessel.report/internal/flow/render"
	"github.com/microflow-data/vessel.report/internal/fsutil"
)

// SegmentPlotter renders per-segment velocity trends across intervals as a
// PNG after a run. A nil FS writes through the OS filesystem.
type SegmentPlotter struct {
	OutputDir string
	FS        fsutil.FileSystem
}

// GeneratePlot writes velocity_trends.png: one line per segment, interval id
// on the x axis, velocity on the y axis. Sentinel cells are dropped from the
// line; a segment with no numeric cells is left off the plot entirely.
func (sp *SegmentPlotter) GeneratePlot(m *flow.ValueMatrix, segments []flow.Segment) error {
	if sp.OutputDir == "" {
		return fmt.Errorf("no output directory configured")
	}
	fsys := sp.FS
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if err := fsys.MkdirAll(sp.OutputDir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Segment velocity across intervals"
	p.X.Label.Text = "Interval"
	p.Y.Label.Text = "Velocity (um/s)"

	lut, err := render.NewLUT("spectrum")
	if err != nil {
		return err
	}

	intervalIDs := m.IntervalIDs()
	for i, seg := range segments {
		pts := make(plotter.XYs, 0, len(intervalIDs))
		for _, intervalID := range intervalIDs {
			v, ok := m.At(intervalID, seg.ID)
			if !ok || v.IsSentinel() {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(intervalID), Y: v.Speed})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("segment %d line: %w", seg.ID, err)
		}
		line.Color = lut[(i*256/len(segments))%256]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(seg.Name, line)
	}

	p.Legend.Top = true
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	// Render to memory first so an existing plot survives under the backup
	// suffix like every other artifact.
	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render trend plot: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("render trend plot: %w", err)
	}

	out := filepath.Join(sp.OutputDir, "velocity_trends.png")
	if err := fsutil.BackupThenWrite(fsys, out, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save trend plot: %w", err)
	}
	return nil
}
