package monitor

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/microflow-data/vessel.report/internal/flow"
	"github.com/microflow-data/vessel.report/internal/fsutil"
	"github.com/microflow-data/vessel.report/internal/units"
)

// WriteReport renders an HTML report for one run: a velocity heatmap over
// (interval, segment) and a mean-speed bar per segment. Sentinel cells are
// omitted from both charts. Speeds are converted from µm/s to displayUnit.
func WriteReport(w io.Writer, m *flow.ValueMatrix, segments []flow.Segment, maxPlotSpeed float64, displayUnit string) error {
	segNames := make([]string, len(segments))
	for i, s := range segments {
		segNames[i] = s.Name
	}
	intervalIDs := m.IntervalIDs()
	intervalLabels := make([]string, len(intervalIDs))
	for i, id := range intervalIDs {
		intervalLabels[i] = fmt.Sprintf("interval %d", id)
	}

	label := units.Label(displayUnit)

	var heatData []opts.HeatMapData
	sums := make([]float64, len(segments))
	counts := make([]int, len(segments))
	for row, intervalID := range intervalIDs {
		for col, seg := range segments {
			v, ok := m.At(intervalID, seg.ID)
			if !ok || v.IsSentinel() {
				continue
			}
			speed := units.ConvertSpeed(v.Speed, displayUnit)
			heatData = append(heatData, opts.HeatMapData{
				Value: [3]interface{}{col, row, speed},
			})
			sums[col] += math.Abs(speed)
			counts[col]++
		}
	}

	plotCeil := units.ConvertSpeed(maxPlotSpeed, displayUnit)
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Velocity matrix (%s)", label)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: segNames}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: intervalLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(-plotCeil),
			Max:        float32(plotCeil),
		}),
	)
	hm.AddSeries("velocity", heatData)

	barData := make([]opts.BarData, len(segments))
	for i := range segments {
		if counts[i] > 0 {
			barData[i] = opts.BarData{Value: sums[i] / float64(counts[i])}
		} else {
			barData[i] = opts.BarData{Value: 0}
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Mean |velocity| per segment (%s)", label)}),
	)
	bar.SetXAxis(segNames).AddSeries("mean speed", barData)

	page := components.NewPage()
	page.AddCharts(hm, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteReportFile renders the report to path, preserving any prior report
// under the backup suffix first.
func WriteReportFile(fsys fsutil.FileSystem, path string, m *flow.ValueMatrix, segments []flow.Segment, maxPlotSpeed float64, displayUnit string) error {
	var buf bytes.Buffer
	if err := WriteReport(&buf, m, segments, maxPlotSpeed, displayUnit); err != nil {
		return err
	}
	return fsutil.BackupThenWrite(fsys, path, buf.Bytes(), 0644)
}
