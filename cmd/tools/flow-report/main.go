// Command flow-report rebuilds the HTML velocity report from persisted
// matrix and catalog files, without re-running the pipeline.
package main

import (
	"flag"
	"log"

	"github.com/microflow-data/vessel.report/internal/flow"
	"github.com/microflow-data/vessel.report/internal/flow/matrixio"
	"github.com/microflow-data/vessel.report/internal/flow/monitor"
	"github.com/microflow-data/vessel.report/internal/fsutil"
	"github.com/microflow-data/vessel.report/internal/units"
)

var (
	matrixPath    = flag.String("matrix", "velocity.txt", "Persisted velocity matrix")
	intervalsPath = flag.String("intervals", "intervals.txt", "Interval catalog the matrix was written against")
	outPath       = flag.String("out", "report.html", "Report output path")
	maxPlotSpeed  = flag.Float64("max-plot-speed", 1000, "Speed mapped to the top of the color scale (um/s)")
	displayUnits  = flag.String("units", units.UMPS, "Report display units ("+units.GetValidUnitsString()+")")
)

func main() {
	flag.Parse()

	if !units.IsValid(*displayUnits) {
		log.Fatalf("flow-report: -units %q invalid (want %s)", *displayUnits, units.GetValidUnitsString())
	}

	intervals, err := flow.LoadIntervals(*intervalsPath)
	if err != nil {
		log.Fatalf("flow-report: %v", err)
	}

	m, names, err := matrixio.ReadValueMatrix(fsutil.OSFileSystem{}, *matrixPath, intervals)
	if err != nil {
		log.Fatalf("flow-report: %v", err)
	}

	// The matrix file carries only segment names; synthesize catalog entries
	// with matching column ids for the report.
	segments := make([]flow.Segment, len(names))
	for i, name := range names {
		segments[i] = flow.Segment{ID: i + 1, Name: name}
	}

	if err := monitor.WriteReportFile(fsutil.OSFileSystem{}, *outPath, m, segments, *maxPlotSpeed, *displayUnits); err != nil {
		log.Fatalf("flow-report: %v", err)
	}
	log.Printf("wrote %s", *outPath)
}
