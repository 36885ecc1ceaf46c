// Command flowmap runs the full flow-speed pipeline: kymograph building,
// orientation estimation, velocity calculation, matrix persistence and
// spatial map rendering, driven by a single parameter file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/microflow-data/vessel.report/internal/flow"
	"github.com/microflow-data/vessel.report/internal/flow/matrixio"
	"github.com/microflow-data/vessel.report/internal/flow/monitor"
	"github.com/microflow-data/vessel.report/internal/flow/pipeline"
	"github.com/microflow-data/vessel.report/internal/flow/render"
	storesqlite "github.com/microflow-data/vessel.report/internal/flow/storage/sqlite"
	"github.com/microflow-data/vessel.report/internal/fsutil"
	"github.com/microflow-data/vessel.report/internal/units"
	"github.com/microflow-data/vessel.report/internal/version"
)

var (
	paramsPath  = flag.String("params", "", "Parameter file (key,value,description lines)")
	workers     = flag.Int("workers", 1, "Concurrent (interval, segment) units; 1 reproduces sequential reference behavior")
	dbPath      = flag.String("db", "", "Optional run database; persists the run, velocities and anomalies")
	report      = flag.Bool("report", false, "Write an HTML report next to the matrices")
	reportUnits = flag.String("report-units", units.UMPS, "Report display units ("+units.GetValidUnitsString()+")")
	plots       = flag.Bool("plots", false, "Write velocity trend plots next to the matrices")
	template    = flag.Bool("template", false, "Print a parameter file template and exit")
	verbose     = flag.Bool("v", false, "Log per-unit diagnostics")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("flowmap %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *template {
		os.Stdout.Write(flow.FormatTemplate())
		return
	}
	if !units.IsValid(*reportUnits) {
		log.Fatalf("flowmap: -report-units %q invalid (want %s)", *reportUnits, units.GetValidUnitsString())
	}
	if *paramsPath == "" {
		log.Fatal("flowmap: -params is required (use -template to generate one)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("flowmap: %v", err)
	}
}

func run(ctx context.Context) error {
	params, err := flow.LoadParams(*paramsPath)
	if err != nil {
		return err
	}

	videoDir, err := params.Path("video_dir")
	if err != nil {
		return err
	}
	segmentsFile, err := params.Path("segments_file")
	if err != nil {
		return err
	}
	intervalsFile, err := params.Path("intervals_file")
	if err != nil {
		return err
	}
	outputDir, err := params.String("output_dir")
	if err != nil {
		return err
	}

	calc, err := loadCalculator(params)
	if err != nil {
		return err
	}
	renderCfg, lutName, err := loadRenderConfig(params)
	if err != nil {
		return err
	}
	estimatorName, err := params.String("estimator")
	if err != nil {
		return err
	}
	estimator, err := flow.NewEstimator(estimatorName)
	if err != nil {
		return err
	}
	lut, err := render.NewLUT(lutName)
	if err != nil {
		return err
	}

	video, err := flow.OpenDirVideo(videoDir)
	if err != nil {
		return err
	}
	defer video.Close()
	video.SetMeta(flow.VideoMeta{PixelSizeMicrons: calc.PixelSize, FrameRate: calc.FrameRate})

	segments, err := flow.LoadSegments(segmentsFile)
	if err != nil {
		return err
	}
	intervals, err := flow.LoadIntervals(intervalsFile)
	if err != nil {
		return err
	}
	log.Printf("loaded %d segments, %d intervals, %d frames", len(segments), len(intervals), video.FrameCount())

	if *verbose {
		pipeline.SetLogWriters(os.Stderr, os.Stderr)
	} else {
		pipeline.SetLogWriters(os.Stderr, nil)
	}

	runner := &pipeline.Runner{
		Video:     video,
		Segments:  segments,
		Intervals: intervals,
		Estimator: estimator,
		Calc:      calc,
		Workers:   *workers,
		Progress: func(done, total int) {
			if done == total || done%25 == 0 {
				log.Printf("progress: %d/%d units", done, total)
			}
		},
	}
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	for _, a := range result.Anomalies {
		log.Printf("anomaly: %s", a)
	}

	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := matrixio.WriteValueMatrix(fsys, filepath.Join(outputDir, "velocity.txt"), result.Velocity, segments); err != nil {
		return err
	}
	if err := matrixio.WriteScalarMatrix(fsys, filepath.Join(outputDir, "angle.txt"), result.Angle, segments); err != nil {
		return err
	}
	if err := matrixio.WriteScalarMatrix(fsys, filepath.Join(outputDir, "fit.txt"), result.Fit, segments); err != nil {
		return err
	}

	width, height := video.Bounds()
	renderer, err := render.NewRenderer(renderCfg, lut, width, height)
	if err != nil {
		return err
	}
	frames := make([]*image.RGBA, 0, len(intervals))
	for _, iv := range intervals {
		frame, err := renderer.RenderInterval(result.Velocity, iv.ID, segments)
		if err != nil {
			return err
		}
		frames = append(frames, frame)
	}
	if err := render.WriteStack(fsys, filepath.Join(outputDir, "spatial_map.tif"), frames); err != nil {
		return err
	}
	if err := render.WriteFrames(fsys, filepath.Join(outputDir, "frames"), frames); err != nil {
		return err
	}
	log.Printf("wrote matrices and %d spatial map frames to %s", len(frames), outputDir)

	if *dbPath != "" {
		if err := persistRun(params, estimator.Name(), videoDir, result); err != nil {
			return err
		}
	}
	if *plots {
		sp := &monitor.SegmentPlotter{OutputDir: outputDir, FS: fsys}
		if err := sp.GeneratePlot(result.Velocity, segments); err != nil {
			return err
		}
	}
	if *report {
		reportPath := filepath.Join(outputDir, "report.html")
		if err := monitor.WriteReportFile(fsys, reportPath, result.Velocity, segments, renderCfg.MaxPlotSpeed, *reportUnits); err != nil {
			return err
		}
	}
	return nil
}

func loadCalculator(params *flow.ParamTable) (flow.Calculator, error) {
	var calc flow.Calculator
	var err error
	if calc.FrameRate, err = params.Float("frame_rate_fps"); err != nil {
		return calc, err
	}
	if calc.PixelSize, err = params.Float("pixel_size_um"); err != nil {
		return calc, err
	}
	if calc.MinSegmentLength, err = params.Float("min_segment_length_um"); err != nil {
		return calc, err
	}
	if calc.MaxMeasuredSpeed, err = params.Float("max_measured_speed"); err != nil {
		return calc, err
	}
	return calc, nil
}

func loadRenderConfig(params *flow.ParamTable) (render.Config, string, error) {
	var cfg render.Config
	var err error
	if cfg.MaxPlotSpeed, err = params.Float("max_plot_speed"); err != nil {
		return cfg, "", err
	}
	if cfg.LineThickness, err = params.Float("line_thickness"); err != nil {
		return cfg, "", err
	}
	if cfg.ArrowSize, err = params.Float("arrow_size"); err != nil {
		return cfg, "", err
	}
	if cfg.ArrowCutoff, err = params.Float("arrow_cutoff"); err != nil {
		return cfg, "", err
	}
	bg, err := params.String("background_color")
	if err != nil {
		return cfg, "", err
	}
	if cfg.Background, err = parseRGB(bg); err != nil {
		return cfg, "", err
	}
	lutName, err := params.String("lut_name")
	if err != nil {
		return cfg, "", err
	}
	return cfg, lutName, nil
}

// parseRGB parses "R,G,B" byte triples.
func parseRGB(s string) (color.RGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("background_color: expected R,G,B, got %q", s)
	}
	var vals [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("background_color: bad component %q", p)
		}
		vals[i] = uint8(n)
	}
	return color.RGBA{R: vals[0], G: vals[1], B: vals[2], A: 255}, nil
}

func persistRun(params *flow.ParamTable, estimatorName, videoDir string, result *pipeline.Result) error {
	db, err := storesqlite.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	paramsJSON, err := json.Marshal(params.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	store := storesqlite.NewRunStore(db)
	run := &storesqlite.Run{
		VideoPath:  videoDir,
		Estimator:  estimatorName,
		ParamsJSON: paramsJSON,
	}
	if err := store.InsertRun(run); err != nil {
		return err
	}
	if err := store.InsertVelocities(run.RunID, result.Velocity); err != nil {
		return err
	}
	if err := store.InsertAnomalies(run.RunID, result.Anomalies); err != nil {
		return err
	}
	log.Printf("persisted run %s", run.RunID)
	return nil
}
