package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microflow-data/vessel.report/internal/flow"
	"github.com/microflow-data/vessel.report/internal/fsutil"
	"github.com/microflow-data/vessel.report/internal/units"
)

func reportFixture() (*flow.ValueMatrix, []flow.Segment) {
	m := flow.NewValueMatrix([]int{1, 2}, []int{1, 2})
	m.Set(1, 1, flow.Numeric(120))
	m.Set(1, 2, flow.TooShort)
	m.Set(2, 1, flow.Numeric(-80))
	m.Set(2, 2, flow.OutOfRange)
	segments := []flow.Segment{
		{ID: 1, Name: "arteriole_a"},
		{ID: 2, Name: "capillary_b"},
	}
	return m, segments
}

func TestWriteReport(t *testing.T) {
	t.Parallel()

	m, segments := reportFixture()
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, m, segments, 1000, units.UMPS))

	html := buf.String()
	assert.Contains(t, html, "arteriole_a")
	assert.Contains(t, html, "capillary_b")
	assert.Contains(t, html, "µm/s")
}

func TestWriteReportConvertsUnits(t *testing.T) {
	t.Parallel()

	m, segments := reportFixture()
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, m, segments, 1000, units.MMPS))

	html := buf.String()
	assert.Contains(t, html, "mm/s")
	assert.NotContains(t, html, "µm/s")
}

func TestWriteReportFileBacksUpPrior(t *testing.T) {
	t.Parallel()

	m, segments := reportFixture()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("out/report.html", []byte("previous report"), 0644))

	require.NoError(t, WriteReportFile(fsys, "out/report.html", m, segments, 1000, units.UMPS))

	bak, err := fsys.ReadFile("out/report.html" + fsutil.BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, "previous report", string(bak))

	cur, err := fsys.ReadFile("out/report.html")
	require.NoError(t, err)
	assert.Contains(t, string(cur), "arteriole_a")
}

func TestGeneratePlotBacksUpPrior(t *testing.T) {
	t.Parallel()

	m, segments := reportFixture()
	fsys := fsutil.NewMemoryFileSystem()
	out := filepath.Join("plots", "velocity_trends.png")
	require.NoError(t, fsys.WriteFile(out, []byte("previous plot"), 0644))

	sp := &SegmentPlotter{OutputDir: "plots", FS: fsys}
	require.NoError(t, sp.GeneratePlot(m, segments))

	bak, err := fsys.ReadFile(out + fsutil.BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, "previous plot", string(bak))

	cur, err := fsys.ReadFile(out)
	require.NoError(t, err)
	assert.NotEmpty(t, cur)
	assert.NotEqual(t, "previous plot", string(cur))
}

func TestGeneratePlotWritesPNG(t *testing.T) {
	t.Parallel()

	m, segments := reportFixture()
	dir := t.TempDir()
	sp := &SegmentPlotter{OutputDir: dir}
	require.NoError(t, sp.GeneratePlot(m, segments))

	info, err := os.Stat(filepath.Join(dir, "velocity_trends.png"))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestGeneratePlotNeedsOutputDir(t *testing.T) {
	t.Parallel()

	m, segments := reportFixture()
	sp := &SegmentPlotter{}
	assert.Error(t, sp.GeneratePlot(m, segments))
}
