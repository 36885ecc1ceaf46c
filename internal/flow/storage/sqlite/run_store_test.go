package sqlite

import (
	"database/sql"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microflow-data/vessel.report/internal/flow"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndGetRun(t *testing.T) {
	t.Parallel()

	store := NewRunStore(openTestDB(t))

	run := &Run{
		VideoPath:  "/data/session_07/frames",
		Estimator:  "standard",
		ParamsJSON: json.RawMessage(`{"pixel_size_um":"0.5"}`),
	}
	require.NoError(t, store.InsertRun(run))
	assert.NotEmpty(t, run.RunID, "missing id is generated")
	assert.NotZero(t, run.CreatedAt)

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, "/data/session_07/frames", got.VideoPath)
	assert.Equal(t, "standard", got.Estimator)
	assert.JSONEq(t, `{"pixel_size_um":"0.5"}`, string(got.ParamsJSON))
}

func TestGetRunMissing(t *testing.T) {
	t.Parallel()

	store := NewRunStore(openTestDB(t))
	_, err := store.GetRun("no-such-run")
	assert.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewRunStore(openTestDB(t))
	require.NoError(t, store.InsertRun(&Run{RunID: "older", CreatedAt: 100, VideoPath: "a", Estimator: "standard"}))
	require.NoError(t, store.InsertRun(&Run{RunID: "newer", CreatedAt: 200, VideoPath: "b", Estimator: "flicker"}))

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].RunID)
	assert.Equal(t, "older", runs[1].RunID)
	assert.Nil(t, runs[0].ParamsJSON, "absent params stay nil")
}

func TestInsertVelocities(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := NewRunStore(db)
	require.NoError(t, store.InsertRun(&Run{RunID: "run-1", VideoPath: "v", Estimator: "standard"}))

	m := flow.NewValueMatrix([]int{1, 2}, []int{1, 2})
	m.Set(1, 1, flow.Numeric(15))
	m.Set(1, 2, flow.TooShort)
	m.Set(2, 1, flow.OutOfRange)
	m.Set(2, 2, flow.Numeric(-3.5))
	require.NoError(t, store.InsertVelocities("run-1", m))

	var kind string
	var speed sql.NullFloat64

	row := db.QueryRow(`SELECT kind, speed FROM flow_velocities WHERE run_id = 'run-1' AND interval_id = 1 AND segment_id = 1`)
	require.NoError(t, row.Scan(&kind, &speed))
	assert.Equal(t, "numeric", kind)
	require.True(t, speed.Valid)
	assert.Equal(t, 15.0, speed.Float64)

	row = db.QueryRow(`SELECT kind, speed FROM flow_velocities WHERE run_id = 'run-1' AND interval_id = 1 AND segment_id = 2`)
	require.NoError(t, row.Scan(&kind, &speed))
	assert.Equal(t, "short", kind)
	assert.False(t, speed.Valid, "sentinel speed is NULL")

	row = db.QueryRow(`SELECT kind, speed FROM flow_velocities WHERE run_id = 'run-1' AND interval_id = 2 AND segment_id = 1`)
	require.NoError(t, row.Scan(&kind, &speed))
	assert.Equal(t, "out", kind)
	assert.False(t, speed.Valid)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM flow_velocities`).Scan(&count))
	assert.Equal(t, 4, count)
}

func TestInsertVelocitiesSkipsUnfilledCells(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	store := NewRunStore(db)
	require.NoError(t, store.InsertRun(&Run{RunID: "run-2", VideoPath: "v", Estimator: "standard"}))

	m := flow.NewValueMatrix([]int{1}, []int{1, 2})
	m.Set(1, 1, flow.Numeric(1))
	require.NoError(t, store.InsertVelocities("run-2", m))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM flow_velocities WHERE run_id = 'run-2'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestInsertAndListAnomalies(t *testing.T) {
	t.Parallel()

	store := NewRunStore(openTestDB(t))
	require.NoError(t, store.InsertRun(&Run{RunID: "run-3", VideoPath: "v", Estimator: "standard"}))

	anomalies := []flow.Anomaly{
		{SegmentID: 2, IntervalID: 1, RawAngle: math.NaN()},
		{SegmentID: 1, IntervalID: 3, RawAngle: 0.25},
	}
	require.NoError(t, store.InsertAnomalies("run-3", anomalies))

	got, err := store.ListAnomalies("run-3")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Ordered by interval then segment.
	assert.Equal(t, 1, got[0].IntervalID)
	assert.Equal(t, 2, got[0].SegmentID)
	assert.True(t, math.IsNaN(got[0].RawAngle), "NULL raw angle reads back as NaN")

	assert.Equal(t, 3, got[1].IntervalID)
	assert.Equal(t, 1, got[1].SegmentID)
	assert.Equal(t, 0.25, got[1].RawAngle)
}

func TestInsertAnomaliesEmpty(t *testing.T) {
	t.Parallel()

	store := NewRunStore(openTestDB(t))
	assert.NoError(t, store.InsertAnomalies("anything", nil))
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening an already-migrated database must not fail.
	db, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}
