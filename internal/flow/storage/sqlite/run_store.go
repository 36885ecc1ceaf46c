package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/microflow-data/vessel.report/internal/flow"
)

// Run is one persisted analysis session: where the video came from, which
// estimator was used, and the parameters in effect.
type Run struct {
	RunID      string          `json:"run_id"`
	CreatedAt  int64           `json:"created_at"`
	VideoPath  string          `json:"video_path"`
	Estimator  string          `json:"estimator"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`
}

// RunStore provides persistence for analysis runs and their outputs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore over an open database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun persists a run record. If RunID is empty a UUID is generated.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var paramsStr any
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	_, err := s.db.Exec(`
		INSERT INTO flow_runs (run_id, created_at, video_path, estimator, params_json)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt, run.VideoPath, run.Estimator, paramsStr)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// InsertVelocities persists every cell of a velocity matrix for a run.
// Sentinel cells store their token as kind with a NULL speed.
func (s *RunStore) InsertVelocities(runID string, m *flow.ValueMatrix) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin velocities tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO flow_velocities (run_id, interval_id, segment_id, kind, speed)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare velocities: %w", err)
	}
	defer stmt.Close()

	for _, intervalID := range m.IntervalIDs() {
		for _, segmentID := range m.SegmentIDs() {
			v, ok := m.At(intervalID, segmentID)
			if !ok {
				continue
			}
			var speed any
			kind := v.String()
			if !v.IsSentinel() {
				kind = "numeric"
				speed = v.Speed
			}
			if _, err := stmt.Exec(runID, intervalID, segmentID, kind, speed); err != nil {
				return fmt.Errorf("insert velocity (%d,%d): %w", intervalID, segmentID, err)
			}
		}
	}
	return tx.Commit()
}

// InsertAnomalies persists the diagnostic records recovered during a run.
func (s *RunStore) InsertAnomalies(runID string, anomalies []flow.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin anomalies tx: %w", err)
	}
	defer tx.Rollback()

	for _, a := range anomalies {
		// NaN is the common raw angle here; store it as NULL.
		var raw any
		if !math.IsNaN(a.RawAngle) && !math.IsInf(a.RawAngle, 0) {
			raw = a.RawAngle
		}
		if _, err := tx.Exec(`
			INSERT INTO flow_anomalies (run_id, interval_id, segment_id, raw_angle)
			VALUES (?, ?, ?, ?)`,
			runID, a.IntervalID, a.SegmentID, raw); err != nil {
			return fmt.Errorf("insert anomaly: %w", err)
		}
	}
	return tx.Commit()
}

// GetRun returns a run by id.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, created_at, video_path, estimator, params_json
		FROM flow_runs WHERE run_id = ?`, runID)

	var r Run
	var params sql.NullString
	if err := row.Scan(&r.RunID, &r.CreatedAt, &r.VideoPath, &r.Estimator, &params); err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *RunStore) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_at, video_path, estimator, params_json
		FROM flow_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var params sql.NullString
		if err := rows.Scan(&r.RunID, &r.CreatedAt, &r.VideoPath, &r.Estimator, &params); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if params.Valid {
			r.ParamsJSON = json.RawMessage(params.String)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// ListAnomalies returns the anomaly records of a run.
func (s *RunStore) ListAnomalies(runID string) ([]flow.Anomaly, error) {
	rows, err := s.db.Query(`
		SELECT interval_id, segment_id, raw_angle
		FROM flow_anomalies WHERE run_id = ?
		ORDER BY interval_id, segment_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	var out []flow.Anomaly
	for rows.Next() {
		var a flow.Anomaly
		var raw sql.NullFloat64
		if err := rows.Scan(&a.IntervalID, &a.SegmentID, &raw); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		if raw.Valid {
			a.RawAngle = raw.Float64
		} else {
			a.RawAngle = math.NaN()
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
