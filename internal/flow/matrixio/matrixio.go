// Package matrixio persists velocity, angle and fit matrices as delimited
// text: a header comment row naming each segment column, then one row per
// interval with comma-separated cells. Numeric cells carry exactly two
// decimal digits; sentinel cells carry the literal tokens "short" and "out".
package matrixio

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/microflow-data/vessel.report/internal/flow"
	"github.com/microflow-data/vessel.report/internal/fsutil"
)

const (
	tokenShort = "short"
	tokenOut   = "out"
)

// FormatValueMatrix serializes a velocity matrix. Rows follow ascending
// interval order, columns ascending segment order, matching the in-memory
// layout.
func FormatValueMatrix(m *flow.ValueMatrix, segments []flow.Segment) []byte {
	var b bytes.Buffer
	writeHeader(&b, segments)
	for _, intervalID := range m.IntervalIDs() {
		row, _ := m.Row(intervalID)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// FormatScalarMatrix serializes an angle or fit matrix. Cells that were
// never set (NaN) serialize as the out-of-range token so the file stays
// machine-parseable.
func FormatScalarMatrix(m *flow.ScalarMatrix, segments []flow.Segment) []byte {
	var b bytes.Buffer
	writeHeader(&b, segments)
	for _, intervalID := range m.IntervalIDs() {
		row, _ := m.Row(intervalID)
		cells := make([]string, len(row))
		for i, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				cells[i] = tokenOut
			} else {
				cells[i] = fmt.Sprintf("%.2f", v)
			}
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func writeHeader(b *bytes.Buffer, segments []flow.Segment) {
	names := make([]string, len(segments))
	for i, s := range segments {
		names[i] = s.Name
	}
	fmt.Fprintf(b, "// %s\n", strings.Join(names, ","))
}

// WriteValueMatrix persists a velocity matrix to path, preserving any prior
// file under the backup suffix first.
func WriteValueMatrix(fsys fsutil.FileSystem, path string, m *flow.ValueMatrix, segments []flow.Segment) error {
	return fsutil.BackupThenWrite(fsys, path, FormatValueMatrix(m, segments), 0644)
}

// WriteScalarMatrix persists an angle or fit matrix to path with the same
// backup behavior.
func WriteScalarMatrix(fsys fsutil.FileSystem, path string, m *flow.ScalarMatrix, segments []flow.Segment) error {
	return fsutil.BackupThenWrite(fsys, path, FormatScalarMatrix(m, segments), 0644)
}

// ReadValueMatrix parses a persisted velocity matrix. The interval catalog
// fixes the expected row count; a mismatch is a RangeError because the file
// no longer corresponds to the catalog it was written against.
func ReadValueMatrix(fsys fsutil.FileSystem, path string, intervals []flow.Interval) (*flow.ValueMatrix, []string, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read matrix %s: %w", path, err)
	}

	names, rows, err := parseRows(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(rows) != len(intervals) {
		return nil, nil, flow.Rangef("%s holds %d rows but the interval catalog has %d intervals",
			path, len(rows), len(intervals))
	}

	intervalIDs := make([]int, len(intervals))
	for i, iv := range intervals {
		intervalIDs[i] = iv.ID
	}
	segmentIDs := make([]int, len(names))
	for i := range names {
		segmentIDs[i] = i + 1
	}

	m := flow.NewValueMatrix(intervalIDs, segmentIDs)
	for r, cells := range rows {
		if len(cells) != len(names) {
			return nil, nil, flow.Rangef("%s row %d holds %d cells but the header names %d segments",
				path, r+1, len(cells), len(names))
		}
		for c, cell := range cells {
			v, err := parseCell(cell)
			if err != nil {
				return nil, nil, fmt.Errorf("%s row %d: %w", path, r+1, err)
			}
			m.Set(intervalIDs[r], segmentIDs[c], v)
		}
	}
	return m, names, nil
}

// NumericRow extracts one interval row as pure numbers. Hitting a sentinel
// is an IntegrityError identifying the offending row: the caller declared it
// needs numeric values and the file cannot supply them.
func NumericRow(m *flow.ValueMatrix, path string, intervalID int) ([]float64, error) {
	row, ok := m.Row(intervalID)
	if !ok {
		return nil, flow.Rangef("interval %d is not a row of %s", intervalID, path)
	}
	out := make([]float64, len(row))
	for i, v := range row {
		if v.IsSentinel() {
			return nil, &flow.IntegrityError{Path: path, Row: intervalID, Token: v.String()}
		}
		out[i] = v.Speed
	}
	return out, nil
}

func parseRows(data []byte) (names []string, rows [][]string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	sawHeader := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "//") {
			if !sawHeader {
				names = splitTrim(strings.TrimSpace(strings.TrimPrefix(line, "//")))
				sawHeader = true
			}
			continue
		}
		rows = append(rows, splitTrim(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if !sawHeader {
		return nil, nil, fmt.Errorf("missing header comment row")
	}
	return names, rows, nil
}

func splitTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseCell(cell string) (flow.Value, error) {
	switch cell {
	case tokenShort:
		return flow.TooShort, nil
	case tokenOut:
		return flow.OutOfRange, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return flow.Value{}, fmt.Errorf("bad cell %q", cell)
	}
	return flow.Numeric(f), nil
}
