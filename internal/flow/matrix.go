package flow

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ValueMatrix accumulates velocity cells keyed by (interval, segment).
// Rows are intervals in ascending id order, columns segments in ascending id
// order; dimensions are fixed at construction so the final shape is always
// (|intervals|, |segments|) no matter what order cells arrive in. Inserts
// are keyed and mutex-guarded, so parallel workers may complete in any
// order without changing the result.
type ValueMatrix struct {
	mu     sync.Mutex
	rowIdx map[int]int // intervalID -> row
	colIdx map[int]int // segmentID -> column
	rows   []int       // interval ids, ascending
	cols   []int       // segment ids, ascending
	cells  [][]Value
	filled [][]bool
}

// NewValueMatrix builds an empty matrix for the given catalogs. IDs must be
// the catalog orderings (ascending, 1-based).
func NewValueMatrix(intervalIDs, segmentIDs []int) *ValueMatrix {
	m := &ValueMatrix{
		rowIdx: make(map[int]int, len(intervalIDs)),
		colIdx: make(map[int]int, len(segmentIDs)),
		rows:   append([]int(nil), intervalIDs...),
		cols:   append([]int(nil), segmentIDs...),
	}
	for i, id := range intervalIDs {
		m.rowIdx[id] = i
	}
	for j, id := range segmentIDs {
		m.colIdx[id] = j
	}
	m.cells = make([][]Value, len(intervalIDs))
	m.filled = make([][]bool, len(intervalIDs))
	for i := range m.cells {
		m.cells[i] = make([]Value, len(segmentIDs))
		m.filled[i] = make([]bool, len(segmentIDs))
	}
	return m
}

// Dims returns (rows, cols) = (|intervals|, |segments|).
func (m *ValueMatrix) Dims() (int, int) { return len(m.rows), len(m.cols) }

// IntervalIDs returns the row ordering.
func (m *ValueMatrix) IntervalIDs() []int { return append([]int(nil), m.rows...) }

// SegmentIDs returns the column ordering.
func (m *ValueMatrix) SegmentIDs() []int { return append([]int(nil), m.cols...) }

// Set stores a cell by key. Unknown keys return false rather than being
// dropped silently.
func (m *ValueMatrix) Set(intervalID, segmentID int, v Value) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rowIdx[intervalID]
	if !ok {
		return false
	}
	c, ok := m.colIdx[segmentID]
	if !ok {
		return false
	}
	m.cells[r][c] = v
	m.filled[r][c] = true
	return true
}

// At returns the cell for a key and whether it was ever set.
func (m *ValueMatrix) At(intervalID, segmentID int) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rowIdx[intervalID]
	if !ok {
		return Value{}, false
	}
	c, ok := m.colIdx[segmentID]
	if !ok {
		return Value{}, false
	}
	return m.cells[r][c], m.filled[r][c]
}

// Row returns the cells of one interval row in column order.
func (m *ValueMatrix) Row(intervalID int) ([]Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rowIdx[intervalID]
	if !ok {
		return nil, false
	}
	return append([]Value(nil), m.cells[r]...), true
}

// Complete reports whether every cell has been set.
func (m *ValueMatrix) Complete() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.filled {
		for _, f := range row {
			if !f {
				return false
			}
		}
	}
	return true
}

// ScalarMatrix accumulates raw angle or fit-goodness values with the same
// keyed layout as ValueMatrix. Unset cells are NaN. The dense storage is a
// gonum matrix so downstream analysis can consume it directly.
type ScalarMatrix struct {
	mu     sync.Mutex
	rowIdx map[int]int
	colIdx map[int]int
	rows   []int
	cols   []int
	dense  *mat.Dense
}

// NewScalarMatrix builds a NaN-initialized matrix for the given catalogs.
func NewScalarMatrix(intervalIDs, segmentIDs []int) *ScalarMatrix {
	backing := make([]float64, len(intervalIDs)*len(segmentIDs))
	for i := range backing {
		backing[i] = math.NaN()
	}
	m := &ScalarMatrix{
		rowIdx: make(map[int]int, len(intervalIDs)),
		colIdx: make(map[int]int, len(segmentIDs)),
		rows:   append([]int(nil), intervalIDs...),
		cols:   append([]int(nil), segmentIDs...),
		dense:  mat.NewDense(len(intervalIDs), len(segmentIDs), backing),
	}
	for i, id := range intervalIDs {
		m.rowIdx[id] = i
	}
	for j, id := range segmentIDs {
		m.colIdx[id] = j
	}
	return m
}

// Dims returns (rows, cols).
func (m *ScalarMatrix) Dims() (int, int) { return len(m.rows), len(m.cols) }

// IntervalIDs returns the row ordering.
func (m *ScalarMatrix) IntervalIDs() []int { return append([]int(nil), m.rows...) }

// SegmentIDs returns the column ordering.
func (m *ScalarMatrix) SegmentIDs() []int { return append([]int(nil), m.cols...) }

// Set stores a scalar by key; returns false for unknown keys.
func (m *ScalarMatrix) Set(intervalID, segmentID int, v float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rowIdx[intervalID]
	if !ok {
		return false
	}
	c, ok := m.colIdx[segmentID]
	if !ok {
		return false
	}
	m.dense.Set(r, c, v)
	return true
}

// At returns the scalar for a key; NaN means never set.
func (m *ScalarMatrix) At(intervalID, segmentID int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rowIdx[intervalID]
	if !ok {
		return math.NaN()
	}
	c, ok := m.colIdx[segmentID]
	if !ok {
		return math.NaN()
	}
	return m.dense.At(r, c)
}

// Row returns one interval row in column order.
func (m *ScalarMatrix) Row(intervalID int) ([]float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rowIdx[intervalID]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(m.cols))
	mat.Row(out, r, m.dense)
	return out, true
}

// Dense returns a copy of the underlying matrix.
func (m *ScalarMatrix) Dense() *mat.Dense {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out mat.Dense
	out.CloneFrom(m.dense)
	return &out
}
