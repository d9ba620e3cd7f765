package align

import (
	"math"
)

// costRow holds the computed cells of one reference row. Cells exist only
// inside [start, start+len(vals)); everything else conceptually holds +Inf.
type costRow struct {
	start int
	vals  []float64
}

// CostMatrix is the accumulated-cost store of the online aligner. It is
// logically a full (reference x live) matrix but only the sliding band around
// the estimated diagonal is ever computed, so rows are stored as bounded
// windows that grow monotonically with the sweep. Cells that fall out of the
// band are never revisited.
type CostMatrix struct {
	rows []costRow
}

// NewCostMatrix creates an empty accumulated-cost matrix
func NewCostMatrix() *CostMatrix {
	return &CostMatrix{}
}

// Get returns the accumulated cost at (refIndex, liveIndex), or +Inf for any
// cell the sweep has not computed
func (m *CostMatrix) Get(refIndex, liveIndex int) float64 {
	if refIndex < 0 || refIndex >= len(m.rows) || liveIndex < 0 {
		return math.Inf(1)
	}
	row := m.rows[refIndex]
	off := liveIndex - row.start
	if off < 0 || off >= len(row.vals) {
		return math.Inf(1)
	}
	return row.vals[off]
}

// Defined reports whether the sweep has computed cell (refIndex, liveIndex)
func (m *CostMatrix) Defined(refIndex, liveIndex int) bool {
	return !math.IsInf(m.Get(refIndex, liveIndex), 1)
}

// Set stores the accumulated cost at (refIndex, liveIndex). Rows are created
// in reference order as the sweep first touches them; within a row, cells
// left of the row's first computed column stay undefined.
func (m *CostMatrix) Set(refIndex, liveIndex int, cost float64) {
	for refIndex >= len(m.rows) {
		m.rows = append(m.rows, costRow{start: liveIndex})
	}

	row := &m.rows[refIndex]
	if len(row.vals) == 0 {
		row.start = liveIndex
	}

	off := liveIndex - row.start
	if off < 0 {
		// Out-of-band write behind the row window: a design violation of
		// the sweep bounds. Dropped for robustness.
		return
	}
	for off >= len(row.vals) {
		row.vals = append(row.vals, math.Inf(1))
	}
	row.vals[off] = cost
}

// Rows returns the number of reference rows touched by the sweep
func (m *CostMatrix) Rows() int {
	return len(m.rows)
}

// Snapshot returns a read-only deep copy of the computed band, safe to hand
// to diagnostic tooling while the aligner keeps inserting frames
func (m *CostMatrix) Snapshot() *CostSnapshot {
	rows := make([]costRow, len(m.rows))
	for i, r := range m.rows {
		vals := make([]float64, len(r.vals))
		copy(vals, r.vals)
		rows[i] = costRow{start: r.start, vals: vals}
	}
	return &CostSnapshot{rows: rows}
}

// CostSnapshot is an immutable view of the accumulated-cost band
type CostSnapshot struct {
	rows []costRow
}

// Get returns the accumulated cost at (refIndex, liveIndex), or +Inf for
// cells outside the computed band
func (s *CostSnapshot) Get(refIndex, liveIndex int) float64 {
	if refIndex < 0 || refIndex >= len(s.rows) || liveIndex < 0 {
		return math.Inf(1)
	}
	row := s.rows[refIndex]
	off := liveIndex - row.start
	if off < 0 || off >= len(row.vals) {
		return math.Inf(1)
	}
	return row.vals[off]
}

// Rows returns the number of reference rows in the snapshot
func (s *CostSnapshot) Rows() int {
	return len(s.rows)
}

// RowBounds returns the half-open live-index interval [start, end) computed
// for a reference row
func (s *CostSnapshot) RowBounds(refIndex int) (start, end int) {
	if refIndex < 0 || refIndex >= len(s.rows) {
		return 0, 0
	}
	row := s.rows[refIndex]
	return row.start, row.start + len(row.vals)
}
