package align

import (
	"fmt"
	"math"

	"github.com/fermata-audio/scorefollow/features"
)

// DTW is the offline (whole-sequence) dynamic time warping aligner. It is
// test and debug tooling: the CLI uses it to align complete recordings and
// to sanity-check the online engine; real-time tracking uses OnlineAligner.
type DTW struct {
	constraintBand int     // Sakoe-Chiba band half-width, <=0 means unconstrained
	diagWeight     float64 // same diagonal discount as the online recurrence
}

// DTWResult contains offline alignment results
type DTWResult struct {
	Distance    float64     `json:"distance"`     // Accumulated cost at the end point
	Normalized  float64     `json:"normalized"`   // Distance divided by path length
	Path        []PathPoint `json:"path"`         // Optimal alignment path, chronological
	QueryLength int         `json:"query_length"` // Length of the query (live) sequence
	RefLength   int         `json:"ref_length"`   // Length of the reference sequence
	Constraint  int         `json:"constraint"`   // Band constraint used
}

// NewDTW creates an unconstrained offline aligner with the default diagonal weight
func NewDTW() *DTW {
	return &DTW{
		constraintBand: -1,
		diagWeight:     DefaultParams().DiagWeight,
	}
}

// NewDTWWithParams creates an offline aligner with a Sakoe-Chiba band
// half-width and diagonal weight
func NewDTWWithParams(constraintBand int, diagWeight float64) *DTW {
	if diagWeight <= 0 || diagWeight > 1 {
		diagWeight = DefaultParams().DiagWeight
	}
	return &DTW{
		constraintBand: constraintBand,
		diagWeight:     diagWeight,
	}
}

// Align computes the optimal alignment between a query feature sequence and
// a reference feature sequence
func (d *DTW) Align(query, reference *features.Sequence) (*DTWResult, error) {
	if query == nil || query.Len() == 0 || reference == nil || reference.Len() == 0 {
		return nil, fmt.Errorf("empty sequences provided")
	}

	refLen := reference.Len()
	queryLen := query.Len()

	acc := make([][]float64, refLen)
	for i := range acc {
		acc[i] = make([]float64, queryLen)
		for j := range acc[i] {
			acc[i][j] = math.Inf(1)
		}
	}

	for i := 0; i < refLen; i++ {
		for j := 0; j < queryLen; j++ {
			if d.constraintBand > 0 && abs(i-j) > d.constraintBand {
				continue
			}

			cost := 1.0 - reference.Similarity(i, query, j)

			if i == 0 && j == 0 {
				acc[0][0] = cost
				continue
			}

			best := math.Inf(1)
			if i > 0 && j > 0 {
				best = acc[i-1][j-1] + d.diagWeight*cost
			}
			if i > 0 {
				if v := acc[i-1][j] + cost; v < best {
					best = v
				}
			}
			if j > 0 {
				if h := acc[i][j-1] + cost; h < best {
					best = h
				}
			}
			acc[i][j] = best
		}
	}

	if math.IsInf(acc[refLen-1][queryLen-1], 1) {
		return nil, fmt.Errorf("no alignment path within band constraint %d", d.constraintBand)
	}

	path := d.backtrack(acc, refLen, queryLen)

	distance := acc[refLen-1][queryLen-1]
	return &DTWResult{
		Distance:    distance,
		Normalized:  distance / float64(len(path)),
		Path:        path,
		QueryLength: queryLen,
		RefLength:   refLen,
		Constraint:  d.constraintBand,
	}, nil
}

// backtrack walks the accumulated-cost matrix from the end point back to the
// origin, preferring the diagonal predecessor on ties like the online sweep
func (d *DTW) backtrack(acc [][]float64, refLen, queryLen int) []PathPoint {
	i, j := refLen-1, queryLen-1
	path := []PathPoint{{i, j}}

	for i > 0 || j > 0 {
		diag, up, left := math.Inf(1), math.Inf(1), math.Inf(1)
		if i > 0 && j > 0 {
			diag = acc[i-1][j-1]
		}
		if i > 0 {
			up = acc[i-1][j]
		}
		if j > 0 {
			left = acc[i][j-1]
		}

		switch {
		case diag <= up && diag <= left:
			i, j = i-1, j-1
		case up < left:
			i = i - 1
		default:
			j = j - 1
		}

		path = append([]PathPoint{{i, j}}, path...)
	}

	return path
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
