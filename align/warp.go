package align

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CalculateWarpedTimes maps query times in the reference domain to times in
// the live (performance) domain through a warping path. stepSize is the
// duration in seconds covered by one path index on either axis. Plateaus in
// the path (several live frames on one reference frame, or vice versa)
// collapse to their mean live position; between path anchors the mapping is
// piecewise linear, and query times outside the path clamp to its endpoints.
func CalculateWarpedTimes(path []PathPoint, stepSize float64, queryTimes []float64) []float64 {
	warped := make([]float64, len(queryTimes))
	if len(path) == 0 {
		return warped
	}

	refAnchors, liveAnchors := collapsePath(path)

	for qi, t := range queryTimes {
		refPos := t / stepSize
		warped[qi] = interpolate(refAnchors, liveAnchors, refPos) * stepSize
	}

	return warped
}

// collapsePath reduces a warping path to one anchor per distinct reference
// index, averaging the live indices mapped onto it
func collapsePath(path []PathPoint) (refs, lives []float64) {
	liveByRef := make(map[int][]float64)
	for _, p := range path {
		liveByRef[p.RefIndex] = append(liveByRef[p.RefIndex], float64(p.LiveIndex))
	}

	refIndices := make([]int, 0, len(liveByRef))
	for r := range liveByRef {
		refIndices = append(refIndices, r)
	}
	sort.Ints(refIndices)

	refs = make([]float64, len(refIndices))
	lives = make([]float64, len(refIndices))
	for i, r := range refIndices {
		refs[i] = float64(r)
		lives[i] = stat.Mean(liveByRef[r], nil)
	}
	return refs, lives
}

// interpolate evaluates the piecewise-linear map refs -> lives at x,
// clamping outside the anchor range
func interpolate(refs, lives []float64, x float64) float64 {
	n := len(refs)
	if x <= refs[0] {
		return lives[0]
	}
	if x >= refs[n-1] {
		return lives[n-1]
	}

	hi := sort.SearchFloat64s(refs, x)
	lo := hi - 1
	if refs[hi] == refs[lo] {
		return lives[lo]
	}

	frac := (x - refs[lo]) / (refs[hi] - refs[lo])
	return lives[lo] + frac*(lives[hi]-lives[lo])
}

// TempoPoint is one sample of the estimated tempo curve
type TempoPoint struct {
	LiveTimeSeconds float64 `json:"live_time_seconds"`
	// Factor is reference progress over live progress: above 1 the
	// performer is ahead of the reference tempo, below 1 behind it
	Factor float64 `json:"factor"`
}

// TempoCurve estimates the performer's tempo relative to the reference from
// a warping path, smoothed over a centered window of path anchors
func TempoCurve(path []PathPoint, stepSize float64, smoothWindow int) []TempoPoint {
	refs, lives := collapsePath(path)
	if len(refs) < 2 {
		return nil
	}
	if smoothWindow < 1 {
		smoothWindow = 1
	}

	ratios := make([]float64, len(refs)-1)
	for i := 1; i < len(refs); i++ {
		dRef := refs[i] - refs[i-1]
		dLive := lives[i] - lives[i-1]
		if dLive <= 0 {
			// Reference advanced with no live progress; cap rather than
			// divide by zero
			ratios[i-1] = dRef
			continue
		}
		ratios[i-1] = dRef / dLive
	}

	curve := make([]TempoPoint, len(ratios))
	for i := range ratios {
		lo := i - smoothWindow/2
		if lo < 0 {
			lo = 0
		}
		hi := i + smoothWindow/2 + 1
		if hi > len(ratios) {
			hi = len(ratios)
		}
		curve[i] = TempoPoint{
			LiveTimeSeconds: lives[i+1] * stepSize,
			Factor:          stat.Mean(ratios[lo:hi], nil),
		}
	}

	return curve
}
