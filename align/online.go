package align

import (
	"errors"
	"math"

	"github.com/fermata-audio/scorefollow/features"
	"github.com/fermata-audio/scorefollow/logging"
)

// ErrEmptyReference indicates an aligner constructed over a reference
// sequence with zero frames
var ErrEmptyReference = errors.New("reference feature sequence is empty")

// Direction is the axis chosen by one alignment step decision
type Direction int

const (
	StepNone Direction = iota
	// StepLive consumes the current live frame without advancing the reference
	StepLive
	// StepRef advances the reference pointer without consuming a live frame
	StepRef
	// StepBoth advances both pointers simultaneously
	StepBoth
)

func (d Direction) String() string {
	switch d {
	case StepLive:
		return "live"
	case StepRef:
		return "ref"
	case StepBoth:
		return "both"
	default:
		return "none"
	}
}

// PathPoint is one (reference, live) index pair on the alignment path
type PathPoint struct {
	RefIndex  int `json:"ref_index"`
	LiveIndex int `json:"live_index"`
}

// StepRecord logs one internal step decision, for diagnostics and for
// verifying the slope constraint
type StepRecord struct {
	Direction Direction `json:"direction"`
	Forced    bool      `json:"forced"`
	RefIndex  int       `json:"ref_index"`
	LiveIndex int       `json:"live_index"`
}

// Params holds the online DTW constraint parameters
type Params struct {
	// WinSize bounds the lookback band around the current estimated diagonal
	WinSize int `json:"win_size"`
	// MaxRunCount bounds consecutive same-direction steps before the other
	// axis is forced, guaranteeing progress and bounding worst-case latency
	MaxRunCount int `json:"max_run_count"`
	// DiagWeight multiplies the local cost of the diagonal candidate,
	// in (0, 1] so simultaneous progress is favored
	DiagWeight float64 `json:"diag_weight"`
}

// DefaultParams returns the constraint parameters used in production
func DefaultParams() Params {
	return Params{
		WinSize:     50,
		MaxRunCount: 3,
		DiagWeight:  0.75,
	}
}

// OnlineAligner is the constrained online DTW engine. It owns a fully-built
// reference feature sequence and a live sequence that grows one frame per
// Insert call. The accumulated-cost matrix is extended incrementally along a
// band of WinSize around the frontier; the matched reference index is decided
// per frame by comparing the band minima along the two axes.
//
// Not safe for concurrent use; frames must be inserted in arrival order.
type OnlineAligner struct {
	params Params

	ref  *features.Sequence
	live *features.Sequence
	acc  *CostMatrix

	refIdx  int
	liveIdx int

	prevStep Direction
	runCount int
	reported int

	path    []PathPoint
	stepLog []StepRecord

	logger logging.Logger
}

// NewOnlineAligner creates an aligner over a pre-built reference sequence.
// Fails fast on an empty reference.
func NewOnlineAligner(ref *features.Sequence, params Params) (*OnlineAligner, error) {
	if ref == nil || ref.Len() == 0 {
		return nil, ErrEmptyReference
	}
	if params.WinSize <= 0 {
		params.WinSize = DefaultParams().WinSize
	}
	if params.MaxRunCount <= 0 {
		params.MaxRunCount = DefaultParams().MaxRunCount
	}
	if params.DiagWeight <= 0 || params.DiagWeight > 1 {
		params.DiagWeight = DefaultParams().DiagWeight
	}

	return &OnlineAligner{
		params:  params,
		ref:     ref,
		live:    features.NewSequence(ref.Extractor(), ref.HopLength()),
		acc:     NewCostMatrix(),
		refIdx:  0,
		liveIdx: -1,
		logger: logging.WithFields(logging.Fields{
			"component": "online_aligner",
			"ref_len":   ref.Len(),
		}),
	}, nil
}

// Insert feeds the next live frame and returns the current best-estimate
// reference index. The returned estimate never regresses.
func (a *OnlineAligner) Insert(frame []float64) (int, error) {
	if err := a.live.Append(frame); err != nil {
		return a.reported, err
	}
	a.liveIdx++

	// Extend the accumulated-cost band for the new live column
	for i := a.bandStartRef(); i <= a.refIdx; i++ {
		a.computeCell(i, a.liveIdx)
	}

	if a.liveIdx == 0 {
		// Base case: both pointers sit on the first cell
		a.path = append(a.path, PathPoint{0, 0})
		a.stepLog = append(a.stepLog, StepRecord{Direction: StepBoth, RefIndex: 0, LiveIndex: 0})
		a.prevStep = StepBoth
		a.runCount = 1
		return a.reported, nil
	}

	for {
		dir, forced := a.nextStep()

		if dir == StepRef || dir == StepBoth {
			a.advanceRef()
		}
		// A terminal live step after ref advances lands on the pair the
		// last ref step already recorded
		pp := PathPoint{a.refIdx, a.liveIdx}
		if len(a.path) == 0 || a.path[len(a.path)-1] != pp {
			a.path = append(a.path, pp)
		}
		a.stepLog = append(a.stepLog, StepRecord{
			Direction: dir,
			Forced:    forced,
			RefIndex:  a.refIdx,
			LiveIndex: a.liveIdx,
		})

		// Run-count bookkeeping: a "both" step or a direction change
		// resets the run
		if dir == StepBoth || dir != a.prevStep {
			a.runCount = 1
		} else {
			a.runCount++
		}
		a.prevStep = dir

		if dir != StepRef {
			break
		}
	}

	if last := a.path[len(a.path)-1].RefIndex; last > a.reported {
		a.reported = last
	}
	return a.reported, nil
}

// nextStep decides the direction of the next alignment step
func (a *OnlineAligner) nextStep() (Direction, bool) {
	var dir Direction
	forced := false

	switch {
	case a.liveIdx < a.params.WinSize:
		// Insufficient history for the band minima to mean anything
		dir = StepBoth
	case a.runCount >= a.params.MaxRunCount && (a.prevStep == StepLive || a.prevStep == StepRef):
		// Slope constraint: force progress on the stalled axis
		if a.prevStep == StepLive {
			dir = StepRef
		} else {
			dir = StepLive
		}
		forced = true
	default:
		dir = a.bestStep()
	}

	// End-of-reference override, applied after run-count forcing so the
	// reference pointer can never pass the final frame
	if a.refIdx >= a.ref.Len()-1 && dir != StepLive {
		dir = StepLive
		forced = false
	}

	return dir, forced
}

// bestStep locates the cheapest path end on the band frontier. A winner in
// the current live column means the newest live frame pairs best with an
// already-passed reference row, so the aligner waits for more live input; a
// winner in the current reference row means the reference position is
// already well supported by older live frames and the pointer advances. The
// frontier corner belongs to both sets, so a corner winner ties and both
// pointers move.
func (a *OnlineAligner) bestStep() Direction {
	columnMin := math.Inf(1)
	for i := a.bandStartRef(); i <= a.refIdx; i++ {
		if c := a.acc.Get(i, a.liveIdx); c < columnMin {
			columnMin = c
		}
	}

	rowMin := math.Inf(1)
	for j := a.bandStartLive(); j <= a.liveIdx; j++ {
		if c := a.acc.Get(a.refIdx, j); c < rowMin {
			rowMin = c
		}
	}

	switch {
	case columnMin < rowMin:
		return StepLive
	case rowMin < columnMin:
		return StepRef
	default:
		return StepBoth
	}
}

// advanceRef moves the reference pointer forward one row and computes the
// newly exposed cost cells across the live band
func (a *OnlineAligner) advanceRef() {
	a.refIdx++
	for j := a.bandStartLive(); j <= a.liveIdx; j++ {
		a.computeCell(a.refIdx, j)
	}
}

// computeCell fills acc(i, j) from its in-band predecessors. The diagonal
// candidate carries the discounted local cost; predecessors outside the
// computed band read as +Inf.
func (a *OnlineAligner) computeCell(i, j int) {
	cost := 1.0 - a.ref.Similarity(i, a.live, j)

	if i == 0 && j == 0 {
		a.acc.Set(0, 0, cost)
		return
	}

	best := a.acc.Get(i-1, j-1) + a.params.DiagWeight*cost
	if v := a.acc.Get(i-1, j) + cost; v < best {
		best = v
	}
	if h := a.acc.Get(i, j-1) + cost; h < best {
		best = h
	}

	if math.IsInf(best, 1) {
		// All predecessors fell outside the band. Unreachable by the sweep
		// bounds; treated as a fresh path start for robustness.
		a.logger.Warn("cost cell with no in-band predecessor", logging.Fields{
			"ref_index":  i,
			"live_index": j,
		})
		best = cost
	}

	a.acc.Set(i, j, best)
}

func (a *OnlineAligner) bandStartRef() int {
	lo := a.refIdx - a.params.WinSize + 1
	if lo < 0 {
		lo = 0
	}
	return lo
}

func (a *OnlineAligner) bandStartLive() int {
	lo := a.liveIdx - a.params.WinSize + 1
	if lo < 0 {
		lo = 0
	}
	return lo
}

// RefIndex returns the internal reference pointer
func (a *OnlineAligner) RefIndex() int {
	return a.refIdx
}

// LiveIndex returns the index of the last inserted live frame, -1 before the
// first insertion
func (a *OnlineAligner) LiveIndex() int {
	return a.liveIdx
}

// ReportedIndex returns the last externally reported reference index
func (a *OnlineAligner) ReportedIndex() int {
	return a.reported
}

// Path returns a copy of the alignment path so far
func (a *OnlineAligner) Path() []PathPoint {
	path := make([]PathPoint, len(a.path))
	copy(path, a.path)
	return path
}

// StepLog returns a copy of the per-step decision log
func (a *OnlineAligner) StepLog() []StepRecord {
	log := make([]StepRecord, len(a.stepLog))
	copy(log, a.stepLog)
	return log
}

// Snapshot returns a read-only copy of the accumulated-cost band for
// diagnostic tooling
func (a *OnlineAligner) Snapshot() *CostSnapshot {
	return a.acc.Snapshot()
}

// BackwardsPath walks the accumulated-cost band backward from the current
// frontier for up to lookback reference steps, choosing the minimum
// predecessor at each step with the forward sweep's diagonal tie preference.
// Diagnostics only; the real-time estimate comes from Insert.
func (a *OnlineAligner) BackwardsPath(lookback int) []PathPoint {
	snap := a.acc.Snapshot()

	i, j := a.refIdx, a.liveIdx
	if j < 0 {
		return nil
	}

	points := []PathPoint{{i, j}}
	refSteps := 0

	for (i > 0 || j > 0) && refSteps < lookback {
		diag := snap.Get(i-1, j-1)
		up := snap.Get(i-1, j)
		left := snap.Get(i, j-1)

		if math.IsInf(diag, 1) && math.IsInf(up, 1) && math.IsInf(left, 1) {
			break
		}

		switch {
		case diag <= up && diag <= left:
			i, j = i-1, j-1
			refSteps++
		case up < left:
			i = i - 1
			refSteps++
		default:
			j = j - 1
		}

		points = append([]PathPoint{{i, j}}, points...)
	}

	return points
}
