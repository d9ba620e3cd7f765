package intonation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/fermata-audio/scorefollow/config"
	"github.com/fermata-audio/scorefollow/logging"
)

// ColorCategory is the intonation feedback class consumed by the UI
type ColorCategory int

const (
	// ColorNeutral means the note was in tune (or no estimate exists)
	ColorNeutral ColorCategory = iota
	// ColorSharp means the performer played above the expected pitch
	ColorSharp
	// ColorFlat means the performer played below the expected pitch
	ColorFlat
)

func (c ColorCategory) String() string {
	switch c {
	case ColorSharp:
		return "sharp"
	case ColorFlat:
		return "flat"
	default:
		return "neutral"
	}
}

// NoteReport is the aggregated intonation verdict for one expected note
type NoteReport struct {
	NoteIndex int           `json:"note_index"`
	Error     float64       `json:"error"` // signed semitones, NaN without samples
	Color     ColorCategory `json:"color"`
	Samples   int           `json:"samples"`
}

// Estimator computes signed semitone errors between detected fundamentals
// and expected pitches, with octave-error folding and outlier rejection.
// Rejected frames come back as NaN and are dropped by aggregation, never
// surfaced as session errors.
type Estimator struct {
	cfg      config.IntonationConfig
	detector *PitchDetector
	logger   logging.Logger
}

// NewEstimator creates an estimator with its own pitch detector
func NewEstimator(cfg config.IntonationConfig) *Estimator {
	return &Estimator{
		cfg:      cfg,
		detector: NewPitchDetector(cfg),
		logger: logging.WithFields(logging.Fields{
			"component": "intonation",
		}),
	}
}

// FrequencyToMIDI converts a frequency in Hz to a continuous MIDI pitch.
// Non-positive or NaN input yields NaN.
func FrequencyToMIDI(freqHz float64) float64 {
	if freqHz <= 0 || math.IsNaN(freqHz) {
		return math.NaN()
	}
	return 69.0 + 12.0*math.Log2(freqHz/440.0)
}

// Estimate returns the signed semitone error between a detected frequency
// and the expected MIDI pitch. Octave errors are folded away by rounding the
// difference to the nearest whole octave count; candidates that fold more
// octaves than the octave threshold allows, or whose folded remainder
// exceeds the semitone threshold, are rejected as NaN.
func (e *Estimator) Estimate(freqHz, expectedMidi float64) float64 {
	detected := FrequencyToMIDI(freqHz)
	if math.IsNaN(detected) {
		return math.NaN()
	}

	diff := detected - expectedMidi
	octaves := math.Round(diff / 12.0)
	folded := diff - 12.0*octaves

	if math.Abs(octaves) > float64(e.cfg.OctaveErrorThreshold) {
		return math.NaN()
	}
	if math.Abs(folded) > e.cfg.SemitoneErrorThreshold {
		return math.NaN()
	}

	return folded
}

// EstimateFrame runs pitch detection on a raw audio frame and folds the
// result against the expected pitch
func (e *Estimator) EstimateFrame(frame []float64, expectedMidi float64) float64 {
	return e.Estimate(e.detector.Detect(frame), expectedMidi)
}

// Classify maps an aggregated semitone error to its feedback color. NaN
// (no estimate) is neutral.
func (e *Estimator) Classify(err float64) ColorCategory {
	if math.IsNaN(err) || math.Abs(err) < e.cfg.MistakeThreshold {
		return ColorNeutral
	}
	if err > 0 {
		return ColorSharp
	}
	return ColorFlat
}

// Aggregator collects per-frame errors for the note currently expected and
// reports their median once the note's window closes. The median is chosen
// over the mean so a stray octave-detection glitch cannot drag the verdict.
type Aggregator struct {
	estimator *Estimator

	noteIndex   int
	windowStart float64
	windowEnd   float64
	errors      []float64
	active      bool
}

// NewAggregator creates an aggregator on top of an estimator
func NewAggregator(estimator *Estimator) *Aggregator {
	return &Aggregator{
		estimator: estimator,
		noteIndex: -1,
	}
}

// StartNote opens the collection window for a note. The window length is
// the time until the next note divided by the smoothing divisor, capped by
// the remaining budget (e.g. time left in the performance).
func (a *Aggregator) StartNote(noteIndex int, onsetSeconds, nextOnsetSeconds, remainingBudgetSeconds float64) {
	windowLen := (nextOnsetSeconds - onsetSeconds) / a.estimator.cfg.SmoothingDivisor
	if windowLen > remainingBudgetSeconds {
		windowLen = remainingBudgetSeconds
	}
	if windowLen < 0 {
		windowLen = 0
	}

	a.noteIndex = noteIndex
	a.windowStart = onsetSeconds
	a.windowEnd = onsetSeconds + windowLen
	a.errors = a.errors[:0]
	a.active = true
}

// Add records one per-frame error candidate stamped with its time in the
// reference domain. NaN candidates and frames outside the window are dropped.
func (a *Aggregator) Add(timestampSeconds, semitoneError float64) {
	if !a.active || math.IsNaN(semitoneError) {
		return
	}
	if timestampSeconds < a.windowStart || timestampSeconds > a.windowEnd {
		return
	}
	a.errors = append(a.errors, semitoneError)
}

// Finish closes the current note's window and reports the median error
func (a *Aggregator) Finish() NoteReport {
	report := NoteReport{
		NoteIndex: a.noteIndex,
		Error:     math.NaN(),
		Color:     ColorNeutral,
		Samples:   len(a.errors),
	}
	a.active = false

	if len(a.errors) == 0 {
		return report
	}

	sorted := make([]float64, len(a.errors))
	copy(sorted, a.errors)
	sort.Float64s(sorted)

	report.Error = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	report.Color = a.estimator.Classify(report.Error)
	return report
}
