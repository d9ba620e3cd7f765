package intonation_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermata-audio/scorefollow/config"
	"github.com/fermata-audio/scorefollow/intonation"
)

func testConfig() config.IntonationConfig {
	cfg := config.DefaultIntonationConfig()
	cfg.SampleRate = 8000
	cfg.WindowLength = 2048
	return cfg
}

// midiToFreq is the inverse of the estimator's pitch mapping
func midiToFreq(midi float64) float64 {
	return 440.0 * math.Pow(2, (midi-69.0)/12.0)
}

func TestFrequencyToMIDI(t *testing.T) {
	assert.InDelta(t, 69.0, intonation.FrequencyToMIDI(440), 1e-9)
	assert.InDelta(t, 57.0, intonation.FrequencyToMIDI(220), 1e-9)
	assert.InDelta(t, 60.0, intonation.FrequencyToMIDI(midiToFreq(60)), 1e-9)

	assert.True(t, math.IsNaN(intonation.FrequencyToMIDI(0)))
	assert.True(t, math.IsNaN(intonation.FrequencyToMIDI(-1)))
	assert.True(t, math.IsNaN(intonation.FrequencyToMIDI(math.NaN())))
}

func TestEstimateInTune(t *testing.T) {
	e := intonation.NewEstimator(testConfig())

	assert.InDelta(t, 0.0, e.Estimate(440, 69), 1e-9)
	assert.InDelta(t, 0.2, e.Estimate(midiToFreq(60.2), 60), 1e-9)
	assert.InDelta(t, -0.3, e.Estimate(midiToFreq(59.7), 60), 1e-9)
}

func TestEstimateOctaveFolding(t *testing.T) {
	e := intonation.NewEstimator(testConfig())

	// one octave up, 0.2 semitones sharp: folds to +0.2
	assert.InDelta(t, 0.2, e.Estimate(midiToFreq(72.2), 60), 1e-9)
	// one octave down, 0.1 semitones flat: folds to -0.1
	assert.InDelta(t, -0.1, e.Estimate(midiToFreq(47.9), 60), 1e-9)
}

func TestEstimateRejections(t *testing.T) {
	e := intonation.NewEstimator(testConfig())

	// two octaves off exceeds the octave threshold
	assert.True(t, math.IsNaN(e.Estimate(midiToFreq(85), 60)))
	// folded remainder beyond the semitone threshold
	assert.True(t, math.IsNaN(e.Estimate(midiToFreq(61.6), 60)))
	// no detected pitch
	assert.True(t, math.IsNaN(e.Estimate(math.NaN(), 60)))
	assert.True(t, math.IsNaN(e.Estimate(0, 60)))
}

func TestClassify(t *testing.T) {
	e := intonation.NewEstimator(testConfig())

	assert.Equal(t, intonation.ColorNeutral, e.Classify(0.0))
	assert.Equal(t, intonation.ColorNeutral, e.Classify(0.3))
	assert.Equal(t, intonation.ColorNeutral, e.Classify(-0.3))
	assert.Equal(t, intonation.ColorNeutral, e.Classify(math.NaN()))
	assert.Equal(t, intonation.ColorSharp, e.Classify(0.6))
	assert.Equal(t, intonation.ColorFlat, e.Classify(-0.6))
}

func TestColorCategoryString(t *testing.T) {
	assert.Equal(t, "neutral", intonation.ColorNeutral.String())
	assert.Equal(t, "sharp", intonation.ColorSharp.String())
	assert.Equal(t, "flat", intonation.ColorFlat.String())
}

func TestAggregatorMedian(t *testing.T) {
	e := intonation.NewEstimator(testConfig())
	agg := intonation.NewAggregator(e)

	// window: onset 10.0, next onset 12.0, divisor 2 -> [10.0, 11.0]
	agg.StartNote(2, 10.0, 12.0, 100.0)

	agg.Add(10.2, 0.3)
	agg.Add(10.4, 0.1)
	agg.Add(10.8, 0.2)
	agg.Add(10.5, math.NaN()) // rejected frame, dropped
	agg.Add(11.5, 5.0)        // outside the window, dropped
	agg.Add(9.9, 5.0)         // before the onset, dropped

	report := agg.Finish()
	assert.Equal(t, 2, report.NoteIndex)
	assert.Equal(t, 3, report.Samples)
	assert.InDelta(t, 0.2, report.Error, 1e-9, "median shrugs off outliers")
	assert.Equal(t, intonation.ColorNeutral, report.Color)
}

func TestAggregatorSharpVerdict(t *testing.T) {
	e := intonation.NewEstimator(testConfig())
	agg := intonation.NewAggregator(e)

	agg.StartNote(0, 0.0, 2.0, 100.0)
	agg.Add(0.1, 0.8)
	agg.Add(0.2, 0.9)
	agg.Add(0.3, 0.7)

	report := agg.Finish()
	assert.InDelta(t, 0.8, report.Error, 1e-9)
	assert.Equal(t, intonation.ColorSharp, report.Color)
}

func TestAggregatorNoSamples(t *testing.T) {
	e := intonation.NewEstimator(testConfig())
	agg := intonation.NewAggregator(e)

	agg.StartNote(4, 1.0, 2.0, 100.0)
	report := agg.Finish()

	assert.Equal(t, 4, report.NoteIndex)
	assert.Equal(t, 0, report.Samples)
	assert.True(t, math.IsNaN(report.Error))
	assert.Equal(t, intonation.ColorNeutral, report.Color)

	// adds after Finish are ignored until the next StartNote
	agg.Add(1.1, 0.2)
	assert.Equal(t, 0, agg.Finish().Samples)
}

func TestAggregatorBudgetCap(t *testing.T) {
	e := intonation.NewEstimator(testConfig())
	agg := intonation.NewAggregator(e)

	// the remaining performance is shorter than the nominal window
	agg.StartNote(0, 10.0, 20.0, 1.0)
	agg.Add(10.5, 0.1)
	agg.Add(11.5, 0.9) // past the capped window end

	report := agg.Finish()
	require.Equal(t, 1, report.Samples)
	assert.InDelta(t, 0.1, report.Error, 1e-9)
}
