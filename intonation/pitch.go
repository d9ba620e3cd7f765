package intonation

import (
	"math"

	"github.com/fermata-audio/scorefollow/config"
)

// PitchDetector estimates the fundamental frequency of a monophonic audio
// frame with the YIN algorithm (de Cheveigné & Kawahara 2002): squared
// difference function, cumulative mean normalization, first dip below the
// threshold, parabolic refinement of the period.
//
// A frame with no periodic signal in the configured frequency range yields
// NaN, the silence/no-pitch value the estimator filters out downstream.
type PitchDetector struct {
	sampleRate int
	threshold  float64
	minFreq    float64
	maxFreq    float64
}

// NewPitchDetector creates a YIN detector from the intonation configuration
func NewPitchDetector(cfg config.IntonationConfig) *PitchDetector {
	return &PitchDetector{
		sampleRate: cfg.SampleRate,
		threshold:  cfg.YinThreshold,
		minFreq:    cfg.MinFreq,
		maxFreq:    cfg.MaxFreq,
	}
}

// Detect returns the fundamental frequency of the frame in Hz, or NaN when
// no periodic signal is found
func (pd *PitchDetector) Detect(frame []float64) float64 {
	halfN := len(frame) / 2
	if halfN < 2 {
		return math.NaN()
	}

	// Squared difference function
	diff := make([]float64, halfN)
	for tau := 0; tau < halfN; tau++ {
		sum := 0.0
		for j := 0; j < halfN; j++ {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		diff[tau] = sum
	}

	// Cumulative mean normalized difference function
	cmndf := make([]float64, halfN)
	cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < halfN; tau++ {
		runningSum += diff[tau]
		if runningSum == 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = diff[tau] / (runningSum / float64(tau))
	}

	// First local minimum below the threshold
	minTau := -1
	for tau := 1; tau < halfN-1; tau++ {
		if cmndf[tau] < pd.threshold && cmndf[tau] < cmndf[tau+1] {
			minTau = tau
			break
		}
	}
	if minTau <= 0 {
		return math.NaN()
	}

	period := parabolicInterpolation(cmndf, minTau)
	if period <= 0 {
		return math.NaN()
	}

	freq := float64(pd.sampleRate) / period
	if freq < pd.minFreq || freq > pd.maxFreq {
		return math.NaN()
	}

	return freq
}

// parabolicInterpolation refines a local minimum position by fitting a
// parabola through the sample and its neighbors
func parabolicInterpolation(data []float64, peakIdx int) float64 {
	if peakIdx <= 0 || peakIdx >= len(data)-1 {
		return float64(peakIdx)
	}

	left := data[peakIdx-1]
	center := data[peakIdx]
	right := data[peakIdx+1]

	denom := left - 2*center + right
	if denom == 0 {
		return float64(peakIdx)
	}

	offset := 0.5 * (left - right) / denom
	return float64(peakIdx) + offset
}
