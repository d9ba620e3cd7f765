package chroma

import (
	"errors"
	"fmt"
	"math"

	"github.com/fermata-audio/scorefollow/algorithms/spectral"
	"github.com/fermata-audio/scorefollow/algorithms/windowing"
)

// ChromaBins is the number of pitch classes (C, C#, D, ..., B)
const ChromaBins = 12

// MIDIPitches is the range of MIDI pitches projected onto pitch classes
const MIDIPitches = 128

// ErrInvalidFrameLength indicates a frame that does not match the configured
// analysis window length. Callers must re-pad or discard the frame.
var ErrInvalidFrameLength = errors.New("frame length does not match window length")

// CENSExtractor computes CENS (Chroma Energy Normalized Statistics) vectors
// from single audio frames.
//
// Each frame is Hann-windowed, transformed with a real FFT, and its one-sided
// power spectrum is projected onto the 12 pitch classes through a cached
// pitch-band matrix. Each MIDI pitch 0-127 claims the FFT bins between its
// half-pitch band edges in equal temperament, weighted by a Hann-shaped
// profile across the band; rows an octave apart fold onto the same class.
// The 12-vector is then L1-normalized, quantized into 5 energy bands and
// L2-normalized, which makes the feature robust to timbre and dynamics.
type CENSExtractor struct {
	sampleRate int
	winLen     int
	tuningFreq float64 // A4 frequency (default 440 Hz)

	window      *windowing.Hann
	transformer spectral.Transformer
	power       *spectral.PowerSpectrum

	// foldMatrix[class][bin] maps one-sided FFT bins to pitch classes,
	// computed once per (sampleRate, winLen)
	foldMatrix [][]float64
}

// Quantization thresholds and step weights applied to the L1-normalized
// chroma energy, per the CENS definition
var (
	censThresholds = []float64{0.05, 0.10, 0.20, 0.40, 1.00}
)

// NewCENSExtractor creates an extractor for the given analysis parameters
func NewCENSExtractor(sampleRate, winLen int) *CENSExtractor {
	return NewCENSExtractorWithTuning(sampleRate, winLen, 440.0)
}

// NewCENSExtractorWithTuning creates an extractor with a custom A4 tuning frequency
func NewCENSExtractorWithTuning(sampleRate, winLen int, tuningFreq float64) *CENSExtractor {
	ce := &CENSExtractor{
		sampleRate:  sampleRate,
		winLen:      winLen,
		tuningFreq:  tuningFreq,
		window:      windowing.NewHannPeriodic(winLen),
		transformer: spectral.DefaultTransformer(),
		power:       spectral.NewPowerSpectrum(),
	}
	ce.foldMatrix = ce.buildFoldMatrix()
	return ce
}

// pitchToFrequency converts a (possibly fractional) MIDI pitch to Hz using
// the equal-tempered formula f(p) = tuning * 2^((p-69)/12)
func (ce *CENSExtractor) pitchToFrequency(pitch float64) float64 {
	return ce.tuningFreq * math.Pow(2, (pitch-69.0)/12.0)
}

// buildFoldMatrix precomputes the pitch-class projection of the one-sided
// power spectrum. The full 128-pitch matrix is folded immediately: row p
// accumulates into class p mod 12.
func (ce *CENSExtractor) buildFoldMatrix() [][]float64 {
	numBins := ce.winLen/2 + 1
	binWidth := float64(ce.sampleRate) / float64(ce.winLen)

	fold := make([][]float64, ChromaBins)
	for c := range fold {
		fold[c] = make([]float64, numBins)
	}

	for p := 0; p < MIDIPitches; p++ {
		lo := ce.pitchToFrequency(float64(p) - 0.5)
		hi := ce.pitchToFrequency(float64(p) + 0.5)
		class := p % ChromaBins

		// FFT bins whose center frequency falls inside the pitch band
		kLo := int(math.Ceil(lo / binWidth))
		if kLo < 0 {
			kLo = 0
		}
		for k := kLo; k < numBins; k++ {
			freq := float64(k) * binWidth
			if freq >= hi {
				break
			}
			fold[class][k] += windowing.Profile((freq - lo) / (hi - lo))
		}
	}

	return fold
}

// Extract computes the CENS vector for one audio frame.
// The frame length must equal the configured window length.
func (ce *CENSExtractor) Extract(frame []float64) ([]float64, error) {
	if len(frame) != ce.winLen {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidFrameLength, len(frame), ce.winLen)
	}

	windowed := ce.window.Apply(frame)
	spectrum := ce.transformer.Forward(windowed)
	power := ce.power.ComputeFromFFT(spectrum)

	// Project the power spectrum onto the 12 pitch classes
	chromaVec := make([]float64, ChromaBins)
	for c := 0; c < ChromaBins; c++ {
		sum := 0.0
		row := ce.foldMatrix[c]
		for k, pw := range power {
			sum += row[k] * pw
		}
		chromaVec[c] = sum
	}

	return censPostProcess(chromaVec), nil
}

// censPostProcess applies the CENS normalization and quantization chain:
// L1 normalize (all-ones on silence), quantize into 5 bands, L2 normalize
// (uniform 1/sqrt(12) vector when the quantized vector is all zero).
func censPostProcess(v []float64) []float64 {
	l1 := 0.0
	for _, x := range v {
		l1 += x
	}
	if l1 == 0 {
		for i := range v {
			v[i] = 1.0
		}
	} else {
		for i := range v {
			v[i] /= l1
		}
	}

	for i, x := range v {
		v[i] = float64(quantize(x))
	}

	l2 := 0.0
	for _, x := range v {
		l2 += x * x
	}
	if l2 == 0 {
		uniform := 1.0 / math.Sqrt(float64(ChromaBins))
		for i := range v {
			v[i] = uniform
		}
		return v
	}

	norm := math.Sqrt(l2)
	for i := range v {
		v[i] /= norm
	}
	return v
}

// quantize maps an L1-normalized energy value into the bands {0..4}.
// Values at or below 0.05 quantize to 0.
func quantize(x float64) int {
	q := 0
	for _, threshold := range censThresholds {
		if x > threshold {
			q++
		}
	}
	return q
}

// Similarity returns the dot product of two chroma vectors. Both CENS
// vectors are unit L2 norm, so this is their cosine similarity in [0, 1]
// (entries are non-negative).
func Similarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	dot := 0.0
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	return dot
}

// Similarity implements the extractor capability interface on the instance
func (ce *CENSExtractor) Similarity(a, b []float64) float64 {
	return Similarity(a, b)
}

// Labels returns the pitch class labels in bin order
func Labels() []string {
	return []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
}

// SampleRate returns the configured sample rate
func (ce *CENSExtractor) SampleRate() int {
	return ce.sampleRate
}

// WindowLength returns the configured analysis window length
func (ce *CENSExtractor) WindowLength() int {
	return ce.winLen
}
