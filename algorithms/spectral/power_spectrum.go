package spectral

import (
	"math/cmplx"
)

// PowerSpectrum provides power spectral density computation
type PowerSpectrum struct {
	// No state needed - stateless calculation
}

// NewPowerSpectrum creates a new power spectrum calculator
func NewPowerSpectrum() *PowerSpectrum {
	return &PowerSpectrum{}
}

// Compute computes power spectral density from a magnitude spectrum
func (ps *PowerSpectrum) Compute(magnitudeSpectrum []float64) []float64 {
	if len(magnitudeSpectrum) == 0 {
		return []float64{}
	}

	power := make([]float64, len(magnitudeSpectrum))
	for i, mag := range magnitudeSpectrum {
		power[i] = mag * mag
	}

	return power
}

// ComputeFromFFT computes the one-sided power spectrum from a full complex
// FFT result, keeping the len/2+1 non-negative frequency bins.
func (ps *PowerSpectrum) ComputeFromFFT(spectrum []complex128) []float64 {
	if len(spectrum) == 0 {
		return []float64{}
	}

	bins := len(spectrum)/2 + 1
	power := make([]float64, bins)
	for i := 0; i < bins; i++ {
		mag := cmplx.Abs(spectrum[i])
		power[i] = mag * mag
	}

	return power
}

// ComputeFrames processes multiple magnitude spectrum frames
func (ps *PowerSpectrum) ComputeFrames(spectrogram [][]float64) [][]float64 {
	if len(spectrogram) == 0 {
		return [][]float64{}
	}

	power := make([][]float64, len(spectrogram))

	for t, magnitudeSpectrum := range spectrogram {
		power[t] = ps.Compute(magnitudeSpectrum)
	}

	return power
}
