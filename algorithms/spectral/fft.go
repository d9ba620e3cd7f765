package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// Transformer computes the forward real FFT of a frame. Two implementations
// may exist side by side: the portable reference one (always correct, used by
// all tests) and an optional accelerated one registered by a platform build.
// Both must produce numerically equivalent output.
type Transformer interface {
	Forward(frame []float64) []complex128
}

// FFT is the portable reference Transformer backed by mjibson/go-dsp
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Forward computes the forward FFT of a real-valued frame
func (f *FFT) Forward(frame []float64) []complex128 {
	if len(frame) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes efficiently, including non-power-of-2
	return fft.FFTReal(frame)
}

// Inverse computes the inverse FFT
func (f *FFT) Inverse(spectrum []complex128) []complex128 {
	if len(spectrum) == 0 {
		return []complex128{}
	}

	return fft.IFFT(spectrum)
}

var accelerated Transformer

// RegisterAccelerated installs a platform-accelerated Transformer. The
// registered implementation must not diverge numerically from the reference
// FFT; callers that need reproducible output should construct FFT directly.
func RegisterAccelerated(t Transformer) {
	accelerated = t
}

// DefaultTransformer returns the accelerated Transformer when one has been
// registered for this platform, falling back to the portable reference FFT.
func DefaultTransformer() Transformer {
	if accelerated != nil {
		return accelerated
	}
	return NewFFT()
}
