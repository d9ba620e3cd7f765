package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFTImpulse(t *testing.T) {
	f := NewFFT()

	frame := make([]float64, 64)
	frame[0] = 1.0

	spectrum := f.Forward(frame)
	require.Len(t, spectrum, 64)

	// the spectrum of a unit impulse is flat with magnitude one
	for i, c := range spectrum {
		assert.InDelta(t, 1.0, real(c), 1e-9, "bin %d", i)
		assert.InDelta(t, 0.0, imag(c), 1e-9, "bin %d", i)
	}
}

func TestFFTRoundTrip(t *testing.T) {
	f := NewFFT()

	frame := make([]float64, 32)
	for i := range frame {
		frame[i] = math.Sin(2*math.Pi*3*float64(i)/32) + 0.25*math.Cos(2*math.Pi*7*float64(i)/32)
	}

	back := f.Inverse(f.Forward(frame))
	require.Len(t, back, 32)
	for i := range frame {
		assert.InDelta(t, frame[i], real(back[i]), 1e-9)
	}
}

func TestFFTEmpty(t *testing.T) {
	f := NewFFT()
	assert.Empty(t, f.Forward(nil))
	assert.Empty(t, f.Inverse(nil))
}

func TestPowerSpectrumFromFFT(t *testing.T) {
	const n = 64
	const bin = 8

	frame := make([]float64, n)
	for i := range frame {
		frame[i] = math.Sin(2 * math.Pi * bin * float64(i) / n)
	}

	power := NewPowerSpectrum().ComputeFromFFT(NewFFT().Forward(frame))
	require.Len(t, power, n/2+1)

	peak := 0
	for i, p := range power {
		if p > power[peak] {
			peak = i
		}
		assert.GreaterOrEqual(t, p, 0.0)
	}
	assert.Equal(t, bin, peak, "power concentrates in the sine's bin")
}

func TestPowerSpectrumFromMagnitudes(t *testing.T) {
	power := NewPowerSpectrum().Compute([]float64{0, 1, 2, 3})
	assert.Equal(t, []float64{0, 1, 4, 9}, power)

	frames := NewPowerSpectrum().ComputeFrames([][]float64{{2}, {3}})
	assert.Equal(t, [][]float64{{4}, {9}}, frames)
}

func TestDefaultTransformerFallsBackToReference(t *testing.T) {
	tr := DefaultTransformer()
	require.NotNil(t, tr)

	frame := make([]float64, 16)
	frame[0] = 1.0
	assert.Len(t, tr.Forward(frame), 16)
}
