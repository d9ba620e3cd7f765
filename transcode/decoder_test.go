package transcode_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermata-audio/scorefollow/logging"
	"github.com/fermata-audio/scorefollow/transcode"
)

func TestMain(m *testing.M) {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	os.Exit(m.Run())
}

// writeWAV renders a mono 16-bit WAV file of a sine tone
func writeWAV(t *testing.T, path string, sampleRate int, freq float64, samples int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := make([]int, samples)
	for i := range data {
		data[i] = int(0.5 * 32767 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestDecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 440, 4000)

	decoded, err := transcode.NewDecoder(8000).DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, decoded.SampleRate)
	assert.Len(t, decoded.PCM, 4000)
	assert.InDelta(t, 0.5, decoded.Duration.Seconds(), 1e-3)
	assert.Equal(t, path, decoded.Source)

	peak := 0.0
	for _, s := range decoded.PCM {
		require.LessOrEqual(t, math.Abs(s), 1.0, "samples normalized to [-1, 1]")
		if math.Abs(s) > peak {
			peak = math.Abs(s)
		}
	}
	assert.InDelta(t, 0.5, peak, 0.01)
}

func TestDecodeWAVResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 16000, 440, 8000)

	decoded, err := transcode.NewDecoder(8000).DecodeFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, decoded.SampleRate)
	assert.InDelta(t, 4000, len(decoded.PCM), 2, "half a second at the target rate")
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.flac")
	require.NoError(t, os.WriteFile(path, []byte("flac data"), 0o644))

	_, err := transcode.NewDecoder(8000).DecodeFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, transcode.ErrUnsupportedFormat)
}

func TestDecodeMissingFile(t *testing.T) {
	_, err := transcode.NewDecoder(8000).DecodeFile(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestDecodeInvalidWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff"), 0o644))

	_, err := transcode.NewDecoder(8000).DecodeFile(path)
	assert.Error(t, err)
}

func TestResample(t *testing.T) {
	pcm := make([]float64, 100)
	for i := range pcm {
		pcm[i] = float64(i)
	}

	same := transcode.Resample(pcm, 8000, 8000)
	assert.Equal(t, pcm, same, "equal rates pass through")

	half := transcode.Resample(pcm, 8000, 4000)
	assert.Len(t, half, 50)
	assert.InDelta(t, 0.0, half[0], 1e-12)
	assert.InDelta(t, 20.0, half[10], 1e-12, "linear signal survives linear resampling")

	double := transcode.Resample(pcm, 4000, 8000)
	assert.Len(t, double, 200)
	assert.InDelta(t, 5.0, double[10], 1e-12)

	assert.Empty(t, transcode.Resample(nil, 8000, 4000))
}
