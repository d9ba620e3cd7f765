package transcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/fermata-audio/scorefollow/logging"
)

// ErrUnsupportedFormat indicates a reference asset with an extension the
// decoder cannot handle
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded audio: mono float PCM at the target rate
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
}

// Decoder decodes reference assets to mono float PCM at a target sample
// rate. WAV and MP3 are supported; multi-channel input is mixed down and
// off-rate input is linearly resampled.
type Decoder struct {
	targetSampleRate int
	logger           logging.Logger
}

// NewDecoder creates a decoder targeting the given sample rate
func NewDecoder(targetSampleRate int) *Decoder {
	return &Decoder{
		targetSampleRate: targetSampleRate,
		logger: logging.WithFields(logging.Fields{
			"component":   "transcode",
			"sample_rate": targetSampleRate,
		}),
	}
}

// DecodeFile decodes a reference audio file by extension
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open reference audio: %w", err)
	}
	defer f.Close()

	var pcm []float64
	var sourceRate int

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		pcm, sourceRate, err = d.decodeWAV(f)
	case ".mp3":
		pcm, sourceRate, err = d.decodeMP3(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	if sourceRate != d.targetSampleRate {
		d.logger.Debug("resampling reference", logging.Fields{
			"source_rate": sourceRate,
			"target_rate": d.targetSampleRate,
		})
		pcm = Resample(pcm, sourceRate, d.targetSampleRate)
	}

	duration := time.Duration(float64(len(pcm)) / float64(d.targetSampleRate) * float64(time.Second))
	d.logger.Info("reference decoded", logging.Fields{
		"file":     filename,
		"samples":  len(pcm),
		"duration": duration.String(),
	})

	return &AudioData{
		PCM:        pcm,
		SampleRate: d.targetSampleRate,
		Duration:   duration,
		Source:     filename,
	}, nil
}

// decodeWAV decodes a WAV stream to mono float PCM in [-1, 1]
func (d *Decoder) decodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read PCM: %w", err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) / scale
		}
		pcm[i] = sum / float64(channels)
	}

	return pcm, buf.Format.SampleRate, nil
}

// decodeMP3 decodes an MP3 stream to mono float PCM in [-1, 1].
// go-mp3 always emits 16-bit stereo frames.
func (d *Decoder) decodeMP3(r io.Reader) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open MP3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("read MP3: %w", err)
	}

	frames := len(raw) / 4
	pcm := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		pcm[i] = (float64(left) + float64(right)) / 2.0 / 32768.0
	}

	return pcm, dec.SampleRate(), nil
}

// Resample converts PCM between sample rates by linear interpolation.
// Adequate for feature extraction; the chroma front end is insensitive to
// interpolation artifacts well above the pitch range.
func Resample(pcm []float64, sourceRate, targetRate int) []float64 {
	if sourceRate == targetRate || len(pcm) == 0 {
		return pcm
	}

	ratio := float64(sourceRate) / float64(targetRate)
	outLen := int(float64(len(pcm)) / ratio)
	out := make([]float64, outLen)

	for i := range out {
		pos := float64(i) * ratio
		lo := int(pos)
		hi := lo + 1
		if hi >= len(pcm) {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = pcm[lo] + frac*(pcm[hi]-pcm[lo])
	}

	return out
}
