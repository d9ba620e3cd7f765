package features

import (
	"fmt"

	"github.com/fermata-audio/scorefollow/algorithms/chroma"
)

// Extractor is the capability interface a feature kind implements: turn one
// fixed-length audio frame into a feature vector and compare two vectors.
// Chroma (CENS) is the only kind shipped today; MFCC or similar kinds slot
// in here without touching the aligner.
type Extractor interface {
	Extract(frame []float64) ([]float64, error)
	Similarity(a, b []float64) float64
	SampleRate() int
	WindowLength() int
}

// Kind selects a feature extractor implementation
type Kind string

const (
	// KindCENS is the chroma energy normalized statistics extractor
	KindCENS Kind = "cens"
)

// NewExtractor creates an extractor of the given kind. tuningFreq is the A4
// reference frequency in Hz; non-positive values fall back to 440.
func NewExtractor(kind Kind, sampleRate, winLen int, tuningFreq float64) (Extractor, error) {
	if tuningFreq <= 0 {
		tuningFreq = 440.0
	}
	switch kind {
	case KindCENS, "":
		return chroma.NewCENSExtractorWithTuning(sampleRate, winLen, tuningFreq), nil
	default:
		return nil, fmt.Errorf("unknown feature kind: %q", kind)
	}
}

// Sequence is an append-only ordered store of feature vectors (featuregram)
// produced by one Extractor. The reference sequence is built once from a full
// audio buffer; the live sequence grows one frame per insertion for the life
// of a performance session. A Sequence never shrinks.
type Sequence struct {
	extractor   Extractor
	hopLen      int
	featuregram [][]float64
}

// NewSequence creates an empty sequence bound to an extractor
func NewSequence(extractor Extractor, hopLen int) *Sequence {
	if hopLen <= 0 {
		hopLen = extractor.WindowLength()
	}
	return &Sequence{
		extractor:   extractor,
		hopLen:      hopLen,
		featuregram: make([][]float64, 0),
	}
}

// NewSequenceFromBuffer builds a sequence by streaming fixed-size, possibly
// overlapping windows over a full audio buffer. The final short window is
// zero-padded to the window length.
func NewSequenceFromBuffer(extractor Extractor, hopLen int, pcm []float64) (*Sequence, error) {
	seq := NewSequence(extractor, hopLen)
	winLen := extractor.WindowLength()

	for start := 0; start < len(pcm); start += seq.hopLen {
		end := start + winLen
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := seq.Append(pcm[start:end]); err != nil {
			return nil, fmt.Errorf("frame at sample %d: %w", start, err)
		}
	}

	return seq, nil
}

// Append extracts a feature vector from one frame and stores it. Frames
// shorter than the window length are zero-padded; longer frames are an error
// surfaced from the extractor.
func (s *Sequence) Append(frame []float64) error {
	winLen := s.extractor.WindowLength()
	if len(frame) < winLen {
		padded := make([]float64, winLen)
		copy(padded, frame)
		frame = padded
	}

	vec, err := s.extractor.Extract(frame)
	if err != nil {
		return err
	}

	s.featuregram = append(s.featuregram, vec)
	return nil
}

// Len returns the number of stored feature vectors
func (s *Sequence) Len() int {
	return len(s.featuregram)
}

// At returns the feature vector at index i
func (s *Sequence) At(i int) []float64 {
	return s.featuregram[i]
}

// Similarity compares vector i of this sequence with vector j of another
// sequence (which may be the same one)
func (s *Sequence) Similarity(i int, other *Sequence, j int) float64 {
	return s.extractor.Similarity(s.featuregram[i], other.featuregram[j])
}

// SampleRate returns the extractor's sample rate
func (s *Sequence) SampleRate() int {
	return s.extractor.SampleRate()
}

// WindowLength returns the extractor's analysis window length
func (s *Sequence) WindowLength() int {
	return s.extractor.WindowLength()
}

// HopLength returns the hop between successive windows in samples
func (s *Sequence) HopLength() int {
	return s.hopLen
}

// Extractor returns the extractor this sequence was built with
func (s *Sequence) Extractor() Extractor {
	return s.extractor
}
