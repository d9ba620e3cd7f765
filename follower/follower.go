package follower

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fermata-audio/scorefollow/align"
	"github.com/fermata-audio/scorefollow/config"
	"github.com/fermata-audio/scorefollow/features"
	"github.com/fermata-audio/scorefollow/logging"
	"github.com/fermata-audio/scorefollow/notes"
	"github.com/fermata-audio/scorefollow/transcode"
)

// ErrReferenceLoad indicates the reference audio could not be fetched or
// decoded. Fatal to session construction; no partial follower is returned.
var ErrReferenceLoad = errors.New("reference load failed")

// ScoreFollower owns one online aligner and its reference feature sequence
// for the duration of a performance session, translating frame-domain
// alignment into reference time in seconds.
//
// Frames must be fed in arrival order from a single goroutine; the reference
// sequence is read-only after construction and safe to share with diagnostic
// queries.
type ScoreFollower struct {
	cfg       config.FollowerConfig
	sessionID string

	extractor features.Extractor
	reference *features.Sequence
	aligner   *align.OnlineAligner

	path   []align.PathPoint
	logger logging.Logger
}

// New creates a follower session from a reference audio file. The file is
// decoded, mixed to mono at the configured sample rate, and streamed through
// the feature extractor to build the reference sequence.
func New(referencePath string, cfg config.FollowerConfig) (*ScoreFollower, error) {
	decoder := transcode.NewDecoder(cfg.SampleRate)
	audio, err := decoder.DecodeFile(referencePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceLoad, err)
	}
	return NewFromPCM(audio.PCM, cfg)
}

// NewFromPCM creates a follower session from an already-decoded mono PCM
// buffer at the configured sample rate
func NewFromPCM(pcm []float64, cfg config.FollowerConfig) (*ScoreFollower, error) {
	extractor, err := features.NewExtractor(features.Kind(cfg.FeatureKind), cfg.SampleRate, cfg.WindowLength, cfg.TuningFreq)
	if err != nil {
		return nil, err
	}

	reference, err := features.NewSequenceFromBuffer(extractor, cfg.HopLength, pcm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReferenceLoad, err)
	}

	aligner, err := align.NewOnlineAligner(reference, align.Params{
		WinSize:     cfg.WinSize,
		MaxRunCount: cfg.MaxRunCount,
		DiagWeight:  cfg.DiagWeight,
	})
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	sf := &ScoreFollower{
		cfg:       cfg,
		sessionID: sessionID,
		extractor: extractor,
		reference: reference,
		aligner:   aligner,
		logger: logging.WithFields(logging.Fields{
			"component": "score_follower",
			"session":   sessionID,
			"ref_len":   reference.Len(),
		}),
	}

	sf.logger.Info("session created", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"win_len":     cfg.WindowLength,
		"hop_len":     cfg.HopLength,
		"win_size":    cfg.WinSize,
	})

	return sf, nil
}

// Step feeds one live audio frame and returns the estimated reference time
// in seconds. Short frames are zero-padded to the window length. The
// returned time marks the END of the matched reference window, so a session
// that tracks the whole reference ends at its full duration.
func (sf *ScoreFollower) Step(frame []float64) (float64, error) {
	if len(frame) < sf.cfg.WindowLength {
		padded := make([]float64, sf.cfg.WindowLength)
		copy(padded, frame)
		frame = padded
	}

	refIdx, err := sf.aligner.Insert(frame)
	if err != nil {
		return 0, err
	}

	sf.path = append(sf.path, align.PathPoint{
		RefIndex:  refIdx,
		LiveIndex: sf.aligner.LiveIndex(),
	})

	return float64(refIdx+1) * float64(sf.cfg.WindowLength) / float64(sf.cfg.SampleRate), nil
}

// SessionID returns the unique id attached to this session's log fields
func (sf *ScoreFollower) SessionID() string {
	return sf.sessionID
}

// Path returns a copy of the per-step session path: one (reported reference
// index, live index) pair per Step call
func (sf *ScoreFollower) Path() []align.PathPoint {
	path := make([]align.PathPoint, len(sf.path))
	copy(path, sf.path)
	return path
}

// AlignerPath returns the aligner's full internal path, which may carry
// multiple points per step when the reference pointer advanced several rows
func (sf *ScoreFollower) AlignerPath() []align.PathPoint {
	return sf.aligner.Path()
}

// StepLog returns the aligner's per-step decision log
func (sf *ScoreFollower) StepLog() []align.StepRecord {
	return sf.aligner.StepLog()
}

// Snapshot returns a read-only copy of the accumulated-cost band
func (sf *ScoreFollower) Snapshot() *align.CostSnapshot {
	return sf.aligner.Snapshot()
}

// BackwardsPath walks the cost band backward from the current frontier for
// up to lookback reference steps. Diagnostics only.
func (sf *ScoreFollower) BackwardsPath(lookback int) []align.PathPoint {
	return sf.aligner.BackwardsPath(lookback)
}

// Reference returns the read-only reference feature sequence
func (sf *ScoreFollower) Reference() *features.Sequence {
	return sf.reference
}

// StepSeconds returns the duration one path index covers on either axis
func (sf *ScoreFollower) StepSeconds() float64 {
	return float64(sf.cfg.HopLength) / float64(sf.cfg.SampleRate)
}

// ReferenceDuration returns the duration of the reference in seconds
func (sf *ScoreFollower) ReferenceDuration() float64 {
	return float64(sf.reference.Len()) * sf.StepSeconds()
}

// PredictNoteTimes warps every note's reference onset through the current
// session path, filling the table's predicted live times for the cursor
// dispatcher
func (sf *ScoreFollower) PredictNoteTimes(table *notes.Table) {
	table.PredictTimes(sf.aligner.Path(), sf.StepSeconds())
}

// TempoCurve estimates the performer's tempo relative to the reference from
// the session so far
func (sf *ScoreFollower) TempoCurve(smoothWindow int) []align.TempoPoint {
	return align.TempoCurve(sf.aligner.Path(), sf.StepSeconds(), smoothWindow)
}
