package config

// FollowerConfig configures a score-following session
type FollowerConfig struct {
	// Analysis front end
	SampleRate   int    `json:"sample_rate"`
	WindowLength int    `json:"window_length"`
	HopLength    int    `json:"hop_length"`
	FeatureKind  string `json:"feature_kind"`
	TuningFreq   float64 `json:"tuning_freq"` // A4 reference, Hz

	// Online DTW constraints
	WinSize     int     `json:"win_size"`
	MaxRunCount int     `json:"max_run_count"`
	DiagWeight  float64 `json:"diag_weight"`
}

// DefaultFollowerConfig returns the production session parameters
func DefaultFollowerConfig() FollowerConfig {
	return FollowerConfig{
		SampleRate:   44100,
		WindowLength: 4096,
		HopLength:    4096, // non-overlapping windows by default
		FeatureKind:  "cens",
		TuningFreq:   440.0,
		WinSize:      50,
		MaxRunCount:  3,
		DiagWeight:   0.75,
	}
}

// IntonationConfig configures the pitch/intonation pipeline
type IntonationConfig struct {
	SampleRate   int `json:"sample_rate"`
	WindowLength int `json:"window_length"`

	// Pitch detector
	YinThreshold float64 `json:"yin_threshold"`
	MinFreq      float64 `json:"min_freq"`
	MaxFreq      float64 `json:"max_freq"`

	// Error folding and rejection
	OctaveErrorThreshold   int     `json:"octave_error_threshold"`
	SemitoneErrorThreshold float64 `json:"semitone_error_threshold"`

	// Per-note aggregation and classification
	SmoothingDivisor float64 `json:"smoothing_divisor"`
	MistakeThreshold float64 `json:"mistake_threshold"`
}

// DefaultIntonationConfig returns the production intonation parameters
func DefaultIntonationConfig() IntonationConfig {
	return IntonationConfig{
		SampleRate:             44100,
		WindowLength:           4096,
		YinThreshold:           0.15,
		MinFreq:                55.0,   // A1
		MaxFreq:                2093.0, // C7
		OctaveErrorThreshold:   1,
		SemitoneErrorThreshold: 1.5,
		SmoothingDivisor:       2.0,
		MistakeThreshold:       0.5,
	}
}
