package logging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	_ Logger = (*DefaultLogger)(nil)
	_ Logger = (*NoOpLogger)(nil)
)

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "FATAL", FatalLevel.String())
	assert.Equal(t, "UNKNOWN", Level(99).String())
}

func TestFormatMessage(t *testing.T) {
	d := NewDefaultLoggerNoColor()

	msg := d.formatMessage(ErrorLevel, errors.New("boom"), "decode failed", Fields{"file": "x.wav"})
	assert.Contains(t, msg, "[ERROR]")
	assert.Contains(t, msg, "decode failed")
	assert.Contains(t, msg, "boom")
	assert.Contains(t, msg, "x.wav")

	msg = d.formatMessage(FatalLevel, nil, "session unrecoverable")
	assert.Contains(t, msg, "[FATAL]")
}

func TestWithFieldsMerges(t *testing.T) {
	d := NewDefaultLoggerNoColor().WithFields(Fields{"component": "aligner"})

	child, ok := d.(*DefaultLogger)
	assert.True(t, ok)

	msg := child.formatMessage(InfoLevel, nil, "step", Fields{"ref_index": 4})
	assert.Contains(t, msg, "component")
	assert.Contains(t, msg, "ref_index")
}

func TestSetGlobalLoggerNilFallsBackToNoOp(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	_, ok := GetGlobalLogger().(*NoOpLogger)
	assert.True(t, ok)

	// the no-op logger swallows every level, fatal included
	Fatal(errors.New("boom"), "ignored")
}
