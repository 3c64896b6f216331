package playout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/playout/dsp"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 16000, cfg.SampleRateHz)
	assert.Equal(t, PlayoutModeNormal, cfg.PlayoutMode)
	assert.Equal(t, dsp.BackgroundNoiseOff, cfg.BackgroundNoiseMode)
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRateHz = 44100
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.PlayoutMode = PlayoutMode(7)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.BackgroundNoiseMode = dsp.BackgroundNoiseMode(7)
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MaxPacketsInBuffer = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SampleRateHz = 11025
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestModeAndOutputTypeStrings(t *testing.T) {
	assert.Equal(t, "normal", PlayoutModeNormal.String())
	assert.Equal(t, "fax", PlayoutModeFax.String())
	assert.Equal(t, "normal", OutputNormal.String())
	assert.Equal(t, "cng", OutputCNG.String())
	assert.Equal(t, "plc", OutputPLC.String())
	assert.Equal(t, "plc-to-cng", OutputPLCtoCNG.String())
}
