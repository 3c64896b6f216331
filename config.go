package playout

import (
	"fmt"

	"github.com/opd-ai/playout/buffer"
	"github.com/opd-ai/playout/dsp"
)

// PlayoutMode selects the engine's adaptation policy.
type PlayoutMode int

const (
	// PlayoutModeNormal enables the full adaptive behavior.
	PlayoutModeNormal PlayoutMode = iota
	// PlayoutModeFax disables the time-scale operations so output timing
	// is a pure function of the input, useful for modem-like signals and
	// deterministic testing.
	PlayoutModeFax
)

func (m PlayoutMode) String() string {
	if m == PlayoutModeFax {
		return "fax"
	}
	return "normal"
}

// Config carries the construction parameters of an Engine.
type Config struct {
	// SampleRateHz is the initial output rate; the engine follows the
	// decoded stream's rate after the first packet.
	SampleRateHz int

	// PlayoutMode selects normal adaptive playout or fax mode.
	PlayoutMode PlayoutMode

	// BackgroundNoiseMode governs what long concealment decays into.
	BackgroundNoiseMode dsp.BackgroundNoiseMode

	// MaxPacketsInBuffer bounds the jitter buffer; zero selects
	// buffer.DefaultMaxPackets.
	MaxPacketsInBuffer int

	// NoiseSeed seeds the private noise generators so runs are
	// reproducible. Zero selects a fixed default seed.
	NoiseSeed int64
}

// DefaultConfig returns the configuration used by a typical voice session:
// 16 kHz playout, adaptive mode, background noise off.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:        16000,
		PlayoutMode:         PlayoutModeNormal,
		BackgroundNoiseMode: dsp.BackgroundNoiseOff,
		MaxPacketsInBuffer:  buffer.DefaultMaxPackets,
	}
}

// Validate reports whether the configuration can drive an engine.
func (c *Config) Validate() error {
	switch c.SampleRateHz {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("%w: sample rate %d Hz", ErrInvalidConfig, c.SampleRateHz)
	}
	if c.PlayoutMode != PlayoutModeNormal && c.PlayoutMode != PlayoutModeFax {
		return fmt.Errorf("%w: playout mode %d", ErrInvalidConfig, int(c.PlayoutMode))
	}
	switch c.BackgroundNoiseMode {
	case dsp.BackgroundNoiseOff, dsp.BackgroundNoiseOn, dsp.BackgroundNoiseFade:
	default:
		return fmt.Errorf("%w: background noise mode %d", ErrInvalidConfig, int(c.BackgroundNoiseMode))
	}
	if c.MaxPacketsInBuffer < 0 {
		return fmt.Errorf("%w: max packets %d", ErrInvalidConfig, c.MaxPacketsInBuffer)
	}
	return nil
}
