package dsp

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

// BackgroundNoiseMode selects what long concealment decays into.
type BackgroundNoiseMode int

const (
	// BackgroundNoiseOff decays concealment to exact digital silence.
	BackgroundNoiseOff BackgroundNoiseMode = iota
	// BackgroundNoiseOn keeps synthesizing noise at the estimated ambient
	// level indefinitely.
	BackgroundNoiseOn
	// BackgroundNoiseFade plays ambient noise during the concealment
	// transition, then decays to silence.
	BackgroundNoiseFade
)

func (m BackgroundNoiseMode) String() string {
	switch m {
	case BackgroundNoiseOn:
		return "on"
	case BackgroundNoiseFade:
		return "fade"
	default:
		return "off"
	}
}

// BackgroundNoise estimates the ambient noise floor of decoded speech and
// synthesizes matching noise for long concealment stretches.
//
// The level estimate tracks the quietest recent frames so that speech energy
// does not inflate it.
type BackgroundNoise struct {
	mode      BackgroundNoiseMode
	rng       *rand.Rand
	amplitude int
	holdCount int
}

// levelHoldFrames is how many consecutive louder frames it takes before the
// noise floor estimate is allowed to rise.
const levelHoldFrames = 100

// NewBackgroundNoise creates an estimator with a private deterministic
// noise source.
func NewBackgroundNoise(mode BackgroundNoiseMode, seed int64) *BackgroundNoise {
	logrus.WithFields(logrus.Fields{
		"function": "NewBackgroundNoise",
		"mode":     mode.String(),
	}).Debug("Created background noise estimator")
	return &BackgroundNoise{
		mode: mode,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Mode returns the configured background-noise mode.
func (b *BackgroundNoise) Mode() BackgroundNoiseMode { return b.mode }

// Reset clears the noise floor estimate.
func (b *BackgroundNoise) Reset() {
	b.amplitude = 0
	b.holdCount = 0
}

// Update folds one decoded frame into the noise floor estimate.
func (b *BackgroundNoise) Update(frame []int16) {
	if len(frame) == 0 {
		return
	}
	var sumAbs int64
	for _, s := range frame {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sumAbs += v
	}
	level := int(sumAbs / int64(len(frame)))

	if level <= b.amplitude || b.amplitude == 0 {
		b.amplitude = level
		b.holdCount = 0
		return
	}
	b.holdCount++
	if b.holdCount >= levelHoldFrames {
		// The ambient level genuinely rose; step the estimate up.
		b.amplitude += (level - b.amplitude) / 4
		b.holdCount = 0
	}
}

// Amplitude returns the current noise floor estimate as a mean absolute
// sample value.
func (b *BackgroundNoise) Amplitude() int { return b.amplitude }

// Generate synthesizes length samples of background noise. faded reports
// that the concealment transition has completed; in fade mode the output is
// silence from then on, and in off mode it always is.
func (b *BackgroundNoise) Generate(length int, faded bool) []int16 {
	out := make([]int16, length)
	if b.mode == BackgroundNoiseOff {
		return out
	}
	if b.mode == BackgroundNoiseFade && faded {
		return out
	}
	amp := b.amplitude
	if amp == 0 {
		amp = 1
	}
	for i := range out {
		out[i] = int16(b.rng.Intn(2*amp+1) - amp)
	}
	return out
}
