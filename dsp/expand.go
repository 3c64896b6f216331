package dsp

import (
	"github.com/sirupsen/logrus"
)

const (
	// MaxConsecutiveExpands is how many concealment ticks may run before
	// the engine hands over to the noise generators (roughly six seconds
	// of 10 ms ticks).
	MaxConsecutiveExpands = 611

	// historyMs is how much decoded audio the expander keeps for pitch
	// extraction.
	historyMs = 120
	// minPitchMs and maxPitchMs bound the pitch search range.
	minPitchMs = 5
	maxPitchMs = 15
	// muteDecayQ14 scales the concealment envelope down every tick.
	muteDecayQ14 = 16220
)

// Expander synthesizes replacement audio for missing packets by repeating
// the dominant pitch cycle of the most recent decoded audio, with an
// envelope that decays toward the background noise floor the longer the loss
// lasts.
type Expander struct {
	history       []int16
	historyMax    int
	sampleRateHz  int
	channels      int
	noise         *BackgroundNoise
	lag           int
	phase         int
	muteFactorQ14 int
	consecutive   int
}

// NewExpander creates an expander for the given stream format. The
// background noise estimator supplies the decay target.
func NewExpander(sampleRateHz, channels int, noise *BackgroundNoise) *Expander {
	if channels < 1 {
		channels = 1
	}
	e := &Expander{
		sampleRateHz: sampleRateHz,
		channels:     channels,
		noise:        noise,
		historyMax:   historyMs * sampleRateHz / 1000 * channels,
	}
	logrus.WithFields(logrus.Fields{
		"function":    "NewExpander",
		"sample_rate": sampleRateHz,
		"channels":    channels,
	}).Debug("Created expander")
	return e
}

// Reset drops the history and concealment state, keeping the stream format.
func (e *Expander) Reset() {
	e.history = nil
	e.lag = 0
	e.phase = 0
	e.muteFactorQ14 = 0
	e.consecutive = 0
}

// SetFormat reconfigures the expander for a new sample rate or channel
// count, dropping the incompatible history.
func (e *Expander) SetFormat(sampleRateHz, channels int) {
	if channels < 1 {
		channels = 1
	}
	if sampleRateHz == e.sampleRateHz && channels == e.channels {
		return
	}
	e.sampleRateHz = sampleRateHz
	e.channels = channels
	e.historyMax = historyMs * sampleRateHz / 1000 * channels
	e.Reset()
}

// UpdateHistory feeds decoded output into the pitch history and ends any
// running concealment.
func (e *Expander) UpdateHistory(samples []int16) {
	e.history = append(e.history, samples...)
	if excess := len(e.history) - e.historyMax; excess > 0 {
		e.history = e.history[excess:]
	}
	e.lag = 0
	e.phase = 0
	e.consecutive = 0
	e.muteFactorQ14 = 0
}

// ConsecutiveExpands returns the number of Generate calls since the last
// decoded frame.
func (e *Expander) ConsecutiveExpands() int { return e.consecutive }

// Generate produces length samples of concealment audio and advances the
// concealment state.
func (e *Expander) Generate(length int) []int16 {
	e.consecutive++

	if len(e.history) < e.minHistory() {
		// Nothing to extrapolate from; fall back to the noise floor.
		return e.noise.Generate(length, false)
	}

	if e.lag == 0 {
		e.pickLag()
		e.muteFactorQ14 = 16384
	}

	out := make([]int16, length)
	cycleStart := len(e.history) - e.lag
	noise := e.noise.Generate(length, false)
	for i := 0; i < length; i++ {
		voiced := int64(e.history[cycleStart+e.phase]) * int64(e.muteFactorQ14) >> 14
		unvoiced := int64(noise[i]) * int64(16384-e.muteFactorQ14) >> 14
		out[i] = saturate16(voiced + unvoiced)
		e.phase++
		if e.phase >= e.lag {
			e.phase = 0
		}
	}

	// Decay the envelope once per generated block.
	e.muteFactorQ14 = e.muteFactorQ14 * muteDecayQ14 >> 14
	return out
}

// GenerateFaded produces length samples for the tail state after the
// concealment limit: the pitch model is abandoned and only the noise floor
// remains, silenced entirely in off and fade modes.
func (e *Expander) GenerateFaded(length int) []int16 {
	e.consecutive++
	return e.noise.Generate(length, true)
}

// MuteFactorQ14 exposes the current envelope gain.
func (e *Expander) MuteFactorQ14() int { return e.muteFactorQ14 }

func (e *Expander) minHistory() int {
	return e.maxLag() + e.searchWindow()
}

func (e *Expander) maxLag() int {
	return maxPitchMs * e.sampleRateHz / 1000 * e.channels
}

func (e *Expander) minLag() int {
	return minPitchMs * e.sampleRateHz / 1000 * e.channels
}

func (e *Expander) searchWindow() int {
	return minPitchMs * e.sampleRateHz / 1000 * e.channels
}

func (e *Expander) pickLag() {
	lag := bestPitchLag(e.history, e.minLag(), e.maxLag(), e.searchWindow(), e.channels)
	if lag == 0 {
		lag = e.minLag()
	}
	e.lag = lag
	e.phase = 0
}

func saturate16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
