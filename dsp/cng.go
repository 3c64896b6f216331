package dsp

import (
	"errors"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// ErrEmptyNoisePayload indicates a comfort-noise packet without the
// mandatory level byte.
var ErrEmptyNoisePayload = errors.New("comfort noise payload is empty")

// maxReflectionCoeffs bounds the optional spectral envelope of a
// comfort-noise payload (RFC 3389 allows up to the payload length).
const maxReflectionCoeffs = 12

// ComfortNoiseGenerator synthesizes noise from comfort-noise packet
// parameters: a noise level in -dBov plus optional reflection coefficients
// describing the spectral envelope.
//
// The generator keeps running across packets; a parameter update changes the
// target level smoothly instead of restarting the waveform.
type ComfortNoiseGenerator struct {
	rng             *rand.Rand
	targetAmplitude int
	amplitude       int
	coeffs          []int16
	filterState     []int16
	active          bool
}

// NewComfortNoiseGenerator creates a generator with a private deterministic
// noise source.
func NewComfortNoiseGenerator(seed int64) *ComfortNoiseGenerator {
	return &ComfortNoiseGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Reset silences the generator and drops its noise model.
func (c *ComfortNoiseGenerator) Reset() {
	c.targetAmplitude = 0
	c.amplitude = 0
	c.coeffs = nil
	c.filterState = nil
	c.active = false
}

// Active reports whether parameters have been received since the last reset.
func (c *ComfortNoiseGenerator) Active() bool { return c.active }

// UpdateParameters ingests one comfort-noise payload. The first byte is the
// noise level in -dBov (0..127); any following bytes are Q7 reflection
// coefficients shaping the spectrum.
func (c *ComfortNoiseGenerator) UpdateParameters(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyNoisePayload
	}
	levelDbov := int(payload[0] & 0x7f)
	c.targetAmplitude = int(32767 * math.Pow(10, -float64(levelDbov)/20))

	nCoeffs := len(payload) - 1
	if nCoeffs > maxReflectionCoeffs {
		nCoeffs = maxReflectionCoeffs
	}
	c.coeffs = c.coeffs[:0]
	for i := 0; i < nCoeffs; i++ {
		// Payload bytes are sign-and-magnitude around 127 per RFC 3389.
		c.coeffs = append(c.coeffs, int16(int(payload[1+i])-127))
	}
	if len(c.filterState) != nCoeffs {
		c.filterState = make([]int16, nCoeffs)
	}
	c.active = true

	logrus.WithFields(logrus.Fields{
		"function":   "ComfortNoiseGenerator.UpdateParameters",
		"level_dbov": levelDbov,
		"num_coeffs": nCoeffs,
	}).Debug("Updated comfort noise parameters")
	return nil
}

// Generate synthesizes length samples of comfort noise at the current level.
func (c *ComfortNoiseGenerator) Generate(length int) []int16 {
	out := make([]int16, length)
	if !c.active {
		return out
	}
	for i := range out {
		// Slew the running amplitude toward the target so level changes
		// between packets do not click.
		if c.amplitude < c.targetAmplitude {
			c.amplitude++
		} else if c.amplitude > c.targetAmplitude {
			c.amplitude--
		}
		if c.amplitude == 0 {
			continue
		}
		sample := c.rng.Intn(2*c.amplitude+1) - c.amplitude
		out[i] = c.shape(int16(sample))
	}
	return out
}

// shape runs one sample through the reflection-coefficient lattice.
func (c *ComfortNoiseGenerator) shape(sample int16) int16 {
	acc := int32(sample)
	for i, k := range c.coeffs {
		acc += int32(k) * int32(c.filterState[i]) >> 7
	}
	if acc > 32767 {
		acc = 32767
	} else if acc < -32768 {
		acc = -32768
	}
	for i := len(c.filterState) - 1; i > 0; i-- {
		c.filterState[i] = c.filterState[i-1]
	}
	if len(c.filterState) > 0 {
		c.filterState[0] = int16(acc)
	}
	return int16(acc)
}
