package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sine produces a full-ish scale tone with the given period in samples.
func sine(length, period int) []int16 {
	out := make([]int16, length)
	for i := range out {
		out[i] = int16(12000 * math.Sin(2*math.Pi*float64(i)/float64(period)))
	}
	return out
}

func TestCrossFadeEndpoints(t *testing.T) {
	a := []int16{1000, 1000, 1000, 1000}
	b := []int16{-1000, -1000, -1000, -1000}
	out := crossFade(a, b)
	require.Len(t, out, 4)
	assert.Equal(t, int16(1000), out[0])
	assert.Less(t, out[3], int16(0))
	assert.Greater(t, out[1], out[2])
}

func TestBestPitchLagFindsPeriod(t *testing.T) {
	const period = 80 // 10 ms at 8 kHz
	signal := sine(800, period)
	lag := bestPitchLag(signal, 40, 120, 40, 1)
	assert.Equal(t, period, lag)
}

func TestBestPitchLagTooShort(t *testing.T) {
	assert.Equal(t, 0, bestPitchLag(make([]int16, 10), 40, 120, 40, 1))
}

func TestAccelerateRemovesOnePeriod(t *testing.T) {
	const period = 80
	input := sine(480, period) // 60 ms at 8 kHz
	out, removed := Accelerate(input, 8000, 1)
	assert.Equal(t, period, removed)
	assert.Len(t, out, len(input)-period)
}

func TestAcceleratePassthroughOnShortInput(t *testing.T) {
	input := sine(100, 80)
	out, removed := Accelerate(input, 8000, 1)
	assert.Equal(t, 0, removed)
	assert.Equal(t, input, out)
}

func TestAcceleratePassthroughOnNoise(t *testing.T) {
	input := make([]int16, 480)
	v := int32(12345)
	for i := range input {
		v = v*1103515245 + 12345
		input[i] = int16(v >> 16)
	}
	_, removed := Accelerate(input, 8000, 1)
	assert.Equal(t, 0, removed)
}

func TestPreemptiveExpandAddsOnePeriod(t *testing.T) {
	const period = 80
	input := sine(480, period)
	out, added := PreemptiveExpand(input, 8000, 1)
	assert.Equal(t, period, added)
	assert.Len(t, out, len(input)+period)
}

func TestExpanderGeneratesFromHistory(t *testing.T) {
	noise := NewBackgroundNoise(BackgroundNoiseOff, 1)
	e := NewExpander(8000, 1, noise)
	e.UpdateHistory(sine(960, 80))

	out := e.Generate(80)
	require.Len(t, out, 80)
	assert.Equal(t, 1, e.ConsecutiveExpands())

	nonZero := false
	for _, s := range out {
		if s != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero)
}

func TestExpanderEnvelopeDecays(t *testing.T) {
	noise := NewBackgroundNoise(BackgroundNoiseOff, 1)
	e := NewExpander(8000, 1, noise)
	e.UpdateHistory(sine(960, 80))

	e.Generate(80)
	first := e.MuteFactorQ14()
	for i := 0; i < 500; i++ {
		e.Generate(80)
	}
	assert.Less(t, e.MuteFactorQ14(), first)
}

func TestExpanderCountResetsOnHistory(t *testing.T) {
	noise := NewBackgroundNoise(BackgroundNoiseOff, 1)
	e := NewExpander(8000, 1, noise)
	e.UpdateHistory(sine(960, 80))
	e.Generate(80)
	e.Generate(80)
	require.Equal(t, 2, e.ConsecutiveExpands())

	e.UpdateHistory(sine(80, 80))
	assert.Equal(t, 0, e.ConsecutiveExpands())
}

func TestExpanderFadedOutputByMode(t *testing.T) {
	tests := []struct {
		name    string
		mode    BackgroundNoiseMode
		allZero bool
	}{
		{"off is silent", BackgroundNoiseOff, true},
		{"fade is silent after transition", BackgroundNoiseFade, true},
		{"on keeps noise", BackgroundNoiseOn, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noise := NewBackgroundNoise(tt.mode, 42)
			noise.Update(sine(160, 80))
			e := NewExpander(8000, 1, noise)
			out := e.GenerateFaded(160)
			allZero := true
			for _, s := range out {
				if s != 0 {
					allZero = false
					break
				}
			}
			assert.Equal(t, tt.allZero, allZero)
		})
	}
}

func TestMergeKeepsDecodedLength(t *testing.T) {
	noise := NewBackgroundNoise(BackgroundNoiseOff, 1)
	e := NewExpander(8000, 1, noise)
	e.UpdateHistory(sine(960, 80))
	e.Generate(80)

	decoded := sine(160, 80)
	out := Merge(e, decoded, 8000, 1)
	assert.Len(t, out, len(decoded))
	// The tail beyond the crossfade is the decoded audio untouched.
	assert.Equal(t, decoded[80:], out[80:])
}

func TestBackgroundNoiseTracksQuietFrames(t *testing.T) {
	b := NewBackgroundNoise(BackgroundNoiseOn, 7)
	loud := sine(160, 80)
	quiet := make([]int16, 160)
	for i := range quiet {
		quiet[i] = int16((i % 3) - 1)
	}
	b.Update(loud)
	levelAfterLoud := b.Amplitude()
	b.Update(quiet)
	assert.Less(t, b.Amplitude(), levelAfterLoud)
}

func TestBackgroundNoiseRisesSlowly(t *testing.T) {
	b := NewBackgroundNoise(BackgroundNoiseOn, 7)
	quiet := make([]int16, 160)
	for i := range quiet {
		quiet[i] = 2
	}
	b.Update(quiet)
	floor := b.Amplitude()

	loud := sine(160, 80)
	for i := 0; i < levelHoldFrames-1; i++ {
		b.Update(loud)
	}
	assert.Equal(t, floor, b.Amplitude())
	b.Update(loud)
	assert.Greater(t, b.Amplitude(), floor)
}

func TestComfortNoiseLevels(t *testing.T) {
	c := NewComfortNoiseGenerator(3)
	require.NoError(t, c.UpdateParameters([]byte{20})) // -20 dBov, loud noise

	out := c.Generate(8000)
	var sum int64
	for _, s := range out[4000:] {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	meanLoud := sum / 4000

	require.NoError(t, c.UpdateParameters([]byte{70})) // -70 dBov, near silence
	c.Generate(16000) // let the level slew settle
	out = c.Generate(4000)
	sum = 0
	for _, s := range out {
		v := int64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	assert.Greater(t, meanLoud, 10*(sum/4000+1))
}

func TestComfortNoiseEmptyPayload(t *testing.T) {
	c := NewComfortNoiseGenerator(3)
	err := c.UpdateParameters(nil)
	assert.ErrorIs(t, err, ErrEmptyNoisePayload)
	assert.False(t, c.Active())
}

func TestComfortNoiseInactiveIsSilent(t *testing.T) {
	c := NewComfortNoiseGenerator(3)
	out := c.Generate(160)
	for _, s := range out {
		require.Equal(t, int16(0), s)
	}
}
