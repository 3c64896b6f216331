package dsp

import (
	"github.com/sirupsen/logrus"
)

// correlationThresholdQ14 is the minimum normalized pitch correlation for a
// time-scale operation to proceed; below it the input passes through
// untouched rather than smearing unvoiced audio.
const correlationThresholdQ14 = 14746 // 0.9

// Accelerate shortens the input by one pitch period, preserving pitch by
// crossfading two adjacent periods into one. It returns the output and the
// number of samples removed; when the input is too short or not periodic
// enough it returns the input unchanged and zero.
func Accelerate(input []int16, sampleRateHz, channels int) ([]int16, int) {
	lag, ok := timeScaleLag(input, sampleRateHz, channels)
	if !ok {
		return input, 0
	}

	// Fold the last two periods into one.
	head := len(input) - 2*lag
	periodA := input[head : head+lag]
	periodB := input[head+lag:]

	out := make([]int16, 0, len(input)-lag)
	out = append(out, input[:head]...)
	out = append(out, crossFade(periodA, periodB)...)

	logrus.WithFields(logrus.Fields{
		"function": "Accelerate",
		"lag":      lag,
		"removed":  lag,
	}).Debug("Removed one pitch period")
	return out, lag
}

// PreemptiveExpand lengthens the input by one pitch period, repeating the
// final period with a crossfaded seam. It returns the output and the number
// of samples added; when the input is too short or not periodic enough it
// returns the input unchanged and zero.
func PreemptiveExpand(input []int16, sampleRateHz, channels int) ([]int16, int) {
	lag, ok := timeScaleLag(input, sampleRateHz, channels)
	if !ok {
		return input, 0
	}

	head := len(input) - 2*lag
	periodA := input[head : head+lag]
	periodB := input[head+lag:]

	out := make([]int16, 0, len(input)+lag)
	out = append(out, input[:head+lag]...)
	// The seam repeats the second-to-last period faded into the last one.
	out = append(out, crossFade(periodB, periodA)...)
	out = append(out, periodB...)

	logrus.WithFields(logrus.Fields{
		"function": "PreemptiveExpand",
		"lag":      lag,
		"added":    lag,
	}).Debug("Inserted one pitch period")
	return out, lag
}

// timeScaleLag runs the coarse-then-exact pitch search shared by both
// time-scale operations and applies the periodicity gate.
func timeScaleLag(input []int16, sampleRateHz, channels int) (int, bool) {
	if channels < 1 {
		channels = 1
	}
	minLag := minPitchMs * sampleRateHz / 1000 * channels
	maxLag := maxPitchMs * sampleRateHz / 1000 * channels
	if len(input) < 2*maxLag {
		return 0, false
	}

	// Coarse search on a decimated copy keeps the correlation cost flat
	// across sample rates.
	coarse := decimate4(input, channels)
	coarseLag := bestPitchLag(coarse, minLag/(4*channels), maxLag/(4*channels), minLag/(4*channels), 1)
	if coarseLag == 0 {
		return 0, false
	}

	// Refine around the coarse estimate at full resolution.
	refineMin := (coarseLag - 1) * 4 * channels
	if refineMin < minLag {
		refineMin = minLag
	}
	refineMax := (coarseLag + 1) * 4 * channels
	if refineMax > maxLag {
		refineMax = maxLag
	}
	lag := bestPitchLag(input, refineMin, refineMax, minLag, channels)
	if lag == 0 || len(input) < 2*lag {
		return 0, false
	}

	// Gate on normalized correlation so only clearly periodic audio is
	// stretched.
	cross := crossCorrelation(input, lag, lag)
	if cross <= 0 {
		return 0, false
	}
	en1 := energy(input, lag, 0)
	en2 := energy(input, lag, lag)
	if en1 == 0 || en2 == 0 {
		return 0, false
	}
	if float64(cross)*float64(cross)*16384*16384 <
		float64(correlationThresholdQ14)*float64(correlationThresholdQ14)*float64(en1)*float64(en2) {
		return 0, false
	}
	return lag, true
}
