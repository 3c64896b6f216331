package dsp

// crossCorrelation computes the raw correlation between the window ending at
// the end of signal and the window of the same length ending lag samples
// earlier.
func crossCorrelation(signal []int16, windowLen, lag int) int64 {
	end := len(signal)
	if windowLen > end-lag {
		windowLen = end - lag
	}
	if windowLen <= 0 {
		return 0
	}
	var sum int64
	for i := 0; i < windowLen; i++ {
		a := int64(signal[end-windowLen+i])
		b := int64(signal[end-lag-windowLen+i])
		sum += a * b
	}
	return sum
}

// energy returns the sum of squares over the window ending lag samples before
// the end of signal.
func energy(signal []int16, windowLen, lag int) int64 {
	end := len(signal)
	if windowLen > end-lag {
		windowLen = end - lag
	}
	if windowLen <= 0 {
		return 0
	}
	var sum int64
	for i := 0; i < windowLen; i++ {
		v := int64(signal[end-lag-windowLen+i])
		sum += v * v
	}
	return sum
}

// bestPitchLag searches [minLag, maxLag] for the lag maximizing the
// normalized correlation between the tail of signal and its lagged copy.
// Lags are restricted to multiples of step so interleaved channels stay
// aligned. Returns 0 when the signal is too short for any candidate.
func bestPitchLag(signal []int16, minLag, maxLag, windowLen, step int) int {
	if step < 1 {
		step = 1
	}
	minLag = roundUp(minLag, step)
	bestLag := 0
	// Compare ratios cross/sqrt(energy) without the square root:
	// cross_a^2 * energy_b > cross_b^2 * energy_a, guarding the sign.
	var bestCross, bestEnergy int64 = 0, 1
	for lag := minLag; lag <= maxLag; lag += step {
		if lag+windowLen > len(signal) {
			break
		}
		cross := crossCorrelation(signal, windowLen, lag)
		if cross <= 0 {
			continue
		}
		en := energy(signal, windowLen, lag)
		if en == 0 {
			continue
		}
		if mulCompare(cross, bestEnergy, bestCross, en) {
			bestLag = lag
			bestCross = cross
			bestEnergy = en
		}
	}
	return bestLag
}

// mulCompare reports whether a*a*x > b*b*y without overflowing, using
// float64 for the magnitude comparison. The inputs are correlation sums, so
// the relative precision of float64 is ample.
func mulCompare(a, x, b, y int64) bool {
	return float64(a)*float64(a)*float64(x) > float64(b)*float64(b)*float64(y)
}

func roundUp(v, step int) int {
	if r := v % step; r != 0 {
		return v + step - r
	}
	return v
}

// crossFade writes a linear fade from a into b over their common length.
func crossFade(a, b []int16) []int16 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]int16, n)
	if n == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		va := int64(a[i]) * int64(n-i)
		vb := int64(b[i]) * int64(i)
		out[i] = int16((va + vb) / int64(n))
	}
	return out
}

// decimate4 returns every fourth sample of one channel, used to run the
// coarse pitch search at a quarter of the session rate.
func decimate4(signal []int16, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	stride := 4 * channels
	out := make([]int16, 0, len(signal)/stride+1)
	for i := 0; i < len(signal); i += stride {
		out = append(out, signal[i])
	}
	return out
}
