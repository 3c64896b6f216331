package dsp

// mergeFadeMs is the crossfade length used when real audio resumes after
// concealment.
const mergeFadeMs = 5

// Merge stitches freshly decoded audio onto the tail of a concealment
// stretch. The head of the decoded frame is crossfaded from the expander's
// continuation so the transition back to speech does not click. The output
// has exactly the decoded frame's length.
func Merge(expander *Expander, decoded []int16, sampleRateHz, channels int) []int16 {
	if channels < 1 {
		channels = 1
	}
	fadeLen := mergeFadeMs * sampleRateHz / 1000 * channels
	if fadeLen > len(decoded) {
		fadeLen = len(decoded)
	}
	if fadeLen == 0 {
		return decoded
	}

	continuation := expander.Generate(fadeLen)
	out := make([]int16, len(decoded))
	copy(out, decoded)
	copy(out, crossFade(continuation, decoded[:fadeLen]))
	return out
}
