package delay

// LevelFilter smooths the instantaneous buffer fill level with a Q8
// exponential filter. The smoothing gets stronger as the target level grows
// so that deep buffers react slowly and shallow buffers track quickly.
type LevelFilter struct {
	filteredLevelQ8 int
	levelFactorQ8   int
}

// NewLevelFilter creates a filter at level zero with the gentlest smoothing.
func NewLevelFilter() *LevelFilter {
	return &LevelFilter{levelFactorQ8: 253}
}

// Reset clears the filtered level.
func (f *LevelFilter) Reset() {
	f.filteredLevelQ8 = 0
}

// SetTargetBufferLevel adapts the smoothing constant to the current target
// level, given in packets.
func (f *LevelFilter) SetTargetBufferLevel(targetPackets int) {
	switch {
	case targetPackets <= 1:
		f.levelFactorQ8 = 251
	case targetPackets <= 3:
		f.levelFactorQ8 = 252
	case targetPackets <= 7:
		f.levelFactorQ8 = 253
	default:
		f.levelFactorQ8 = 254
	}
}

// Update folds a new buffer size observation into the filtered level.
// timeStretchedSamples compensates for samples the time-scale operations
// created or removed since the last update, so that an accelerate burst does
// not read as a genuine buffer drain.
func (f *LevelFilter) Update(bufferSizeSamples, timeStretchedSamples int) {
	filtered := int64(f.levelFactorQ8) * int64(f.filteredLevelQ8) >> 8
	filtered += int64(256-f.levelFactorQ8) * int64(bufferSizeSamples)
	f.filteredLevelQ8 = int(filtered)

	// Account for time-stretched samples at full weight.
	f.filteredLevelQ8 -= timeStretchedSamples << 8
	if f.filteredLevelQ8 < 0 {
		f.filteredLevelQ8 = 0
	}
}

// FilteredCurrentLevelQ8 returns the smoothed buffer level in samples, Q8.
func (f *LevelFilter) FilteredCurrentLevelQ8() int { return f.filteredLevelQ8 }
