package buffer

// Wraparound-safe ordering helpers for 16-bit RTP sequence numbers and
// 32-bit RTP timestamps. Ordering and elapsed distance are always derived
// from the signed modular difference, never from a direct comparison.

// SeqDiff returns the signed distance from b to a in sequence-number space.
func SeqDiff(a, b uint16) int16 {
	return int16(a - b)
}

// TimestampDiff returns the signed distance from b to a in timestamp space.
func TimestampDiff(a, b uint32) int32 {
	return int32(a - b)
}

// IsNewerSequenceNumber reports whether sequence number a is newer than b,
// accounting for 16-bit wraparound.
func IsNewerSequenceNumber(a, b uint16) bool {
	return a != b && SeqDiff(a, b) > 0
}

// IsNewerTimestamp reports whether timestamp a is newer than b, accounting
// for 32-bit wraparound.
func IsNewerTimestamp(a, b uint32) bool {
	return a != b && TimestampDiff(a, b) > 0
}

// TimestampUnwrapper projects wrapping 32-bit timestamps onto a continuous
// int64 timeline. The projection is anchored at the first value seen and
// follows the stream through any number of wrap boundaries, as long as
// consecutive inputs stay within half the counter range of each other.
type TimestampUnwrapper struct {
	started bool
	last    uint32
	pos     int64
}

// Unwrap returns the int64 timeline position of ts.
func (u *TimestampUnwrapper) Unwrap(ts uint32) int64 {
	if !u.started {
		u.started = true
		u.last = ts
		u.pos = int64(ts)
		return u.pos
	}
	u.pos += int64(TimestampDiff(ts, u.last))
	u.last = ts
	return u.pos
}

// SequenceUnwrapper projects wrapping 16-bit sequence numbers onto a
// continuous int64 index, in the same fashion as TimestampUnwrapper.
type SequenceUnwrapper struct {
	started bool
	last    uint16
	pos     int64
}

// Unwrap returns the int64 index of seq.
func (u *SequenceUnwrapper) Unwrap(seq uint16) int64 {
	if !u.started {
		u.started = true
		u.last = seq
		u.pos = int64(seq)
		return u.pos
	}
	u.pos += int64(SeqDiff(seq, u.last))
	u.last = seq
	return u.pos
}
