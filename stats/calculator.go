package stats

import (
	"sort"

	"github.com/gammazero/deque"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// maxWaitingTimes bounds the waiting-time history; older entries fall off.
const maxWaitingTimes = 100

// NetworkStatistics is one snapshot of the engine's adaptive behavior.
//
// The rate fields are Q14: 1<<14 means every output sample came from the
// named operation. The four waiting-time fields are -1 when no packet was
// decoded since the previous snapshot.
type NetworkStatistics struct {
	CurrentBufferSizeMs   int
	PreferredBufferSizeMs int
	JitterPeaksFound      bool
	PacketLossRate        int
	PacketDiscardRate     int
	ExpandRate            int
	SpeechExpandRate      int
	PreemptiveRate        int
	AccelerateRate        int
	SecondaryDecodedRate  int
	ClockdriftPpm         int
	AddedZeroSamples      int
	MeanWaitingTimeMs     int
	MedianWaitingTimeMs   int
	MinWaitingTimeMs      int
	MaxWaitingTimeMs      int
}

// Calculator accumulates the per-operation sample counters the statistics
// are derived from. It is not safe for concurrent use; the engine serializes
// access.
type Calculator struct {
	totalSamples          uint64
	expandedSpeechSamples uint64
	expandedNoiseSamples  uint64
	acceleratedSamples    uint64
	preemptiveSamples     uint64
	secondarySamples      uint64
	lostSamples           uint64
	discardedSamples      uint64
	addedZeroSamples      uint64
	waitingTimes          deque.Deque[int]
}

// NewCalculator creates a calculator with all counters at zero.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Reset clears every counter, including the waiting-time history.
func (c *Calculator) Reset() {
	*c = Calculator{}
	logrus.WithFields(logrus.Fields{
		"function": "Calculator.Reset",
	}).Debug("Cleared statistics")
}

// EmittedSamples accounts for one output block; all rates are relative to
// this running total.
func (c *Calculator) EmittedSamples(n int) {
	c.totalSamples += uint64(n)
}

// ExpandedSpeech accounts concealment samples extrapolated from speech.
func (c *Calculator) ExpandedSpeech(n int) {
	c.expandedSpeechSamples += uint64(n)
}

// ExpandedNoise accounts concealment samples synthesized as noise.
func (c *Calculator) ExpandedNoise(n int) {
	c.expandedNoiseSamples += uint64(n)
}

// Accelerated accounts samples removed by time compression.
func (c *Calculator) Accelerated(n int) {
	c.acceleratedSamples += uint64(n)
}

// Preemptive accounts samples added by time stretching.
func (c *Calculator) Preemptive(n int) {
	c.preemptiveSamples += uint64(n)
}

// SecondaryDecoded accounts samples recovered from redundant encodings.
func (c *Calculator) SecondaryDecoded(n int) {
	c.secondarySamples += uint64(n)
}

// LostSamples accounts timestamps that never arrived.
func (c *Calculator) LostSamples(n int) {
	c.lostSamples += uint64(n)
}

// DiscardedSamples accounts timestamps dropped before decoding, for example
// by buffer overflow or late arrival.
func (c *Calculator) DiscardedSamples(n int) {
	c.discardedSamples += uint64(n)
}

// AddedZeros accounts silence inserted because nothing could be produced.
func (c *Calculator) AddedZeros(n int) {
	c.addedZeroSamples += uint64(n)
}

// RecordWaitingTime notes how long a packet sat in the buffer before its
// first sample was decoded.
func (c *Calculator) RecordWaitingTime(ms int) {
	if c.waitingTimes.Len() >= maxWaitingTimes {
		c.waitingTimes.PopFront()
	}
	c.waitingTimes.PushBack(ms)
}

// Snapshot fills a NetworkStatistics from the current counters and drains
// the waiting-time history. Buffer depth, drift, and peak state come from
// the caller since the engine owns those estimators.
func (c *Calculator) Snapshot(currentBufferMs, preferredBufferMs, clockdriftPpm int, peaksFound bool) NetworkStatistics {
	s := NetworkStatistics{
		CurrentBufferSizeMs:   currentBufferMs,
		PreferredBufferSizeMs: preferredBufferMs,
		JitterPeaksFound:      peaksFound,
		ClockdriftPpm:         clockdriftPpm,
		AddedZeroSamples:      int(c.addedZeroSamples),
		PacketLossRate:        rateQ14(c.lostSamples, c.totalSamples),
		PacketDiscardRate:     rateQ14(c.discardedSamples, c.totalSamples),
		ExpandRate:            rateQ14(c.expandedSpeechSamples+c.expandedNoiseSamples, c.totalSamples),
		SpeechExpandRate:      rateQ14(c.expandedSpeechSamples, c.totalSamples),
		PreemptiveRate:        rateQ14(c.preemptiveSamples, c.totalSamples),
		AccelerateRate:        rateQ14(c.acceleratedSamples, c.totalSamples),
		SecondaryDecodedRate:  rateQ14(c.secondarySamples, c.totalSamples),
	}
	s.MeanWaitingTimeMs, s.MedianWaitingTimeMs, s.MinWaitingTimeMs, s.MaxWaitingTimeMs = c.drainWaitingTimes()
	return s
}

// drainWaitingTimes computes the four aggregates and empties the history.
func (c *Calculator) drainWaitingTimes() (mean, median, min, max int) {
	n := c.waitingTimes.Len()
	if n == 0 {
		return -1, -1, -1, -1
	}
	values := make([]int, 0, n)
	for c.waitingTimes.Len() > 0 {
		values = append(values, c.waitingTimes.PopFront())
	}

	mean = lo.Sum(values) / n
	min = lo.Min(values)
	max = lo.Max(values)
	sort.Ints(values)
	median = values[n/2]
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2
	}
	return mean, median, min, max
}

func rateQ14(count, total uint64) int {
	if total == 0 {
		return 0
	}
	r := (count << 14) / total
	if r > 1<<14 {
		r = 1 << 14
	}
	return int(r)
}
