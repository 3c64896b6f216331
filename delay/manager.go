package delay

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playout/buffer"
)

const (
	// maxIAT is the largest representable inter-arrival time in packets;
	// the histogram has maxIAT+1 bins.
	maxIAT = 64
	// iatFactor is the steady-state Q15 forgetting factor of the histogram.
	iatFactor = 32745
	// limitProbability is the 5% tail probability bound in Q30 used to pick
	// the target buffer level.
	limitProbability = 53687091
	// baseTargetLevel is the warm-up target, in packets, reported before
	// the histogram has seen enough arrivals.
	baseTargetLevel = 4
)

// Manager tracks packet inter-arrival statistics and derives the preferred
// buffer depth and the clock-drift estimate.
//
// The histogram bins are probabilities in Q30; the forgetting factor is in
// Q15 and ramps from 0 to iatFactor after each reset so the model adapts
// quickly right after a restart. The target level is kept in Q8 packets.
type Manager struct {
	firstPacketReceived bool
	baselineRecorded    bool
	rampComplete        bool
	skipNextUpdate      bool
	histogram           [maxIAT + 1]int64
	factorQ15           int64
	elapsedMs           int
	packetLenMs         int
	targetLevelQ8       int
	baseTarget          int
	lastSeqNo           uint16
	lastTimestamp       uint32
	peakDetector        *PeakDetector
}

// NewManager creates a reset delay manager with its own peak detector.
func NewManager() *Manager {
	m := &Manager{peakDetector: NewPeakDetector()}
	m.Reset()
	logrus.WithFields(logrus.Fields{
		"function":     "NewManager",
		"target_level": m.targetLevelQ8 >> 8,
	}).Debug("Created delay manager")
	return m
}

// Reset restores the warm-up state: histogram mass at one packet time, zero
// forgetting factor, base target level.
func (m *Manager) Reset() {
	for i := range m.histogram {
		m.histogram[i] = 0
	}
	m.histogram[1] = 1 << 30
	m.factorQ15 = 0
	m.elapsedMs = 0
	m.packetLenMs = 0
	m.baseTarget = baseTargetLevel
	m.targetLevelQ8 = baseTargetLevel << 8
	m.firstPacketReceived = false
	m.baselineRecorded = false
	m.rampComplete = false
	m.skipNextUpdate = false
	m.peakDetector.Reset()
}

// SetPacketAudioLength tells the manager the current packet duration so
// inter-arrival times can be normalized to packet counts.
func (m *Manager) SetPacketAudioLength(lengthMs int) {
	if lengthMs > 0 {
		m.packetLenMs = lengthMs
		m.peakDetector.SetPacketAudioLength(lengthMs)
	}
}

// ElapseTime advances the arrival clock; the engine calls this once per
// output tick with the tick duration in milliseconds.
func (m *Manager) ElapseTime(ms int) {
	m.elapsedMs += ms
	m.peakDetector.ElapseTime(ms)
}

// ResetElapsedTime restarts the arrival clock without touching the
// histogram. The engine calls this for each packet consumed out of a
// startup backlog, where spacing tracks the output clock rather than the
// network.
func (m *Manager) ResetElapsedTime() {
	m.elapsedMs = 0
}

// ExcludeNextUpdate drops the next arrival from the statistics. Nothing is
// recorded for the excluded packet, so the update after it measures the
// combined spacing and compensates the one-packet sequence gap.
func (m *Manager) ExcludeNextUpdate() {
	m.skipNextUpdate = true
}

// Update processes the arrival of one audio packet.
//
// The inter-arrival time is the elapsed output time since the previous
// arrival divided by the packet duration, compensated for sequence-number
// gaps (losses shrink the IAT, reordering grows it) and saturated at the
// histogram edge.
func (m *Manager) Update(sequenceNumber uint16, timestamp uint32, sampleRateHz int) {
	if sampleRateHz <= 0 {
		return
	}

	skip := m.skipNextUpdate
	m.skipNextUpdate = false

	if !m.firstPacketReceived {
		// The first arrival only starts the clock.
		m.elapsedMs = 0
		m.firstPacketReceived = true
		return
	}
	if !m.baselineRecorded {
		// The second arrival anchors the sequence baseline. The clock keeps
		// what it accumulated: the spacing to the third packet is measured
		// from the stream start, not from here.
		m.baselineRecorded = true
		m.lastSeqNo = sequenceNumber
		m.lastTimestamp = timestamp
		return
	}
	if skip {
		return
	}

	packetLenMs := m.packetLenMs
	if buffer.IsNewerTimestamp(timestamp, m.lastTimestamp) &&
		buffer.IsNewerSequenceNumber(sequenceNumber, m.lastSeqNo) {
		// Derive the packet duration from the timestamp and sequence
		// advance since the previous packet.
		tsPerPacket := int64(uint32(timestamp-m.lastTimestamp)) / int64(uint16(sequenceNumber-m.lastSeqNo))
		packetLenMs = int(1000 * tsPerPacket / int64(sampleRateHz))
	}

	if packetLenMs > 0 {
		m.packetLenMs = packetLenMs
		m.peakDetector.SetPacketAudioLength(packetLenMs)

		iatPackets := m.elapsedMs / packetLenMs

		if buffer.IsNewerSequenceNumber(sequenceNumber, m.lastSeqNo+1) {
			// A gap in sequence numbers: remove the expected extra time
			// contributed by the missing packets.
			iatPackets -= int(uint16(sequenceNumber - m.lastSeqNo - 1))
			if iatPackets < 0 {
				iatPackets = 0
			}
		} else if !buffer.IsNewerSequenceNumber(sequenceNumber, m.lastSeqNo) {
			iatPackets += int(uint16(m.lastSeqNo + 1 - sequenceNumber))
		}

		if iatPackets > maxIAT {
			iatPackets = maxIAT
		}

		m.updateHistogram(iatPackets)
		m.targetLevelQ8 = m.calculateTargetLevel(iatPackets)
	}

	m.elapsedMs = 0
	m.lastSeqNo = sequenceNumber
	m.lastTimestamp = timestamp
}

// updateHistogram applies the forgetting factor, adds the new observation,
// and repairs fixed-point rounding so the Q30 probabilities sum to one.
func (m *Manager) updateHistogram(iatPackets int) {
	var vectorSum int64
	for i := range m.histogram {
		m.histogram[i] = (m.histogram[i] * m.factorQ15) >> 15
		vectorSum += m.histogram[i]
	}

	m.histogram[iatPackets] += (32768 - m.factorQ15) << 15
	vectorSum += (32768 - m.factorQ15) << 15

	// Truncation in the multiplications above makes the sum drift off one.
	// Walk the low bins and move at most 1/16 of each bin until the sum is
	// restored.
	vectorSum -= 1 << 30
	if vectorSum != 0 {
		flipSign := int64(1)
		if vectorSum > 0 {
			flipSign = -1
		}
		for i := range m.histogram {
			correction := flipSign * minInt64(absInt64(vectorSum), m.histogram[i]>>4)
			m.histogram[i] += correction
			vectorSum += correction
			if vectorSum == 0 {
				break
			}
		}
	}

	// The factor ramps toward its steady-state value during the first
	// seconds after a reset. The first arrival after the ramp completes is
	// left out of the statistics; it straddles the boundary.
	wasQ15 := m.factorQ15
	m.factorQ15 += (iatFactor - m.factorQ15 + 3) >> 2
	if !m.rampComplete && m.factorQ15 == iatFactor && wasQ15 != iatFactor {
		m.rampComplete = true
		m.skipNextUpdate = true
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// calculateTargetLevel picks the smallest histogram index whose tail
// probability is at most 5%, optionally inflated by the peak detector, and
// returns it in Q8.
func (m *Manager) calculateTargetLevel(iatPackets int) int {
	index := 0
	sum := int64(1) << 30
	sum -= m.histogram[index] // ensures a target of at least one packet

	for sum > limitProbability && index < len(m.histogram)-1 {
		index++
		sum -= m.histogram[index]
	}

	targetLevel := index
	m.baseTarget = index

	if m.peakDetector.Update(iatPackets, targetLevel) {
		if h := m.peakDetector.MaxPeakHeight(); h > targetLevel {
			targetLevel = h
		}
	}

	if targetLevel < 1 {
		targetLevel = 1
	}
	return targetLevel << 8
}

// TargetLevelQ8 returns the preferred buffer depth in packets, Q8.
func (m *Manager) TargetLevelQ8() int { return m.targetLevelQ8 }

// PreferredBufferSizeMs returns the preferred buffer depth in milliseconds.
func (m *Manager) PreferredBufferSizeMs() int {
	lenMs := m.packetLenMs
	if lenMs == 0 {
		lenMs = 10
	}
	return (m.targetLevelQ8 * lenMs) >> 8
}

// PacketLenMs returns the current packet duration estimate.
func (m *Manager) PacketLenMs() int { return m.packetLenMs }

// AverageIATppm returns the clock-drift estimate in signed parts per
// million: the deviation of the mean inter-arrival time from exactly one
// packet duration.
func (m *Manager) AverageIATppm() int {
	var sumQ24 int64
	for i := range m.histogram {
		// Shift 6 first so the worst case 2^30 * 64 stays in range.
		sumQ24 += (m.histogram[i] >> 6) * int64(i)
	}
	sumQ24 -= 1 << 24
	// 1000000 / 2^24 = 15625 / 2^18; split as >>7 then >>11.
	return int(((sumQ24 >> 7) * 15625) >> 11)
}

// PeakDetector exposes the manager's peak detector for statistics.
func (m *Manager) PeakDetector() *PeakDetector { return m.peakDetector }
