package stats

import (
	"github.com/pion/rtcp"
)

// RtcpTracker derives RFC 3550 reception quality from packet arrivals. It
// only looks at headers and arrival times, so decode failures do not distort
// the report.
type RtcpTracker struct {
	received      bool
	ssrc          uint32
	baseSeq       uint16
	maxSeq        uint16
	cycles        uint32
	packetsCount  uint32
	jitterQ4      uint32
	lastTransit   int64
	expectedPrior uint32
	receivedPrior uint32
}

// NewRtcpTracker creates an empty tracker.
func NewRtcpTracker() *RtcpTracker {
	return &RtcpTracker{}
}

// Reset forgets the stream, for example after an SSRC change.
func (t *RtcpTracker) Reset() {
	*t = RtcpTracker{}
}

// Update registers one received packet. rtpTimestamp and arrivalTimestamp
// are both in RTP clock units; their difference drives the interarrival
// jitter estimate.
func (t *RtcpTracker) Update(ssrc uint32, sequenceNumber uint16, rtpTimestamp, arrivalTimestamp uint32) {
	if !t.received {
		t.received = true
		t.ssrc = ssrc
		t.baseSeq = sequenceNumber
		t.maxSeq = sequenceNumber
		t.packetsCount = 1
		t.lastTransit = int64(arrivalTimestamp) - int64(rtpTimestamp)
		return
	}

	t.packetsCount++

	if int16(sequenceNumber-t.maxSeq) > 0 {
		if sequenceNumber < t.maxSeq {
			t.cycles++
		}
		t.maxSeq = sequenceNumber
	}

	// Interarrival jitter per RFC 3550 section 6.4.1, kept in Q4 units of
	// the RTP clock.
	transit := int64(arrivalTimestamp) - int64(rtpTimestamp)
	d := transit - t.lastTransit
	t.lastTransit = transit
	if d < 0 {
		d = -d
	}
	t.jitterQ4 += uint32(d) - ((t.jitterQ4 + 8) >> 4)
}

// extendedMax returns the highest sequence number extended with wrap cycles.
func (t *RtcpTracker) extendedMax() uint32 {
	return t.cycles<<16 | uint32(t.maxSeq)
}

// Report builds a reception report for the tracked stream. Fraction lost
// covers the interval since the previous Report call; the cumulative fields
// cover the whole stream.
func (t *RtcpTracker) Report() rtcp.ReceptionReport {
	if !t.received {
		return rtcp.ReceptionReport{}
	}

	extended := t.extendedMax()
	expected := extended - uint32(t.baseSeq) + 1

	var cumulativeLost uint32
	if expected > t.packetsCount {
		cumulativeLost = expected - t.packetsCount
	}
	if cumulativeLost > 0x7fffff {
		cumulativeLost = 0x7fffff
	}

	expectedInterval := expected - t.expectedPrior
	receivedInterval := t.packetsCount - t.receivedPrior
	t.expectedPrior = expected
	t.receivedPrior = t.packetsCount

	var fractionLost uint8
	if expectedInterval > 0 && expectedInterval > receivedInterval {
		lostInterval := expectedInterval - receivedInterval
		fractionLost = uint8((lostInterval << 8) / expectedInterval)
	}

	return rtcp.ReceptionReport{
		SSRC:               t.ssrc,
		FractionLost:       fractionLost,
		TotalLost:          cumulativeLost,
		LastSequenceNumber: extended,
		Jitter:             t.jitterQ4 >> 4,
	}
}
