package playout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The two drift scenarios run the insert-then-pull loop with a sender clock
// that is off by roughly ten percent. The inter-arrival estimator is pure
// integer arithmetic, so the resulting ppm figures are exact and stable.

func TestClockDriftNegative(t *testing.T) {
	e := newTestEngine(t)
	payload := make([]byte, 2*testFrameSamples)

	// The sender clock runs fast: every tenth tick delivers two packets.
	frameIndex := 0
	for frameIndex < 3000 {
		numPackets := 1
		if frameIndex%10 == 0 {
			numPackets = 2
		}
		for n := 0; n < numPackets; n++ {
			h := speechHeader(uint16(frameIndex), uint32(frameIndex)*testFrameTs)
			require.NoError(t, e.InsertPacket(h, payload, 0))
			frameIndex++
		}
		pullFrame(t, e)
	}

	assert.Equal(t, -103196, e.NetworkStatistics().ClockdriftPpm)
}

func TestClockDriftPositive(t *testing.T) {
	e := newTestEngine(t)
	payload := make([]byte, 2*testFrameSamples)

	// The sender clock runs slow: every tenth tick delivers no packet.
	frameIndex := 0
	for i := 0; i < 5000; i++ {
		if i%10 != 9 {
			h := speechHeader(uint16(frameIndex), uint32(frameIndex)*testFrameTs)
			require.NoError(t, e.InsertPacket(h, payload, 0))
			frameIndex++
		}
		pullFrame(t, e)
	}

	assert.Equal(t, 110946, e.NetworkStatistics().ClockdriftPpm)
}
