package buffer

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(seq uint16, ts uint32, pt uint8) *rtp.Header {
	return &rtp.Header{
		Version:        2,
		PayloadType:    pt,
		SequenceNumber: seq,
		Timestamp:      ts,
		SSRC:           0xabcd,
	}
}

func TestInsertOrdersByTimestamp(t *testing.T) {
	b := NewPacketBuffer(10)

	// Arrival order 2, 0, 1.
	for _, seq := range []uint16{2, 0, 1} {
		outcome, evicted := b.Insert(header(seq, uint32(seq)*160, 94), []byte{1}, 0, false, 0)
		assert.Equal(t, OutcomeInserted, outcome)
		assert.Zero(t, evicted)
	}

	require.Equal(t, 3, b.Len())
	for want := uint16(0); want < 3; want++ {
		pkt := b.Pop()
		require.NotNil(t, pkt)
		assert.Equal(t, want, pkt.Header.SequenceNumber)
	}
	assert.Nil(t, b.Pop())
}

func TestInsertDuplicateKeepsStoredPacket(t *testing.T) {
	b := NewPacketBuffer(10)

	b.Insert(header(5, 800, 94), []byte{1}, 0, false, 0)
	outcome, _ := b.Insert(header(5, 800, 94), []byte{2}, 0, false, 0)
	assert.Equal(t, OutcomeDuplicate, outcome)

	pkt := b.Pop()
	require.NotNil(t, pkt)
	assert.Equal(t, []byte{1}, pkt.Payload)
}

func TestRealPacketReplacesSyncPlaceholder(t *testing.T) {
	b := NewPacketBuffer(10)

	b.Insert(header(5, 800, 94), nil, 0, true, 0)
	outcome, _ := b.Insert(header(5, 800, 94), []byte{7}, 0, false, 0)
	assert.Equal(t, OutcomeReplacedSync, outcome)

	pkt := b.Pop()
	require.NotNil(t, pkt)
	assert.False(t, pkt.IsSync)
	assert.Equal(t, []byte{7}, pkt.Payload)

	// The reverse never happens: a placeholder cannot evict real audio.
	b.Insert(header(6, 960, 94), []byte{8}, 0, false, 0)
	outcome, _ = b.Insert(header(6, 960, 94), nil, 0, true, 0)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.False(t, b.Peek().IsSync)
}

func TestRedundantInsertNeverReplaces(t *testing.T) {
	b := NewPacketBuffer(10)

	b.Insert(header(5, 800, 94), nil, 0, true, 0)
	outcome, _ := b.InsertRedundant(header(5, 800, 94), []byte{9}, 0, 0)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.True(t, b.Peek().IsSync)

	outcome, _ = b.InsertRedundant(header(6, 960, 94), []byte{9}, 0, 0)
	assert.Equal(t, OutcomeInserted, outcome)
}

func TestCapacityEvictsOldest(t *testing.T) {
	b := NewPacketBuffer(3)

	evictedTotal := 0
	for seq := uint16(0); seq < 5; seq++ {
		_, evicted := b.Insert(header(seq, uint32(seq)*160, 94), []byte{1}, 0, false, 0)
		evictedTotal += evicted
	}

	assert.Equal(t, 2, evictedTotal)
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, uint16(2), b.Peek().Header.SequenceNumber)
}

func TestClearKeepsTimestampProjection(t *testing.T) {
	b := NewPacketBuffer(3)
	start := uint32(0xffffff00)
	for seq := uint16(0); seq < 3; seq++ {
		b.Insert(header(seq, start+uint32(seq)*160, 94), []byte{1}, 0, false, 0)
	}
	require.True(t, b.Full())

	assert.Equal(t, 3, b.Clear())
	assert.Zero(t, b.Len())
	assert.False(t, b.Full())

	// Unlike Flush, positions after a clear stay on the same timeline: a
	// timestamp past the wrap lands after the cleared packets, not at its
	// raw 32-bit value.
	b.Insert(header(3, start+480, 94), []byte{1}, 0, false, 0)
	assert.Equal(t, int64(start)+480, b.Peek().Position)
}

func TestRemovePayloadTypeKeepsSyncPackets(t *testing.T) {
	b := NewPacketBuffer(10)

	b.Insert(header(0, 0, 94), []byte{1}, 0, false, 0)
	b.Insert(header(1, 160, 98), []byte{2}, 0, false, 0)
	b.Insert(header(2, 320, 94), nil, 0, true, 0)
	b.Insert(header(3, 480, 94), []byte{3}, 0, false, 0)

	removed := b.RemovePayloadType(94)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, uint8(98), b.Peek().Header.PayloadType)
}

func TestSpanSamples(t *testing.T) {
	b := NewPacketBuffer(10)
	assert.Zero(t, b.SpanSamples(160))

	b.Insert(header(0, 1000, 94), []byte{1}, 0, false, 0)
	assert.Equal(t, int64(160), b.SpanSamples(160))

	b.Insert(header(3, 1480, 94), []byte{1}, 0, false, 0)
	assert.Equal(t, int64(640), b.SpanSamples(160))
}

func TestFlushReanchorsTimeline(t *testing.T) {
	b := NewPacketBuffer(10)
	b.Insert(header(0, 4000000000, 94), []byte{1}, 0, false, 0)
	b.Flush()
	assert.Zero(t, b.Len())

	// A fresh anchor after the flush; the old projection is gone.
	outcome, _ := b.Insert(header(100, 500, 94), []byte{1}, 0, false, 0)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.Equal(t, int64(500), b.Peek().Position)
}

func TestOrderingAcrossTimestampWrap(t *testing.T) {
	b := NewPacketBuffer(10)

	start := uint32(0xffffffff - 240)
	for i := uint16(0); i < 4; i++ {
		b.Insert(header(i, start+uint32(i)*160, 94), []byte{1}, 0, false, 0)
	}

	var positions []int64
	for pkt := b.Pop(); pkt != nil; pkt = b.Pop() {
		positions = append(positions, pkt.Position)
	}
	require.Len(t, positions, 4)
	for i := 1; i < len(positions); i++ {
		assert.Equal(t, positions[i-1]+160, positions[i])
	}
}

func TestDiscardOlderThan(t *testing.T) {
	b := NewPacketBuffer(10)
	for seq := uint16(0); seq < 5; seq++ {
		b.Insert(header(seq, uint32(seq)*160, 94), []byte{1}, 0, false, 0)
	}

	dropped := b.DiscardOlderThan(320, 160)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, uint16(2), b.Peek().Header.SequenceNumber)
}
