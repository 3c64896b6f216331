package playout

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRedPrimaryOnly(t *testing.T) {
	payload := []byte{0x5e, 1, 2, 3, 4}
	blocks, err := splitRed(payload)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.True(t, blocks[0].primary)
	assert.Equal(t, uint8(0x5e), blocks[0].payloadType)
	assert.Equal(t, []byte{1, 2, 3, 4}, blocks[0].payload)
}

func TestSplitRedWithRedundantBlock(t *testing.T) {
	payload := buildRedPayload(testSpeechPT, 160, []byte{9, 9}, []byte{7, 7, 7})
	blocks, err := splitRed(payload)
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	assert.False(t, blocks[0].primary)
	assert.Equal(t, uint8(testSpeechPT), blocks[0].payloadType)
	assert.Equal(t, uint32(160), blocks[0].timestampOffset)
	assert.Equal(t, []byte{9, 9}, blocks[0].payload)

	assert.True(t, blocks[1].primary)
	assert.Equal(t, []byte{7, 7, 7}, blocks[1].payload)
}

func TestSplitRedMalformed(t *testing.T) {
	_, err := splitRed(nil)
	assert.ErrorIs(t, err, ErrRedundancyPayload)

	// Redundant header cut short.
	_, err = splitRed([]byte{0x80 | testSpeechPT, 0x00})
	assert.ErrorIs(t, err, ErrRedundancyPayload)

	// Header chain never reaches a primary block.
	_, err = splitRed([]byte{0x80 | testSpeechPT, 0x00, 0x00, 0x02})
	assert.ErrorIs(t, err, ErrRedundancyPayload)

	// Declared block length exceeds the payload.
	bad := buildRedPayload(testSpeechPT, 160, []byte{1, 2, 3, 4}, nil)
	bad = bad[:len(bad)-2]
	_, err = splitRed(bad)
	assert.ErrorIs(t, err, ErrRedundancyPayload)
}

func TestRedHeaderDerivesBlockTiming(t *testing.T) {
	carrier := &rtp.Header{
		Version:        2,
		PayloadType:    testRedPT,
		SequenceNumber: 10,
		Timestamp:      1000,
		SSRC:           testSSRC,
	}
	blk := &redBlock{payloadType: testSpeechPT, timestampOffset: 160}
	h := redHeader(carrier, blk)
	assert.Equal(t, uint8(testSpeechPT), h.PayloadType)
	assert.Equal(t, uint32(840), h.Timestamp)
	assert.Equal(t, uint32(testSSRC), h.SSRC)
}
