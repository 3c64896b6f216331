package codec

import (
	"fmt"

	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// maxOpusFrameSamples covers a 60 ms stereo frame at 48 kHz.
const maxOpusFrameSamples = 48000 / 1000 * 60 * 2

// OpusDecoder adapts the pion/opus decoder to the Decoder capability.
//
// The decoder is stateful; one instance serves one stream and must not be
// shared between payload types.
type OpusDecoder struct {
	decoder  *opus.Decoder
	channels int
}

// NewOpusDecoder creates an Opus decoder producing the given channel count.
func NewOpusDecoder(channels int) *OpusDecoder {
	if channels < 1 || channels > 2 {
		channels = 1
	}
	logrus.WithFields(logrus.Fields{
		"function": "NewOpusDecoder",
		"channels": channels,
	}).Info("Creating Opus decoder")

	decoder := opus.NewDecoder()
	return &OpusDecoder{
		decoder:  &decoder,
		channels: channels,
	}
}

// Decode converts one Opus packet to interleaved int16 samples. The output
// length is the packet's real duration at the decoded bandwidth, not the
// size of the scratch buffer.
func (d *OpusDecoder) Decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("opus: empty payload")
	}

	out := make([]byte, maxOpusFrameSamples*2)
	bandwidth, isStereo, err := d.decoder.Decode(payload, out)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "OpusDecoder.Decode",
			"error":    err.Error(),
		}).Error("Opus decode failed")
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}

	perChannel, err := opusPacketSamples(payload, bandwidth.SampleRate())
	if err != nil {
		return nil, err
	}
	channels := 1
	if isStereo {
		channels = 2
	}
	sampleCount := perChannel * channels
	if sampleCount > len(out)/2 {
		sampleCount = len(out) / 2
	}
	pcm := make([]int16, sampleCount)
	for i := 0; i < sampleCount; i++ {
		pcm[i] = int16(uint16(out[2*i]) | uint16(out[2*i+1])<<8)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "OpusDecoder.Decode",
		"bandwidth": bandwidth.String(),
		"stereo":    isStereo,
		"samples":   sampleCount,
	}).Debug("Opus decode completed")

	return pcm, nil
}

// opusPacketSamples reads the packet's duration from the TOC byte (RFC 6716
// section 3.1) and returns the per-channel sample count at the given rate.
// Frame durations are multiples of 2.5 ms, so counts are kept in 1/400 s
// units until the final conversion.
func opusPacketSamples(payload []byte, sampleRateHz int) (int, error) {
	toc := payload[0]
	config := int(toc >> 3)

	var frameUnits int
	switch {
	case config < 12: // SILK-only: 10, 20, 40, 60 ms
		frameUnits = []int{4, 8, 16, 24}[config&0x3]
	case config < 16: // Hybrid: 10, 20 ms
		frameUnits = []int{4, 8}[config&0x1]
	default: // CELT-only: 2.5, 5, 10, 20 ms
		frameUnits = []int{1, 2, 4, 8}[config&0x3]
	}

	frames := 0
	switch toc & 0x3 {
	case 0:
		frames = 1
	case 1, 2:
		frames = 2
	case 3:
		if len(payload) < 2 {
			return 0, fmt.Errorf("opus: truncated frame count")
		}
		frames = int(payload[1] & 0x3f)
	}
	if frames == 0 {
		return 0, fmt.Errorf("opus: packet with zero frames")
	}

	return sampleRateHz * frameUnits * frames / 400, nil
}

// Channels returns the configured interleaved channel count.
func (d *OpusDecoder) Channels() int { return d.channels }
