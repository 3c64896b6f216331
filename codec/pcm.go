package codec

import "fmt"

// PCM16Decoder decodes 16-bit big-endian linear PCM payloads.
type PCM16Decoder struct {
	channels int
}

// NewPCM16Decoder creates a linear PCM decoder with the given interleaved
// channel count.
func NewPCM16Decoder(channels int) *PCM16Decoder {
	if channels < 1 {
		channels = 1
	}
	return &PCM16Decoder{channels: channels}
}

// Decode converts big-endian 16-bit sample pairs to int16 samples.
func (d *PCM16Decoder) Decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("pcm16: empty payload")
	}
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("pcm16: odd payload length %d", len(payload))
	}
	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(uint16(payload[2*i])<<8 | uint16(payload[2*i+1]))
	}
	return samples, nil
}

// Channels returns the interleaved channel count.
func (d *PCM16Decoder) Channels() int { return d.channels }

// G711Decoder decodes ITU-T G.711 mu-law or A-law payloads.
type G711Decoder struct {
	aLaw bool
}

// NewG711Decoder creates a G.711 decoder; aLaw selects A-law instead of
// mu-law companding.
func NewG711Decoder(aLaw bool) *G711Decoder {
	return &G711Decoder{aLaw: aLaw}
}

// Decode expands companded 8-bit samples to linear int16.
func (d *G711Decoder) Decode(payload []byte) ([]int16, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("g711: empty payload")
	}
	samples := make([]int16, len(payload))
	for i, b := range payload {
		if d.aLaw {
			samples[i] = alawToLinear(b)
		} else {
			samples[i] = ulawToLinear(b)
		}
	}
	return samples, nil
}

// Channels returns 1; G.711 is mono.
func (d *G711Decoder) Channels() int { return 1 }

func ulawToLinear(u byte) int16 {
	u = ^u
	sign := int32(u & 0x80)
	exponent := int32(u>>4) & 0x07
	mantissa := int32(u & 0x0F)
	magnitude := ((mantissa << 3) + 0x84) << uint(exponent)
	magnitude -= 0x84
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

func alawToLinear(a byte) int16 {
	a ^= 0x55
	sign := int32(a & 0x80)
	exponent := int32(a>>4) & 0x07
	mantissa := int32(a & 0x0F)
	var magnitude int32
	if exponent > 0 {
		magnitude = ((mantissa << 4) + 0x108) << uint(exponent-1)
	} else {
		magnitude = (mantissa << 4) + 0x08
	}
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
