package codec

// Decoder is the single capability a codec must expose to the playout
// engine: turn one RTP payload into interleaved PCM samples.
type Decoder interface {
	// Decode converts payload bytes to interleaved int16 samples at the
	// binding's sample rate. It must be deterministic and bounded.
	Decode(payload []byte) ([]int16, error)
	// Channels returns the number of interleaved channels produced.
	Channels() int
}

// ID identifies a decoder implementation.
type ID int

// Built-in decoder identities. External decoders use IDArbitrary.
const (
	IDPCMu ID = iota
	IDPCMa
	IDPCM16B
	IDPCM16Bwb
	IDPCM16Bswb32
	IDPCM16Bswb48
	IDCNGnb
	IDCNGwb
	IDCNGswb32
	IDCNGswb48
	IDAVT
	IDRED
	IDOpus
	IDArbitrary
)

// SampleRateHz returns the nominal sample rate of a built-in decoder, or 0
// when the rate is not implied by the identity.
func (id ID) SampleRateHz() int {
	switch id {
	case IDPCMu, IDPCMa, IDPCM16B, IDCNGnb, IDAVT, IDRED:
		return 8000
	case IDPCM16Bwb, IDCNGwb:
		return 16000
	case IDPCM16Bswb32, IDCNGswb32:
		return 32000
	case IDPCM16Bswb48, IDCNGswb48, IDOpus:
		return 48000
	default:
		return 0
	}
}

// IsComfortNoise reports whether the identity is a comfort-noise
// pseudo-codec.
func (id ID) IsComfortNoise() bool {
	switch id {
	case IDCNGnb, IDCNGwb, IDCNGswb32, IDCNGswb48:
		return true
	default:
		return false
	}
}

// IsEvent reports whether the identity carries telephone events (AVT/DTMF)
// rather than audio.
func (id ID) IsEvent() bool {
	return id == IDAVT
}

// IsRedundancy reports whether the identity is a redundancy container.
func (id ID) IsRedundancy() bool {
	return id == IDRED
}

// ProducesAudio reports whether payloads of this identity can be decoded to
// audio on their own. Comfort-noise, event, and redundancy types cannot.
func (id ID) ProducesAudio() bool {
	return !id.IsComfortNoise() && !id.IsEvent() && !id.IsRedundancy()
}
