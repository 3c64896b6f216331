package codec

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrUnknownPayloadType indicates no binding exists for a payload type.
var ErrUnknownPayloadType = errors.New("unknown payload type")

// ErrUnsupportedDecoder indicates a built-in identity the registry cannot
// construct a decoder for.
var ErrUnsupportedDecoder = errors.New("unsupported decoder identity")

// Binding ties one RTP payload type to a decoder capability.
type Binding struct {
	PayloadType  uint8
	DecoderID    ID
	Name         string
	SampleRateHz int
	Decoder      Decoder
}

// Registry maps payload types to decoder bindings. Each engine instance
// owns exactly one registry; there is no process-wide table. Rebinding a
// payload type overwrites the previous binding.
type Registry struct {
	bindings map[uint8]*Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[uint8]*Binding)}
}

// Register binds a built-in decoder identity to a payload type.
// Comfort-noise, event, and redundancy identities are registered without a
// decoder instance; the engine routes those payloads elsewhere.
func (r *Registry) Register(id ID, name string, payloadType uint8) error {
	var dec Decoder
	if id.ProducesAudio() {
		switch id {
		case IDPCMu:
			dec = NewG711Decoder(false)
		case IDPCMa:
			dec = NewG711Decoder(true)
		case IDPCM16B, IDPCM16Bwb, IDPCM16Bswb32, IDPCM16Bswb48:
			dec = NewPCM16Decoder(1)
		case IDOpus:
			dec = NewOpusDecoder(1)
		default:
			logrus.WithFields(logrus.Fields{
				"function":   "Registry.Register",
				"decoder_id": int(id),
			}).Error("No built-in decoder for identity")
			return fmt.Errorf("%w: id %d", ErrUnsupportedDecoder, int(id))
		}
	}

	r.bindings[payloadType] = &Binding{
		PayloadType:  payloadType,
		DecoderID:    id,
		Name:         name,
		SampleRateHz: id.SampleRateHz(),
		Decoder:      dec,
	}

	logrus.WithFields(logrus.Fields{
		"function":     "Registry.Register",
		"payload_type": payloadType,
		"name":         name,
		"sample_rate":  id.SampleRateHz(),
	}).Info("Registered payload type")
	return nil
}

// RegisterExternal binds a caller-provided decoder to a payload type at an
// explicit sample rate.
func (r *Registry) RegisterExternal(dec Decoder, id ID, name string, payloadType uint8, sampleRateHz int) error {
	if dec == nil {
		return fmt.Errorf("%w: nil decoder", ErrUnsupportedDecoder)
	}
	if sampleRateHz <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedDecoder, sampleRateHz)
	}
	r.bindings[payloadType] = &Binding{
		PayloadType:  payloadType,
		DecoderID:    id,
		Name:         name,
		SampleRateHz: sampleRateHz,
		Decoder:      dec,
	}
	logrus.WithFields(logrus.Fields{
		"function":     "Registry.RegisterExternal",
		"payload_type": payloadType,
		"name":         name,
		"sample_rate":  sampleRateHz,
	}).Info("Registered external decoder")
	return nil
}

// Remove unbinds a payload type.
func (r *Registry) Remove(payloadType uint8) error {
	if _, ok := r.bindings[payloadType]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPayloadType, payloadType)
	}
	delete(r.bindings, payloadType)
	return nil
}

// Lookup returns the binding for a payload type.
func (r *Registry) Lookup(payloadType uint8) (*Binding, error) {
	b, ok := r.bindings[payloadType]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPayloadType, payloadType)
	}
	return b, nil
}

// IsComfortNoise reports whether a payload type is bound to a comfort-noise
// identity. Unknown payload types report false.
func (r *Registry) IsComfortNoise(payloadType uint8) bool {
	b, ok := r.bindings[payloadType]
	return ok && b.DecoderID.IsComfortNoise()
}

// ProducesAudio reports whether a payload type is bound to an identity that
// decodes to audio on its own.
func (r *Registry) ProducesAudio(payloadType uint8) bool {
	b, ok := r.bindings[payloadType]
	return ok && b.DecoderID.ProducesAudio()
}
