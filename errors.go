package playout

import "errors"

// Sentinel errors returned by the engine API. Wrapped errors carry the
// specifics; match with errors.Is.
var (
	// ErrInvalidConfig indicates construction with an unusable Config.
	ErrInvalidConfig = errors.New("invalid playout configuration")

	// ErrEmptyPayload indicates InsertPacket was called with no payload
	// bytes. Use InsertSyncPacket to reserve a slot without audio.
	ErrEmptyPayload = errors.New("packet payload is empty")

	// ErrUnknownPayloadType indicates the packet's payload type has no
	// registered decoder binding.
	ErrUnknownPayloadType = errors.New("payload type not registered")

	// ErrSyncPacketFirst indicates a sync packet arrived before any real
	// packet established the stream.
	ErrSyncPacketFirst = errors.New("sync packet cannot start a stream")

	// ErrSyncPayloadType indicates a sync packet with a payload type that
	// cannot reserve a slot: comfort noise, events, or redundancy.
	ErrSyncPayloadType = errors.New("payload type not allowed for sync packets")

	// ErrSyncCodecChange indicates a sync packet tried to switch codecs.
	ErrSyncCodecChange = errors.New("sync packet cannot change codec")

	// ErrSyncSsrcChange indicates a sync packet tried to switch streams.
	ErrSyncSsrcChange = errors.New("sync packet cannot change ssrc")

	// ErrDecoderFailure indicates the active decoder rejected a payload.
	// The offending block is replaced with silence; playout continues on
	// the next tick.
	ErrDecoderFailure = errors.New("decoder failed")

	// ErrComfortNoisePayload indicates a comfort-noise packet whose
	// parameters could not be parsed.
	ErrComfortNoisePayload = errors.New("malformed comfort noise payload")

	// ErrRedundancyPayload indicates a redundancy packet whose block
	// headers could not be parsed.
	ErrRedundancyPayload = errors.New("malformed redundancy payload")
)
