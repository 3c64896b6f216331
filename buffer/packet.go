package buffer

import "github.com/pion/rtp"

// Packet is one stored unit of the receive timeline.
//
// Real packets carry a payload to decode; sync packets are payload-less
// placeholders that reserve their timeline slot and decode to silence.
// Position is the unwrapped timestamp assigned at insertion; it is the only
// ordering key used after admission.
type Packet struct {
	Header           rtp.Header
	Payload          []byte
	ReceiveTimestamp uint32
	IsSync           bool

	// Redundant marks payloads recovered from a redundancy encoding; they
	// fill their slot like any packet but are counted separately.
	Redundant bool

	// Position is the unwrapped RTP timestamp of the first sample.
	Position int64

	// ArrivalTickMs is the engine tick clock at insertion, used for
	// waiting-time statistics.
	ArrivalTickMs int64
}

// SameIdentity reports whether two packets occupy the same slot of the
// stream, i.e. share sequence number and timestamp.
func (p *Packet) SameIdentity(h *rtp.Header) bool {
	return p.Header.SequenceNumber == h.SequenceNumber && p.Header.Timestamp == h.Timestamp
}
