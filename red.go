package playout

import (
	"fmt"

	"github.com/pion/rtp"
)

// redBlock is one constituent of an RFC 2198 redundancy payload.
type redBlock struct {
	payloadType     uint8
	timestampOffset uint32
	payload         []byte
	primary         bool
}

// splitRed unpacks an RFC 2198 payload into its blocks, primary last.
//
// Each redundant block has a four-byte header: one marker/type byte, a
// 14-bit timestamp offset, and a 10-bit length. The final header is a single
// byte carrying the primary payload type; its data runs to the end of the
// payload.
func splitRed(payload []byte) ([]redBlock, error) {
	var blocks []redBlock
	var lengths []int
	idx := 0
	for {
		if idx >= len(payload) {
			return nil, fmt.Errorf("%w: truncated block headers", ErrRedundancyPayload)
		}
		first := payload[idx]
		if first&0x80 == 0 {
			blocks = append(blocks, redBlock{payloadType: first & 0x7f, primary: true})
			lengths = append(lengths, 0)
			idx++
			break
		}
		if idx+4 > len(payload) {
			return nil, fmt.Errorf("%w: truncated redundant header", ErrRedundancyPayload)
		}
		offset := uint32(payload[idx+1])<<6 | uint32(payload[idx+2])>>2
		length := int(payload[idx+2]&0x03)<<8 | int(payload[idx+3])
		blocks = append(blocks, redBlock{
			payloadType:     first & 0x7f,
			timestampOffset: offset,
		})
		lengths = append(lengths, length)
		idx += 4
	}

	for i := range blocks {
		if blocks[i].primary {
			blocks[i].payload = payload[idx:]
			continue
		}
		if idx+lengths[i] > len(payload) {
			return nil, fmt.Errorf("%w: block data out of bounds", ErrRedundancyPayload)
		}
		blocks[i].payload = payload[idx : idx+lengths[i]]
		idx += lengths[i]
	}
	return blocks, nil
}

// redHeader derives the RTP header of one redundancy block from the carrier
// packet's header.
func redHeader(carrier *rtp.Header, blk *redBlock) rtp.Header {
	h := *carrier
	h.PayloadType = blk.payloadType
	h.Timestamp = carrier.Timestamp - blk.timestampOffset
	return h
}
