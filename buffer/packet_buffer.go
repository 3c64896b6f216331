package buffer

import (
	"github.com/huandu/skiplist"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// InsertOutcome describes what Insert did with the offered packet.
type InsertOutcome int

const (
	// OutcomeInserted means the packet was stored in a previously empty slot.
	OutcomeInserted InsertOutcome = iota
	// OutcomeReplacedSync means a real packet overrode a sync placeholder.
	OutcomeReplacedSync
	// OutcomeDuplicate means an equivalent packet already occupied the slot
	// and the offered one was dropped.
	OutcomeDuplicate
)

// DefaultMaxPackets bounds buffer occupancy, a shade under half a second of
// 10 ms packets. The engine flushes the whole backlog when an arrival finds
// the buffer at this limit.
const DefaultMaxPackets = 47

// PacketBuffer keeps received and placeholder packets ordered by unwrapped
// timestamp. It is not safe for concurrent use; the owning engine serializes
// access.
type PacketBuffer struct {
	list       *skiplist.SkipList
	unwrapper  TimestampUnwrapper
	maxPackets int
}

// NewPacketBuffer creates an empty buffer holding at most maxPackets
// entries. A non-positive limit selects DefaultMaxPackets.
func NewPacketBuffer(maxPackets int) *PacketBuffer {
	if maxPackets <= 0 {
		maxPackets = DefaultMaxPackets
	}
	logrus.WithFields(logrus.Fields{
		"function":    "NewPacketBuffer",
		"max_packets": maxPackets,
	}).Debug("Creating packet buffer")
	return &PacketBuffer{
		list:       skiplist.New(skiplist.Int64),
		maxPackets: maxPackets,
	}
}

// Insert admits a packet, keyed by the unwrapped timestamp of its header.
//
// Slot collision rules: a real packet replaces a sync placeholder in the
// same slot; any other collision keeps the stored packet and reports the
// offered one as a duplicate. Returns the outcome and how many old packets
// were evicted to respect the capacity limit.
func (b *PacketBuffer) Insert(h *rtp.Header, payload []byte, receiveTimestamp uint32, isSync bool, arrivalTickMs int64) (InsertOutcome, int) {
	return b.insert(&Packet{
		Header:           *h,
		Payload:          payload,
		ReceiveTimestamp: receiveTimestamp,
		IsSync:           isSync,
		ArrivalTickMs:    arrivalTickMs,
	})
}

// InsertRedundant admits a payload recovered from a redundancy encoding.
// It never replaces a stored packet, not even a sync placeholder, since a
// directly received packet is always at least as good.
func (b *PacketBuffer) InsertRedundant(h *rtp.Header, payload []byte, receiveTimestamp uint32, arrivalTickMs int64) (InsertOutcome, int) {
	return b.insert(&Packet{
		Header:           *h,
		Payload:          payload,
		ReceiveTimestamp: receiveTimestamp,
		Redundant:        true,
		ArrivalTickMs:    arrivalTickMs,
	})
}

func (b *PacketBuffer) insert(pkt *Packet) (InsertOutcome, int) {
	pos := b.unwrapper.Unwrap(pkt.Header.Timestamp)
	pkt.Position = pos

	if el := b.list.Get(pos); el != nil {
		stored := el.Value.(*Packet)
		if stored.IsSync && !pkt.IsSync && !pkt.Redundant {
			el.Value = pkt
			logrus.WithFields(logrus.Fields{
				"function": "PacketBuffer.Insert",
				"sequence": pkt.Header.SequenceNumber,
				"position": pos,
			}).Debug("Real packet replaced sync placeholder")
			return OutcomeReplacedSync, 0
		}
		return OutcomeDuplicate, 0
	}

	b.list.Set(pos, pkt)

	evicted := 0
	for b.list.Len() > b.maxPackets {
		b.list.RemoveFront()
		evicted++
	}
	if evicted > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "PacketBuffer.Insert",
			"evicted":  evicted,
		}).Debug("Evicted oldest packets to respect capacity")
	}
	return OutcomeInserted, evicted
}

// Peek returns the oldest buffered packet without removing it, or nil when
// the buffer is empty.
func (b *PacketBuffer) Peek() *Packet {
	front := b.list.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Packet)
}

// Pop removes and returns the oldest buffered packet, or nil when empty.
func (b *PacketBuffer) Pop() *Packet {
	front := b.list.RemoveFront()
	if front == nil {
		return nil
	}
	return front.Value.(*Packet)
}

// DiscardOlderThan drops every packet whose whole span, assuming the given
// duration, ends at or before limit. It returns the number of packets
// dropped.
func (b *PacketBuffer) DiscardOlderThan(limit int64, durationSamples int) int {
	dropped := 0
	for {
		front := b.list.Front()
		if front == nil {
			break
		}
		pkt := front.Value.(*Packet)
		if pkt.Position+int64(durationSamples) > limit {
			break
		}
		b.list.RemoveFront()
		dropped++
	}
	return dropped
}

// RemovePayloadType drops every buffered packet carrying the given payload
// type and returns how many were removed. Sync placeholders stay; they hold
// no payload to go stale.
func (b *PacketBuffer) RemovePayloadType(payloadType uint8) int {
	var stale []int64
	for el := b.list.Front(); el != nil; el = el.Next() {
		pkt := el.Value.(*Packet)
		if !pkt.IsSync && pkt.Header.PayloadType == payloadType {
			stale = append(stale, pkt.Position)
		}
	}
	for _, pos := range stale {
		b.list.Remove(pos)
	}
	return len(stale)
}

// Len returns the number of buffered packets.
func (b *PacketBuffer) Len() int {
	return b.list.Len()
}

// Full reports whether the buffer is at its capacity limit.
func (b *PacketBuffer) Full() bool {
	return b.list.Len() >= b.maxPackets
}

// Clear drops every buffered packet and returns how many were dropped. The
// timestamp projection survives, so positions assigned after the clear stay
// comparable with positions assigned before it.
func (b *PacketBuffer) Clear() int {
	n := b.list.Len()
	b.list.Init()
	if n > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "PacketBuffer.Clear",
			"dropped":  n,
		}).Debug("Cleared packet buffer")
	}
	return n
}

// SpanSamples estimates buffered audio in samples: the timeline distance
// from the oldest packet to the end of the newest one, using
// lastFrameSamples as the newest packet's duration.
func (b *PacketBuffer) SpanSamples(lastFrameSamples int) int64 {
	front := b.list.Front()
	if front == nil {
		return 0
	}
	back := b.list.Back()
	first := front.Value.(*Packet)
	last := back.Value.(*Packet)
	return last.Position + int64(lastFrameSamples) - first.Position
}

// Flush drops all buffered packets and re-anchors the timeline projection.
// Used when the stream restarts (SSRC change) or on explicit request.
func (b *PacketBuffer) Flush() {
	n := b.list.Len()
	b.list.Init()
	b.unwrapper = TimestampUnwrapper{}
	if n > 0 {
		logrus.WithFields(logrus.Fields{
			"function": "PacketBuffer.Flush",
			"dropped":  n,
		}).Debug("Flushed packet buffer")
	}
}

// UnwrapTimestamp projects a raw 32-bit timestamp onto the buffer's
// timeline without inserting anything. The projection shares the anchor
// used for stored packets.
func (b *PacketBuffer) UnwrapTimestamp(ts uint32) int64 {
	return b.unwrapper.Unwrap(ts)
}
