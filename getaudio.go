package playout

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/playout/buffer"
	"github.com/opd-ai/playout/codec"
	"github.com/opd-ai/playout/dsp"
)

// tickDurationMs is the fixed output cadence.
const tickDurationMs = 10

// timescaleHoldTicks is the cool-down after a time-scale operation before
// the next one may run.
const timescaleHoldTicks = 5

// GetAudio produces the next 10 ms block of playout audio.
//
// The frame is always filled completely: with decoded speech when packets
// are available, otherwise with concealment, comfort noise, or silence as
// the state machine dictates. The returned OutputType labels the dominant
// source of the block. A decoder failure zeroes the block and returns an
// error wrapping ErrDecoderFailure; playout recovers on the next call.
func (e *Engine) GetAudio(frame *AudioFrame) (OutputType, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickMs += tickDurationMs
	e.delayMgr.ElapseTime(tickDurationMs)

	blockLen := e.outputSize * e.channels
	var tickErr error
	for len(e.pending) < blockLen {
		if err := e.fillStep(); err != nil {
			// Audio already produced this tick stays; only the unfilled
			// tail of the block becomes silence.
			if len(e.pending) < blockLen {
				e.pending = append(e.pending, make([]int16, blockLen-len(e.pending))...)
			}
			e.tickType = OutputNormal
			tickErr = err
			break
		}
		// A format switch mid-fill changes the block size.
		blockLen = e.outputSize * e.channels
	}

	out := make([]int16, blockLen)
	copy(out, e.pending)
	e.pending = e.pending[blockLen:]

	frame.Data = out
	frame.SamplesPerChannel = e.outputSize
	frame.NumChannels = e.channels
	frame.SampleRateHz = e.sampleRateHz

	e.stats.EmittedSamples(e.outputSize)

	bufSamples := int(e.packets.SpanSamples(e.frameLenOrDefault()))
	bufSamples += len(e.pending) / e.channels
	e.levels.SetTargetBufferLevel(e.delayMgr.TargetLevelQ8() >> 8)
	e.levels.Update(bufSamples, e.timeStretched)
	e.timeStretched = 0
	if e.timescaleHold > 0 {
		e.timescaleHold--
	}

	return e.tickType, tickErr
}

// fillStep appends audio from one source decision to the pending buffer.
func (e *Engine) fillStep() error {
	pkt := e.packets.Peek()

	if pkt == nil {
		e.conceal()
		return nil
	}

	if !e.timelineStarted {
		e.consumedEnd = pkt.Position
		e.timelineStarted = true
	}

	gap := pkt.Position - e.consumedEnd
	if gap < 0 {
		// The packet's slot has already played out.
		e.packets.Pop()
		if !pkt.IsSync {
			e.stats.DiscardedSamples(e.frameLenOrDefault())
		}
		logrus.WithFields(logrus.Fields{
			"function": "Engine.fillStep",
			"sequence": pkt.Header.SequenceNumber,
			"late_by":  -gap,
		}).Debug("Dropped late packet")
		return nil
	}
	if gap > e.noiseGenerated {
		// During a comfort noise period, arriving speech ends the period
		// immediately; the skipped timestamps were silence, not loss.
		endsSilence := e.state == stateCNG &&
			!e.registry.IsComfortNoise(pkt.Header.PayloadType)
		if !endsSilence {
			// Not due yet; keep generating until the gap is covered.
			e.conceal()
			return nil
		}
	}

	e.packets.Pop()

	if e.isDuplicateCng(pkt) {
		// The same comfort-noise packet was already consumed; replaying
		// it would restart the noise period and shift the timeline.
		logrus.WithFields(logrus.Fields{
			"function": "Engine.fillStep",
			"sequence": pkt.Header.SequenceNumber,
		}).Debug("Suppressed duplicate comfort noise packet")
		return nil
	}

	if gap > 0 && e.state != stateCNG {
		// The gap was covered by concealment, so those timestamps are
		// genuinely lost.
		e.stats.LostSamples(int(gap))
	}
	e.consumedEnd = pkt.Position
	e.noiseGenerated = 0

	if pkt.IsSync {
		e.consumeSync(pkt)
		return nil
	}
	binding, err := e.registry.Lookup(pkt.Header.PayloadType)
	if err != nil {
		// Unbound since insertion; RemovePayloadType purges these, but an
		// in-flight pop can still race the removal.
		return nil
	}
	if binding.DecoderID.IsComfortNoise() {
		return e.consumeComfortNoise(pkt)
	}
	return e.consumeSpeech(pkt, binding)
}

// conceal appends one block's worth of synthesized audio while no packet is
// due.
func (e *Engine) conceal() {
	n := e.outputSize

	if e.state == stateStart {
		// Nothing has ever been decoded; emit plain silence.
		e.pending = append(e.pending, make([]int16, n*e.channels)...)
		e.stats.AddedZeros(n)
		e.tickType = OutputNormal
		return
	}

	if e.state == stateCNG && e.cng.Active() {
		e.pending = append(e.pending, e.cng.Generate(n*e.channels)...)
		e.noiseGenerated += int64(n)
		e.tickType = OutputCNG
		return
	}

	if e.expander.ConsecutiveExpands() >= dsp.MaxConsecutiveExpands {
		e.pending = append(e.pending, e.expander.GenerateFaded(n*e.channels)...)
		e.noiseGenerated += int64(n)
		e.stats.ExpandedNoise(n)
		e.state = statePLCtoCNG
		e.tickType = OutputPLCtoCNG
		return
	}

	e.pending = append(e.pending, e.expander.Generate(n*e.channels)...)
	e.noiseGenerated += int64(n)
	e.stats.ExpandedSpeech(n)
	e.state = stateExpand
	e.tickType = OutputPLC
}

func (e *Engine) isDuplicateCng(pkt *buffer.Packet) bool {
	return e.lastCngValid &&
		pkt.Header.SequenceNumber == e.lastCngSeq &&
		pkt.Header.Timestamp == e.lastCngTs &&
		e.registry.IsComfortNoise(pkt.Header.PayloadType)
}

// consumeSync plays a placeholder as silence spanning one frame.
func (e *Engine) consumeSync(pkt *buffer.Packet) {
	dur := e.frameLenOrDefault()
	e.pending = append(e.pending, make([]int16, dur*e.channels)...)
	e.consumedEnd += int64(dur)
	e.state = stateNormal
	e.tickType = OutputNormal
	logrus.WithFields(logrus.Fields{
		"function": "Engine.consumeSync",
		"sequence": pkt.Header.SequenceNumber,
		"samples":  dur,
	}).Debug("Played sync placeholder as silence")
}

// consumeComfortNoise anchors a silence period: the noise parameters are
// absorbed and the timeline freezes at the packet's timestamp while noise
// plays.
func (e *Engine) consumeComfortNoise(pkt *buffer.Packet) error {
	if err := e.cng.UpdateParameters(pkt.Payload); err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrComfortNoisePayload, err)
		e.lastErr.Store(wrapped)
		return wrapped
	}
	e.lastCngValid = true
	e.lastCngSeq = pkt.Header.SequenceNumber
	e.lastCngTs = pkt.Header.Timestamp
	e.state = stateCNG
	e.tickType = OutputCNG
	logrus.WithFields(logrus.Fields{
		"function": "Engine.consumeComfortNoise",
		"sequence": pkt.Header.SequenceNumber,
	}).Debug("Entered comfort noise period")
	return nil
}

// consumeSpeech decodes one packet onto the timeline, applying merge after
// concealment and the time-scale operations when scheduled.
func (e *Engine) consumeSpeech(pkt *buffer.Packet, binding *codec.Binding) error {
	e.stats.RecordWaitingTime(int(e.tickMs - pkt.ArrivalTickMs))

	decoded, err := binding.Decoder.Decode(pkt.Payload)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrDecoderFailure, err)
		e.lastDecoderErr.Store(wrapped)
		e.lastErr.Store(wrapped)
		// The slot is spent either way; keep the timeline moving.
		e.consumedEnd += int64(e.frameLenOrDefault())
		e.state = stateNormal
		return wrapped
	}

	e.switchFormatIfNeeded(binding.SampleRateHz, binding.Decoder.Channels())

	samplesPerChannel := len(decoded) / e.channels
	dur := samplesPerChannel
	e.frameLenSamples = dur

	if pkt.Redundant {
		e.stats.SecondaryDecoded(samplesPerChannel)
	}

	if e.cfg.PlayoutMode == PlayoutModeNormal && e.timescaleHold == 0 && e.state == stateNormal {
		decoded = e.maybeTimescale(decoded)
	}

	if e.state == stateExpand || e.state == statePLCtoCNG {
		decoded = dsp.Merge(e.expander, decoded, e.sampleRateHz, e.channels)
	}

	e.expander.UpdateHistory(decoded)
	e.noise.Update(decoded)

	e.pending = append(e.pending, decoded...)
	e.consumedEnd += int64(dur)
	e.state = stateNormal
	e.tickType = OutputNormal

	if e.backlogDrained < e.backlogPackets && e.backlogPackets >= 2 {
		e.backlogDrained++
		e.delayMgr.ResetElapsedTime()
	}
	e.decodedAny = true
	return nil
}

// maybeTimescale runs accelerate or preemptive expand on a decoded frame
// when the buffer level calls for it.
func (e *Engine) maybeTimescale(decoded []int16) []int16 {
	frameLen := e.frameLenOrDefault()
	targetSamples := (e.delayMgr.TargetLevelQ8() * frameLen) >> 8
	levelSamples := e.levels.FilteredCurrentLevelQ8() >> 8
	drift := e.delayMgr.AverageIATppm()

	switch {
	case levelSamples > targetSamples+frameLen && drift >= 0:
		out, removed := dsp.Accelerate(decoded, e.sampleRateHz, e.channels)
		if removed > 0 {
			perChannel := removed / e.channels
			e.stats.Accelerated(perChannel)
			e.timeStretched += perChannel
			e.timescaleHold = timescaleHoldTicks
		}
		return out
	case levelSamples < targetSamples:
		out, added := dsp.PreemptiveExpand(decoded, e.sampleRateHz, e.channels)
		if added > 0 {
			perChannel := added / e.channels
			e.stats.Preemptive(perChannel)
			e.timeStretched -= perChannel
			e.timescaleHold = timescaleHoldTicks
		}
		return out
	default:
		return decoded
	}
}

// switchFormatIfNeeded follows the decoded stream's sample rate and channel
// count, dropping pending audio in the old format.
func (e *Engine) switchFormatIfNeeded(sampleRateHz, channels int) {
	if channels < 1 {
		channels = 1
	}
	if sampleRateHz == e.sampleRateHz && channels == e.channels {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":    "Engine.switchFormatIfNeeded",
		"sample_rate": sampleRateHz,
		"channels":    channels,
	}).Info("Output format changed")
	e.sampleRateHz = sampleRateHz
	e.channels = channels
	e.outputSize = sampleRateHz / 100
	e.expander.SetFormat(sampleRateHz, channels)
	e.pending = nil
}
