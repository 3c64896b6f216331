package playout

import (
	"fmt"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/opd-ai/playout/buffer"
	"github.com/opd-ai/playout/codec"
	"github.com/opd-ai/playout/delay"
	"github.com/opd-ai/playout/dsp"
	"github.com/opd-ai/playout/stats"
)

// defaultNoiseSeed keeps runs reproducible when the caller does not provide
// a seed of their own.
const defaultNoiseSeed = 0x6e657170

// playState is the engine's position in the output state machine.
type playState int

const (
	// stateStart means nothing has ever been decoded.
	stateStart playState = iota
	stateNormal
	stateExpand
	stateCNG
	statePLCtoCNG
)

// Engine is one adaptive playout instance for one received stream.
//
// The engine owns its codec registry, noise state, and timing estimators
// exclusively; nothing is shared between instances. A single mutex covers
// all state, which suits the intended two-goroutine deployment of one
// inserter and one puller.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	registry *codec.Registry
	packets  *buffer.PacketBuffer
	delayMgr *delay.Manager
	levels   *delay.LevelFilter
	noise    *dsp.BackgroundNoise
	expander *dsp.Expander
	cng      *dsp.ComfortNoiseGenerator
	stats    *stats.Calculator
	rtcp     *stats.RtcpTracker

	sampleRateHz int
	channels     int
	outputSize   int // samples per channel in one 10 ms block

	tickMs int64

	state    playState
	pending  []int16
	tickType OutputType

	// consumedEnd is the unwrapped timestamp one past the last packet
	// consumed onto the output timeline. It freezes while concealment or
	// comfort noise plays; noiseGenerated counts the samples produced
	// since the freeze so the engine knows when the next packet is due.
	timelineStarted bool
	consumedEnd     int64
	noiseGenerated  int64

	// Packets arriving before anything was decoded pile up as a startup
	// backlog. While it drains, the spacing between arrivals at the delay
	// manager tracks the output clock rather than the network, so each
	// drained packet restarts the manager's arrival clock.
	decodedAny     bool
	backlogPackets int
	backlogDrained int

	ssrcKnown     bool
	ssrc          uint32
	streamStarted bool
	lastRealPT    uint8
	lastPackCNG   bool

	lastCngValid bool
	lastCngSeq   uint16
	lastCngTs    uint32

	frameLenSamples int
	timescaleHold   int
	timeStretched   int

	lastErr        atomic.Error
	lastDecoderErr atomic.Error
}

// New creates an engine from the given configuration.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.NoiseSeed
	if seed == 0 {
		seed = defaultNoiseSeed
	}
	noise := dsp.NewBackgroundNoise(cfg.BackgroundNoiseMode, seed)
	e := &Engine{
		cfg:          cfg,
		registry:     codec.NewRegistry(),
		packets:      buffer.NewPacketBuffer(cfg.MaxPacketsInBuffer),
		delayMgr:     delay.NewManager(),
		levels:       delay.NewLevelFilter(),
		noise:        noise,
		expander:     dsp.NewExpander(cfg.SampleRateHz, 1, noise),
		cng:          dsp.NewComfortNoiseGenerator(seed + 1),
		stats:        stats.NewCalculator(),
		rtcp:         stats.NewRtcpTracker(),
		sampleRateHz: cfg.SampleRateHz,
		channels:     1,
		outputSize:   cfg.SampleRateHz / 100,
	}
	logrus.WithFields(logrus.Fields{
		"function":      "New",
		"sample_rate":   cfg.SampleRateHz,
		"playout_mode":  cfg.PlayoutMode.String(),
		"bg_noise_mode": cfg.BackgroundNoiseMode.String(),
		"max_packets":   cfg.MaxPacketsInBuffer,
	}).Info("Created playout engine")
	return e, nil
}

// RegisterPayloadType binds a built-in decoder identity to an RTP payload
// type.
func (e *Engine) RegisterPayloadType(id codec.ID, name string, payloadType uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.Register(id, name, payloadType); err != nil {
		e.lastErr.Store(err)
		return err
	}
	return nil
}

// RegisterExternalDecoder binds a caller-provided decoder to an RTP payload
// type at an explicit sample rate.
func (e *Engine) RegisterExternalDecoder(dec codec.Decoder, id codec.ID, name string, payloadType uint8, sampleRateHz int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.RegisterExternal(dec, id, name, payloadType, sampleRateHz); err != nil {
		e.lastErr.Store(err)
		return err
	}
	return nil
}

// RemovePayloadType unbinds a payload type and drops any buffered packets
// still carrying it.
func (e *Engine) RemovePayloadType(payloadType uint8) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.Remove(payloadType); err != nil {
		e.lastErr.Store(err)
		return err
	}
	if dropped := e.packets.RemovePayloadType(payloadType); dropped > 0 {
		e.stats.DiscardedSamples(dropped * e.frameLenOrDefault())
		logrus.WithFields(logrus.Fields{
			"function":     "Engine.RemovePayloadType",
			"payload_type": payloadType,
			"dropped":      dropped,
		}).Debug("Dropped buffered packets for removed payload type")
	}
	return nil
}

// InsertPacket admits one received packet.
//
// Parameters:
//   - h: the packet's RTP header; sequence number, timestamp, SSRC, and
//     payload type drive admission and ordering
//   - payload: the codec payload, which must not be empty
//   - receiveTimestamp: the arrival time in RTP clock units, used for the
//     RTCP jitter estimate
//
// Returns an error when the packet cannot be admitted; the stream keeps
// playing either way.
func (e *Engine) InsertPacket(h *rtp.Header, payload []byte, receiveTimestamp uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == nil {
		return e.fail(fmt.Errorf("%w: nil header", ErrEmptyPayload))
	}
	if len(payload) == 0 {
		return e.fail(fmt.Errorf("%w: sequence %d", ErrEmptyPayload, h.SequenceNumber))
	}
	binding, err := e.registry.Lookup(h.PayloadType)
	if err != nil {
		return e.fail(fmt.Errorf("%w: %d", ErrUnknownPayloadType, h.PayloadType))
	}

	if e.ssrcKnown && h.SSRC != e.ssrc {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.InsertPacket",
			"old_ssrc": e.ssrc,
			"new_ssrc": h.SSRC,
		}).Info("SSRC changed, restarting stream")
		e.resetStream()
	}
	if !e.ssrcKnown {
		e.ssrcKnown = true
		e.ssrc = h.SSRC
	}

	e.rtcp.Update(h.SSRC, h.SequenceNumber, h.Timestamp, receiveTimestamp)

	switch {
	case binding.DecoderID.IsComfortNoise():
		return e.insertComfortNoise(h, payload, receiveTimestamp)
	case binding.DecoderID.IsEvent():
		// Tone events carry no audio for the timeline.
		e.lastPackCNG = true
		return nil
	case binding.DecoderID.IsRedundancy():
		return e.insertRedundant(h, payload, receiveTimestamp)
	default:
		e.insertSpeech(h, payload, receiveTimestamp)
		return nil
	}
}

// InsertSyncPacket reserves the timeline slot of a packet whose payload is
// known to be absent. The placeholder decodes to silence unless the real
// packet arrives first.
func (e *Engine) InsertSyncPacket(h *rtp.Header, receiveTimestamp uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == nil {
		return e.fail(fmt.Errorf("%w: nil header", ErrEmptyPayload))
	}
	if !e.streamStarted {
		return e.fail(fmt.Errorf("%w: sequence %d", ErrSyncPacketFirst, h.SequenceNumber))
	}
	binding, err := e.registry.Lookup(h.PayloadType)
	if err != nil {
		return e.fail(fmt.Errorf("%w: %d", ErrUnknownPayloadType, h.PayloadType))
	}
	if !binding.DecoderID.ProducesAudio() {
		return e.fail(fmt.Errorf("%w: %d", ErrSyncPayloadType, h.PayloadType))
	}
	if h.PayloadType != e.lastRealPT {
		return e.fail(fmt.Errorf("%w: payload type %d, stream uses %d", ErrSyncCodecChange, h.PayloadType, e.lastRealPT))
	}
	if h.SSRC != e.ssrc {
		return e.fail(fmt.Errorf("%w: ssrc %d, stream uses %d", ErrSyncSsrcChange, h.SSRC, e.ssrc))
	}

	if e.packets.Full() {
		e.overflowFlush(h)
	}
	e.delayMgr.Update(h.SequenceNumber, h.Timestamp, binding.SampleRateHz)
	outcome, evicted := e.packets.Insert(h, nil, receiveTimestamp, true, e.tickMs)
	e.accountEviction(evicted)
	logrus.WithFields(logrus.Fields{
		"function": "Engine.InsertSyncPacket",
		"sequence": h.SequenceNumber,
		"outcome":  int(outcome),
	}).Debug("Inserted sync placeholder")
	return nil
}

func (e *Engine) insertComfortNoise(h *rtp.Header, payload []byte, receiveTimestamp uint32) error {
	e.lastPackCNG = true
	payloadCopy := append([]byte(nil), payload...)
	outcome, evicted := e.packets.Insert(h, payloadCopy, receiveTimestamp, false, e.tickMs)
	e.accountEviction(evicted)
	logrus.WithFields(logrus.Fields{
		"function": "Engine.InsertPacket",
		"sequence": h.SequenceNumber,
		"outcome":  int(outcome),
	}).Debug("Inserted comfort noise packet")
	return nil
}

func (e *Engine) insertRedundant(h *rtp.Header, payload []byte, receiveTimestamp uint32) error {
	blocks, err := splitRed(payload)
	if err != nil {
		return e.fail(err)
	}
	for i := range blocks {
		blk := &blocks[i]
		if _, err := e.registry.Lookup(blk.payloadType); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":     "Engine.InsertPacket",
				"payload_type": blk.payloadType,
			}).Warn("Skipping redundancy block with unregistered payload type")
			continue
		}
		bh := redHeader(h, blk)
		if blk.primary {
			e.insertSpeech(&bh, blk.payload, receiveTimestamp)
		} else {
			payloadCopy := append([]byte(nil), blk.payload...)
			_, evicted := e.packets.InsertRedundant(&bh, payloadCopy, receiveTimestamp, e.tickMs)
			e.accountEviction(evicted)
		}
	}
	return nil
}

func (e *Engine) insertSpeech(h *rtp.Header, payload []byte, receiveTimestamp uint32) {
	e.streamStarted = true
	e.lastRealPT = h.PayloadType

	binding, err := e.registry.Lookup(h.PayloadType)
	if err != nil {
		return
	}

	if e.lastPackCNG {
		// The stream resumes after a silence period; arrival statistics
		// from before the gap no longer describe it.
		e.delayMgr.Reset()
		if e.frameLenSamples > 0 {
			e.delayMgr.SetPacketAudioLength(e.frameLenSamples * 1000 / e.sampleRateHz)
		}
		e.lastPackCNG = false
	}

	if !e.decodedAny {
		e.backlogPackets++
	}
	if e.packets.Full() {
		e.overflowFlush(h)
	}
	e.delayMgr.Update(h.SequenceNumber, h.Timestamp, binding.SampleRateHz)

	payloadCopy := append([]byte(nil), payload...)
	outcome, evicted := e.packets.Insert(h, payloadCopy, receiveTimestamp, false, e.tickMs)
	e.accountEviction(evicted)
	logrus.WithFields(logrus.Fields{
		"function": "Engine.InsertPacket",
		"sequence": h.SequenceNumber,
		"outcome":  int(outcome),
	}).Debug("Inserted packet")
}

// overflowFlush clears a full buffer and restarts the timeline at the
// arriving packet, the freshest anchor available; the backlog would only
// ever play out late. The arriving packet's spacing reflects the stall, not
// the network, so the delay manager leaves it out.
func (e *Engine) overflowFlush(h *rtp.Header) {
	dropped := e.packets.Clear()
	e.stats.DiscardedSamples(dropped * e.frameLenOrDefault())
	e.consumedEnd = e.packets.UnwrapTimestamp(h.Timestamp)
	e.timelineStarted = true
	e.noiseGenerated = 0
	e.delayMgr.ExcludeNextUpdate()
	logrus.WithFields(logrus.Fields{
		"function": "Engine.overflowFlush",
		"dropped":  dropped,
		"sequence": h.SequenceNumber,
	}).Warn("Packet buffer full, flushed backlog")
}

func (e *Engine) accountEviction(evicted int) {
	if evicted > 0 {
		e.stats.DiscardedSamples(evicted * e.frameLenOrDefault())
	}
}

// resetStream restarts every stream-scoped estimator. Cumulative statistics
// survive; they describe the session, not the stream.
func (e *Engine) resetStream() {
	e.packets.Flush()
	e.delayMgr.Reset()
	e.levels.Reset()
	e.expander.Reset()
	e.cng.Reset()
	e.noise.Reset()
	e.rtcp.Reset()
	e.pending = nil
	e.state = stateStart
	e.timelineStarted = false
	e.noiseGenerated = 0
	e.decodedAny = false
	e.backlogPackets = 0
	e.backlogDrained = 0
	e.ssrcKnown = false
	e.streamStarted = false
	e.lastPackCNG = false
	e.lastCngValid = false
	e.frameLenSamples = 0
	e.timescaleHold = 0
	e.timeStretched = 0
}

// FlushBuffers drops all buffered and pending audio while keeping decoder
// bindings and statistics. The next packet re-anchors the timeline.
func (e *Engine) FlushBuffers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.packets.Flush()
	e.pending = nil
	e.expander.Reset()
	e.state = stateStart
	e.timelineStarted = false
	e.noiseGenerated = 0
	e.lastCngValid = false
	logrus.WithFields(logrus.Fields{
		"function": "Engine.FlushBuffers",
	}).Info("Flushed playout buffers")
}

// GetPlayoutTimestamp returns the RTP timestamp corresponding to the end of
// the audio most recently consumed onto the output timeline. It reports
// false before any packet has been consumed.
func (e *Engine) GetPlayoutTimestamp() (uint32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(e.consumedEnd), e.timelineStarted
}

// LastOutputSampleRateHz returns the sample rate of the most recent output,
// which is the configured rate until the first packet is decoded.
func (e *Engine) LastOutputSampleRateHz() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRateHz
}

// LastError returns the most recent engine error, or nil.
func (e *Engine) LastError() error { return e.lastErr.Load() }

// LastDecoderError returns the most recent decoder failure, or nil.
func (e *Engine) LastDecoderError() error { return e.lastDecoderErr.Load() }

// NetworkStatistics returns the adaptive-behavior snapshot. The four
// waiting-time fields are drained by the read; every other field is a plain
// snapshot of persistent state.
func (e *Engine) NetworkStatistics() stats.NetworkStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	bufSamples := int(e.packets.SpanSamples(e.frameLenOrDefault()))
	if e.channels > 0 {
		bufSamples += len(e.pending) / e.channels
	}
	currentMs := bufSamples * 1000 / e.sampleRateHz
	return e.stats.Snapshot(
		currentMs,
		e.delayMgr.PreferredBufferSizeMs(),
		e.delayMgr.AverageIATppm(),
		e.delayMgr.PeakDetector().PeakFound(),
	)
}

// RtcpStatistics returns the RFC 3550 reception report for the stream.
// Fraction lost covers the interval since the previous call.
func (e *Engine) RtcpStatistics() rtcp.ReceptionReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rtcp.Report()
}

func (e *Engine) fail(err error) error {
	e.lastErr.Store(err)
	logrus.WithFields(logrus.Fields{
		"function": "Engine",
		"error":    err.Error(),
	}).Error("Operation failed")
	return err
}

func (e *Engine) frameLenOrDefault() int {
	if e.frameLenSamples > 0 {
		return e.frameLenSamples
	}
	return e.outputSize
}
