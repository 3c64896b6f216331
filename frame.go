package playout

// OutputType labels where the samples of one output frame came from.
type OutputType int

const (
	// OutputNormal is decoded audio, including sync-packet silence.
	OutputNormal OutputType = iota
	// OutputCNG is synthesized comfort noise.
	OutputCNG
	// OutputPLC is concealment extrapolated from previous speech.
	OutputPLC
	// OutputPLCtoCNG is the tail state of long concealment, where the
	// extrapolation has decayed into background noise.
	OutputPLCtoCNG
)

func (t OutputType) String() string {
	switch t {
	case OutputCNG:
		return "cng"
	case OutputPLC:
		return "plc"
	case OutputPLCtoCNG:
		return "plc-to-cng"
	default:
		return "normal"
	}
}

// AudioFrame is one 10 ms block of interleaved playout audio.
type AudioFrame struct {
	Data              []int16
	SamplesPerChannel int
	NumChannels       int
	SampleRateHz      int
}
