// Package dsp holds the sample-domain operations of the playout engine:
// packet-loss concealment, pitch-preserving time scaling, expand-to-speech
// merging, and the two noise generators.
//
// All operations work on interleaved signed 16-bit PCM. Pitch lags are kept
// at multiples of the channel count so that interleaved frames stay aligned.
// The operations change sample counts only; mapping stretched output back to
// the packet timeline is the caller's concern.
package dsp
