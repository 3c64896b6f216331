// Package playout implements an adaptive jitter buffer and playout engine
// for received voice streams.
//
// Packets go in through InsertPacket as they arrive from the network, in any
// order and with any timing. The audio sink drives the other side by calling
// GetAudio once per 10 ms tick and always receives a full block: decoded
// speech when the stream keeps up, concealment when it does not, comfort
// noise during silence periods, and pitch-preserving time compression or
// stretching when the buffer needs to track its target depth.
//
// One Engine owns one stream. All methods are safe for concurrent use; the
// expected deployment is one goroutine feeding packets and another pulling
// audio.
package playout
