// Package buffer implements the ordered packet store of the playout engine.
//
// Incoming RTP packets arrive reordered, duplicated, and with 16-bit
// sequence numbers and 32-bit timestamps that wrap around. The buffer
// resolves wraparound once at insertion time by unwrapping both counters
// onto an int64 timeline, then keeps packets sorted by their unwrapped
// timestamp in a skip list. All ordering decisions downstream work on the
// unwrapped domain and never compare raw wrapping counters directly.
//
// The buffer also stores payload-less sync placeholders that reserve a
// timeline slot before the real payload arrives. A real packet always
// replaces a sync placeholder occupying the same slot; the reverse never
// happens.
package buffer
