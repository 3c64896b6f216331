// Package codec binds RTP payload types to decoder capabilities.
//
// The playout engine never hard-codes codecs; it consults a Registry owned
// by the engine instance (no process-wide table). Each payload type maps to
// exactly one Binding and the last registration wins. Decoders are
// single capability interfaces — Decode plus Channels — registered either
// as built-in IDs (PCM16, G.711, Opus, comfort noise, AVT events, RED) or
// as caller-provided external decoders.
//
// Comfort-noise, event, and redundancy payload types never produce audio by
// themselves; the registry classifies them so the engine can route them to
// the noise generator or reject them where only decodable audio is legal.
package codec
