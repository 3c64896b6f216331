// Package delay estimates how much audio the engine should keep buffered
// and how far the sender's clock drifts from the receiver's.
//
// The Manager maintains a 65-bin histogram of packet inter-arrival times,
// measured in integer packet durations, with exponential forgetting in Q15
// fixed point. The preferred buffer depth is the smallest histogram index
// whose tail probability drops to 5%, widened when the peak detector sees
// recurring delay spikes. The signed deviation of the histogram mean from
// one packet time, scaled to parts per million, is the clock-drift
// estimate: positive when the sender underfeeds the receiver, negative when
// it overfeeds.
//
// All arithmetic is integer fixed point so that the estimates are exactly
// reproducible for a given packet timing sequence.
package delay
