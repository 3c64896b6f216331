// Package stats aggregates the observable behavior of the playout engine:
// concealment and time-scaling rates relative to total output, buffer depth,
// packet waiting times, and RFC 3550 reception quality for RTCP reports.
//
// Rates are Q14 fractions of cumulative output and keep accumulating across
// reads. Only the waiting-time aggregates are destructive: reading them
// drains the recorded samples, and a read with nothing recorded reports -1.
package stats
