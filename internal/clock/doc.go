// Package clock reconciles a stream clock (PCR/PTS-like, in microsecond
// ticks) against the host system clock, so that a demuxer's stream
// timestamps can be turned into presentation times in the system's own
// time base.
//
// A Clock absorbs network jitter and bounded clock drift through a
// windowed low-pass filter, tracks decoder latency from recently observed
// arrivals, and exposes a small state machine for discontinuity recovery,
// rate changes, pause/resume and external clock origin shifts. One mutex
// protects the whole object; every method is safe for concurrent use.
package clock
