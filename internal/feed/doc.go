// Package feed implements the per-feed listener statistics that drive spike
// detection: a bounded moving average, an adaptive spike threshold, and a
// self-correcting baseline that absorbs a detected spike so it does not skew
// future comparisons.
//
// Everything here is pure, synchronous state evolution. A feed's State is
// advanced exactly once per polling cycle via Step; the package performs no
// I/O beyond the snapshot codec and never blocks or fails mid-cycle.
package feed
