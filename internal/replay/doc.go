// Package replay feeds recorded or synthetic detection logs through the
// overlay tracker offline and measures how much jitter the smoothing
// removes. It backs the overlay-replay tool and the tracker regression
// tests.
package replay
