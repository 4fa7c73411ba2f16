// Package engine maintains live reconstructed books for every tracked
// instrument.
//
// A single goroutine drains the router's book queue and folds each event
// through the shared transition function, so per-instrument ordering is
// preserved without locking inside the fold. Readers get copy-on-write
// snapshots under a read lock.
package engine
