// Package poller periodically fetches REST book snapshots for every
// tracked asset and injects them into the normalized event stream.
//
// The WebSocket feed only sends a book snapshot on subscribe; the poller
// re-seeds each instrument on an interval so a missed delta cannot skew a
// book forever, and gives instruments whose first snapshot was lost a way
// back in.
package poller
