// Package router parses raw market-channel frames and fans the normalized
// events out to the reconstruction engine and the journal.
//
// The feed batches events into JSON array frames; the router splits them,
// normalizes decimal strings and timestamps, and drops malformed or unknown
// events with a warning rather than stalling the stream. Output queues are
// unbounded so the WebSocket read loop never blocks behind a slow consumer.
package router
