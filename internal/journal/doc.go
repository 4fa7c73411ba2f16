// Package journal persists the raw event stream.
//
// Every event is written twice: batched into the market_events hypertable
// for querying, and appended to a per-asset JSONL session file for cheap
// offline replay. Both sinks store the original wire payload so a replay
// reproduces exactly what the feed sent.
package journal
