// Package polymarket provides REST access to the two public Polymarket
// APIs the collector depends on: the Gamma API for event and market
// metadata, and the CLOB API for order book snapshots.
//
// Neither endpoint requires authentication for reads. The Gamma API
// encodes the per-market token ID and outcome arrays as JSON strings
// inside JSON; this package decodes them into plain slices.
package polymarket
