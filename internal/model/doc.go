// Package model defines shared data types used across the Polymarket data
// platform.
//
// Conventions:
//   - Prices and sizes: decimal strings on the wire, shopspring decimals
//     in memory (the CLOB feed quotes prices in dollars, 0.00-1.00)
//   - Timestamps: int64 milliseconds since Unix epoch
//   - IDs: opaque string clob token IDs, one per market outcome
package model
