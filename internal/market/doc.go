// Package market tracks the instruments the collector records.
//
// Markets are configured as named groups of Gamma event slugs. The
// registry resolves each slug to its markets and clob token IDs at
// startup, keeps a local mappings cache so restarts survive Gamma
// outages, and periodically reconciles against the API to pick up
// markets added to an event after launch.
package market
