// Package database provides the TimescaleDB connection pool for the
// event journal. The market_events hypertable is the only relational
// storage a collector uses; market metadata stays in memory.
package database
