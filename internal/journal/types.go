package journal

import "time"

// Config holds journal configuration.
type Config struct {
	BatchSize     int           // Rows per database flush (default: 500)
	FlushInterval time.Duration // Max time a row sits unflushed (default: 2s)
	Directory     string        // Session file directory; empty disables files
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 2 * time.Second,
		Directory:     "sessions",
	}
}

// Metrics counts journal activity.
type Metrics struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	FileLines int64
}

// eventRow is one row bound for the market_events table.
type eventRow struct {
	AssetID    string
	EventType  string
	Timestamp  int64 // exchange timestamp, milliseconds
	ReceivedAt int64 // local receive timestamp, milliseconds
	Payload    []byte
}
