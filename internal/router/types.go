package router

import (
	"errors"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// ErrMalformedEvent marks frames that name a known event type but fail
// normalization (bad decimals, missing asset IDs, invalid sides). The
// router logs and drops these; the stream keeps flowing.
var ErrMalformedEvent = errors.New("malformed market event")

// ErrUnknownEvent marks well-formed frames whose event type the collector
// does not track.
var ErrUnknownEvent = errors.New("unknown event type")

// Config holds router tuning.
type Config struct {
	// Initial queue capacities; queues grow past these under load.
	BookQueueSize    int // Default: 4096
	JournalQueueSize int // Default: 4096
}

// DefaultConfig returns default router configuration.
func DefaultConfig() Config {
	return Config{
		BookQueueSize:    4096,
		JournalQueueSize: 4096,
	}
}

// Queues exposes the router's output queues to consumers.
type Queues struct {
	// Books carries normalized book-mutating events for the engine.
	Books *Queue[model.Event]
	// Journal carries one record per (event, asset) for persistence.
	Journal *Queue[JournalMsg]
}

// Stats contains runtime routing counters.
type Stats struct {
	FramesReceived int64
	EventsRouted   int64
	ParseErrors    int64
	UnknownEvents  int64
	BookQueue      QueueStats
	JournalQueue   QueueStats
}

// JournalMsg is one event addressed to one asset's journal. Multi-asset
// price_change frames produce one record per touched asset, each carrying
// the full original payload.
type JournalMsg struct {
	AssetID    string
	Type       model.EventType
	Timestamp  int64
	ReceivedAt time.Time
	Payload    []byte
}

// Wire types for JSON parsing.

// eventEnvelope is used for event type extraction before a full parse.
type eventEnvelope struct {
	EventType string `json:"event_type"`
}

// levelWire is one price level inside a book snapshot.
type levelWire struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// bookWire is the wire format of a book snapshot event. Older feeds named
// the sides buys/sells; both spellings appear in recorded sessions.
type bookWire struct {
	AssetID   string      `json:"asset_id"`
	Market    string      `json:"market"`
	Timestamp string      `json:"timestamp"`
	Bids      []levelWire `json:"bids"`
	Asks      []levelWire `json:"asks"`
	Buys      []levelWire `json:"buys"`
	Sells     []levelWire `json:"sells"`
}

// changeWire is one entry of a price_change event. AssetID is present in
// the flattened multi-asset form and absent when the parent event carries
// a single asset_id.
type changeWire struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Side    string `json:"side"`
	Size    string `json:"size"`
}

// priceChangeWire is the wire format of a price_change event across feed
// revisions: "changes", the older "price_changes", or flat single-change
// fields on the event itself.
type priceChangeWire struct {
	AssetID      string       `json:"asset_id"`
	Market       string       `json:"market"`
	Timestamp    string       `json:"timestamp"`
	Changes      []changeWire `json:"changes"`
	PriceChanges []changeWire `json:"price_changes"`
	Price        string       `json:"price"`
	Side         string       `json:"side"`
	Size         string       `json:"size"`
}

// lastTradeWire is the wire format of a last_trade_price event.
type lastTradeWire struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
}

// tickSizeWire is the wire format of a tick_size_change event. The old and
// new tick values travel to the journal inside the raw payload.
type tickSizeWire struct {
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`
}
