package model

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Order Book Types
// -----------------------------------------------------------------------------

// Side identifies which side of the book a change targets.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two wire values.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// PriceLevel is a (price, size) pair representing resting quantity at a price.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// -----------------------------------------------------------------------------
// Event Types
// -----------------------------------------------------------------------------

// EventType discriminates the wire event kinds on the market channel.
type EventType string

const (
	EventBook           EventType = "book"
	EventPriceChange    EventType = "price_change"
	EventTickSizeChange EventType = "tick_size_change"
	EventLastTradePrice EventType = "last_trade_price"
)

// BookMutating reports whether events of this type change book shape.
// Tick size and last trade events are observed on the wire but never
// dispatched to reconstruction.
func (t EventType) BookMutating() bool {
	return t == EventBook || t == EventPriceChange
}

// PriceChange is one normalized entry of a price_change event. Size is the
// new absolute resting size at Price (zero means remove), never a signed
// delta quantity.
type PriceChange struct {
	AssetID string
	Price   decimal.Decimal
	Side    Side
	Size    decimal.Decimal
}

// Event is the normalized form of one wire event. Type indicates which
// field groups are populated: Bids/Asks for book snapshots, Changes for
// price changes, Price/Size for last trades.
type Event struct {
	Type      EventType
	AssetID   string // empty for multi-asset price_change events
	Timestamp int64  // milliseconds

	// Snapshot-only fields
	Bids []PriceLevel
	Asks []PriceLevel

	// Delta-only fields (each change carries its own asset ID)
	Changes []PriceChange

	// Last-trade-only fields
	Price decimal.Decimal
	Size  decimal.Decimal
}

// AssetIDs returns every asset ID the event touches, in wire order.
func (e Event) AssetIDs() []string {
	if e.Type != EventPriceChange {
		if e.AssetID == "" {
			return nil
		}
		return []string{e.AssetID}
	}
	seen := make(map[string]struct{}, len(e.Changes))
	ids := make([]string, 0, len(e.Changes))
	for _, c := range e.Changes {
		if _, ok := seen[c.AssetID]; ok {
			continue
		}
		seen[c.AssetID] = struct{}{}
		ids = append(ids, c.AssetID)
	}
	return ids
}

// ChangesFor returns the subset of changes targeting one asset, preserving
// wire order. Reconstruction is order-dependent within an asset.
func (e Event) ChangesFor(assetID string) []PriceChange {
	var out []PriceChange
	for _, c := range e.Changes {
		if c.AssetID == assetID {
			out = append(out, c)
		}
	}
	return out
}

// ParseTimestamp converts a wire timestamp string to milliseconds. The feed
// sends both 13-digit millisecond and 10-digit second encodings.
func ParseTimestamp(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	if len(s) <= 10 {
		v *= 1000
	}
	return v, nil
}

// -----------------------------------------------------------------------------
// Metadata Types (Gamma API)
// -----------------------------------------------------------------------------

// MarketMetadata describes one binary market within an event: a question
// with exactly two complementary outcomes, each addressed by a clob token ID.
type MarketMetadata struct {
	ID           string
	ConditionID  string
	Question     string
	ClobTokenIDs []string // parallel to Outcomes, typically [Yes, No]
	Outcomes     []string
}

// EventMetadata describes a Gamma event: a group of related markets
// identified by a slug (e.g. "presidential-election-winner-2028").
type EventMetadata struct {
	ID      string
	Title   string
	Slug    string
	Markets []MarketMetadata
}
