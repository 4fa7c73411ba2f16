package polymarket

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/model"
)

// GetBook fetches the current order book for one clob token from the CLOB
// API and returns it as a normalized book snapshot event. The result is
// interchangeable with a snapshot received over the WebSocket feed.
func (c *Client) GetBook(ctx context.Context, tokenID string) (model.Event, error) {
	query := url.Values{}
	query.Set("token_id", tokenID)

	var wire clobBookWire
	if err := c.getClob(ctx, "/book", query, &wire); err != nil {
		return model.Event{}, fmt.Errorf("fetch book %s: %w", tokenID, err)
	}

	assetID := wire.AssetID
	if assetID == "" {
		assetID = tokenID
	}

	bids, err := convertLevels(wire.Bids)
	if err != nil {
		return model.Event{}, fmt.Errorf("book %s bids: %w", tokenID, err)
	}
	asks, err := convertLevels(wire.Asks)
	if err != nil {
		return model.Event{}, fmt.Errorf("book %s asks: %w", tokenID, err)
	}

	return model.Event{
		Type:      model.EventBook,
		AssetID:   assetID,
		Timestamp: bookTimestamp(wire.Timestamp),
		Bids:      bids,
		Asks:      asks,
	}, nil
}

// convertLevels parses wire price levels into decimals.
func convertLevels(levels []clobLevelWire) ([]model.PriceLevel, error) {
	out := make([]model.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %w", l.Price, err)
		}
		size, err := decimal.NewFromString(l.Size)
		if err != nil {
			return nil, fmt.Errorf("bad size %q: %w", l.Size, err)
		}
		out = append(out, model.PriceLevel{Price: price, Size: size})
	}
	return out, nil
}

// bookTimestamp parses the book timestamp, defaulting to local time when
// the field is absent.
func bookTimestamp(s string) int64 {
	if s == "" {
		return time.Now().UnixMilli()
	}
	ts, err := model.ParseTimestamp(s)
	if err != nil {
		return time.Now().UnixMilli()
	}
	return ts
}
