package polymarket

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rickgao/polymarket-data/internal/model"
)

// ErrEventNotFound is returned when a slug resolves to no Gamma event.
var ErrEventNotFound = errors.New("event not found")

// GetEventBySlug fetches one Gamma event and its markets by slug.
func (c *Client) GetEventBySlug(ctx context.Context, slug string) (model.EventMetadata, error) {
	query := url.Values{}
	query.Set("slug", slug)

	var wire []gammaEventWire
	if err := c.getGamma(ctx, "/events", query, &wire); err != nil {
		return model.EventMetadata{}, fmt.Errorf("fetch event %q: %w", slug, err)
	}
	if len(wire) == 0 {
		return model.EventMetadata{}, fmt.Errorf("%w: %q", ErrEventNotFound, slug)
	}

	ev, err := convertEvent(wire[0])
	if err != nil {
		return model.EventMetadata{}, fmt.Errorf("event %q: %w", slug, err)
	}

	c.logger.Debug("fetched event metadata",
		"slug", slug, "markets", len(ev.Markets))
	return ev, nil
}

// convertEvent normalizes a Gamma event, decoding the string-encoded
// token and outcome arrays on each market.
func convertEvent(wire gammaEventWire) (model.EventMetadata, error) {
	ev := model.EventMetadata{
		ID:      wire.ID,
		Title:   wire.Title,
		Slug:    wire.Slug,
		Markets: make([]model.MarketMetadata, 0, len(wire.Markets)),
	}

	for _, m := range wire.Markets {
		tokenIDs, err := decodeStringArray("clobTokenIds", m.ClobTokenIDs)
		if err != nil {
			return model.EventMetadata{}, fmt.Errorf("market %s: %w", m.ID, err)
		}
		outcomes, err := decodeStringArray("outcomes", m.Outcomes)
		if err != nil {
			return model.EventMetadata{}, fmt.Errorf("market %s: %w", m.ID, err)
		}

		ev.Markets = append(ev.Markets, model.MarketMetadata{
			ID:           m.ID,
			ConditionID:  m.ConditionID,
			Question:     m.Question,
			ClobTokenIDs: tokenIDs,
			Outcomes:     outcomes,
		})
	}

	return ev, nil
}
