package polymarket

import (
	"encoding/json"
	"fmt"
)

// Wire types for the Gamma API. The per-market array fields arrive as
// JSON-encoded strings, e.g. "[\"Yes\", \"No\"]".

type gammaEventWire struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Slug    string            `json:"slug"`
	Markets []gammaMarketWire `json:"markets"`
}

type gammaMarketWire struct {
	ID           string `json:"id"`
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	ClobTokenIDs string `json:"clobTokenIds"`
	Outcomes     string `json:"outcomes"`
	Closed       bool   `json:"closed"`
}

// Wire types for the CLOB API.

type clobBookWire struct {
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Timestamp string          `json:"timestamp"`
	Hash      string          `json:"hash"`
	Bids      []clobLevelWire `json:"bids"`
	Asks      []clobLevelWire `json:"asks"`
}

type clobLevelWire struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// decodeStringArray decodes a JSON-string-encoded array field. An empty
// field decodes to nil rather than an error; closed markets omit them.
func decodeStringArray(field, s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode %s %q: %w", field, s, err)
	}
	return out, nil
}
