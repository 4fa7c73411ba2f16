package market

import (
	"context"
	"time"
)

// Asset is one tradeable outcome token within a binary market.
type Asset struct {
	ID       string // clob token ID
	Question string
	Outcome  string // "Yes" or "No"
	Slug     string // Gamma event slug this asset came from
	Group    string // datastream group name
}

// Label renders the human-readable name used in mappings and journals.
func (a Asset) Label() string {
	return a.Question + " | " + a.Outcome
}

// Group is a named set of event slugs recorded together over one
// WebSocket connection.
type Group struct {
	Name     string
	Slugs    []string
	AssetIDs []string
}

// Change notifies subscribers that an asset appeared or disappeared.
type Change struct {
	Type  string // "created"
	Asset Asset
}

// GroupSpec names a group and the event slugs it tracks.
type GroupSpec struct {
	Name  string
	Slugs []string
}

// Config holds registry configuration.
type Config struct {
	ReconcileInterval time.Duration
	MappingsPath      string // local cache of asset ID → label
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 5 * time.Minute,
		MappingsPath:      "mappings.json",
	}
}

// Registry resolves configured slugs to assets and keeps them current.
type Registry interface {
	// Start performs the initial Gamma sync and begins reconciliation.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// Groups returns the configured groups with their resolved asset IDs.
	Groups() []Group

	// Assets returns every tracked asset.
	Assets() []Asset

	// Lookup returns the asset for a clob token ID.
	Lookup(assetID string) (Asset, bool)

	// SubscribeChanges returns a channel of asset changes found during
	// reconciliation.
	SubscribeChanges() <-chan Change
}
