package market

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/polymarket-data/internal/polymarket"
)

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg    Config
	specs  []GroupSpec
	rest   *polymarket.Client
	logger *slog.Logger

	mu      sync.RWMutex
	assets  map[string]Asset    // asset ID → asset
	groups  map[string][]string // group name → asset IDs, resolution order
	changes chan Change

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a registry for the given group specs.
func NewRegistry(cfg Config, specs []GroupSpec, rest *polymarket.Client, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &registryImpl{
		cfg:     cfg,
		specs:   specs,
		rest:    rest,
		logger:  logger,
		assets:  make(map[string]Asset),
		groups:  make(map[string][]string),
		changes: make(chan Change, 100),
	}
}

// Start performs the initial sync and launches reconciliation.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.initialSync(r.ctx); err != nil {
		r.cancel()
		return err
	}

	if r.cfg.ReconcileInterval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.reconciliationLoop(r.ctx)
		}()
	}

	r.mu.RLock()
	total := len(r.assets)
	r.mu.RUnlock()

	r.logger.Info("market registry started",
		"groups", len(r.specs),
		"assets", total,
	)
	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Groups returns the configured groups with their resolved asset IDs.
func (r *registryImpl) Groups() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Group, 0, len(r.specs))
	for _, spec := range r.specs {
		ids := make([]string, len(r.groups[spec.Name]))
		copy(ids, r.groups[spec.Name])
		out = append(out, Group{
			Name:     spec.Name,
			Slugs:    spec.Slugs,
			AssetIDs: ids,
		})
	}
	return out
}

// Assets returns every tracked asset.
func (r *registryImpl) Assets() []Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Asset, 0, len(r.assets))
	for _, spec := range r.specs {
		for _, id := range r.groups[spec.Name] {
			out = append(out, r.assets[id])
		}
	}
	return out
}

// Lookup returns the asset for a clob token ID.
func (r *registryImpl) Lookup(assetID string) (Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assets[assetID]
	return a, ok
}

// SubscribeChanges returns the change notification channel.
func (r *registryImpl) SubscribeChanges() <-chan Change {
	return r.changes
}

// upsertLocked records an asset, returning true when it is new. Caller
// holds r.mu.
func (r *registryImpl) upsertLocked(a Asset) bool {
	_, exists := r.assets[a.ID]
	r.assets[a.ID] = a
	if !exists {
		r.groups[a.Group] = append(r.groups[a.Group], a.ID)
	}
	return !exists
}

// notifyChange delivers a change without blocking reconciliation. A full
// channel drops the notification rather than stalling the sync loop.
func (r *registryImpl) notifyChange(c Change) {
	select {
	case r.changes <- c:
	default:
		r.logger.Warn("change channel full, dropping notification",
			"asset_id", c.Asset.ID)
	}
}
