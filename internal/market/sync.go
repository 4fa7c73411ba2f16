package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-data/internal/model"
)

// initialSync resolves every configured slug through Gamma. A slug that
// cannot be fetched falls back to the local mappings cache so a Gamma
// outage does not stop an already-known stream from recording.
func (r *registryImpl) initialSync(ctx context.Context) error {
	start := time.Now()

	cache, err := r.loadMappings()
	if err != nil {
		r.logger.Warn("failed to load mappings cache", "error", err)
		cache = map[string]cachedAsset{}
	}

	var resolved, fromCache int
	for _, spec := range r.specs {
		for _, slug := range spec.Slugs {
			ev, err := r.rest.GetEventBySlug(ctx, slug)
			if err != nil {
				n := r.restoreFromCache(cache, spec.Name, slug)
				if n == 0 {
					return fmt.Errorf("resolve slug %q: %w", slug, err)
				}
				r.logger.Warn("using cached mappings for slug",
					"slug", slug, "assets", n, "error", err)
				fromCache += n
				continue
			}
			resolved += r.applyEvent(spec.Name, slug, ev, false)
		}
	}

	if err := r.saveMappings(); err != nil {
		r.logger.Warn("failed to save mappings cache", "error", err)
	}

	r.logger.Info("initial sync complete",
		"resolved", resolved,
		"from_cache", fromCache,
		"duration", time.Since(start),
	)
	return nil
}

// applyEvent folds one Gamma event's markets into the registry, returning
// the number of new assets. notify controls change delivery; the initial
// sync stays silent since consumers read Groups() afterwards.
func (r *registryImpl) applyEvent(group, slug string, ev model.EventMetadata, notify bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added int
	for _, m := range ev.Markets {
		for i, tokenID := range m.ClobTokenIDs {
			outcome := ""
			if i < len(m.Outcomes) {
				outcome = m.Outcomes[i]
			}
			a := Asset{
				ID:       tokenID,
				Question: m.Question,
				Outcome:  outcome,
				Slug:     slug,
				Group:    group,
			}
			if r.upsertLocked(a) {
				added++
				if notify {
					r.notifyChange(Change{Type: "created", Asset: a})
				}
			}
		}
	}
	return added
}

// restoreFromCache registers cached assets for one slug.
func (r *registryImpl) restoreFromCache(cache map[string]cachedAsset, group, slug string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var restored int
	for id, c := range cache {
		if c.Slug != slug {
			continue
		}
		if r.upsertLocked(Asset{
			ID:       id,
			Question: c.Question,
			Outcome:  c.Outcome,
			Slug:     slug,
			Group:    group,
		}) {
			restored++
		}
	}
	return restored
}

// reconciliationLoop periodically re-resolves every slug to catch markets
// added to an event after startup.
func (r *registryImpl) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile re-fetches every slug and notifies newly listed assets.
func (r *registryImpl) reconcile(ctx context.Context) {
	start := time.Now()

	var added int
	for _, spec := range r.specs {
		for _, slug := range spec.Slugs {
			ev, err := r.rest.GetEventBySlug(ctx, slug)
			if err != nil {
				r.logger.Error("reconciliation fetch failed",
					"slug", slug, "error", err)
				continue
			}
			added += r.applyEvent(spec.Name, slug, ev, true)
		}
	}

	if added > 0 {
		if err := r.saveMappings(); err != nil {
			r.logger.Warn("failed to save mappings cache", "error", err)
		}
		r.logger.Info("reconciliation found new assets",
			"added", added,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("reconciliation complete", "duration", time.Since(start))
	}
}
