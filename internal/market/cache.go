package market

import (
	"encoding/json"
	"fmt"
	"os"
)

// cachedAsset is the on-disk form of one mappings entry.
type cachedAsset struct {
	Label    string `json:"label"`
	Question string `json:"question"`
	Outcome  string `json:"outcome"`
	Slug     string `json:"slug"`
}

// loadMappings reads the local mappings cache. A missing file is not an
// error; the registry simply starts cold.
func (r *registryImpl) loadMappings() (map[string]cachedAsset, error) {
	if r.cfg.MappingsPath == "" {
		return map[string]cachedAsset{}, nil
	}

	data, err := os.ReadFile(r.cfg.MappingsPath)
	if os.IsNotExist(err) {
		return map[string]cachedAsset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}

	cache := make(map[string]cachedAsset)
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parse mappings: %w", err)
	}
	return cache, nil
}

// saveMappings writes the current asset set back to the cache file.
func (r *registryImpl) saveMappings() error {
	if r.cfg.MappingsPath == "" {
		return nil
	}

	r.mu.RLock()
	cache := make(map[string]cachedAsset, len(r.assets))
	for id, a := range r.assets {
		cache[id] = cachedAsset{
			Label:    a.Label(),
			Question: a.Question,
			Outcome:  a.Outcome,
			Slug:     a.Slug,
		}
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	if err := os.WriteFile(r.cfg.MappingsPath, data, 0o644); err != nil {
		return fmt.Errorf("write mappings: %w", err)
	}
	return nil
}
