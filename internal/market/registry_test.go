package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/polymarket"
)

// gammaResponse builds a one-event Gamma reply with the given markets.
func gammaResponse(slug string, markets ...map[string]string) []byte {
	ms := make([]map[string]any, 0, len(markets))
	for _, m := range markets {
		ms = append(ms, map[string]any{
			"id":           m["id"],
			"conditionId":  m["conditionId"],
			"question":     m["question"],
			"clobTokenIds": m["clobTokenIds"],
			"outcomes":     m["outcomes"],
		})
	}
	out, _ := json.Marshal([]map[string]any{{
		"id":      "1",
		"title":   "Test Event",
		"slug":    slug,
		"markets": ms,
	}})
	return out
}

func testMarket(id, question, tokens string) map[string]string {
	return map[string]string{
		"id":           id,
		"conditionId":  "0x" + id,
		"question":     question,
		"clobTokenIds": tokens,
		"outcomes":     `["Yes", "No"]`,
	}
}

func newTestRegistry(t *testing.T, serverURL string, specs []GroupSpec) *registryImpl {
	t.Helper()

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 0 // reconcile driven manually in tests
	cfg.MappingsPath = filepath.Join(t.TempDir(), "mappings.json")

	rest := polymarket.NewClient(polymarket.WithGammaURL(serverURL))
	r := NewRegistry(cfg, specs, rest, slog.Default()).(*registryImpl)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	})
	return r
}

func TestRegistry_InitialSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gammaResponse(r.URL.Query().Get("slug"),
			testMarket("10", "Will it rain?", `["tok-yes", "tok-no"]`),
		))
	}))
	defer server.Close()

	r := newTestRegistry(t, server.URL, []GroupSpec{
		{Name: "weather", Slugs: []string{"rain-tomorrow"}},
	})

	groups := r.Groups()
	if len(groups) != 1 {
		t.Fatalf("Groups = %d, want 1", len(groups))
	}
	if groups[0].Name != "weather" || len(groups[0].AssetIDs) != 2 {
		t.Errorf("group = %s with %d assets, want weather with 2",
			groups[0].Name, len(groups[0].AssetIDs))
	}

	a, ok := r.Lookup("tok-no")
	if !ok {
		t.Fatal("Lookup(tok-no) not found")
	}
	if a.Outcome != "No" || a.Question != "Will it rain?" {
		t.Errorf("asset = %q/%q, want Will it rain?/No", a.Question, a.Outcome)
	}
	if a.Label() != "Will it rain? | No" {
		t.Errorf("Label = %q, want %q", a.Label(), "Will it rain? | No")
	}

	if got := len(r.Assets()); got != 2 {
		t.Errorf("Assets = %d, want 2", got)
	}
}

func TestRegistry_MappingsCacheWritten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gammaResponse("rain-tomorrow",
			testMarket("10", "Will it rain?", `["tok-yes", "tok-no"]`),
		))
	}))
	defer server.Close()

	r := newTestRegistry(t, server.URL, []GroupSpec{
		{Name: "weather", Slugs: []string{"rain-tomorrow"}},
	})

	data, err := os.ReadFile(r.cfg.MappingsPath)
	if err != nil {
		t.Fatalf("mappings cache not written: %v", err)
	}

	cache := make(map[string]cachedAsset)
	if err := json.Unmarshal(data, &cache); err != nil {
		t.Fatalf("mappings cache unparseable: %v", err)
	}
	if cache["tok-yes"].Label != "Will it rain? | Yes" {
		t.Errorf("cached label = %q, want %q", cache["tok-yes"].Label, "Will it rain? | Yes")
	}
	if cache["tok-yes"].Slug != "rain-tomorrow" {
		t.Errorf("cached slug = %q, want rain-tomorrow", cache["tok-yes"].Slug)
	}
}

func TestRegistry_CacheFallbackOnGammaOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	dir := t.TempDir()
	mappings := filepath.Join(dir, "mappings.json")
	seed := map[string]cachedAsset{
		"tok-yes": {Label: "Will it rain? | Yes", Question: "Will it rain?", Outcome: "Yes", Slug: "rain-tomorrow"},
		"tok-no":  {Label: "Will it rain? | No", Question: "Will it rain?", Outcome: "No", Slug: "rain-tomorrow"},
	}
	data, _ := json.Marshal(seed)
	if err := os.WriteFile(mappings, data, 0o644); err != nil {
		t.Fatalf("seed mappings: %v", err)
	}

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 0
	cfg.MappingsPath = mappings

	rest := polymarket.NewClient(
		polymarket.WithGammaURL(server.URL),
		polymarket.WithRetries(0, time.Millisecond),
	)
	r := NewRegistry(cfg, []GroupSpec{
		{Name: "weather", Slugs: []string{"rain-tomorrow"}},
	}, rest, slog.Default()).(*registryImpl)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start should fall back to cache, got: %v", err)
	}
	defer r.Stop(context.Background())

	if got := len(r.Assets()); got != 2 {
		t.Errorf("Assets = %d, want 2 from cache", got)
	}
	if _, ok := r.Lookup("tok-yes"); !ok {
		t.Error("Lookup(tok-yes) not found after cache restore")
	}
}

func TestRegistry_StartFailsWithoutGammaOrCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 0
	cfg.MappingsPath = filepath.Join(t.TempDir(), "mappings.json")

	rest := polymarket.NewClient(
		polymarket.WithGammaURL(server.URL),
		polymarket.WithRetries(0, time.Millisecond),
	)
	r := NewRegistry(cfg, []GroupSpec{
		{Name: "weather", Slugs: []string{"rain-tomorrow"}},
	}, rest, slog.Default())

	if err := r.Start(context.Background()); err == nil {
		t.Error("Start should fail when Gamma is down and the cache is empty")
	}
}

func TestRegistry_ReconcileNotifiesNewAssets(t *testing.T) {
	var includeSecond atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		markets := []map[string]string{
			testMarket("10", "Will it rain?", `["tok-yes", "tok-no"]`),
		}
		if includeSecond.Load() {
			markets = append(markets,
				testMarket("11", "Will it snow?", `["snow-yes", "snow-no"]`))
		}
		w.Write(gammaResponse("rain-tomorrow", markets...))
	}))
	defer server.Close()

	r := newTestRegistry(t, server.URL, []GroupSpec{
		{Name: "weather", Slugs: []string{"rain-tomorrow"}},
	})

	includeSecond.Store(true)
	r.reconcile(context.Background())

	if got := len(r.Assets()); got != 4 {
		t.Fatalf("Assets = %d, want 4 after reconcile", got)
	}

	changes := r.SubscribeChanges()
	var notified []string
	for i := 0; i < 2; i++ {
		select {
		case c := <-changes:
			if c.Type != "created" {
				t.Errorf("change type = %s, want created", c.Type)
			}
			notified = append(notified, c.Asset.ID)
		case <-time.After(time.Second):
			t.Fatalf("missing change notification %d", i)
		}
	}
	if notified[0] != "snow-yes" || notified[1] != "snow-no" {
		t.Errorf("notified = %v, want [snow-yes snow-no]", notified)
	}

	// Re-running reconcile with the same data must stay quiet.
	r.reconcile(context.Background())
	select {
	case c := <-changes:
		t.Errorf("unexpected change for %s on idempotent reconcile", c.Asset.ID)
	case <-time.After(50 * time.Millisecond):
	}
}
