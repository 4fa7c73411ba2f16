package poller

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/polymarket-data/internal/market"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/polymarket"
	"github.com/rickgao/polymarket-data/internal/router"
)

// staticAssets is a fixed AssetSource for tests.
type staticAssets []market.Asset

func (s staticAssets) Assets() []market.Asset { return s }

func TestPoller_SeedsBookQueue(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		tokenID := r.URL.Query().Get("token_id")
		w.Write([]byte(`{
			"asset_id": "` + tokenID + `",
			"timestamp": "1727000000000",
			"bids": [{"price": "0.40", "size": "100"}],
			"asks": [{"price": "0.60", "size": "50"}]
		}`))
	}))
	defer server.Close()

	client := polymarket.NewClient(polymarket.WithClobURL(server.URL))
	sink := router.NewQueue[model.Event](16)

	cfg := DefaultConfig()
	cfg.Interval = time.Hour // only the immediate cycle matters here

	p := New(cfg, client, staticAssets{
		{ID: "tok-yes", Group: "g"},
		{ID: "tok-no", Group: "g"},
	}, sink, slog.Default())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Stop(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sink.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", requests.Load())
	}

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev, ok := sink.TryPop()
		if !ok {
			t.Fatalf("missing snapshot %d", i)
		}
		if ev.Type != model.EventBook {
			t.Errorf("Type = %s, want book", ev.Type)
		}
		if len(ev.Bids) != 1 || len(ev.Asks) != 1 {
			t.Errorf("levels = %d/%d, want 1/1", len(ev.Bids), len(ev.Asks))
		}
		seen[ev.AssetID] = true
	}
	if !seen["tok-yes"] || !seen["tok-no"] {
		t.Errorf("seen = %v, want both assets", seen)
	}
}

func TestPoller_KeepsGoingAfterFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "tok-bad" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"asset_id": "tok-good", "timestamp": "1", "bids": [], "asks": []}`))
	}))
	defer server.Close()

	client := polymarket.NewClient(
		polymarket.WithClobURL(server.URL),
		polymarket.WithRetries(0, time.Millisecond),
	)
	sink := router.NewQueue[model.Event](16)

	cfg := DefaultConfig()
	cfg.Interval = time.Hour

	p := New(cfg, client, staticAssets{
		{ID: "tok-bad"},
		{ID: "tok-good"},
	}, sink, slog.Default())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		p.Stop(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sink.Len() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ev, ok := sink.TryPop()
	if !ok {
		t.Fatal("the good asset's snapshot never arrived")
	}
	if ev.AssetID != "tok-good" {
		t.Errorf("AssetID = %s, want tok-good", ev.AssetID)
	}
}
