package connection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/polymarket-data/internal/market"
)

// stubRegistry is a minimal Registry for driving the manager in tests.
type stubRegistry struct {
	mu      sync.Mutex
	groups  []market.Group
	changes chan market.Change
}

func newStubRegistry(groups ...market.Group) *stubRegistry {
	return &stubRegistry{
		groups:  groups,
		changes: make(chan market.Change, 4),
	}
}

func (s *stubRegistry) Start(ctx context.Context) error { return nil }
func (s *stubRegistry) Stop(ctx context.Context) error  { return nil }

func (s *stubRegistry) Groups() []market.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]market.Group, len(s.groups))
	copy(out, s.groups)
	return out
}

func (s *stubRegistry) Assets() []market.Asset { return nil }

func (s *stubRegistry) Lookup(assetID string) (market.Asset, bool) {
	return market.Asset{}, false
}

func (s *stubRegistry) SubscribeChanges() <-chan market.Change {
	return s.changes
}

func (s *stubRegistry) setGroups(groups ...market.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = groups
}

func testManagerConfig(url string) ManagerConfig {
	cfg := DefaultManagerConfig()
	cfg.WSURL = url
	cfg.ReconnectBaseWait = 10 * time.Millisecond
	cfg.ReconnectMaxWait = 50 * time.Millisecond
	cfg.MessageBufferSize = 64
	return cfg
}

// subscribeServer answers pings and forwards subscribe frames.
func subscribeServer(t *testing.T, subs chan subscribeCommand) string {
	server := wsTestServer(t, func(conn *websocket.Conn) {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == pingText {
				conn.WriteMessage(websocket.TextMessage, []byte(pongText))
				continue
			}
			var cmd subscribeCommand
			if err := json.Unmarshal(data, &cmd); err == nil && cmd.Type != "" {
				subs <- cmd
			}
		}
	})
	return wsURL(server)
}

func TestManager_DeferredGroupConnectsOnDiscovery(t *testing.T) {
	subs := make(chan subscribeCommand, 4)
	url := subscribeServer(t, subs)

	// The group exists at Start but has no assets yet.
	reg := newStubRegistry(market.Group{Name: "elections", Slugs: []string{"slug-a"}})
	m := NewManager(testManagerConfig(url), reg, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Stop(stopCtx)
	}()

	select {
	case cmd := <-subs:
		t.Fatalf("unexpected subscribe before any assets: %v", cmd.AssetIDs)
	case <-time.After(50 * time.Millisecond):
	}

	// Reconciliation discovers the group's first asset.
	reg.setGroups(market.Group{
		Name:     "elections",
		Slugs:    []string{"slug-a"},
		AssetIDs: []string{"tok-yes"},
	})
	reg.changes <- market.Change{
		Type:  "created",
		Asset: market.Asset{ID: "tok-yes", Group: "elections"},
	}

	select {
	case cmd := <-subs:
		if len(cmd.AssetIDs) != 1 || cmd.AssetIDs[0] != "tok-yes" {
			t.Errorf("AssetIDs = %v, want [tok-yes]", cmd.AssetIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deferred group never connected after asset discovery")
	}
}

func TestManager_RefreshesRunningGroupOnDiscovery(t *testing.T) {
	subs := make(chan subscribeCommand, 4)
	url := subscribeServer(t, subs)

	reg := newStubRegistry(market.Group{
		Name:     "elections",
		Slugs:    []string{"slug-a"},
		AssetIDs: []string{"tok-yes"},
	})
	m := NewManager(testManagerConfig(url), reg, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Stop(stopCtx)
	}()

	select {
	case <-subs:
	case <-time.After(2 * time.Second):
		t.Fatal("group never connected")
	}

	reg.setGroups(market.Group{
		Name:     "elections",
		Slugs:    []string{"slug-a"},
		AssetIDs: []string{"tok-yes", "tok-no"},
	})
	reg.changes <- market.Change{
		Type:  "created",
		Asset: market.Asset{ID: "tok-no", Group: "elections"},
	}

	select {
	case cmd := <-subs:
		if len(cmd.AssetIDs) != 2 {
			t.Errorf("AssetIDs = %v, want the full two-asset list", cmd.AssetIDs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("group never resubscribed after asset discovery")
	}
}

func TestManager_StopTimeoutClosesOutputAfterSendersExit(t *testing.T) {
	// The server floods frames so a sender is likely mid-push at Stop.
	server := wsTestServer(t, func(conn *websocket.Conn) {
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		for {
			if err := conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"event_type":"book","asset_id":"tok"}`)); err != nil {
				return
			}
		}
	})

	reg := newStubRegistry(market.Group{
		Name:     "elections",
		Slugs:    []string{"slug-a"},
		AssetIDs: []string{"tok-yes"},
	})
	m := NewManager(testManagerConfig(wsURL(server)), reg, nil)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-m.Messages():
	case <-time.After(2 * time.Second):
		t.Fatal("no frames received before stop")
	}

	// An expired context forces the timeout path.
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Stop(expired); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The output channel must still close once the connection goroutines
	// finish, and never while one of them is sending.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-m.Messages():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("output channel never closed after stop")
		}
	}
}
