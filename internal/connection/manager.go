package connection

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/polymarket-data/internal/market"
)

// errResubscribe signals that a connection should be torn down and
// redialed to pick up a changed asset list.
var errResubscribe = errors.New("asset list changed, resubscribing")

// Manager runs one WebSocket connection per datastream group.
type Manager interface {
	// Start dials a connection for each registry group.
	Start(ctx context.Context) error

	// Stop gracefully shuts down all connections.
	Stop(ctx context.Context) error

	// Messages returns the channel of raw frames for the Router.
	Messages() <-chan RawMessage

	// Stats returns connection statistics.
	Stats() ManagerStats
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	ConnectedGroups  int
	TotalGroups      int
	Reconnects       int64
	AssetsSubscribed int
}

// groupState holds the runtime state for one group's connection.
type groupState struct {
	name    string
	refresh chan struct{} // poked when the group's asset list grows

	mu     sync.Mutex
	client Client
	assets int
}

// manager implements the Manager interface.
type manager struct {
	cfg      ManagerConfig
	registry market.Registry
	logger   *slog.Logger

	out chan RawMessage

	groupsMu sync.RWMutex
	groups   map[string]*groupState

	reconnects atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, registry market.Registry, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &manager{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
		out:      make(chan RawMessage, cfg.MessageBufferSize),
		groups:   make(map[string]*groupState),
	}
}

// Start dials one connection per registry group and begins watching for
// registry changes.
func (m *manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	groups := m.registry.Groups()
	for _, g := range groups {
		if len(g.AssetIDs) == 0 {
			m.logger.Warn("group has no assets yet, deferring", "group", g.Name)
			continue
		}
		m.startGroup(g.Name)
	}

	m.wg.Add(1)
	go m.watchRegistry()

	m.logger.Info("connection manager started", "groups", len(groups))
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	if m.cancel != nil {
		m.cancel()
	}

	m.groupsMu.RLock()
	for _, gs := range m.groups {
		gs.mu.Lock()
		if gs.client != nil {
			gs.client.Close()
		}
		gs.mu.Unlock()
	}
	m.groupsMu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	// The output channel closes only after every sender has exited;
	// closing under a straggler would panic its send.
	go func() {
		<-done
		close(m.out)
	}()

	select {
	case <-done:
		m.logger.Info("connection manager stopped")
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, connections still draining")
	}
	return nil
}

// startGroup registers a group and launches its connection goroutine.
// Safe to call for an already-running group.
func (m *manager) startGroup(name string) *groupState {
	m.groupsMu.Lock()
	if gs, ok := m.groups[name]; ok {
		m.groupsMu.Unlock()
		return gs
	}
	gs := &groupState{
		name:    name,
		refresh: make(chan struct{}, 1),
	}
	m.groups[name] = gs
	m.groupsMu.Unlock()

	m.wg.Add(1)
	go m.runGroup(gs)
	return gs
}

// Messages returns the output channel for the Router.
func (m *manager) Messages() <-chan RawMessage {
	return m.out
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.groupsMu.RLock()
	defer m.groupsMu.RUnlock()

	stats := ManagerStats{
		TotalGroups: len(m.groups),
		Reconnects:  m.reconnects.Load(),
	}
	for _, gs := range m.groups {
		gs.mu.Lock()
		if gs.client != nil && gs.client.IsConnected() {
			stats.ConnectedGroups++
			stats.AssetsSubscribed += gs.assets
		}
		gs.mu.Unlock()
	}
	return stats
}

// runGroup keeps one group connected, redialing with capped exponential
// backoff. A connection that survived a while resets the backoff.
func (m *manager) runGroup(gs *groupState) {
	defer m.wg.Done()

	backoff := m.cfg.ReconnectBaseWait
	for {
		if m.ctx.Err() != nil {
			return
		}

		connectedAt := time.Now()
		err := m.serveConn(gs)
		if m.ctx.Err() != nil {
			return
		}

		switch {
		case errors.Is(err, errResubscribe):
			m.logger.Info("redialing for new assets", "group", gs.name)
			backoff = m.cfg.ReconnectBaseWait
		case err != nil:
			m.logger.Warn("connection lost", "group", gs.name, "error", err)
		}
		m.reconnects.Add(1)

		if time.Since(connectedAt) > time.Minute {
			backoff = m.cfg.ReconnectBaseWait
		}

		// Jitter: backoff * (0.5 to 1.5)
		wait := backoff/2 + time.Duration(rand.Int64N(int64(backoff)))
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(wait):
		}
		if backoff *= 2; backoff > m.cfg.ReconnectMaxWait {
			backoff = m.cfg.ReconnectMaxWait
		}
	}
}

// serveConn dials, subscribes, and pumps frames until the connection
// fails, the asset list changes, or the manager stops.
func (m *manager) serveConn(gs *groupState) error {
	assetIDs := m.groupAssets(gs.name)
	if len(assetIDs) == 0 {
		return errors.New("no assets to subscribe")
	}

	clientCfg := DefaultClientConfig()
	clientCfg.URL = m.cfg.WSURL
	if m.cfg.PingInterval > 0 {
		clientCfg.PingInterval = m.cfg.PingInterval
	}
	if m.cfg.PongTimeout > 0 {
		clientCfg.PongTimeout = m.cfg.PongTimeout
	}

	client := NewClient(clientCfg, m.logger.With("group", gs.name))

	gs.mu.Lock()
	gs.client = client
	gs.assets = len(assetIDs)
	gs.mu.Unlock()
	defer client.Close()

	if err := client.Connect(m.ctx); err != nil {
		return err
	}
	if err := client.Subscribe(assetIDs); err != nil {
		return err
	}

	m.logger.Info("group connected",
		"group", gs.name, "assets", len(assetIDs))

	for {
		select {
		case <-m.ctx.Done():
			return nil
		case <-gs.refresh:
			return errResubscribe
		case err := <-client.Errors():
			return err
		case msg, ok := <-client.Messages():
			if !ok {
				return errors.New("message channel closed")
			}
			select {
			case m.out <- RawMessage{
				Data:       msg.Data,
				Group:      gs.name,
				ReceivedAt: msg.ReceivedAt,
			}:
			default:
				m.logger.Warn("output buffer full, dropping frame",
					"group", gs.name)
			}
		}
	}
}

// groupAssets returns the current asset IDs for one group.
func (m *manager) groupAssets(name string) []string {
	for _, g := range m.registry.Groups() {
		if g.Name == name {
			return g.AssetIDs
		}
	}
	return nil
}

// watchRegistry pokes a group's connection whenever reconciliation finds
// new assets, so the subscription frame gets resent with the full list.
func (m *manager) watchRegistry() {
	defer m.wg.Done()

	changes := m.registry.SubscribeChanges()
	for {
		select {
		case <-m.ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			m.groupsMu.RLock()
			gs := m.groups[change.Asset.Group]
			m.groupsMu.RUnlock()
			if gs == nil {
				// The group had no assets at Start; its first
				// discovered asset brings the connection up.
				m.logger.Info("starting deferred group",
					"group", change.Asset.Group)
				m.startGroup(change.Asset.Group)
				continue
			}
			select {
			case gs.refresh <- struct{}{}:
			default:
			}
		}
	}
}
