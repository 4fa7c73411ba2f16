package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/polymarket-data/internal/market"
	"github.com/rickgao/polymarket-data/internal/model"
	"github.com/rickgao/polymarket-data/internal/polymarket"
	"github.com/rickgao/polymarket-data/internal/router"
)

// AssetSource provides the assets to poll.
type AssetSource interface {
	Assets() []market.Asset
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 15m)
	Concurrency int           // Max concurrent requests (default: 10)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 10,
		Timeout:     10 * time.Second,
	}
}

// Poller fetches book snapshots over REST and feeds them into the book
// queue, where they are indistinguishable from WebSocket snapshots.
type Poller struct {
	cfg    Config
	client *polymarket.Client
	assets AssetSource
	sink   *router.Queue[model.Event]
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client *polymarket.Client, assets AssetSource, sink *router.Queue[model.Event], logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:    cfg,
		client: client,
		assets: assets,
		sink:   sink,
		logger: logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop. The first cycle runs immediately so fresh
// instruments get a book before the first interval elapses.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches books for all tracked assets with bounded concurrency.
func (p *Poller) pollAll() {
	start := time.Now()

	assets := p.assets.Assets()
	if len(assets) == 0 {
		p.logger.Debug("no assets to poll")
		return
	}

	var fetched, failed atomic.Int64

	g, ctx := errgroup.WithContext(p.ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, a := range assets {
		assetID := a.ID
		g.Go(func() error {
			if err := p.pollAsset(ctx, assetID); err != nil {
				p.logger.Warn("failed to poll book",
					"asset_id", assetID,
					"error", err,
				)
				failed.Add(1)
				return nil // keep polling the rest
			}
			fetched.Add(1)
			return nil
		})
	}
	g.Wait()

	p.logger.Info("poll cycle complete",
		"assets", len(assets),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// pollAsset fetches one asset's book and pushes it into the book queue.
func (p *Poller) pollAsset(ctx context.Context, assetID string) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	ev, err := p.client.GetBook(reqCtx, assetID)
	if err != nil {
		return err
	}

	p.sink.Push(ev)
	return nil
}
