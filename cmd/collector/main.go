package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-data/internal/config"
	"github.com/rickgao/polymarket-data/internal/connection"
	"github.com/rickgao/polymarket-data/internal/database"
	"github.com/rickgao/polymarket-data/internal/engine"
	"github.com/rickgao/polymarket-data/internal/journal"
	"github.com/rickgao/polymarket-data/internal/market"
	"github.com/rickgao/polymarket-data/internal/poller"
	"github.com/rickgao/polymarket-data/internal/polymarket"
	"github.com/rickgao/polymarket-data/internal/router"
	"github.com/rickgao/polymarket-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"streams", len(cfg.Streams),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database if the journal sink is enabled
	var pool *pgxpool.Pool
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Timescale.Host,
			"port", cfg.Database.Timescale.Port,
			"database", cfg.Database.Timescale.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Timescale)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		logger.Info("database connected")
	} else {
		logger.Info("database disabled, journaling to session files only")
	}

	// Create REST client
	rest := polymarket.NewClient(
		polymarket.WithGammaURL(cfg.API.GammaURL),
		polymarket.WithClobURL(cfg.API.ClobURL),
		polymarket.WithTimeout(cfg.API.Timeout),
		polymarket.WithRetries(cfg.API.MaxRetries, time.Second),
		polymarket.WithLogger(logger),
	)

	// Create market registry from the configured stream groups
	specs := make([]market.GroupSpec, 0, len(cfg.Streams))
	for _, s := range cfg.Streams {
		specs = append(specs, market.GroupSpec{Name: s.Name, Slugs: s.Slugs})
	}
	registry := market.NewRegistry(market.Config{
		ReconcileInterval: cfg.Registry.ReconcileInterval,
		MappingsPath:      cfg.Registry.MappingsPath,
	}, specs, rest, logger)

	// Create the pipeline: manager frames feed the router, the router's
	// queues feed the book engine and the journal writer.
	manager := connection.NewManager(connection.ManagerConfig{
		WSURL:             cfg.Connection.WSURL,
		ReconnectBaseWait: cfg.Connection.ReconnectBaseWait,
		ReconnectMaxWait:  cfg.Connection.ReconnectMaxWait,
		MessageBufferSize: cfg.Connection.BufferSize,
		PingInterval:      cfg.Connection.PingInterval,
		PongTimeout:       cfg.Connection.PongTimeout,
	}, registry, logger)

	rtr := router.New(router.Config{
		BookQueueSize:    cfg.Router.BookQueueSize,
		JournalQueueSize: cfg.Router.JournalQueueSize,
	}, manager.Messages(), logger)
	queues := rtr.Queues()

	books := engine.New(queues.Books, logger)

	writer := journal.NewWriter(journal.Config{
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
		Directory:     cfg.Journal.Directory,
	}, queues.Journal, pool, logger)

	snapshots := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}, rest, registry, queues.Books, logger)

	// Start health server early so we can monitor sync progress
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(pool, registry, manager, rtr, books, writer),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Start market registry (initial sync)
	logger.Info("starting market registry (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start market registry", "error", err)
		os.Exit(1)
	}

	logger.Info("market registry started", "assets", len(registry.Assets()))

	// Start downstream consumers before the feed so no frame waits
	if err := books.Start(ctx); err != nil {
		logger.Error("failed to start book engine", "error", err)
		os.Exit(1)
	}
	if err := writer.Start(ctx); err != nil {
		logger.Error("failed to start journal writer", "error", err)
		os.Exit(1)
	}
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}
	if err := manager.Start(ctx); err != nil {
		logger.Error("failed to start connection manager", "error", err)
		os.Exit(1)
	}
	if err := snapshots.Start(ctx); err != nil {
		logger.Error("failed to start snapshot poller", "error", err)
		os.Exit(1)
	}

	logger.Info("collector running",
		"instance_id", cfg.Instance.ID,
		"session_id", writer.SessionID(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop producers first, then drain the pipeline in order. Router.Stop
	// closes both queues, which lets the engine and writer finish cleanly.
	snapshots.Stop(shutdownCtx)
	manager.Stop(shutdownCtx)
	rtr.Stop(shutdownCtx)
	books.Stop(shutdownCtx)
	writer.Stop(shutdownCtx)
	registry.Stop(shutdownCtx)
	healthServer.Shutdown(shutdownCtx)

	logger.Info("collector stopped")
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	pool *pgxpool.Pool,
	registry market.Registry,
	manager connection.Manager,
	rtr router.Router,
	books engine.Engine,
	writer *journal.Writer,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		} else {
			health.Components["timescaledb"] = "disabled"
		}

		// Check market registry
		assets := registry.Assets()
		health.Components["market_registry"] = map[string]any{
			"assets": len(assets),
			"groups": len(registry.Groups()),
		}
		if len(assets) == 0 {
			health.Status = "degraded"
		}

		// Check connections
		connStats := manager.Stats()
		health.Components["connections"] = connStats
		if connStats.ConnectedGroups < connStats.TotalGroups {
			health.Status = "degraded"
		}

		health.Components["router"] = rtr.Stats()
		health.Components["engine"] = books.Stats()
		health.Components["journal"] = writer.Stats()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/books", func(w http.ResponseWriter, r *http.Request) {
		type bookView struct {
			Label     string `json:"label,omitempty"`
			BidLevels int    `json:"bid_levels"`
			AskLevels int    `json:"ask_levels"`
			BestBid   string `json:"best_bid,omitempty"`
			BestAsk   string `json:"best_ask,omitempty"`
			Timestamp int64  `json:"timestamp"`
		}

		states := books.Books()
		views := make(map[string]bookView, len(states))
		for assetID, st := range states {
			v := bookView{
				BidLevels: len(st.Bids),
				AskLevels: len(st.Asks),
				Timestamp: st.Timestamp,
			}
			if asset, ok := registry.Lookup(assetID); ok {
				v.Label = asset.Label()
			}
			if bb, err := st.BestBid(); err == nil {
				v.BestBid = bb.Price.String()
			}
			if ba, err := st.BestAsk(); err == nil {
				v.BestAsk = ba.Price.String()
			}
			views[assetID] = v
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count": len(views),
			"books": views,
		})
	})

	return mux
}
