package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultGammaURL          = "https://gamma-api.polymarket.com"
	DefaultClobURL           = "https://clob.polymarket.com"
	DefaultWSURL             = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultReconcileInterval = 5 * time.Minute
	DefaultMappingsPath      = "mappings.json"
	DefaultReconnectBaseWait = 1 * time.Second
	DefaultReconnectMaxWait  = 60 * time.Second
	DefaultPingInterval      = 10 * time.Second
	DefaultPongTimeout       = 30 * time.Second
	DefaultMessageBufferSize = 100000
	DefaultBookQueueSize     = 4096
	DefaultJournalQueueSize  = 4096
	DefaultJournalBatchSize  = 500
	DefaultJournalFlush      = 2 * time.Second
	DefaultSessionDirectory  = "sessions"
	DefaultPollInterval      = 15 * time.Minute
	DefaultPollConcurrency   = 10
	DefaultPollTimeout       = 10 * time.Second
	DefaultHealthPort        = 8080
)

func (c *CollectorConfig) applyDefaults() {
	// API defaults
	if c.API.GammaURL == "" {
		c.API.GammaURL = DefaultGammaURL
	}
	if c.API.ClobURL == "" {
		c.API.ClobURL = DefaultClobURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Registry defaults
	if c.Registry.ReconcileInterval == 0 {
		c.Registry.ReconcileInterval = DefaultReconcileInterval
	}
	if c.Registry.MappingsPath == "" {
		c.Registry.MappingsPath = DefaultMappingsPath
	}

	// Connection defaults
	if c.Connection.WSURL == "" {
		c.Connection.WSURL = DefaultWSURL
	}
	if c.Connection.ReconnectBaseWait == 0 {
		c.Connection.ReconnectBaseWait = DefaultReconnectBaseWait
	}
	if c.Connection.ReconnectMaxWait == 0 {
		c.Connection.ReconnectMaxWait = DefaultReconnectMaxWait
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PongTimeout == 0 {
		c.Connection.PongTimeout = DefaultPongTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultMessageBufferSize
	}

	// Router defaults
	if c.Router.BookQueueSize == 0 {
		c.Router.BookQueueSize = DefaultBookQueueSize
	}
	if c.Router.JournalQueueSize == 0 {
		c.Router.JournalQueueSize = DefaultJournalQueueSize
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlush
	}
	if c.Journal.Directory == "" {
		c.Journal.Directory = DefaultSessionDirectory
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
