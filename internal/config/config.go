package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Streams    []StreamConfig   `yaml:"streams"`
	Registry   RegistryConfig   `yaml:"registry"`
	Connection ConnectionConfig `yaml:"connection"`
	Router     RouterConfig     `yaml:"router"`
	Journal    JournalConfig    `yaml:"journal"`
	Poller     PollerConfig     `yaml:"poller"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Polymarket REST API settings.
type APIConfig struct {
	GammaURL   string        `yaml:"gamma_url"`
	ClobURL    string        `yaml:"clob_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// DatabaseConfig holds the TimescaleDB connection for the event journal.
// Disabled collectors journal to session files only.
type DatabaseConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StreamConfig names one group of event slugs tracked together. Every
// asset discovered under the group's slugs shares one WebSocket
// connection.
type StreamConfig struct {
	Name  string   `yaml:"name"`
	Slugs []string `yaml:"slugs"`
}

// RegistryConfig holds market registry settings.
type RegistryConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	MappingsPath      string        `yaml:"mappings_path"`
}

// ConnectionConfig holds WebSocket connection settings.
type ConnectionConfig struct {
	WSURL             string        `yaml:"ws_url"`
	ReconnectBaseWait time.Duration `yaml:"reconnect_base_wait"`
	ReconnectMaxWait  time.Duration `yaml:"reconnect_max_wait"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// RouterConfig holds event router queue settings.
type RouterConfig struct {
	BookQueueSize    int `yaml:"book_queue_size"`
	JournalQueueSize int `yaml:"journal_queue_size"`
}

// JournalConfig holds event journal settings.
type JournalConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Directory     string        `yaml:"directory"`
}

// PollerConfig holds snapshot poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HealthConfig holds the HTTP health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
