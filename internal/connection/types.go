package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// RawMessage is a frame from the Connection Manager to the Router.
type RawMessage struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	Group      string    // Datastream group the connection belongs to
	ReceivedAt time.Time // Local timestamp when the client received the frame
}

// subscribeCommand is the market-channel subscription frame. One frame
// subscribes the connection to every listed clob token ID.
type subscribeCommand struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// Application-level keepalive tokens. The server answers a text "PING"
// with a text "PONG"; protocol pings alone do not keep the feed open.
const (
	pingText = "PING"
	pongText = "PONG"
)

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // Market channel URL
	PingInterval time.Duration // How often to send the text PING
	PongTimeout  time.Duration // Max silence before the connection is stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:          "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		PingInterval: 10 * time.Second,
		PongTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   10000,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	WSURL             string        // Market channel URL
	ReconnectBaseWait time.Duration // Base wait time for reconnection
	ReconnectMaxWait  time.Duration // Max wait time for reconnection
	MessageBufferSize int           // Buffer size for the output channel
	PingInterval      time.Duration // Per-connection keepalive interval; zero uses the client default
	PongTimeout       time.Duration // Per-connection stale threshold; zero uses the client default
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WSURL:             "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		ReconnectBaseWait: 1 * time.Second,
		ReconnectMaxWait:  60 * time.Second,
		MessageBufferSize: 100000,
	}
}
