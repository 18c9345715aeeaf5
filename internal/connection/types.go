package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no frames)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrForcedDisconnect = errors.New("forced disconnect")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
	Control    bool      // Protocol ping/pong rather than a data frame
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://localhost:8000/price/stream)
	HandshakeTimeout time.Duration // Dial handshake deadline
	WriteTimeout     time.Duration // Write deadline for sends
	ReadLimit        int64         // Max inbound frame size in bytes (0 = unlimited)
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
		BufferSize:       256,
	}
}

// Timing defaults for liveness and reconnection.
const (
	DefaultHeartbeatTimeout  = 35 * time.Second
	DefaultKeepaliveInterval = 25 * time.Second
	DefaultReconnectBase     = 1 * time.Second
	DefaultReconnectMax      = 30 * time.Second
	DefaultMaxAttempts       = 10
)
