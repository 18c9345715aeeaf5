package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection to the price feed.
// A Client is single-use: once closed it cannot be reopened.
type Client interface {
	// Connect establishes the WebSocket connection. It is a no-op if the
	// connection is already live.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection with a normal-closure code.
	Close() error

	// CloseWithReason closes the connection with the given close code and reason.
	CloseWithReason(code int, reason string) error

	// ForceDisconnect surfaces ErrForcedDisconnect on Errors() and drops the
	// connection without a close handshake.
	ForceDisconnect() error

	// Send writes raw bytes to the connection.
	Send(data []byte) error

	// Messages returns a channel of inbound frames in arrival order.
	// Protocol-level ping/pong frames are delivered with Control set.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel of connection errors. At most one error is
	// delivered per connection.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool

	// SessionID identifies this connection in logs.
	SessionID() string
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn      *websocket.Conn
	sessionID string

	// Output channels
	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	sessionID := uuid.NewString()

	return &client{
		cfg:       cfg,
		logger:    logger.With("session", sessionID),
		sessionID: sessionID,
		messages:  make(chan TimestampedMessage, cfg.BufferSize),
		errors:    make(chan error, 1),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	header := http.Header{}
	header.Set("Accept", "application/json")

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closed {
		// Closed while dialing.
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.cfg.ReadLimit > 0 {
		conn.SetReadLimit(c.cfg.ReadLimit)
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		c.deliver(TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now(), Control: true})

		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	conn.SetPongHandler(func(data string) error {
		c.deliver(TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now(), Control: true})
		return nil
	})

	go c.readLoop()

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	return c.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason closes the connection with a specific close code.
func (c *client) CloseWithReason(code int, reason string) error {
	conn, ok := c.markClosed()
	if !ok {
		return nil
	}

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		return conn.Close()
	}

	return nil
}

// ForceDisconnect drops the connection and reports ErrForcedDisconnect.
func (c *client) ForceDisconnect() error {
	select {
	case c.errors <- ErrForcedDisconnect:
	default:
	}

	conn, ok := c.markClosed()
	if !ok {
		return ErrAlreadyClosed
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// markClosed flips the client into the closed state exactly once.
func (c *client) markClosed() (*websocket.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false
	}
	c.closed = true
	c.connected = false
	close(c.done)

	return c.conn, true
}

// Send writes raw bytes to the connection.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SessionID returns the connection's session identifier.
func (c *client) SessionID() string {
	return c.sessionID
}

// deliver hands a frame to the consumer, giving up once the client is closed.
func (c *client) deliver(msg TimestampedMessage) bool {
	select {
	case c.messages <- msg:
		return true
	case <-c.done:
		return false
	}
}

// readLoop reads messages from the WebSocket and sends them to the messages channel.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
				return
			default:
				select {
				case c.errors <- err:
				default:
				}
				return
			}
		}

		if !c.deliver(TimestampedMessage{Data: data, ReceivedAt: receivedAt}) {
			return
		}
	}
}
