package mockfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds mock feed settings.
type Config struct {
	Interval          time.Duration // time between price_update frames
	HeartbeatInterval time.Duration // idle time before a heartbeat frame
	Seed              uint64
	SendBuffer        int
}

// DefaultConfig returns the backend's timings.
func DefaultConfig() Config {
	return Config{
		Interval:          time.Second,
		HeartbeatInterval: 30 * time.Second,
		Seed:              1,
		SendBuffer:        256,
	}
}

// frame is the outbound envelope.
type frame struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func encodeFrame(typ string, data any) ([]byte, error) {
	return json.Marshal(frame{
		Type:      typ,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Feed broadcasts simulated prices to every connected WebSocket client.
type Feed struct {
	cfg    Config
	market *Market
	alerts *AlertBook
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewFeed creates a Feed.
func NewFeed(cfg Config, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 1
	}

	return &Feed{
		cfg:     cfg,
		market:  NewMarket(cfg.Seed),
		alerts:  NewAlertBook(),
		logger:  logger.With("component", "mockfeed"),
		clients: make(map[*client]struct{}),
	}
}

// Market returns the feed's market.
func (f *Feed) Market() *Market { return f.market }

// Alerts returns the feed's alert book.
func (f *Feed) Alerts() *AlertBook { return f.alerts }

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Run ticks the market and broadcasts until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	f.logger.Info("price broadcast started", "interval", f.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			return nil
		case <-ticker.C:
			f.tick()
		}
	}
}

// tick advances prices, fires alerts and broadcasts the results.
func (f *Feed) tick() {
	prices := f.market.Tick()

	if f.ClientCount() > 0 {
		data, err := encodeFrame("price_update", map[string]any{"prices": prices})
		if err != nil {
			f.logger.Error("encode price_update", "error", err)
			return
		}
		f.broadcast(data)
	}

	for _, a := range f.alerts.Check(prices) {
		f.logger.Info("alert triggered", "id", a.ID, "symbol", a.Symbol, "target_price", a.TargetPrice.String())

		data, err := encodeFrame("alert_triggered", a)
		if err != nil {
			f.logger.Error("encode alert_triggered", "error", err)
			continue
		}
		f.broadcast(data)
	}
}

// broadcast queues data on every client. A client whose queue is full is
// disconnected.
func (f *Feed) broadcast(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			f.logger.Warn("client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			delete(f.clients, c)
			close(c.send)
		}
	}
}

// Serve runs one client connection until it closes. The initial_data frame
// is queued before the client can receive any broadcast.
func (f *Feed) Serve(conn *websocket.Conn) {
	c := &client{
		feed: f,
		conn: conn,
		send: make(chan []byte, f.cfg.SendBuffer),
	}

	initial, err := encodeFrame("initial_data", map[string]any{"prices": f.market.Prices()})
	if err != nil {
		f.logger.Error("encode initial_data", "error", err)
		conn.Close()
		return
	}
	c.send <- initial

	f.mu.Lock()
	f.clients[c] = struct{}{}
	n := len(f.clients)
	f.mu.Unlock()

	f.logger.Info("client connected", "remote", conn.RemoteAddr().String(), "clients", n)

	go c.writePump()
	c.readPump()
}

func (f *Feed) unregister(c *client) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	n := len(f.clients)
	f.mu.Unlock()

	f.logger.Info("client disconnected", "remote", c.conn.RemoteAddr().String(), "clients", n)
}

func (f *Feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for c := range f.clients {
		delete(f.clients, c)
		close(c.send)
	}
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type client struct {
	feed *Feed
	conn *websocket.Conn
	send chan []byte
}

// readPump consumes client frames (keepalive pings) until the connection fails.
func (c *client) readPump() {
	defer func() {
		c.feed.unregister(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			c.feed.logger.Debug("keepalive received", "remote", c.conn.RemoteAddr().String())
			continue
		}
		c.feed.logger.Debug("client message", "data", string(data))
	}
}

// writePump writes queued frames and a heartbeat after each idle period.
func (c *client) writePump() {
	idle := time.NewTimer(c.feed.cfg.HeartbeatInterval)
	defer func() {
		idle.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second))
				return
			}
			if err := c.write(data); err != nil {
				return
			}

		case <-idle.C:
			data, err := encodeFrame("heartbeat", map[string]any{"status": "alive"})
			if err != nil {
				return
			}
			if err := c.write(data); err != nil {
				return
			}
		}
		idle.Reset(c.feed.cfg.HeartbeatInterval)
	}
}

func (c *client) write(data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
