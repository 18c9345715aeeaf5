package stream

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sentinelmarket/pricestream/internal/connection"
	"github.com/sentinelmarket/pricestream/internal/model"
)

// Errors
var (
	ErrClosed         = errors.New("stream client closed")
	ErrNotStarted     = errors.New("stream client not started")
	ErrAlreadyStarted = errors.New("stream client already started")
	ErrMaxAttempts    = errors.New("max reconnection attempts reached")
)

// Config configures a stream Client.
type Config struct {
	Transport         connection.ClientConfig
	HeartbeatTimeout  time.Duration
	KeepaliveInterval time.Duration
	Backoff           connection.BackoffPolicy
	StatusBuffer      int // Per-subscriber status channel capacity
}

// DefaultConfig returns the standard liveness and reconnection settings.
func DefaultConfig() Config {
	return Config{
		Transport:         connection.DefaultClientConfig(),
		HeartbeatTimeout:  connection.DefaultHeartbeatTimeout,
		KeepaliveInterval: connection.DefaultKeepaliveInterval,
		Backoff:           connection.DefaultBackoffPolicy(),
		StatusBuffer:      16,
	}
}

// TransportFactory builds a fresh transport for each connection attempt.
type TransportFactory func(cfg connection.ClientConfig, logger *slog.Logger) connection.Client

// Recorder receives client events for metrics.
type Recorder interface {
	SetStatus(status model.ConnectionStatus)
	IncConnect()
	IncReconnect()
	ObserveFrame(msgType string)
	IncParseError()
	AddPriceRecords(n, symbols int)
	IncAlert()
	IncHeartbeatTimeout()
	IncKeepaliveFailure()
}

type noopRecorder struct{}

func (noopRecorder) SetStatus(model.ConnectionStatus) {}
func (noopRecorder) IncConnect()                      {}
func (noopRecorder) IncReconnect()                    {}
func (noopRecorder) ObserveFrame(string)              {}
func (noopRecorder) IncParseError()                   {}
func (noopRecorder) AddPriceRecords(int, int)         {}
func (noopRecorder) IncAlert()                        {}
func (noopRecorder) IncHeartbeatTimeout()             {}
func (noopRecorder) IncKeepaliveFailure()             {}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithTransportFactory replaces the WebSocket transport constructor.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Client) {
		if f != nil {
			c.newTransport = f
		}
	}
}

// commandKind is a caller request handled on the event loop.
type commandKind int

const (
	cmdConnect commandKind = iota
	cmdReconnect
	cmdDisconnect
	cmdStop
)

func (k commandKind) String() string {
	switch k {
	case cmdConnect:
		return "connect"
	case cmdReconnect:
		return "reconnect"
	case cmdDisconnect:
		return "disconnect"
	case cmdStop:
		return "stop"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	reply chan error
}

// dialResult reports the outcome of one connection attempt.
type dialResult struct {
	generation uint64
	transport  connection.Client
	err        error
}
