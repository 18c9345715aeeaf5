package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultStreamURL            = "ws://localhost:8000/price/stream"
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultReadLimit            = 1 << 20
	DefaultBufferSize           = 256
	DefaultHeartbeatTimeout     = 35 * time.Second
	DefaultKeepaliveInterval    = 25 * time.Second
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultAPIBaseURL           = "http://localhost:8000/api/v1"
	DefaultAPITimeout           = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultAPIRetryBackoff      = 1 * time.Second
	DefaultPollInterval         = 1 * time.Minute
	DefaultPollConcurrency      = 4
	DefaultServerPort           = 9090
	DefaultMetricsPath          = "/metrics"
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

func (c *StreamerConfig) applyDefaults() {
	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.ReadLimit == 0 {
		c.Stream.ReadLimit = DefaultReadLimit
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}
	if c.Stream.HeartbeatTimeout == 0 {
		c.Stream.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.Stream.KeepaliveInterval == 0 {
		c.Stream.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultAPIRetryBackoff
	}
	if c.API.PollInterval == 0 {
		c.API.PollInterval = DefaultPollInterval
	}
	if c.API.PollConcurrency == 0 {
		c.API.PollConcurrency = DefaultPollConcurrency
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
