package config

import "time"

// StreamerConfig is the root configuration for the price streamer.
type StreamerConfig struct {
	Stream  StreamConfig  `yaml:"stream"`
	API     APIConfig     `yaml:"api"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// StreamConfig holds WebSocket price stream settings.
type StreamConfig struct {
	URL                  string        `yaml:"url" envconfig:"URL"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout" split_words:"true"`
	WriteTimeout         time.Duration `yaml:"write_timeout" split_words:"true"`
	ReadLimit            int64         `yaml:"read_limit" split_words:"true"`
	BufferSize           int           `yaml:"buffer_size" split_words:"true"`
	HeartbeatTimeout     time.Duration `yaml:"heartbeat_timeout" split_words:"true"`
	KeepaliveInterval    time.Duration `yaml:"keepalive_interval" split_words:"true"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay" split_words:"true"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay" split_words:"true"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" split_words:"true"`
	Jitter               bool          `yaml:"jitter"`
}

// APIConfig holds backend REST API settings.
type APIConfig struct {
	BaseURL      string        `yaml:"base_url" split_words:"true"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries" split_words:"true"`
	RetryBackoff time.Duration `yaml:"retry_backoff" split_words:"true"`

	// Market summary polling; a negative interval disables it.
	PollInterval    time.Duration `yaml:"poll_interval" split_words:"true"`
	PollConcurrency int           `yaml:"poll_concurrency" split_words:"true"`
}

// ServerConfig holds the status HTTP server settings.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPath string `yaml:"metrics_path" split_words:"true"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
