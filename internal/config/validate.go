package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *StreamerConfig) Validate() error {
	if err := c.Stream.validate(); err != nil {
		return err
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RetryBackoff <= 0 {
		return errors.New("api.retry_backoff must be > 0")
	}
	if c.API.PollConcurrency < 1 {
		return errors.New("api.poll_concurrency must be >= 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return fmt.Errorf("server.metrics_path must start with /, got %q", c.Server.MetricsPath)
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (s *StreamConfig) validate() error {
	if s.URL == "" {
		return errors.New("stream.url is required")
	}
	if !strings.HasPrefix(s.URL, "ws://") && !strings.HasPrefix(s.URL, "wss://") {
		return fmt.Errorf("stream.url must be a ws:// or wss:// URL, got %q", s.URL)
	}
	if s.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}
	if s.HeartbeatTimeout <= 0 {
		return errors.New("stream.heartbeat_timeout must be > 0")
	}
	if s.KeepaliveInterval <= 0 {
		return errors.New("stream.keepalive_interval must be > 0")
	}
	if s.KeepaliveInterval >= s.HeartbeatTimeout {
		return fmt.Errorf("stream.keepalive_interval (%s) must be less than heartbeat_timeout (%s)",
			s.KeepaliveInterval, s.HeartbeatTimeout)
	}
	if s.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if s.ReconnectMaxDelay < s.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			s.ReconnectMaxDelay, s.ReconnectBaseDelay)
	}
	if s.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}
	return nil
}

// SlogLevel parses Level into a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", l.Level)
}
