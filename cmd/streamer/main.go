package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/sentinelmarket/pricestream/internal/api"
	"github.com/sentinelmarket/pricestream/internal/config"
	"github.com/sentinelmarket/pricestream/internal/connection"
	"github.com/sentinelmarket/pricestream/internal/metrics"
	"github.com/sentinelmarket/pricestream/internal/model"
	"github.com/sentinelmarket/pricestream/internal/poller"
	"github.com/sentinelmarket/pricestream/internal/server"
	"github.com/sentinelmarket/pricestream/internal/stream"
	"github.com/sentinelmarket/pricestream/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: SENTINEL_* environment)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger, err := newLogger(cfg.Logging, os.Stdout)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"stream_url", cfg.Stream.URL,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("streamer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("streamer stopped")
}

func loadConfig(path string) (*config.StreamerConfig, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadAndValidate(path)
}

// newLogger builds the slog handler selected by cfg.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// streamConfig maps file configuration onto the stream client.
func streamConfig(cfg config.StreamConfig) stream.Config {
	sc := stream.DefaultConfig()
	sc.Transport = connection.ClientConfig{
		URL:              cfg.URL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		ReadLimit:        cfg.ReadLimit,
		BufferSize:       cfg.BufferSize,
	}
	sc.HeartbeatTimeout = cfg.HeartbeatTimeout
	sc.KeepaliveInterval = cfg.KeepaliveInterval
	sc.Backoff = connection.BackoffPolicy{
		BaseDelay:   cfg.ReconnectBaseDelay,
		MaxDelay:    cfg.ReconnectMaxDelay,
		MaxAttempts: cfg.MaxReconnectAttempts,
		Jitter:      cfg.Jitter,
	}
	return sc
}

func run(cfg *config.StreamerConfig, logger *slog.Logger) error {
	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New()
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	client := stream.New(streamConfig(cfg.Stream),
		stream.WithLogger(logger),
		stream.WithMetrics(m),
	)

	client.OnAlertTriggered(func(e model.TriggeredAlertEvent) {
		logger.Info("price alert",
			"symbol", e.Symbol,
			"condition", e.Condition,
			"target_price", e.TargetPrice.String(),
		)
	})

	srvCfg := server.Config{
		MetricsPath:    cfg.Server.MetricsPath,
		MetricsHandler: metrics.Handler(reg),
		Debug:          cfg.Logging.Level == "debug",
	}

	// Market summary poller
	var marketPoller *poller.Poller
	if cfg.API.PollInterval > 0 {
		apiClient := api.NewClient(cfg.API.BaseURL,
			api.WithTimeout(cfg.API.Timeout),
			api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
			api.WithLogger(logger),
		)
		marketPoller = poller.New(poller.Config{
			Interval:    cfg.API.PollInterval,
			Concurrency: cfg.API.PollConcurrency,
			Timeout:     cfg.API.Timeout,
		}, apiClient, nil, logger)
		srvCfg.Market = marketPoller
	}

	statusServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.New(srvCfg, client, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := client.Start(ctx); err != nil {
			return fmt.Errorf("start stream client: %w", err)
		}
		<-client.Done()
		return nil
	})

	if marketPoller != nil {
		if err := marketPoller.Start(ctx); err != nil {
			return fmt.Errorf("start market poller: %w", err)
		}
	}

	g.Go(func() error {
		sub := client.SubscribeStatus()
		defer sub.Unsubscribe()
		for st := range sub.C() {
			logger.Info("connection status", "status", st.String())
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting status server", "port", cfg.Server.Port)
		if err := statusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := client.Stop(shutdownCtx); err != nil {
			logger.Warn("stream client stop", "error", err)
		}
		if marketPoller != nil {
			if err := marketPoller.Stop(shutdownCtx); err != nil {
				logger.Warn("market poller stop", "error", err)
			}
		}
		return statusServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
