package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sentinelmarket/pricestream/internal/mockfeed"
)

func main() {
	defaults := mockfeed.DefaultConfig()

	port := flag.Int("port", 8000, "HTTP listen port")
	interval := flag.Duration("interval", defaults.Interval, "time between price updates")
	heartbeat := flag.Duration("heartbeat", defaults.HeartbeatInterval, "idle time before a heartbeat frame")
	seed := flag.Uint64("seed", defaults.Seed, "random walk seed")
	quoted := flag.Bool("quoted-decimals", false, "encode prices as JSON strings")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// The backend sends prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = !*quoted

	cfg := defaults
	cfg.Interval = *interval
	cfg.HeartbeatInterval = *heartbeat
	cfg.Seed = *seed

	feed := mockfeed.NewFeed(cfg, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mockfeed.NewHandler(feed),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return feed.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("mock feed listening",
			"addr", srv.Addr,
			"stream", fmt.Sprintf("ws://localhost:%d/price/stream", *port),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("mock feed exited with error", "error", err)
		os.Exit(1)
	}
}
