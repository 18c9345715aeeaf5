// streamtest connects to the price stream and prints what it receives.
// Usage: go run ./cmd/streamtest --url ws://localhost:8000/price/stream
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinelmarket/pricestream/internal/config"
	"github.com/sentinelmarket/pricestream/internal/market"
	"github.com/sentinelmarket/pricestream/internal/model"
	"github.com/sentinelmarket/pricestream/internal/stream"
)

func main() {
	url := flag.String("url", config.DefaultStreamURL, "price stream WebSocket URL")
	interval := flag.Duration("interval", time.Second, "how often to print changed prices")
	verbose := flag.Bool("verbose", false, "print full record JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := stream.DefaultConfig()
	cfg.Transport.URL = *url

	client := stream.New(cfg, stream.WithLogger(logger))

	client.OnAlertTriggered(func(e model.TriggeredAlertEvent) {
		fmt.Printf("ALERT %s %s %s (id=%s)\n", e.Symbol, e.Condition, e.TargetPrice, e.ID)
	})

	sub := client.SubscribeStatus()
	go func() {
		for st := range sub.C() {
			fmt.Printf("STATUS %s\n", st)
		}
	}()

	if err := client.Start(ctx); err != nil {
		logger.Error("failed to start stream client", "error", err)
		os.Exit(1)
	}

	// Price printer
	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		var prev market.Snapshot
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cur := client.PriceSnapshot()
				printChanged(os.Stdout, prev, cur, *verbose)
				prev = cur
			}
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := client.RouterStats()
				logger.Info("stats",
					"status", client.Status().String(),
					"stale", client.IsStale(),
					"symbols", client.PriceSnapshot().Len(),
					"received", stats.MessagesReceived,
					"price_records", stats.PriceRecords,
					"parse_errors", stats.ParseErrors,
					"unknown", stats.UnknownMessages,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	client.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

// printChanged writes every record in cur that differs from prev.
func printChanged(w io.Writer, prev, cur market.Snapshot, verbose bool) {
	for _, r := range cur.Records() {
		if old, ok := prev.Get(r.Symbol); ok && sameRecord(old, r) {
			continue
		}
		if verbose {
			data, _ := json.Marshal(r)
			fmt.Fprintf(w, "PRICE %s\n", data)
			continue
		}
		arrow := "▲"
		if !r.IsUp() {
			arrow = "▼"
		}
		fmt.Fprintf(w, "PRICE %-6s %10s %s %s (%s%%) vol=%d\n",
			r.Symbol, r.Price.StringFixed(2), arrow, r.Change.StringFixed(2), r.ChangePercent.StringFixed(2), r.Volume)
	}
}

func sameRecord(a, b model.PriceRecord) bool {
	return a.Timestamp == b.Timestamp &&
		a.Price.Equal(b.Price) &&
		a.Change.Equal(b.Change) &&
		a.Volume == b.Volume
}
