// Command alertctl queries prices and manages price alerts through the
// backend REST API.
//
// Usage:
//
//	alertctl [flags] symbols
//	alertctl [flags] price SYMBOL
//	alertctl [flags] summary
//	alertctl [flags] alerts list
//	alertctl [flags] alerts create SYMBOL above|below PRICE
//	alertctl [flags] alerts delete ID
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/sentinelmarket/pricestream/internal/api"
	"github.com/sentinelmarket/pricestream/internal/config"
	"github.com/sentinelmarket/pricestream/internal/model"
)

var errUsage = errors.New("usage: alertctl [flags] symbols | price SYMBOL | summary | alerts list|create|delete")

func main() {
	configPath := flag.String("config", "", "path to config file (default: SENTINEL_* environment)")
	baseURL := flag.String("api", "", "API base URL (overrides config)")
	verbose := flag.Bool("v", false, "log requests")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "alertctl: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithLogger(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "alertctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.StreamerConfig, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.LoadAndValidate(path)
}

func run(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "symbols":
		symbols, err := client.GetSymbols(ctx)
		if err != nil {
			return err
		}
		printSymbols(out, symbols)
		return nil

	case "price":
		if len(args) != 2 {
			return errUsage
		}
		p, err := client.GetPrice(ctx, args[1])
		if err != nil {
			return err
		}
		printPrices(out, []api.PriceData{*p})
		return nil

	case "summary":
		s, err := client.GetMarketSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "market %s, updated %s\n", s.MarketStatus, s.LastUpdated)
		printSymbols(out, s.Symbols)
		return nil

	case "alerts":
		return runAlerts(ctx, client, args[1:], out)
	}

	return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
}

func runAlerts(ctx context.Context, client *api.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "list":
		alerts, err := client.ListAlerts(ctx)
		if err != nil {
			return err
		}
		printAlerts(out, alerts)
		return nil

	case "create":
		if len(args) != 4 {
			return errUsage
		}
		target, err := decimal.NewFromString(args[3])
		if err != nil {
			return fmt.Errorf("invalid target price %q: %w", args[3], err)
		}
		alert, err := client.CreateAlert(ctx, api.CreateAlertRequest{
			Symbol:      args[1],
			Condition:   model.AlertCondition(args[2]),
			TargetPrice: target,
		})
		if err != nil {
			return err
		}
		printAlerts(out, []api.Alert{*alert})
		return nil

	case "delete":
		if len(args) != 2 {
			return errUsage
		}
		if err := client.DeleteAlert(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted %s\n", args[1])
		return nil
	}

	return fmt.Errorf("unknown alerts command %q: %w", args[0], errUsage)
}

func printSymbols(out io.Writer, symbols []api.SymbolInfo) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tSECTOR\tPRICE")
	for _, s := range symbols {
		price := "-"
		if s.CurrentPrice.Valid {
			price = s.CurrentPrice.Decimal.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Symbol, s.Name, s.Sector, price)
	}
	w.Flush()
}

func printPrices(out io.Writer, prices []api.PriceData) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tPRICE\tCHANGE\tCHANGE%\tVOLUME\tTIME")
	for _, p := range prices {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.Symbol,
			p.Price.StringFixed(2),
			p.Change.StringFixed(2),
			p.ChangePercent.StringFixed(2),
			p.Volume,
			p.Timestamp,
		)
	}
	w.Flush()
}

func printAlerts(out io.Writer, alerts []api.Alert) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYMBOL\tCONDITION\tTARGET\tACTIVE\tTRIGGERED")
	for _, a := range alerts {
		triggered := "-"
		if a.TriggeredAt != nil {
			triggered = *a.TriggeredAt
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
			a.ID, a.Symbol, a.Condition, a.TargetPrice.String(), a.IsActive, triggered)
	}
	w.Flush()
}
