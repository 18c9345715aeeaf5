package poller

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentinelmarket/pricestream/internal/api"
)

// Quoter is the REST surface the poller reads from.
type Quoter interface {
	GetMarketSummary(ctx context.Context) (*api.MarketSummary, error)
	GetPrice(ctx context.Context, symbol string) (*api.PriceData, error)
}

// Snapshot is one poll cycle's view of the market.
type Snapshot struct {
	MarketStatus string          `json:"market_status"`
	LastUpdated  string          `json:"last_updated"`
	Quotes       []api.PriceData `json:"quotes"`
	Failed       []string        `json:"failed,omitempty"`
	FetchedAt    time.Time       `json:"fetched_at"`
}

// SnapshotHandler receives each completed snapshot.
type SnapshotHandler interface {
	HandleSnapshot(snapshot Snapshot)
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(Snapshot)

func (f SnapshotHandlerFunc) HandleSnapshot(s Snapshot) {
	f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 1m)
	Concurrency int           // Max concurrent quote requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically fetches the market summary and reference quotes.
type Poller struct {
	cfg     Config
	client  Quoter
	handler SnapshotHandler
	logger  *slog.Logger

	latest atomic.Pointer[Snapshot]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. handler may be nil.
func New(cfg Config, client Quoter, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		handler: handler,
		logger:  logger.With("component", "poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("market poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("market poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the most recent snapshot, if any cycle has completed.
func (p *Poller) Latest() (Snapshot, bool) {
	s := p.latest.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches the summary, then a quote per listed symbol concurrently.
// A failed summary request skips the cycle and keeps the previous snapshot.
func (p *Poller) pollAll() {
	start := time.Now()

	summary, err := p.fetchSummary()
	if err != nil {
		p.logger.Warn("failed to poll market summary", "err", err)
		return
	}
	if len(summary.Symbols) == 0 {
		p.logger.Debug("no symbols to poll")
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	quotes := make([]api.PriceData, 0, len(summary.Symbols))
	var failed []string

	for _, info := range summary.Symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			q, err := p.fetchQuote(symbol)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("failed to poll quote",
					"symbol", symbol,
					"err", err,
				)
				failed = append(failed, symbol)
				return
			}
			quotes = append(quotes, *q)
		}(info.Symbol)
	}

	wg.Wait()

	if p.ctx.Err() != nil {
		return
	}

	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	sort.Strings(failed)

	snap := Snapshot{
		MarketStatus: summary.MarketStatus,
		LastUpdated:  summary.LastUpdated,
		Quotes:       quotes,
		Failed:       failed,
		FetchedAt:    time.Now(),
	}
	p.latest.Store(&snap)

	if p.handler != nil {
		p.handler.HandleSnapshot(snap)
	}

	p.logger.Info("poll cycle complete",
		"market_status", summary.MarketStatus,
		"symbols", len(summary.Symbols),
		"fetched", len(quotes),
		"errors", len(failed),
		"duration", time.Since(start),
	)
}

func (p *Poller) fetchSummary() (*api.MarketSummary, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()
	return p.client.GetMarketSummary(ctx)
}

func (p *Poller) fetchQuote(symbol string) (*api.PriceData, error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()
	return p.client.GetPrice(ctx, symbol)
}
