package mockfeed

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentinelmarket/pricestream/internal/api"
)

// trackedSymbols is the fixed universe with opening prices.
var trackedSymbols = []struct {
	Symbol, Name, Sector, Open string
}{
	{"AAPL", "Apple Inc.", "Technology", "175.00"},
	{"GOOGL", "Alphabet Inc.", "Technology", "142.00"},
	{"TSLA", "Tesla Inc.", "Automotive", "245.00"},
	{"MSFT", "Microsoft Corp.", "Technology", "378.00"},
	{"AMZN", "Amazon.com Inc.", "Consumer", "178.00"},
	{"NVDA", "NVIDIA Corp.", "Technology", "495.00"},
	{"META", "Meta Platforms", "Technology", "385.00"},
	{"JPM", "JPMorgan Chase", "Finance", "195.00"},
	{"V", "Visa Inc.", "Finance", "275.00"},
	{"SPY", "S&P 500 ETF", "Index", "475.00"},
}

var (
	hundred = decimal.NewFromInt(100)
	// maxMove bounds a single tick to +/-0.3%.
	maxMove = decimal.RequireFromString("0.003")
)

type quote struct {
	name, sector  string
	price         decimal.Decimal
	previousClose decimal.Decimal
	volume        int64
	updated       time.Time
}

// Market simulates quotes for the tracked symbols.
type Market struct {
	mu     sync.RWMutex
	order  []string
	quotes map[string]*quote
	rng    *rand.Rand
	now    func() time.Time
}

// NewMarket creates a Market at opening prices. The seed makes the walk
// reproducible.
func NewMarket(seed uint64) *Market {
	m := &Market{
		quotes: make(map[string]*quote, len(trackedSymbols)),
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:    time.Now,
	}

	for _, s := range trackedSymbols {
		open := decimal.RequireFromString(s.Open)
		m.order = append(m.order, s.Symbol)
		m.quotes[s.Symbol] = &quote{
			name:          s.Name,
			sector:        s.Sector,
			price:         open,
			previousClose: open,
			updated:       m.now(),
		}
	}

	return m
}

// Tick moves every price by a random step and returns the new quotes.
func (m *Market) Tick() []api.PriceData {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]api.PriceData, 0, len(m.order))
	for _, sym := range m.order {
		q := m.quotes[sym]

		// step in [-0.003, 0.003]
		step := decimal.NewFromFloat(m.rng.Float64()*2 - 1).Mul(maxMove)
		q.price = q.price.Mul(decimal.NewFromInt(1).Add(step)).Round(2)
		q.volume += 1000 + m.rng.Int64N(9001)
		q.updated = now

		out = append(out, q.toWire(sym))
	}
	return out
}

// Prices returns the current quote for every symbol.
func (m *Market) Prices() []api.PriceData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.PriceData, 0, len(m.order))
	for _, sym := range m.order {
		out = append(out, m.quotes[sym].toWire(sym))
	}
	return out
}

// Price returns the current quote for one symbol.
func (m *Market) Price(symbol string) (api.PriceData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.quotes[symbol]
	if !ok {
		return api.PriceData{}, false
	}
	return q.toWire(symbol), true
}

// Symbols lists the tracked symbols with their current price.
func (m *Market) Symbols() []api.SymbolInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]api.SymbolInfo, 0, len(m.order))
	for _, sym := range m.order {
		q := m.quotes[sym]
		out = append(out, api.SymbolInfo{
			Symbol:       sym,
			Name:         q.name,
			Sector:       q.sector,
			CurrentPrice: decimal.NewNullDecimal(q.price),
		})
	}
	return out
}

func (q *quote) toWire(symbol string) api.PriceData {
	change := q.price.Sub(q.previousClose).Round(2)
	pct := decimal.Zero
	if !q.previousClose.IsZero() {
		pct = change.Div(q.previousClose).Mul(hundred).Round(2)
	}

	return api.PriceData{
		Symbol:        symbol,
		Price:         q.price,
		PreviousClose: q.previousClose,
		Change:        change,
		ChangePercent: pct,
		Volume:        q.volume,
		Timestamp:     q.updated.UTC().Format(time.RFC3339),
	}
}
