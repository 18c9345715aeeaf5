package market

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// Snapshot is an immutable view of the latest price per symbol.
// It is never modified after publication and is safe to share.
type Snapshot struct {
	prices map[string]model.PriceRecord
}

var emptySnapshot = &Snapshot{prices: map[string]model.PriceRecord{}}

// Get returns the record for symbol.
func (s Snapshot) Get(symbol string) (model.PriceRecord, bool) {
	p, ok := s.prices[symbol]
	return p, ok
}

// Len returns the number of symbols.
func (s Snapshot) Len() int {
	return len(s.prices)
}

// Symbols returns all symbols in ascending order.
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.prices))
	for sym := range s.prices {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Records returns a copy of all records ordered by symbol.
func (s Snapshot) Records() []model.PriceRecord {
	out := make([]model.PriceRecord, 0, len(s.prices))
	for _, sym := range s.Symbols() {
		out = append(out, s.prices[sym])
	}
	return out
}

// Store holds the latest PriceRecord per symbol.
//
// Writers build a new map and publish it with a single atomic swap, so a
// reader sees either all of a batch or none of it. Readers never block.
type Store struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Snapshot]
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(emptySnapshot)
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Get returns the latest record for symbol.
func (s *Store) Get(symbol string) (model.PriceRecord, bool) {
	return s.current.Load().Get(symbol)
}

// Len returns the number of symbols held.
func (s *Store) Len() int {
	return s.current.Load().Len()
}

// Upsert replaces the record for its symbol.
func (s *Store) Upsert(record model.PriceRecord) {
	s.UpsertAll([]model.PriceRecord{record})
}

// UpsertAll applies a batch as one publication. Records without a symbol are
// skipped. Later entries for the same symbol win. Returns the number applied.
func (s *Store) UpsertAll(records []model.PriceRecord) int {
	if len(records) == 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.current.Load().prices
	next := make(map[string]model.PriceRecord, len(old)+len(records))
	for sym, p := range old {
		next[sym] = p
	}

	applied := 0
	for _, r := range records {
		if r.Symbol == "" {
			continue
		}
		next[r.Symbol] = r
		applied++
	}

	if applied > 0 {
		s.current.Store(&Snapshot{prices: next})
	}
	return applied
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(emptySnapshot)
}
