package mockfeed

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelmarket/pricestream/internal/api"
	"github.com/sentinelmarket/pricestream/internal/model"
)

// AlertBook holds alerts in memory, in creation order.
type AlertBook struct {
	mu     sync.Mutex
	order  []string
	alerts map[string]*api.Alert
	now    func() time.Time
}

// NewAlertBook creates an empty AlertBook.
func NewAlertBook() *AlertBook {
	return &AlertBook{
		alerts: make(map[string]*api.Alert),
		now:    time.Now,
	}
}

// Create validates req and stores a new active alert.
func (b *AlertBook) Create(req api.CreateAlertRequest) (api.Alert, error) {
	if err := req.Validate(); err != nil {
		return api.Alert{}, err
	}

	a := &api.Alert{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Condition:   req.Condition,
		TargetPrice: req.TargetPrice,
		IsActive:    true,
		CreatedAt:   b.now().UTC().Format(time.RFC3339),
	}

	b.mu.Lock()
	b.order = append(b.order, a.ID)
	b.alerts[a.ID] = a
	b.mu.Unlock()

	return *a, nil
}

// List returns a copy of every alert.
func (b *AlertBook) List() []api.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]api.Alert, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, *b.alerts[id])
	}
	return out
}

// Delete removes an alert. It reports whether the alert existed.
func (b *AlertBook) Delete(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.alerts[id]; !ok {
		return false
	}
	delete(b.alerts, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Check marks every active alert whose condition holds for prices as
// triggered and returns them. An alert triggers at most once.
func (b *AlertBook) Check(prices []api.PriceData) []api.Alert {
	latest := make(map[string]api.PriceData, len(prices))
	for _, p := range prices {
		latest[p.Symbol] = p
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var fired []api.Alert
	for _, id := range b.order {
		a := b.alerts[id]
		if !a.IsActive || a.IsTriggered {
			continue
		}
		p, ok := latest[a.Symbol]
		if !ok {
			continue
		}

		hit := false
		switch a.Condition {
		case model.ConditionAbove:
			hit = p.Price.GreaterThanOrEqual(a.TargetPrice)
		case model.ConditionBelow:
			hit = p.Price.LessThanOrEqual(a.TargetPrice)
		}
		if !hit {
			continue
		}

		at := b.now().UTC().Format(time.RFC3339)
		a.IsTriggered = true
		a.IsActive = false
		a.TriggeredAt = &at
		fired = append(fired, *a)
	}
	return fired
}
