package api

import (
	"github.com/shopspring/decimal"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// SymbolInfo from GET /symbols
type SymbolInfo struct {
	Symbol       string              `json:"symbol"`
	Name         string              `json:"name"`
	Sector       string              `json:"sector"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
}

// PriceData from GET /symbols/{symbol}/price
type PriceData struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     string          `json:"timestamp"`
}

// MarketSummary from GET /market/summary
type MarketSummary struct {
	Symbols      []SymbolInfo `json:"symbols"`
	LastUpdated  string       `json:"last_updated"`
	MarketStatus string       `json:"market_status"` // open, closed, pre-market, after-hours
}

// Alert is a server-side price alert.
type Alert struct {
	ID          string               `json:"id"`
	Symbol      string               `json:"symbol"`
	Condition   model.AlertCondition `json:"condition"`
	TargetPrice decimal.Decimal      `json:"target_price"`
	IsTriggered bool                 `json:"is_triggered"`
	IsActive    bool                 `json:"is_active"`
	CreatedAt   string               `json:"created_at"`
	TriggeredAt *string              `json:"triggered_at"`
}

// CreateAlertRequest is the body of POST /alerts.
type CreateAlertRequest struct {
	Symbol      string               `json:"symbol"`
	Condition   model.AlertCondition `json:"condition"`
	TargetPrice decimal.Decimal      `json:"target_price"`
}
