package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrEmptySymbol is returned when a symbol argument is blank.
var ErrEmptySymbol = errors.New("symbol is required")

// GetSymbols fetches every tracked symbol.
func (c *Client) GetSymbols(ctx context.Context) ([]SymbolInfo, error) {
	var resp []SymbolInfo
	if err := c.get(ctx, "/symbols", nil, &resp); err != nil {
		return nil, fmt.Errorf("get symbols: %w", err)
	}
	return resp, nil
}

// GetPrice fetches the current price for one symbol. The symbol is
// upper-cased before the request.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*PriceData, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	var resp PriceData
	if err := c.get(ctx, "/symbols/"+url.PathEscape(symbol)+"/price", nil, &resp); err != nil {
		return nil, fmt.Errorf("get price %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetMarketSummary fetches the market summary.
func (c *Client) GetMarketSummary(ctx context.Context) (*MarketSummary, error) {
	var resp MarketSummary
	if err := c.get(ctx, "/market/summary", nil, &resp); err != nil {
		return nil, fmt.Errorf("get market summary: %w", err)
	}
	return &resp, nil
}
