package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Alert request validation errors.
var (
	ErrInvalidCondition   = errors.New("condition must be above or below")
	ErrInvalidTargetPrice = errors.New("target_price must be positive")
	ErrInvalidAlertID     = errors.New("alert id must be a UUID")
)

// ListAlerts fetches every alert.
func (c *Client) ListAlerts(ctx context.Context) ([]Alert, error) {
	var resp []Alert
	if err := c.get(ctx, "/alerts", nil, &resp); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return resp, nil
}

// CreateAlert registers a new alert. The request is validated locally
// before it is sent.
func (c *Client) CreateAlert(ctx context.Context, req CreateAlertRequest) (*Alert, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var resp Alert
	if err := c.post(ctx, "/alerts", req, &resp); err != nil {
		return nil, fmt.Errorf("create alert %s: %w", req.Symbol, err)
	}

	c.logger.Info("alert created",
		"id", resp.ID,
		"symbol", resp.Symbol,
		"condition", resp.Condition,
		"target_price", resp.TargetPrice.String(),
	)
	return &resp, nil
}

// DeleteAlert removes an alert by ID.
func (c *Client) DeleteAlert(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAlertID, id)
	}

	if err := c.delete(ctx, "/alerts/"+parsed.String()); err != nil {
		return fmt.Errorf("delete alert %s: %w", parsed, err)
	}
	return nil
}

// Validate checks the request fields.
func (r CreateAlertRequest) Validate() error {
	if r.Symbol == "" {
		return ErrEmptySymbol
	}
	if !r.Condition.Valid() {
		return fmt.Errorf("%w, got %q", ErrInvalidCondition, r.Condition)
	}
	if !r.TargetPrice.IsPositive() {
		return ErrInvalidTargetPrice
	}
	return nil
}
