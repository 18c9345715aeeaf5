package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// Errors
var (
	ErrMissingType      = errors.New("frame has no type")
	ErrInvalidCondition = errors.New("invalid alert condition")
	ErrVolumeRange      = errors.New("volume out of int64 range")
)

// Router parses raw frames and hands typed results to a Handler.
//
// A frame that cannot be parsed is dropped and counted. It never affects
// the connection.
type Router struct {
	handler Handler
	logger  *slog.Logger

	mu              sync.RWMutex
	received        int64
	routed          int64
	parseErrors     int64
	unknownMessages int64
	heartbeats      int64
	priceRecords    int64
	alerts          int64
	serverErrors    int64
}

// NewRouter creates a Router that delivers to handler.
func NewRouter(handler Handler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		handler: handler,
		logger:  logger,
	}
}

// Stats returns current statistics.
func (r *Router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived: r.received,
		MessagesRouted:   r.routed,
		ParseErrors:      r.parseErrors,
		UnknownMessages:  r.unknownMessages,
		Heartbeats:       r.heartbeats,
		PriceRecords:     r.priceRecords,
		Alerts:           r.alerts,
		ServerErrors:     r.serverErrors,
	}
}

// Route parses and routes a single frame. It returns the frame's type and a
// non-nil error if the frame was dropped as unparseable.
func (r *Router) Route(data []byte) (MessageType, error) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	env, err := r.extractEnvelope(data)
	if err != nil {
		r.logger.Warn("failed to extract message type", "error", err)
		r.countParseError()
		return "", err
	}

	switch env.Type {
	case TypePriceUpdate, TypeInitialData:
		records, err := r.parsePrices(env)
		if err != nil {
			r.logger.Warn("failed to parse prices", "type", env.Type, "error", err)
			r.countParseError()
			return env.Type, err
		}
		r.handler.HandlePrices(env.Type, records)

		r.mu.Lock()
		r.priceRecords += int64(len(records))
		r.mu.Unlock()

	case TypeHeartbeat:
		r.mu.Lock()
		r.heartbeats++
		r.mu.Unlock()

	case TypeAlertTriggered:
		event, err := r.parseAlert(env)
		if err != nil {
			r.logger.Warn("failed to parse alert", "error", err)
			r.countParseError()
			return env.Type, err
		}
		r.handler.HandleAlert(event)

		r.mu.Lock()
		r.alerts++
		r.mu.Unlock()

	case TypeError:
		msg := r.parseServerError(env)
		r.logger.Warn("server reported error", "message", msg)
		r.handler.HandleServerError(msg)

		r.mu.Lock()
		r.serverErrors++
		r.mu.Unlock()

	default:
		r.logger.Debug("skipping message type", "type", env.Type)
		r.mu.Lock()
		r.unknownMessages++
		r.mu.Unlock()
		return env.Type, nil
	}

	r.mu.Lock()
	r.routed++
	r.mu.Unlock()

	return env.Type, nil
}

func (r *Router) countParseError() {
	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
}

// extractEnvelope decodes the outer frame and requires a type.
func (r *Router) extractEnvelope(data []byte) (messageEnvelope, error) {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return messageEnvelope{}, err
	}
	if env.Type == "" {
		return messageEnvelope{}, ErrMissingType
	}
	return env, nil
}

// parsePrices decodes data.prices, skipping entries without a symbol.
// One unrepresentable entry drops the whole frame.
func (r *Router) parsePrices(env messageEnvelope) ([]model.PriceRecord, error) {
	if len(env.Data) == 0 {
		return nil, nil
	}

	var wire pricesDataWire
	if err := json.Unmarshal(env.Data, &wire); err != nil {
		return nil, err
	}

	records := make([]model.PriceRecord, 0, len(wire.Prices))
	for _, p := range wire.Prices {
		if p.Symbol == "" {
			r.logger.Debug("skipping price without symbol")
			continue
		}
		rec, err := p.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseAlert decodes an alert_triggered payload.
func (r *Router) parseAlert(env messageEnvelope) (model.TriggeredAlertEvent, error) {
	var wire alertWire
	if err := json.Unmarshal(env.Data, &wire); err != nil {
		return model.TriggeredAlertEvent{}, err
	}

	cond := model.AlertCondition(wire.Condition)
	if !cond.Valid() {
		return model.TriggeredAlertEvent{}, fmt.Errorf("%w: %q", ErrInvalidCondition, wire.Condition)
	}

	return model.TriggeredAlertEvent{
		ID:          wire.ID,
		Symbol:      wire.Symbol,
		Condition:   cond,
		TargetPrice: wire.TargetPrice,
	}, nil
}

// parseServerError extracts a readable message from an error frame.
// The payload may be an object with a message, a bare string, or absent.
func (r *Router) parseServerError(env messageEnvelope) string {
	var wire errorWire
	if err := json.Unmarshal(env.Data, &wire); err == nil && wire.Message != "" {
		if wire.Code != "" {
			return wire.Code + ": " + wire.Message
		}
		return wire.Message
	}

	var s string
	if err := json.Unmarshal(env.Data, &s); err == nil && s != "" {
		return s
	}

	return "server error"
}
