package router

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// MessageType is the "type" discriminator of an inbound frame.
type MessageType string

const (
	TypePriceUpdate    MessageType = "price_update"
	TypeInitialData    MessageType = "initial_data"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeAlertTriggered MessageType = "alert_triggered"
	TypeError          MessageType = "error"
)

// Known reports whether t is one of the handled frame types.
func (t MessageType) Known() bool {
	switch t {
	case TypePriceUpdate, TypeInitialData, TypeHeartbeat, TypeAlertTriggered, TypeError:
		return true
	}
	return false
}

// Handler receives the typed result of routing a frame. Calls are made
// synchronously on the routing goroutine, one frame at a time.
type Handler interface {
	// HandlePrices receives every record of one price_update or initial_data frame.
	HandlePrices(kind MessageType, records []model.PriceRecord)

	// HandleAlert receives one triggered alert.
	HandleAlert(event model.TriggeredAlertEvent)

	// HandleServerError receives the message of a server-reported error frame.
	HandleServerError(message string)
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived int64 `json:"messages_received"`
	MessagesRouted   int64 `json:"messages_routed"`
	ParseErrors      int64 `json:"parse_errors"`
	UnknownMessages  int64 `json:"unknown_messages"`
	Heartbeats       int64 `json:"heartbeats"`
	PriceRecords     int64 `json:"price_records"`
	Alerts           int64 `json:"alerts"`
	ServerErrors     int64 `json:"server_errors"`
}

// -----------------------------------------------------------------------------
// Wire formats
// -----------------------------------------------------------------------------

// messageEnvelope is the outer shape of every frame.
type messageEnvelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// pricesDataWire is the data payload of price_update and initial_data.
type pricesDataWire struct {
	Prices []priceRecordWire `json:"prices"`
}

// priceRecordWire is a price record as the server encodes it.
// Numeric fields accept JSON numbers or numeric strings.
type priceRecordWire struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        decimal.Decimal `json:"volume"`
	Timestamp     string          `json:"timestamp"`
}

func (w priceRecordWire) toModel() (model.PriceRecord, error) {
	if !w.Volume.BigInt().IsInt64() {
		return model.PriceRecord{}, fmt.Errorf("%s: %w: %s", w.Symbol, ErrVolumeRange, w.Volume)
	}
	return model.PriceRecord{
		Symbol:        w.Symbol,
		Price:         w.Price,
		PreviousClose: w.PreviousClose,
		Change:        w.Change,
		ChangePercent: w.ChangePercent,
		Volume:        w.Volume.IntPart(),
		Timestamp:     w.Timestamp,
	}, nil
}

// alertWire is the data payload of alert_triggered.
type alertWire struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Condition   string          `json:"condition"`
	TargetPrice decimal.Decimal `json:"target_price"`
}

// errorWire is the data payload of a server error frame.
type errorWire struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
