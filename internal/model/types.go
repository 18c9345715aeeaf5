package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Price Types
// -----------------------------------------------------------------------------

// PriceRecord is the latest known quote for one symbol.
// A newer record for the same symbol replaces it whole.
type PriceRecord struct {
	Symbol        string          // Primary key (e.g., "AAPL")
	Price         decimal.Decimal // Last traded price
	PreviousClose decimal.Decimal // Prior session close
	Change        decimal.Decimal // Price - PreviousClose
	ChangePercent decimal.Decimal // Change as a percentage of PreviousClose
	Volume        int64           // Session volume
	Timestamp     string          // Server-side observation time
}

// IsUp reports whether the record shows a non-negative change.
func (p PriceRecord) IsUp() bool {
	return !p.Change.IsNegative()
}

// -----------------------------------------------------------------------------
// Alert Types
// -----------------------------------------------------------------------------

// AlertCondition is the direction an alert watches for.
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// Valid reports whether c is a known condition.
func (c AlertCondition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// TriggeredAlertEvent is delivered once when the server reports an alert fired.
// It is never stored.
type TriggeredAlertEvent struct {
	ID          string
	Symbol      string
	Condition   AlertCondition
	TargetPrice decimal.Decimal
}

// -----------------------------------------------------------------------------
// Connection Types
// -----------------------------------------------------------------------------

// ConnectionState is the lifecycle phase of the streaming connection.
type ConnectionState int

const (
	StateConnecting ConnectionState = iota
	StateConnected
	StateDisconnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ConnectionStatus is the observable connection state.
// Attempt is only meaningful while State is StateReconnecting.
type ConnectionStatus struct {
	State   ConnectionState
	Attempt int
}

// Connecting, Connected, Disconnected and Reconnecting build statuses.
func Connecting() ConnectionStatus   { return ConnectionStatus{State: StateConnecting} }
func Connected() ConnectionStatus    { return ConnectionStatus{State: StateConnected} }
func Disconnected() ConnectionStatus { return ConnectionStatus{State: StateDisconnected} }

func Reconnecting(attempt int) ConnectionStatus {
	return ConnectionStatus{State: StateReconnecting, Attempt: attempt}
}

// String renders the status, e.g. "connected" or "reconnecting(3)".
func (s ConnectionStatus) String() string {
	if s.State == StateReconnecting {
		return fmt.Sprintf("reconnecting(%d)", s.Attempt)
	}
	return s.State.String()
}

// ReconnectState tracks automatic reconnection progress.
type ReconnectState struct {
	AttemptCount  int       // Attempts made since the last successful connect
	LastAttemptAt time.Time // When the last scheduled retry began dialing; zero if none
}
