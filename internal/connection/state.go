package connection

import (
	"fmt"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// Event drives a connection state transition.
type Event int

const (
	EventOpened          Event = iota // Transport open succeeded
	EventClosed                       // Close, error, stale, or failed dial
	EventRetryScheduled               // Backoff timer armed
	EventRetryDue                     // Backoff timer fired
	EventManualReconnect              // Caller asked to reconnect now
	EventManualConnect                // Caller asked to connect from disconnected
	EventManualDisconnect             // Caller asked to drop the connection
	EventDispose                      // Client is shutting down for good
)

func (e Event) String() string {
	switch e {
	case EventOpened:
		return "opened"
	case EventClosed:
		return "closed"
	case EventRetryScheduled:
		return "retry_scheduled"
	case EventRetryDue:
		return "retry_due"
	case EventManualReconnect:
		return "manual_reconnect"
	case EventManualConnect:
		return "manual_connect"
	case EventManualDisconnect:
		return "manual_disconnect"
	case EventDispose:
		return "dispose"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions is the complete set of legal state changes. Anything absent is rejected.
var transitions = map[model.ConnectionState]map[Event]model.ConnectionState{
	model.StateConnecting: {
		EventOpened:           model.StateConnected,
		EventClosed:           model.StateDisconnected,
		EventManualReconnect:  model.StateConnecting,
		EventManualDisconnect: model.StateDisconnected,
		EventDispose:          model.StateDisconnected,
	},
	model.StateConnected: {
		EventClosed:           model.StateDisconnected,
		EventManualReconnect:  model.StateConnecting,
		EventManualDisconnect: model.StateDisconnected,
		EventDispose:          model.StateDisconnected,
	},
	model.StateDisconnected: {
		EventRetryScheduled:   model.StateReconnecting,
		EventManualReconnect:  model.StateConnecting,
		EventManualConnect:    model.StateConnecting,
		EventManualDisconnect: model.StateDisconnected,
		EventDispose:          model.StateDisconnected,
	},
	model.StateReconnecting: {
		EventRetryDue:         model.StateConnecting,
		EventManualReconnect:  model.StateConnecting,
		EventManualDisconnect: model.StateDisconnected,
		EventDispose:          model.StateDisconnected,
	},
}

// TransitionError reports an event that is not legal in the current state.
type TransitionError struct {
	From  model.ConnectionStatus
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on %s", e.Event, e.From)
}

// NextState looks up the target state for ev fired in from.
func NextState(from model.ConnectionState, ev Event) (model.ConnectionState, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// StateMachine holds the current connection status and applies the
// transition table. It is not safe for concurrent use.
type StateMachine struct {
	status model.ConnectionStatus
}

// NewStateMachine starts in connecting.
func NewStateMachine() *StateMachine {
	return &StateMachine{status: model.Connecting()}
}

// Status returns the current status.
func (m *StateMachine) Status() model.ConnectionStatus {
	return m.status
}

// Fire applies ev. attempt is recorded only when the target is reconnecting.
func (m *StateMachine) Fire(ev Event, attempt int) (model.ConnectionStatus, error) {
	to, ok := NextState(m.status.State, ev)
	if !ok {
		return m.status, &TransitionError{From: m.status, Event: ev}
	}

	next := model.ConnectionStatus{State: to}
	if to == model.StateReconnecting {
		next.Attempt = attempt
	}
	m.status = next

	return next, nil
}
