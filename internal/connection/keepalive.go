package connection

import (
	"encoding/json"
	"time"
)

// pingFrame is the application-level keepalive sent to the server.
type pingFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// PingFrame encodes a keepalive ping stamped with t.
func PingFrame(t time.Time) []byte {
	data, _ := json.Marshal(pingFrame{Type: "ping", Timestamp: t.UnixMilli()})
	return data
}

// KeepaliveEmitter ticks while connected so the owner can send pings.
// Like HeartbeatMonitor it belongs to a single goroutine.
type KeepaliveEmitter struct {
	interval time.Duration
	ticker   *time.Ticker
}

// NewKeepaliveEmitter creates an idle emitter.
func NewKeepaliveEmitter(interval time.Duration) *KeepaliveEmitter {
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}
	return &KeepaliveEmitter{interval: interval}
}

// Start begins ticking, restarting the period if already running.
func (k *KeepaliveEmitter) Start() {
	if k.ticker != nil {
		k.ticker.Reset(k.interval)
		return
	}
	k.ticker = time.NewTicker(k.interval)
}

// Stop halts the ticker.
func (k *KeepaliveEmitter) Stop() {
	if k.ticker == nil {
		return
	}
	k.ticker.Stop()
	k.ticker = nil
}

// Active reports whether the emitter is ticking.
func (k *KeepaliveEmitter) Active() bool {
	return k.ticker != nil
}

// C delivers a tick per interval. Nil while stopped.
func (k *KeepaliveEmitter) C() <-chan time.Time {
	if k.ticker == nil {
		return nil
	}
	return k.ticker.C
}

// Interval returns the ping period.
func (k *KeepaliveEmitter) Interval() time.Duration {
	return k.interval
}

// Emit sends one ping over client. Errors are returned for logging only;
// a failed ping never affects connection state.
func (k *KeepaliveEmitter) Emit(client Client, now time.Time) error {
	if client == nil {
		return ErrNotConnected
	}
	return client.Send(PingFrame(now))
}
