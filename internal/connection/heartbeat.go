package connection

import "time"

// HeartbeatMonitor detects a silent connection. It holds at most one pending
// timer, armed while connected and re-armed on every inbound frame.
//
// HeartbeatMonitor is not safe for concurrent use; it belongs to the
// goroutine that selects on C.
type HeartbeatMonitor struct {
	timeout time.Duration
	timer   *time.Timer
}

// NewHeartbeatMonitor creates an idle monitor.
func NewHeartbeatMonitor(timeout time.Duration) *HeartbeatMonitor {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	return &HeartbeatMonitor{timeout: timeout}
}

// Start arms the timer, replacing any pending one.
func (h *HeartbeatMonitor) Start() {
	if h.timer != nil {
		h.timer.Reset(h.timeout)
		return
	}
	h.timer = time.NewTimer(h.timeout)
}

// Reset pushes the deadline out by a full timeout. No-op while stopped.
func (h *HeartbeatMonitor) Reset() {
	if h.timer == nil {
		return
	}
	h.timer.Reset(h.timeout)
}

// Stop cancels the pending timer.
func (h *HeartbeatMonitor) Stop() {
	if h.timer == nil {
		return
	}
	h.timer.Stop()
	h.timer = nil
}

// Active reports whether a timer is pending.
func (h *HeartbeatMonitor) Active() bool {
	return h.timer != nil
}

// C fires when the connection has been silent for the full timeout.
// It returns nil while stopped, which blocks forever in a select.
func (h *HeartbeatMonitor) C() <-chan time.Time {
	if h.timer == nil {
		return nil
	}
	return h.timer.C
}

// Timeout returns the configured silence limit.
func (h *HeartbeatMonitor) Timeout() time.Duration {
	return h.timeout
}
