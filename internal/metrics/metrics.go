package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelmarket/pricestream/internal/model"
	"github.com/sentinelmarket/pricestream/internal/router"
)

const namespace = "pricestream"

var states = []model.ConnectionState{
	model.StateConnecting,
	model.StateConnected,
	model.StateDisconnected,
	model.StateReconnecting,
}

// Metrics holds the stream client's Prometheus collectors.
// All methods are safe on a nil receiver.
type Metrics struct {
	ConnectionState   *prometheus.GaugeVec
	ReconnectAttempt  prometheus.Gauge
	Connects          prometheus.Counter
	Reconnects        prometheus.Counter
	FramesReceived    *prometheus.CounterVec
	ParseErrors       prometheus.Counter
	PriceRecords      prometheus.Counter
	AlertsTriggered   prometheus.Counter
	HeartbeatTimeouts prometheus.Counter
	KeepaliveFailures prometheus.Counter
	Symbols           prometheus.Gauge
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise",
		}, []string{"state"}),
		ReconnectAttempt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconnect_attempt",
			Help:      "Current automatic reconnection attempt number",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "Successful transport opens",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnection attempts scheduled",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by message type",
		}, []string{"type"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Frames dropped as unparseable",
		}),
		PriceRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_records_total",
			Help:      "Price records applied to the store",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Triggered alert events delivered",
		}),
		HeartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_timeouts_total",
			Help:      "Connections closed for silence",
		}),
		KeepaliveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalive_failures_total",
			Help:      "Keepalive pings that failed to send",
		}),
		Symbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "symbols",
			Help:      "Symbols currently held in the price store",
		}),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ConnectionState,
		m.ReconnectAttempt,
		m.Connects,
		m.Reconnects,
		m.FramesReceived,
		m.ParseErrors,
		m.PriceRecords,
		m.AlertsTriggered,
		m.HeartbeatTimeouts,
		m.KeepaliveFailures,
		m.Symbols,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// SetStatus marks status as the current connection state.
func (m *Metrics) SetStatus(status model.ConnectionStatus) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == status.State {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s.String()).Set(v)
	}
	m.ReconnectAttempt.Set(float64(status.Attempt))
}

// IncConnect counts a successful open.
func (m *Metrics) IncConnect() {
	if m == nil {
		return
	}
	m.Connects.Inc()
}

// IncReconnect counts a scheduled reconnection attempt.
func (m *Metrics) IncReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// ObserveFrame counts one inbound frame of the given type. Types outside
// the handled set share the "unknown" label.
func (m *Metrics) ObserveFrame(msgType string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(frameLabel(msgType)).Inc()
}

func frameLabel(msgType string) string {
	switch {
	case msgType == "":
		return "unparseable"
	case !router.MessageType(msgType).Known():
		return "unknown"
	}
	return msgType
}

// IncParseError counts a dropped frame.
func (m *Metrics) IncParseError() {
	if m == nil {
		return
	}
	m.ParseErrors.Inc()
}

// AddPriceRecords counts applied records and updates the symbol gauge.
func (m *Metrics) AddPriceRecords(n, symbols int) {
	if m == nil {
		return
	}
	m.PriceRecords.Add(float64(n))
	m.Symbols.Set(float64(symbols))
}

// IncAlert counts a delivered alert.
func (m *Metrics) IncAlert() {
	if m == nil {
		return
	}
	m.AlertsTriggered.Inc()
}

// IncHeartbeatTimeout counts a stale-connection close.
func (m *Metrics) IncHeartbeatTimeout() {
	if m == nil {
		return
	}
	m.HeartbeatTimeouts.Inc()
}

// IncKeepaliveFailure counts a failed ping.
func (m *Metrics) IncKeepaliveFailure() {
	if m == nil {
		return
	}
	m.KeepaliveFailures.Inc()
}
