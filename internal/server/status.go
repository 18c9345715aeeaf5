package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sentinelmarket/pricestream/internal/market"
	"github.com/sentinelmarket/pricestream/internal/model"
	"github.com/sentinelmarket/pricestream/internal/poller"
	"github.com/sentinelmarket/pricestream/internal/router"
	"github.com/sentinelmarket/pricestream/internal/version"
)

// Source is the read and control surface of a stream client.
type Source interface {
	Status() model.ConnectionStatus
	ReconnectState() model.ReconnectState
	PriceSnapshot() market.Snapshot
	LastUpdateTime() time.Time
	LastError() string
	IsStale() bool
	RouterStats() router.RouterStats
	Reconnect() error
}

// MarketSource provides the latest REST market snapshot.
type MarketSource interface {
	Latest() (poller.Snapshot, bool)
}

// Config holds status server settings.
type Config struct {
	MetricsPath    string
	MetricsHandler http.Handler // optional
	Market         MarketSource // optional; enables GET /market
	Debug          bool
}

// Server serves stream state over HTTP.
type Server struct {
	source Source
	market MarketSource
	logger *slog.Logger
	engine *gin.Engine
}

// New creates a Server with all routes registered.
func New(cfg Config, source Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		source: source,
		market: cfg.Market,
		logger: logger.With("component", "status_server"),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/status", s.getStatus)
	s.engine.GET("/prices", s.getPrices)
	s.engine.GET("/prices/:symbol", s.getPrice)
	s.engine.POST("/reconnect", s.postReconnect)

	if cfg.Market != nil {
		s.engine.GET("/market", s.getMarket)
	}

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.engine.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

// priceView is the JSON form of a PriceRecord.
type priceView struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Timestamp     string          `json:"timestamp"`
	Direction     string          `json:"direction"`
}

func newPriceView(p model.PriceRecord) priceView {
	dir := "up"
	if !p.IsUp() {
		dir = "down"
	}
	return priceView{
		Symbol:        p.Symbol,
		Price:         p.Price,
		PreviousClose: p.PreviousClose,
		Change:        p.Change,
		ChangePercent: p.ChangePercent,
		Volume:        p.Volume,
		Timestamp:     p.Timestamp,
		Direction:     dir,
	}
}

// formatTime renders t as RFC 3339, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	st := s.source.Status()

	health := "healthy"
	code := http.StatusOK
	switch st.State {
	case model.StateConnecting, model.StateReconnecting:
		health = "degraded"
	case model.StateDisconnected:
		health = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     health,
		"connection": st.String(),
		"stale":      s.source.IsStale(),
		"symbols":    s.source.PriceSnapshot().Len(),
	})
}

func (s *Server) getStatus(c *gin.Context) {
	st := s.source.Status()
	rs := s.source.ReconnectState()

	c.JSON(http.StatusOK, gin.H{
		"connection":  st.State.String(),
		"attempt":     st.Attempt,
		"stale":       s.source.IsStale(),
		"last_update": formatTime(s.source.LastUpdateTime()),
		"last_error":  s.source.LastError(),
		"reconnect": gin.H{
			"attempt_count":   rs.AttemptCount,
			"last_attempt_at": formatTime(rs.LastAttemptAt),
		},
		"frames":  s.source.RouterStats(),
		"symbols": s.source.PriceSnapshot().Len(),
		"build":   version.Get(),
	})
}

func (s *Server) getPrices(c *gin.Context) {
	records := s.source.PriceSnapshot().Records()

	views := make([]priceView, 0, len(records))
	for _, r := range records {
		views = append(views, newPriceView(r))
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(views),
		"stale":       s.source.IsStale(),
		"last_update": formatTime(s.source.LastUpdateTime()),
		"prices":      views,
	})
}

func (s *Server) getPrice(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	p, ok := s.source.PriceSnapshot().Get(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol " + symbol + " not found"})
		return
	}

	c.JSON(http.StatusOK, newPriceView(p))
}

func (s *Server) postReconnect(c *gin.Context) {
	if err := s.source.Reconnect(); err != nil {
		s.logger.Warn("manual reconnect rejected", "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("manual reconnect via http")
	c.JSON(http.StatusAccepted, gin.H{"status": s.source.Status().String()})
}

func (s *Server) getMarket(c *gin.Context) {
	snap, ok := s.market.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "market snapshot not yet available"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
