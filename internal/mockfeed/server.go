package mockfeed

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sentinelmarket/pricestream/internal/api"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewHandler returns the backend routes for f.
func NewHandler(f *Feed) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "Sentinel API",
			"status":      "healthy",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"connections": f.ClientCount(),
		})
	})

	v1 := r.Group("/api/v1")
	v1.GET("/symbols", func(c *gin.Context) {
		c.JSON(http.StatusOK, f.market.Symbols())
	})
	v1.GET("/symbols/:symbol/price", func(c *gin.Context) {
		symbol := strings.ToUpper(c.Param("symbol"))
		p, ok := f.market.Price(symbol)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Symbol " + symbol + " not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	})
	v1.GET("/market/summary", func(c *gin.Context) {
		c.JSON(http.StatusOK, api.MarketSummary{
			Symbols:      f.market.Symbols(),
			LastUpdated:  time.Now().UTC().Format(time.RFC3339),
			MarketStatus: "open",
		})
	})

	v1.GET("/alerts", func(c *gin.Context) {
		c.JSON(http.StatusOK, f.alerts.List())
	})
	v1.POST("/alerts", func(c *gin.Context) {
		var req api.CreateAlertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		req.Symbol = strings.ToUpper(req.Symbol)
		if _, ok := f.market.Price(req.Symbol); !ok {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Symbol " + req.Symbol + " not found"})
			return
		}

		a, err := f.alerts.Create(req)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, a)
	})
	v1.DELETE("/alerts/:id", func(c *gin.Context) {
		if !f.alerts.Delete(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Alert not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.GET("/price/stream", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			f.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		f.Serve(conn)
	})

	return r
}
