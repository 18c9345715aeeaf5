package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentinelmarket/pricestream/internal/model"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("https://api.example.com/api/v1/")

		if c.baseURL != "https://api.example.com/api/v1" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "https://api.example.com/api/v1")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.retryBackoff != time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("https://api.example.com", WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with retries option", func(t *testing.T) {
		c := NewClient("https://api.example.com", WithRetries(5, 2*time.Second))
		if c.maxRetries != 5 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 5)
		}
		if c.retryBackoff != 2*time.Second {
			t.Errorf("retryBackoff = %v, want %v", c.retryBackoff, 2*time.Second)
		}
	})

	t.Run("with nil logger keeps default", func(t *testing.T) {
		c := NewClient("https://api.example.com", WithLogger(nil))
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("https://api.example.com", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("https://api.example.com",
			WithTimeout(15*time.Second),
			WithRetries(10, 500*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 10 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 10)
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	t.Run("Error method", func(t *testing.T) {
		err := &APIError{
			StatusCode: 404,
			Message:    "Symbol XYZ not found",
		}
		expected := "sentinel api error 404: Symbol XYZ not found"
		if err.Error() != expected {
			t.Errorf("Error() = %q, want %q", err.Error(), expected)
		}
	})

	t.Run("IsRetryable", func(t *testing.T) {
		tests := []struct {
			code     int
			expected bool
		}{
			{500, true},
			{502, true},
			{503, true},
			{429, true},
			{400, false},
			{404, false},
			{422, false},
			{499, false},
		}

		for _, tt := range tests {
			err := &APIError{StatusCode: tt.code}
			if got := err.IsRetryable(); got != tt.expected {
				t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
			}
		}
	})
}

// TestDoRequest tests the HTTP request functionality.
func TestDoRequest(t *testing.T) {
	t.Run("successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q, want %q", r.Header.Get("Accept"), "application/json")
			}
			if r.Header.Get("Content-Type") != "" {
				t.Errorf("Content-Type = %q, want empty for GET", r.Header.Get("Content-Type"))
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q, want %q", string(body), `{"status": "ok"}`)
		}
	})

	t.Run("request with body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want %q", r.Header.Get("Content-Type"), "application/json")
			}
			got, _ := io.ReadAll(r.Body)
			if string(got) != `{"a":1}` {
				t.Errorf("body = %q, want %q", got, `{"a":1}`)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		if _, err := c.doRequest(context.Background(), http.MethodPost, "/test", nil, []byte(`{"a":1}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("4xx error uses detail message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Symbol XYZ not found"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}

		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.StatusCode != 404 {
			t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, 404)
		}
		if apiErr.Message != "Symbol XYZ not found" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Symbol XYZ not found")
		}
	})

	t.Run("5xx error falls back to status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`internal error`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil, nil)

		apiErr, ok := err.(*APIError)
		if !ok {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Message != "Internal Server Error" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "Internal Server Error")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // Cancel immediately

		_, err := c.doRequest(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context canceled") {
			t.Errorf("error should contain 'context canceled', got %v", err)
		}
	})
}

// TestDoWithRetry tests the retry logic.
func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		body, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"ok": true}` {
			t.Errorf("body = %q, want %q", string(body), `{"ok": true}`)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("retries on 429 and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 2 {
			t.Errorf("attempts = %d, want 2", attempts)
		}
	})

	t.Run("does not retry on 4xx (except 429)", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil, nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("does not retry POST", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodPost, "/test", nil, []byte(`{}`))
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("POST error should not mention retries, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodDelete, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("error should contain 'max retries exceeded', got %v", err)
		}
		// 1 initial + 2 retries = 3 attempts
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	for _, backoff := range []time.Duration{0, -time.Second} {
		t.Run(fmt.Sprintf("non-positive backoff %v retries without waiting", backoff), func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			c := NewClient(server.URL, WithRetries(3, backoff))
			_, err := c.GetSymbols(context.Background())
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
				t.Fatalf("err = %v, want 503 APIError", err)
			}
			if attempts != 4 {
				t.Errorf("attempts = %d, want 4", attempts)
			}
		})
	}

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test", nil, nil)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "context") {
			t.Errorf("error should be context-related, got %v", err)
		}
	})
}

// TestGetSymbols tests the GetSymbols method.
func TestGetSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/symbols" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/v1/symbols")
		}
		w.Write([]byte(`[
			{"symbol": "AAPL", "name": "Apple Inc.", "sector": "Technology", "current_price": 175.5},
			{"symbol": "SPY", "name": "S&P 500 ETF", "sector": "Index", "current_price": null}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL + "/api/v1")
	symbols, err := c.GetSymbols(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(symbols) != 2 {
		t.Fatalf("len(symbols) = %d, want 2", len(symbols))
	}
	if symbols[0].Name != "Apple Inc." {
		t.Errorf("Name = %q, want %q", symbols[0].Name, "Apple Inc.")
	}
	if !symbols[0].CurrentPrice.Valid || !symbols[0].CurrentPrice.Decimal.Equal(decimal.RequireFromString("175.5")) {
		t.Errorf("CurrentPrice = %+v, want 175.5", symbols[0].CurrentPrice)
	}
	if symbols[1].CurrentPrice.Valid {
		t.Error("null current_price should be invalid")
	}
}

// TestGetPrice tests the GetPrice method.
func TestGetPrice(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/symbols/AAPL/price" {
				t.Errorf("path = %q, want %q", r.URL.Path, "/symbols/AAPL/price")
			}
			w.Write([]byte(`{"symbol":"AAPL","price":175.5,"previous_close":174.0,"change":1.5,"change_percent":0.86,"volume":1000,"timestamp":"2024-01-15T10:30:00"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		price, err := c.GetPrice(context.Background(), " aapl ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !price.Price.Equal(decimal.RequireFromString("175.5")) {
			t.Errorf("Price = %s, want 175.5", price.Price)
		}
		if price.Volume != 1000 {
			t.Errorf("Volume = %d, want 1000", price.Volume)
		}
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Symbol XYZ not found"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.GetPrice(context.Background(), "XYZ")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
		}
	})

	t.Run("empty symbol", func(t *testing.T) {
		c := NewClient("http://unused")
		if _, err := c.GetPrice(context.Background(), "  "); !errors.Is(err, ErrEmptySymbol) {
			t.Errorf("err = %v, want ErrEmptySymbol", err)
		}
	})
}

// TestGetMarketSummary tests the GetMarketSummary method.
func TestGetMarketSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/market/summary" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/market/summary")
		}
		w.Write([]byte(`{"symbols":[{"symbol":"AAPL","name":"Apple Inc.","sector":"Technology"}],"last_updated":"2024-01-15T10:30:00.123456","market_status":"open"}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	summary, err := c.GetMarketSummary(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.MarketStatus != "open" {
		t.Errorf("MarketStatus = %q, want open", summary.MarketStatus)
	}
	if len(summary.Symbols) != 1 {
		t.Errorf("len(Symbols) = %d, want 1", len(summary.Symbols))
	}
	if ParseTimestamp(summary.LastUpdated).IsZero() {
		t.Errorf("LastUpdated %q did not parse", summary.LastUpdated)
	}
}

// TestListAlerts tests the ListAlerts method.
func TestListAlerts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/alerts" {
			t.Errorf("request = %s %s, want GET /alerts", r.Method, r.URL.Path)
		}
		w.Write([]byte(`[{"id":"5f0c7f8e-2b8a-4c1e-9d3f-0a1b2c3d4e5f","symbol":"AAPL","condition":"above","target_price":180,"is_triggered":false,"is_active":true,"created_at":"2024-01-15T10:30:00","triggered_at":null}]`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	alerts, err := c.ListAlerts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("len(alerts) = %d, want 1", len(alerts))
	}
	if alerts[0].Condition != model.ConditionAbove {
		t.Errorf("Condition = %q, want above", alerts[0].Condition)
	}
	if alerts[0].TriggeredAt != nil {
		t.Errorf("TriggeredAt = %v, want nil", *alerts[0].TriggeredAt)
	}
}

// TestCreateAlert tests the CreateAlert method.
func TestCreateAlert(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/alerts" {
				t.Errorf("request = %s %s, want POST /alerts", r.Method, r.URL.Path)
			}

			var req CreateAlertRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if req.Symbol != "AAPL" {
				t.Errorf("Symbol = %q, want AAPL", req.Symbol)
			}
			if !req.TargetPrice.Equal(decimal.RequireFromString("180.25")) {
				t.Errorf("TargetPrice = %s, want 180.25", req.TargetPrice)
			}

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Alert{
				ID:          "5f0c7f8e-2b8a-4c1e-9d3f-0a1b2c3d4e5f",
				Symbol:      req.Symbol,
				Condition:   req.Condition,
				TargetPrice: req.TargetPrice,
				IsActive:    true,
			})
		}))
		defer server.Close()

		c := NewClient(server.URL)
		alert, err := c.CreateAlert(context.Background(), CreateAlertRequest{
			Symbol:      "aapl",
			Condition:   model.ConditionAbove,
			TargetPrice: decimal.RequireFromString("180.25"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if alert.ID == "" {
			t.Error("expected alert ID")
		}
		if !alert.IsActive {
			t.Error("IsActive = false, want true")
		}
	})

	t.Run("validation", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer server.Close()

		tests := []struct {
			name string
			req  CreateAlertRequest
			want error
		}{
			{"empty symbol", CreateAlertRequest{Condition: model.ConditionAbove, TargetPrice: decimal.NewFromInt(1)}, ErrEmptySymbol},
			{"bad condition", CreateAlertRequest{Symbol: "AAPL", Condition: "sideways", TargetPrice: decimal.NewFromInt(1)}, ErrInvalidCondition},
			{"zero target", CreateAlertRequest{Symbol: "AAPL", Condition: model.ConditionBelow}, ErrInvalidTargetPrice},
		}

		c := NewClient(server.URL)
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := c.CreateAlert(context.Background(), tt.req)
				if !errors.Is(err, tt.want) {
					t.Errorf("err = %v, want %v", err, tt.want)
				}
			})
		}

		if calls != 0 {
			t.Errorf("server calls = %d, want 0", calls)
		}
	})
}

// TestDeleteAlert tests the DeleteAlert method.
func TestDeleteAlert(t *testing.T) {
	t.Run("successful delete", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				t.Errorf("method = %s, want DELETE", r.Method)
			}
			if r.URL.Path != "/alerts/5f0c7f8e-2b8a-4c1e-9d3f-0a1b2c3d4e5f" {
				t.Errorf("path = %q", r.URL.Path)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		if err := c.DeleteAlert(context.Background(), "5F0C7F8E-2B8A-4C1E-9D3F-0A1B2C3D4E5F"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		c := NewClient("http://unused")
		if err := c.DeleteAlert(context.Background(), "../symbols"); !errors.Is(err, ErrInvalidAlertID) {
			t.Errorf("err = %v, want ErrInvalidAlertID", err)
		}
	})
}

func TestJSONUnmarshalErrors(t *testing.T) {
	t.Run("invalid JSON response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`not valid json`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.GetMarketSummary(context.Background())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "unmarshal") {
			t.Errorf("error should contain 'unmarshal', got %v", err)
		}
	})
}
