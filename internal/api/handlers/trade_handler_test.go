package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"autotrader/internal/models"
)

func TestTradeHandler_GetTrades(t *testing.T) {
	trades := []*models.Trade{
		{ID: 1, Platform: "polymarket", MarketID: "m-1", Status: models.TradeStatusOpen},
		{ID: 2, Platform: "kalshi", MarketID: "k-1", Status: models.TradeStatusClosed},
		{ID: 3, Platform: "polymarket", MarketID: "m-2", Status: models.TradeStatusClosed},
	}

	tests := []struct {
		name           string
		query          string
		reader         *MockTradeReader
		expectedCode   int
		expectedTotal  int
		expectedStatus string
		expectedLimit  int
	}{
		{
			name:          "all trades",
			reader:        &MockTradeReader{trades: trades, totalPnl: 12.5},
			expectedCode:  http.StatusOK,
			expectedTotal: 3,
			expectedLimit: 50,
		},
		{
			name:           "open only",
			query:          "?status=open",
			reader:         &MockTradeReader{trades: trades},
			expectedCode:   http.StatusOK,
			expectedTotal:  1,
			expectedStatus: models.TradeStatusOpen,
			expectedLimit:  50,
		},
		{
			name:           "closed case insensitive with limit",
			query:          "?status=CLOSED&limit=10",
			reader:         &MockTradeReader{trades: trades},
			expectedCode:   http.StatusOK,
			expectedTotal:  2,
			expectedStatus: models.TradeStatusClosed,
			expectedLimit:  10,
		},
		{
			name:         "unknown status",
			query:        "?status=pending",
			reader:       &MockTradeReader{trades: trades},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "store error",
			reader:       &MockTradeReader{getErr: errors.New("db down")},
			expectedCode: http.StatusInternalServerError,
		},
		{
			name:         "pnl error",
			reader:       &MockTradeReader{trades: trades, pnlErr: errors.New("db down")},
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTradeHandler(tt.reader)

			w := httptest.NewRecorder()
			handler.GetTrades(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades"+tt.query, nil))

			if w.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, w.Code)
			}
			if tt.expectedCode != http.StatusOK {
				return
			}

			var response GetTradesResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Total != tt.expectedTotal {
				t.Errorf("expected total %d, got %d", tt.expectedTotal, response.Total)
			}
			if response.TotalPnl != tt.reader.totalPnl {
				t.Errorf("expected total pnl %v, got %v", tt.reader.totalPnl, response.TotalPnl)
			}
			if tt.reader.lastStatus != tt.expectedStatus {
				t.Errorf("expected status filter %q, got %q", tt.expectedStatus, tt.reader.lastStatus)
			}
			if tt.reader.lastLimit != tt.expectedLimit {
				t.Errorf("expected limit %d, got %d", tt.expectedLimit, tt.reader.lastLimit)
			}
		})
	}
}

func TestTradeHandler_EmptyListIsArray(t *testing.T) {
	handler := NewTradeHandler(&MockTradeReader{})

	w := httptest.NewRecorder()
	handler.GetTrades(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades", nil))

	var response GetTradesResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Trades == nil {
		t.Error("trades must be an empty array, not null")
	}
}

func TestTradeHandler_GetTrade(t *testing.T) {
	reader := &MockTradeReader{trades: []*models.Trade{
		{ID: 4, Platform: "polymarket", MarketID: "m-4", Status: models.TradeStatusOpen},
	}}

	tests := []struct {
		name         string
		id           string
		reader       *MockTradeReader
		expectedCode int
	}{
		{name: "found", id: "4", reader: reader, expectedCode: http.StatusOK},
		{name: "not found", id: "5", reader: reader, expectedCode: http.StatusNotFound},
		{name: "invalid id", id: "abc", reader: reader, expectedCode: http.StatusBadRequest},
		{name: "zero id", id: "0", reader: reader, expectedCode: http.StatusBadRequest},
		{name: "store error", id: "4", reader: &MockTradeReader{getErr: errors.New("db down")}, expectedCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTradeHandler(tt.reader)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/"+tt.id, nil)
			req = mux.SetURLVars(req, map[string]string{"id": tt.id})
			w := httptest.NewRecorder()
			handler.GetTrade(w, req)

			if w.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d", tt.expectedCode, w.Code)
			}
			if tt.expectedCode != http.StatusOK {
				return
			}

			var trade models.Trade
			if err := json.NewDecoder(w.Body).Decode(&trade); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if trade.ID != 4 || trade.MarketID != "m-4" {
				t.Errorf("unexpected trade %+v", trade)
			}
		})
	}
}
