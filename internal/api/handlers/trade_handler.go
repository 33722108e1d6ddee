package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"autotrader/internal/models"
	"autotrader/internal/repository"
)

// TradeReader - чтение сделок
//
// Реализуется repository.TradeRepository.
type TradeReader interface {
	GetRecent(status string, limit int) ([]*models.Trade, error)
	GetByID(id int64) (*models.Trade, error)
	GetTotalPnl() (float64, error)
}

// TradeHandler отдаёт сделки движка
//
// Endpoints:
// - GET /api/v1/trades?status=open|closed&limit=N
// - GET /api/v1/trades/{id}
type TradeHandler struct {
	trades TradeReader
}

// NewTradeHandler создает новый TradeHandler
func NewTradeHandler(trades TradeReader) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// GetTradesResponse - ответ списка сделок
type GetTradesResponse struct {
	Trades   []*models.Trade `json:"trades"`
	Total    int             `json:"total"`
	TotalPnl float64         `json:"total_pnl"`
}

// GetTrades возвращает последние сделки, новые первыми
//
// GET /api/v1/trades
//
// HTTP коды:
// - 200 OK
// - 400 Bad Request: неизвестный status
// - 500 Internal Server Error: ошибка БД
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	switch status {
	case "", models.TradeStatusOpen, models.TradeStatusClosed:
	default:
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "status must be open or closed")
		return
	}

	trades, err := h.trades.GetRecent(status, parseLimit(r, 50, 500))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to get trades: "+err.Error())
		return
	}
	if trades == nil {
		trades = []*models.Trade{}
	}

	totalPnl, err := h.trades.GetTotalPnl()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to get total pnl: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, GetTradesResponse{
		Trades:   trades,
		Total:    len(trades),
		TotalPnl: totalPnl,
	})
}

// GetTrade возвращает сделку по ID
//
// GET /api/v1/trades/{id}
//
// HTTP коды:
// - 200 OK
// - 400 Bad Request: ID не число
// - 404 Not Found
// - 500 Internal Server Error: ошибка БД
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Invalid trade ID")
		return
	}

	trade, err := h.trades.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrTradeNotFound) {
			respondWithError(w, http.StatusNotFound, CodeNotFound, "Trade not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to get trade: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, trade)
}
