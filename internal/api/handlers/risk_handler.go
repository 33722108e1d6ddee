package handlers

import (
	"errors"
	"net/http"

	"autotrader/internal/models"
	"autotrader/internal/repository"
	"autotrader/internal/service"
)

// RiskController - чтение конфигурации риска и переключение авто-трейдинга
//
// Реализуется service.RiskService.
type RiskController interface {
	GetActive() (*models.RiskConfig, error)
	SetAutoTrade(enabled bool) error
}

// RiskHandler отвечает за конфигурацию риска
//
// Endpoints:
// - GET /api/v1/risk-config - активная конфигурация
// - PUT /api/v1/risk-config/auto-trade - {"enabled": true|false}
//
// Изменения применяются со следующего цикла.
type RiskHandler struct {
	risk RiskController
}

// NewRiskHandler создает новый RiskHandler
func NewRiskHandler(risk RiskController) *RiskHandler {
	return &RiskHandler{risk: risk}
}

// GetRiskConfig возвращает активную конфигурацию
//
// GET /api/v1/risk-config
//
// HTTP коды:
// - 200 OK
// - 404 Not Found: активной конфигурации нет
func (h *RiskHandler) GetRiskConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.risk.GetActive()
	if errors.Is(err, service.ErrNoActiveRiskConfig) {
		respondWithError(w, http.StatusNotFound, CodeNoActiveRiskConf, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to get risk config: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, cfg)
}

// AutoTradeRequest - тело PUT /risk-config/auto-trade
type AutoTradeRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetAutoTrade включает или выключает авто-трейдинг
//
// PUT /api/v1/risk-config/auto-trade
//
// HTTP коды:
// - 200 OK
// - 400 Bad Request: невалидное тело
// - 404 Not Found: активной конфигурации нет
func (h *RiskHandler) SetAutoTrade(w http.ResponseWriter, r *http.Request) {
	var req AutoTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body")
		return
	}
	if req.Enabled == nil {
		respondWithError(w, http.StatusBadRequest, CodeBadRequest, "enabled is required")
		return
	}

	err := h.risk.SetAutoTrade(*req.Enabled)
	if errors.Is(err, repository.ErrRiskConfigNotFound) {
		respondWithError(w, http.StatusNotFound, CodeNoActiveRiskConf, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to update auto trade: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, SuccessResponse{
		Message: "auto trade updated",
		Data:    map[string]bool{"auto_trade_enabled": *req.Enabled},
	})
}
