package handlers

import (
	"context"
	"errors"
	"net/http"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// EngineController - управление торговым движком
//
// Реализуется *bot.Engine.
type EngineController interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
	RunCycleNow(ctx context.Context) (*bot.CycleReport, error)
	Status() bot.EngineStatus
	Activity(limit int) []models.ActivityEntry
	MonitorStats() bot.MonitorStats
}

// EngineHandler отвечает за управление движком
//
// Endpoints:
// - GET /api/v1/engine/status - состояние движка и счётчики монитора
// - POST /api/v1/engine/run - внеочередной цикл
// - POST /api/v1/engine/start - запуск планировщика
// - POST /api/v1/engine/stop - остановка (ждёт текущий цикл)
// - GET /api/v1/engine/activity?limit=N - журнал активности
type EngineHandler struct {
	engine EngineController

	// baseCtx - контекст процесса; планировщик не должен жить в контексте запроса
	baseCtx context.Context
	logger  *utils.Logger
}

// NewEngineHandler создает новый EngineHandler
func NewEngineHandler(baseCtx context.Context, engine EngineController, logger *utils.Logger) *EngineHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = utils.L()
	}
	return &EngineHandler{
		engine:  engine,
		baseCtx: baseCtx,
		logger:  logger.WithComponent("api"),
	}
}

// EngineStatusResponse - ответ GET /engine/status
type EngineStatusResponse struct {
	bot.EngineStatus
	Monitor bot.MonitorStats `json:"monitor"`
}

// GetStatus возвращает снимок состояния движка
//
// GET /api/v1/engine/status
func (h *EngineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, EngineStatusResponse{
		EngineStatus: h.engine.Status(),
		Monitor:      h.engine.MonitorStats(),
	})
}

// RunCycle запускает цикл немедленно и возвращает его отчёт
//
// POST /api/v1/engine/run
//
// HTTP коды:
// - 200 OK: цикл выполнен (outcome в отчёте, включая error)
// - 409 Conflict: цикл уже выполняется или движок остановлен
func (h *EngineHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RunCycleNow(r.Context())
	switch {
	case errors.Is(err, bot.ErrCycleInProgress):
		respondWithError(w, http.StatusConflict, CodeCycleInProgress, err.Error())
		return
	case errors.Is(err, bot.ErrEngineStopped):
		respondWithError(w, http.StatusConflict, CodeEngineStopped, err.Error())
		return
	case err != nil:
		h.logger.Error("manual cycle failed", utils.Err(err))
		respondWithError(w, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

// StartEngine запускает планировщик; повторный запуск не ошибка
//
// POST /api/v1/engine/start
func (h *EngineHandler) StartEngine(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(h.baseCtx); err != nil {
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to start engine: "+err.Error())
		return
	}
	h.logger.Info("engine started via api")
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "engine started", Data: h.engine.Status()})
}

// StopEngine останавливает планировщик
//
// POST /api/v1/engine/stop
func (h *EngineHandler) StopEngine(w http.ResponseWriter, r *http.Request) {
	h.engine.Stop()
	h.logger.Info("engine stopped via api")
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "engine stopped", Data: h.engine.Status()})
}

// ActivityResponse - ответ GET /engine/activity
type ActivityResponse struct {
	Entries []models.ActivityEntry `json:"entries"`
	Total   int                    `json:"total"`
}

// GetActivity возвращает последние записи журнала, новые первыми
//
// GET /api/v1/engine/activity?limit=N (по умолчанию 50, максимум 1000)
func (h *EngineHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	entries := h.engine.Activity(parseLimit(r, 50, 1000))
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	respondWithJSON(w, http.StatusOK, ActivityResponse{Entries: entries, Total: len(entries)})
}
