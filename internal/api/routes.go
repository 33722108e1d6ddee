package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autotrader/internal/api/handlers"
	"autotrader/internal/api/middleware"
	"autotrader/internal/websocket"
	"autotrader/pkg/utils"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	// BaseCtx - контекст процесса для планировщика, запущенного через API
	BaseCtx context.Context

	Engine        handlers.EngineController
	Trades        handlers.TradeReader
	Notifications handlers.NotificationReader
	Risk          handlers.RiskController
	Hub           *websocket.Hub

	// APITokenHash - bcrypt-хеш токена; пустой отключает auth (только тесты)
	APITokenHash string
	Logger       *utils.Logger
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/                          (bearer auth)
//
//	├── /engine/
//	│   ├── GET  /status            - состояние движка
//	│   ├── POST /run               - внеочередной цикл (409 если занят)
//	│   ├── POST /start             - запустить планировщик
//	│   ├── POST /stop              - остановить планировщик
//	│   └── GET  /activity          - журнал активности
//	├── GET /trades                 - сделки (?status=open|closed&limit=)
//	├── GET /trades/{id}            - сделка по ID
//	├── GET /notifications          - уведомления (?types=&limit=)
//	└── /risk-config/
//	    ├── GET /                   - активная конфигурация риска
//	    └── PUT /auto-trade         - включить/выключить авто-трейдинг
//
// /ws/stream                        (bearer auth или ?token=)
// /metrics                          - prometheus
// /health                           - liveness
//
// Middleware: Recovery, Logging, CORS глобально; Auth на /api/v1 и /ws.
func SetupRoutes(deps *Dependencies) *mux.Router {
	if deps == nil {
		deps = &Dependencies{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = utils.L()
	}

	router := mux.NewRouter()

	// Глобальные middleware (применяются ко всем маршрутам)
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logging(logger))
	router.Use(middleware.CORS)

	var auth mux.MiddlewareFunc
	if deps.APITokenHash != "" {
		auth = middleware.Auth(deps.APITokenHash, logger)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	if auth != nil {
		api.Use(auth)
	}

	if deps.Engine != nil {
		engineHandler := handlers.NewEngineHandler(deps.BaseCtx, deps.Engine, logger)
		api.HandleFunc("/engine/status", engineHandler.GetStatus).Methods(http.MethodGet)
		api.HandleFunc("/engine/run", engineHandler.RunCycle).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/engine/start", engineHandler.StartEngine).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/engine/stop", engineHandler.StopEngine).Methods(http.MethodPost, http.MethodOptions)
		api.HandleFunc("/engine/activity", engineHandler.GetActivity).Methods(http.MethodGet)
	}

	if deps.Trades != nil {
		tradeHandler := handlers.NewTradeHandler(deps.Trades)
		api.HandleFunc("/trades", tradeHandler.GetTrades).Methods(http.MethodGet)
		api.HandleFunc("/trades/{id:[0-9]+}", tradeHandler.GetTrade).Methods(http.MethodGet)
	}

	if deps.Notifications != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods(http.MethodGet)
	}

	if deps.Risk != nil {
		riskHandler := handlers.NewRiskHandler(deps.Risk)
		api.HandleFunc("/risk-config", riskHandler.GetRiskConfig).Methods(http.MethodGet)
		api.HandleFunc("/risk-config/auto-trade", riskHandler.SetAutoTrade).Methods(http.MethodPut, http.MethodOptions)
	}

	if deps.Hub != nil {
		ws := router.PathPrefix("/ws").Subrouter()
		if auth != nil {
			ws.Use(auth)
		}
		ws.HandleFunc("/stream", deps.Hub.Handler()).Methods(http.MethodGet)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return router
}
