package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"autotrader/internal/api"
	"autotrader/internal/bot"
	"autotrader/internal/config"
	"autotrader/internal/exchange"
	"autotrader/internal/repository"
	"autotrader/internal/service"
	"autotrader/internal/websocket"
	"autotrader/pkg/crypto"
	"autotrader/pkg/utils"
)

// Периодичность фоновых задач обслуживания
const (
	retentionEvery = time.Hour
	expireEvery    = time.Minute
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Development: cfg.Logging.Development,
	})
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", utils.Err(err))
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	tradeRepo := repository.NewTradeRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	riskRepo := repository.NewRiskConfigRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Конфигурация риска: существующая активная или YAML для первого запуска
	riskService := service.NewRiskService(riskRepo, logger)
	if _, err := riskService.EnsureActive(cfg.Bot.RiskConfigFile); err != nil {
		return fmt.Errorf("ensure risk config: %w", err)
	}

	client, feed, mode, err := initExchange(cfg, opportunityRepo)
	if err != nil {
		return fmt.Errorf("init exchange: %w", err)
	}
	logger.Info("exchange ready", utils.String("mode", mode))

	// WebSocket hub и доставка уведомлений
	hub := websocket.NewHub(logger)
	go hub.Run()

	notificationService := service.NewNotificationService(notificationRepo, cfg.Bot.NotificationBuffer, logger)
	notificationService.SetWebSocketHub(hub)
	notificationService.Start()
	go notificationService.RunRetention(ctx, cfg.Bot.NotificationRetention, retentionEvery)
	go expireOpportunities(ctx, opportunityRepo, logger)

	loc, err := cfg.Bot.Location()
	if err != nil {
		return err
	}

	engine, err := bot.NewEngine(bot.Config{
		DefaultScanInterval: cfg.Bot.DefaultScanInterval,
		Location:            loc,
		ActivityLogSize:     cfg.Bot.ActivityLogSize,
		DefaultBankrollUnit: cfg.Bot.DefaultBankrollUnit,
		RetryBackoff:        cfg.Bot.RetryBackoff,
		RunOnStart:          cfg.Bot.RunOnStart,
	}, bot.Deps{
		Client:        client,
		Feed:          feed,
		Trades:        tradeRepo,
		Opportunities: opportunityRepo,
		RiskConfigs:   riskRepo,
		Notifier:      notificationService,
		Observer:      hub,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if cfg.Bot.AutoStart {
		if err := engine.Start(ctx); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		BaseCtx:       ctx,
		Engine:        engine,
		Trades:        tradeRepo,
		Notifications: notificationService,
		Risk:          riskService,
		Hub:           hub,
		APITokenHash:  cfg.Security.APITokenHash,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // ручной цикл может ждать исполнения ордера
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			utils.String("addr", server.Addr),
			utils.Bool("https", cfg.Server.UseHTTPS))

		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", utils.Err(err))
	}

	// Движок дожидается текущего цикла, затем дочищается очередь уведомлений
	engine.Stop()
	notificationService.Stop()
	hub.Stop()

	delivered, dropped := notificationService.Stats()
	logger.Info("shutdown complete",
		utils.Int64("notifications_delivered", int64(delivered)),
		utils.Int64("notifications_dropped", int64(dropped)),
		utils.Int64("ws_messages_dropped", int64(hub.DroppedMessages())))

	return runErr
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// initExchange выбирает paper или HTTP шлюз
func initExchange(cfg *config.Config, prices exchange.LatestPriceSource) (exchange.Client, exchange.PriceFeed, string, error) {
	opts := exchange.Options{
		Paper:        cfg.Bot.PaperTrading,
		PaperLatency: cfg.Exchange.PaperLatency,
		PaperPrices:  prices,
	}

	if !cfg.Bot.PaperTrading {
		secret, err := crypto.DecryptWithKeyString(cfg.Exchange.APISecretEnc, cfg.Security.EncryptionKey)
		if err != nil {
			return nil, nil, "", fmt.Errorf("decrypt gateway secret: %w", err)
		}
		opts.Gateway = exchange.GatewayConfig{
			BaseURL:    cfg.Exchange.GatewayURL,
			APIKey:     cfg.Exchange.APIKey,
			APISecret:  secret,
			OrderRate:  cfg.Exchange.OrderRate,
			OrderBurst: cfg.Exchange.OrderBurst,
			PriceRate:  cfg.Exchange.PriceRate,
			PriceBurst: cfg.Exchange.PriceBurst,
			HTTP: exchange.HTTPClientConfig{
				ConnectTimeout: cfg.Exchange.ConnectTimeout,
				TotalTimeout:   cfg.Exchange.RequestTimeout,
			},
		}
	}

	return exchange.New(opts)
}

// expireOpportunities помечает просроченные возможности
func expireOpportunities(ctx context.Context, repo *repository.OpportunityRepository, logger *utils.Logger) {
	ticker := time.NewTicker(expireEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.ExpireStale()
			if err != nil {
				logger.Warn("failed to expire opportunities", utils.Err(err))
				continue
			}
			if n > 0 {
				logger.Debug("opportunities expired", utils.Int64("count", n))
			}
		}
	}
}
