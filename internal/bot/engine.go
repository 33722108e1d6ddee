package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Значения по умолчанию для Config
const (
	DefaultScanInterval = 5 * time.Minute
	DefaultRetryBackoff = 500 * time.Millisecond
)

// Config - параметры движка, не входящие в RiskConfig
type Config struct {
	// DefaultScanInterval - интервал, пока активной конфигурации нет
	DefaultScanInterval time.Duration

	// Location - часовой пояс для границы торгового дня (nil = UTC)
	Location *time.Location

	ActivityLogSize     int
	DefaultBankrollUnit float64
	RetryBackoff        time.Duration

	// RunOnStart - первый цикл сразу после Start, не дожидаясь интервала
	RunOnStart bool
}

// Deps - внешние зависимости движка
type Deps struct {
	Client        exchange.Client
	Feed          exchange.PriceFeed
	Trades        TradeStore
	Opportunities OpportunityStore
	RiskConfigs   RiskConfigStore
	Notifier      NotificationSink
	Observer      CycleObserver // опционально
	Logger        *utils.Logger
}

// EngineStatus - снимок состояния для API
type EngineStatus struct {
	Running           bool       `json:"running"`
	Phase             CyclePhase `json:"phase"`
	LastCycleID       string     `json:"last_cycle_id,omitempty"`
	LastCycleTime     *time.Time `json:"last_cycle_time,omitempty"`
	LastOutcome       Outcome    `json:"last_outcome,omitempty"`
	GatingReason      string     `json:"gating_reason,omitempty"`
	DailyTradeCount   int        `json:"daily_trade_count"`
	InCooldown        bool       `json:"in_cooldown"`
	CooldownRemaining int        `json:"cooldown_remaining_seconds"`
	OpenPositions     int        `json:"open_positions"`
	OpenExposure      float64    `json:"open_exposure"`
}

// Engine - планировщик торговых циклов
//
// Один цикл за раз: мониторинг позиций, проверка лимитов, выбор и исполнение
// лучшей возможности. Цикл сериализован cycleMu (TryLock), ручной запуск во время
// цикла отклоняется, плановый тик пропускается.
type Engine struct {
	cfg Config

	trades      TradeStore
	opps        OpportunityStore
	riskConfigs RiskConfigStore
	notifier    NotificationSink
	observer    CycleObserver

	sizer    *PositionSizer
	limiter  *RateLimiter
	executor *OrderExecutor
	monitor  *PositionMonitor
	activity *ActivityLog
	logger   *utils.Logger

	// Владелец цикла; state и lastGate меняются только под cycleMu
	cycleMu  sync.Mutex
	state    *CycleState
	lastGate string

	// Снимок для Status
	statusMu      sync.RWMutex
	status        EngineStatus
	cooldownUntil time.Time

	// Жизненный цикл планировщика
	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	manual  sync.WaitGroup // ручные циклы; Add только под runMu при running

	now func() time.Time
}

// NewEngine создаёт движок
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	switch {
	case deps.Client == nil:
		return nil, errors.New("engine: exchange client is required")
	case deps.Feed == nil:
		return nil, errors.New("engine: price feed is required")
	case deps.Trades == nil, deps.Opportunities == nil, deps.RiskConfigs == nil:
		return nil, errors.New("engine: trade, opportunity and risk config stores are required")
	}

	if cfg.DefaultScanInterval <= 0 {
		cfg.DefaultScanInterval = DefaultScanInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = utils.L()
	}

	e := &Engine{
		cfg:         cfg,
		trades:      deps.Trades,
		opps:        deps.Opportunities,
		riskConfigs: deps.RiskConfigs,
		notifier:    notifier,
		observer:    deps.Observer,
		sizer:       NewPositionSizer(cfg.DefaultBankrollUnit),
		limiter:     NewRateLimiter(),
		executor:    NewOrderExecutor(deps.Client, deps.Trades, deps.Opportunities, notifier, cfg.RetryBackoff, logger),
		monitor:     NewPositionMonitor(deps.Feed, deps.Trades, notifier, logger),
		activity:    NewActivityLog(cfg.ActivityLogSize),
		logger:      logger.WithComponent("engine"),
		state:       NewCycleState(),
		status:      EngineStatus{Phase: PhaseIdle},
		now:         time.Now,
	}
	return e, nil
}

// Start запускает планировщик
//
// Время последней авто-сделки берётся из хранилища, чтобы рестарт не обходил cooldown.
// Повторный вызов на работающем движке ничего не делает.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.running {
		return nil
	}

	e.seedState()

	loopCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	e.setRunning(true)

	go e.loop(loopCtx, e.done)

	e.logger.Info("engine started",
		utils.Duration("default_scan_interval", e.cfg.DefaultScanInterval),
		utils.String("timezone", e.cfg.Location.String()))
	return nil
}

// Stop останавливает планировщик и ждёт завершения текущего цикла,
// планового или ручного
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.running = false
	e.runMu.Unlock()

	cancel()
	<-done
	e.manual.Wait()

	e.setRunning(false)
	e.logger.Info("engine stopped")
}

// IsRunning показывает, запущен ли планировщик
func (e *Engine) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// RunCycleNow запускает цикл вне расписания
//
// Останов клиента (ctx) не прерывает уже начатый цикл: ордер мог уйти на площадку.
func (e *Engine) RunCycleNow(ctx context.Context) (*CycleReport, error) {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return nil, ErrEngineStopped
	}
	e.manual.Add(1)
	e.runMu.Unlock()
	defer e.manual.Done()

	return e.runCycle(context.WithoutCancel(ctx), triggerManual)
}

// Status возвращает снимок состояния
func (e *Engine) Status() EngineStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()

	st := e.status
	if !e.cooldownUntil.IsZero() {
		if remaining := e.cooldownUntil.Sub(e.now()); remaining > 0 {
			st.InCooldown = true
			st.CooldownRemaining = utils.SecondsCeil(remaining)
		}
	}
	if st.LastCycleTime != nil {
		t := *st.LastCycleTime
		st.LastCycleTime = &t
	}
	return st
}

// Activity возвращает последние записи журнала, новые первыми
func (e *Engine) Activity(limit int) []models.ActivityEntry {
	return e.activity.Recent(limit)
}

// MonitorStats возвращает счётчики монитора позиций
func (e *Engine) MonitorStats() MonitorStats {
	return e.monitor.Stats()
}

// ============ Планировщик ============

// loop - единственная горутина планировщика
func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if e.cfg.RunOnStart {
		e.tick(ctx)
	}

	for {
		// интервал перечитывается после каждого цикла
		timer := time.NewTimer(e.nextInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			e.tick(ctx)
		}
	}
}

// tick - плановый запуск; занятый цикл пропускается
func (e *Engine) tick(ctx context.Context) {
	_, err := e.runCycle(context.WithoutCancel(ctx), triggerScheduled)
	if errors.Is(err, ErrCycleInProgress) {
		RecordCycle(OutcomeSkipped, 0)
		e.logger.Warn("scheduled cycle skipped, previous cycle still running")
		e.activity.Add(models.ActivityEntry{
			Timestamp: e.now(),
			Step:      stepCycle,
			Outcome:   string(OutcomeSkipped),
			Level:     LevelWarn,
			Message:   OutcomeInfo(OutcomeSkipped),
		})
	}
}

// nextInterval - интервал из активной конфигурации или значение по умолчанию
func (e *Engine) nextInterval() time.Duration {
	cfg, err := e.riskConfigs.GetActive()
	if err != nil {
		e.logger.Warn("failed to read scan interval, using default", utils.Err(err))
		return e.cfg.DefaultScanInterval
	}
	if cfg == nil || cfg.ScanInterval() <= 0 {
		return e.cfg.DefaultScanInterval
	}
	return cfg.ScanInterval()
}

// seedState восстанавливает время последней авто-сделки
func (e *Engine) seedState() {
	last, err := e.trades.LastAutoTradeTime()
	if err != nil {
		e.logger.Warn("failed to load last auto trade time", utils.Err(err))
		return
	}
	if last == nil {
		return
	}

	var cooldown time.Duration
	if cfg, err := e.riskConfigs.GetActive(); err == nil && cfg != nil {
		cooldown = cfg.Cooldown()
	}

	e.cycleMu.Lock()
	e.state.SeedLastTrade(*last, cooldown)
	until := e.state.CooldownUntil
	e.cycleMu.Unlock()

	e.statusMu.Lock()
	e.cooldownUntil = until
	e.statusMu.Unlock()

	e.logger.Info("cooldown restored from last auto trade",
		utils.Time("last_trade_at", *last),
		utils.Time("cooldown_until", until))
}

// ============ Снимок состояния ============

func (e *Engine) setRunning(running bool) {
	e.statusMu.Lock()
	e.status.Running = running
	e.statusMu.Unlock()
}

func (e *Engine) setPhase(phase CyclePhase) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	if e.status.Phase != phase && !CanTransitionPhase(e.status.Phase, phase) {
		e.logger.Warn("unexpected cycle phase transition",
			utils.String("from", string(e.status.Phase)),
			utils.String("to", string(phase)))
	}
	e.status.Phase = phase
}

// publishCycle обновляет снимок по итогам цикла; вызывается под cycleMu
func (e *Engine) publishCycle(report *CycleReport, open int, exposure float64) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	finished := report.FinishedAt
	e.status.Phase = PhaseIdle
	e.status.LastCycleID = report.CycleID
	e.status.LastCycleTime = &finished
	e.status.LastOutcome = report.Outcome
	e.status.DailyTradeCount = e.state.DailyTradeCount
	if open >= 0 {
		e.status.OpenPositions = open
		e.status.OpenExposure = exposure
	}
	if GatesTrading(report.Outcome) {
		e.status.GatingReason = report.Reason
	} else {
		e.status.GatingReason = ""
	}
	// истёкшая пауза сбрасывается до публикации
	if !e.state.InCooldown(finished) {
		e.cooldownUntil = time.Time{}
	} else {
		e.cooldownUntil = e.state.CooldownUntil
	}

	UpdatePortfolio(e.status.OpenPositions, e.status.OpenExposure, e.status.DailyTradeCount)
}
